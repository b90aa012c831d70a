// cmd/web/main.go
//
// dweb publisher – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load env vars (jail-wide file → .env fallback).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Load typed config (YAML + DWEB_ env overlay), resolve `vault:`
//     secrets when a Vault address is configured.
//
//  4. Load or generate the owner keypair and log its address.
//
//  5. Wire the pipeline: graph relay client → publish orchestrator and
//     resolver → chi router (API, viewers, /metrics, publish form).
//
//  6. Serve with hardened timeouts; SIGINT/SIGTERM drain in-flight
//     requests before exit.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yanizio/dweb/internal/config"
	"github.com/yanizio/dweb/internal/filenet"
	"github.com/yanizio/dweb/internal/graph"
	"github.com/yanizio/dweb/internal/identity"
	"github.com/yanizio/dweb/internal/logger"
	"github.com/yanizio/dweb/internal/middleware"
	"github.com/yanizio/dweb/internal/publish"
	"github.com/yanizio/dweb/internal/resolve"
	"github.com/yanizio/dweb/internal/server"
	"github.com/yanizio/dweb/internal/vault"
	"github.com/yanizio/dweb/internal/web"
)

const serverEnvPath = "/usr/local/etc/dweb/global.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Config and logging ──────────────────────────────────────────
	//
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logOut, err := logger.New(cfg.Paths.Root, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}

	if os.Getenv("VAULT_ADDR") != "" {
		cli, err := vault.New(ctx, logOut.Infof)
		if err != nil {
			logOut.Fatalw("vault client", "err", err)
		}
		if err := cfg.ResolveSecrets(ctx, cli); err != nil {
			logOut.Fatalw("resolve secrets", "err", err)
		}
	}

	//
	// ── 2.  Owner identity ──────────────────────────────────────────────
	//
	pair, err := identity.LoadOrGenerate(cfg.Identity.KeysPath)
	if err != nil {
		logOut.Fatalw("owner identity", "err", err)
	}
	owner := pair.Owner(cfg.Identity.Alias)
	logOut.Infow("owner identity ready",
		"address", identity.ShortAddress(owner.Address), "alias", owner.Alias)

	//
	// ── 3.  Pipeline wiring ─────────────────────────────────────────────
	//
	store := graph.NewClient(cfg.Graph.RelayURL)

	var uploader publish.Uploader
	var fetcher resolve.Fetcher
	if cfg.FileNet.RelayURL != "" {
		uploader = filenet.NewClient(cfg.FileNet.RelayURL, cfg.FileNet.RelayToken)
	}
	fetcher = filenet.NewFetcher(cfg.FileNet.RelayURL, cfg.FileNet.RelayToken, cfg.FileNet.Gateways)

	rewriteGateway := cfg.FileNet.RewriteGateway
	if rewriteGateway == "" {
		rewriteGateway = filenet.DefaultGateways[0]
	}

	publisher := publish.New(store, uploader,
		publish.WithVerifyWindow(cfg.Graph.WaitWindow))
	resolver := resolve.New(store, fetcher, rewriteGateway,
		resolve.WithWaitWindow(cfg.Graph.WaitWindow))

	//
	// ── 4.  HTTP server ─────────────────────────────────────────────────
	//
	handler := web.New(publisher, resolver, owner, cfg.HTTP.BaseDomain).Router()
	if cfg.HTTP.ForceHTTPS {
		handler = middleware.ForceHTTPS(handler)
	}

	srv := server.New(cfg.HTTP.ListenAddr, handler)

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logOut.Fatalw("http server", "err", err)
	}
	logOut.Infow("shutdown complete")
}
