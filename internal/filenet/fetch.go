// internal/filenet/fetch.go
//
// Content retrieval: relay first, public gateways as fallback.
//
// Context
// -------
// Fetching content-addressed bytes tries the configured relay before
// walking the public gateway list.  Every endpoint serves the same
// immutable content, so the first success wins; when everything fails the
// surfaced error carries the last underlying failure so operators can see
// which endpoint broke and why.
//
// Content addresses name immutable bytes, so successful fetches go into a
// small LRU and repeat views of a popular page never leave the process.

package filenet

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/dweb/internal/cache"
	"github.com/yanizio/dweb/internal/metrics"
)

// DefaultGateways are the public fallbacks used when the caller does not
// configure its own list.
var DefaultGateways = []string{
	"https://ipfs.io",
	"https://gateway.pinata.cloud",
	"https://cloudflare-ipfs.com",
}

// Fetcher retrieves raw bytes for a content address, optionally scoped to a
// sub-path for directory content.
type Fetcher struct {
	relay    string   // preferred endpoint, may be empty
	token    string   // bearer credential for the relay only
	gateways []string // public fallbacks
	http     *http.Client

	mu  sync.Mutex
	lru *cache.LRU // addr/subPath → []byte, immutable content
}

// NewFetcher builds a fetcher.  Empty gateways falls back to
// DefaultGateways.
func NewFetcher(relay, token string, gateways []string) *Fetcher {
	if len(gateways) == 0 {
		gateways = DefaultGateways
	}
	return &Fetcher{
		relay:    strings.TrimRight(relay, "/"),
		token:    token,
		gateways: gateways,
		http:     &http.Client{Timeout: 30 * time.Second},
		lru:      cache.New(256),
	}
}

// Fetch returns the bytes at addr (optionally addr/subPath).  Endpoints are
// tried in order: relay, then each public gateway.  All failures exhaust
// into ErrAllGatewaysFailed with the last error attached.
func (f *Fetcher) Fetch(ctx context.Context, addr, subPath string) ([]byte, error) {
	key := addr + "/" + subPath
	f.mu.Lock()
	if v, ok := f.lru.Get(key); ok {
		f.mu.Unlock()
		return v.([]byte), nil
	}
	f.mu.Unlock()

	var lastErr error

	try := func(base string, withToken bool) ([]byte, error) {
		u := base + "/ipfs/" + addr
		if subPath != "" {
			u += "/" + strings.TrimLeft(subPath, "/")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		if withToken && f.token != "" {
			req.Header.Set("Authorization", "Bearer "+f.token)
		}

		resp, err := f.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("%s returned %s", base, resp.Status)
		}
		return io.ReadAll(resp.Body)
	}

	if f.relay != "" {
		if raw, err := try(f.relay, true); err == nil {
			f.remember(key, raw)
			return raw, nil
		} else {
			zap.S().Warnw("filenet relay fetch failed, falling back",
				"relay", f.relay, "address", addr, "err", err)
			metrics.GatewayFallbackTotal.Inc()
			lastErr = err
		}
	}

	for _, gw := range f.gateways {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if raw, err := try(strings.TrimRight(gw, "/"), false); err == nil {
			f.remember(key, raw)
			return raw, nil
		} else {
			zap.S().Debugw("filenet gateway fetch failed",
				"gateway", gw, "address", addr, "err", err)
			lastErr = err
		}
	}

	return nil, fmt.Errorf("%w: address %s: last error: %v", ErrAllGatewaysFailed, addr, lastErr)
}

func (f *Fetcher) remember(key string, raw []byte) {
	f.mu.Lock()
	f.lru.Add(key, raw)
	f.mu.Unlock()
}
