// cmd/publish/main.go
//
// dweb publisher – command-line entry point.
//
// Publishes one HTML file or a whole directory without going through the
// web front-end.  Useful for scripted deploys and for smoke-testing a
// relay.  With no path argument a small placeholder document is published,
// which is the quickest way to verify credentials and connectivity.
//
// Examples
// --------
//
//	publish -relay https://relay.example/gun -page home site/index.html
//	publish -relay https://relay.example/gun -mode relay -filenet https://up.example site/
//	publish -relay https://relay.example/gun
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yanizio/dweb/internal/bundle"
	"github.com/yanizio/dweb/internal/filenet"
	"github.com/yanizio/dweb/internal/graph"
	"github.com/yanizio/dweb/internal/identity"
	"github.com/yanizio/dweb/internal/publish"
	"github.com/yanizio/dweb/internal/site"
)

const placeholderHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Hello</title></head>
<body><h1>Hello from dweb</h1><p>This placeholder page verifies the publish pipeline.</p></body></html>
`

func main() {
	var (
		relayURL     = flag.String("relay", "", "graph relay URL (required)")
		page         = flag.String("page", "index", "page name")
		keysPath     = flag.String("keys", "keys.json", "credential file, created on first run")
		alias        = flag.String("alias", "", "display alias for the name mapping")
		mode         = flag.String("mode", string(site.ModeEmbedded), "publish mode: gundb or relay")
		filenetURL   = flag.String("filenet", "", "file-network relay URL (relay mode only)")
		filenetToken = flag.String("filenet-token", "", "bearer token for the file-network relay")
		wait         = flag.Duration("wait", 10*time.Second, "post-write visibility window")
	)
	flag.Parse()

	if *relayURL == "" {
		fmt.Fprintln(os.Stderr, "publish: -relay is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*relayURL, *page, *keysPath, *alias, *mode, *filenetURL, *filenetToken, *wait, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "publish: %v\n", err)
		os.Exit(1)
	}
}

func run(relayURL, page, keysPath, alias, mode, filenetURL, filenetToken string, wait time.Duration, path string) error {
	ctx := context.Background()

	pair, err := identity.LoadOrGenerate(keysPath)
	if err != nil {
		return err
	}
	owner := pair.Owner(alias)

	b, err := loadBundle(path)
	if err != nil {
		return err
	}

	var uploader publish.Uploader
	if filenetURL != "" {
		uploader = filenet.NewClient(filenetURL, filenetToken)
	}

	orch := publish.New(graph.NewClient(relayURL), uploader,
		publish.WithVerifyWindow(wait),
		publish.WithProgress(func(s publish.Stage) {
			fmt.Fprintf(os.Stderr, "  … %s\n", s)
		}))

	receipt, err := orch.Publish(ctx, publish.Request{
		Owner:    owner,
		PageName: page,
		Mode:     site.Mode(mode),
		Bundle:   b,
	})
	if err != nil {
		return err
	}

	fmt.Printf("published %q as %s\n", receipt.PageName, receipt.Mode)
	fmt.Printf("owner address: %s\n", receipt.OwnerAddress)
	if receipt.ContentAddress != "" {
		fmt.Printf("content address: %s\n", receipt.ContentAddress)
	}
	if receipt.Degraded {
		fmt.Println("note: extra files were dropped by the storage fallback")
	}
	fmt.Printf("view path: /dweb/view/%s/%s\n", receipt.OwnerAddress, receipt.PageName)
	return nil
}

// loadBundle reads the argument into a Bundle: a single file, a directory
// tree (files read concurrently), or the placeholder when absent.
func loadBundle(path string) (*bundle.Bundle, error) {
	if path == "" {
		return bundle.New([]bundle.Input{{Path: "index.html", Data: []byte(placeholderHTML)}})
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return bundle.New([]bundle.Input{{Path: filepath.Base(path), Data: data}})
	}

	var names []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			names = append(names, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		inputs []bundle.Input
	)
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(8)
	for _, name := range names {
		name := name
		g.Go(func() error {
			data, err := os.ReadFile(name)
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(path, name)
			if err != nil {
				return err
			}
			mu.Lock()
			inputs = append(inputs, bundle.Input{Path: filepath.ToSlash(rel), Data: data})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Concurrent reads finish in arbitrary order; entry selection wants a
	// stable one.
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Path < inputs[j].Path })
	return bundle.New(inputs)
}
