// internal/resolve/resolver_test.go
//
// Unit-tests for page resolution: owner lookup, mode rendering, legacy
// records, and listings.

package resolve

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yanizio/dweb/internal/codec"
	"github.com/yanizio/dweb/internal/graph"
	"github.com/yanizio/dweb/internal/site"
)

const ownerAddr = "pubkey-abc"

func newTestResolver(store graph.Store, fetch Fetcher) *Resolver {
	return New(store, fetch, "https://ipfs.io", WithWaitWindow(300*time.Millisecond))
}

func putRecord(t *testing.T, store graph.Store, page string, rec *site.Record) {
	t.Helper()
	if err := store.Put(context.Background(), site.RecordPath(ownerAddr, page), rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestOwnerLookup(t *testing.T) {
	store := graph.NewMemoryStore()
	ctx := context.Background()
	r := newTestResolver(store, nil)

	// Name Mapping wins.
	store.Put(ctx, site.MappingPath("alice"), &site.Mapping{Alias: "alice", Address: "pub-map"})
	if got := r.Owner(ctx, "alice"); got != "pub-map" {
		t.Fatalf("mapping lookup = %q", got)
	}

	// Backend alias node is the fallback.
	store.Put(ctx, site.AliasPath("bob"), map[string]string{"pub": "pub-alias"})
	if got := r.Owner(ctx, "bob"); got != "pub-alias" {
		t.Fatalf("alias lookup = %q", got)
	}

	// Anything else passes through as a raw address.
	if got := r.Owner(ctx, "pub-direct"); got != "pub-direct" {
		t.Fatalf("passthrough = %q", got)
	}
}

func TestResolveEmbedded(t *testing.T) {
	store := graph.NewMemoryStore()
	r := newTestResolver(store, nil)

	doc := `<html><head><link rel="stylesheet" href="style.css"></head><body>hi</body></html>`
	putRecord(t, store, "My-Site", &site.Record{
		PageName:         "My-Site",
		PublishMode:      site.ModeEmbedded,
		Document:         base64.StdEncoding.EncodeToString([]byte(doc)),
		DocumentEncoding: site.EncodingBase64,
		Bundle: map[string]site.BundleFile{
			"style.css": {Content: "body{color:red}", MediaType: "text/css"},
		},
		IsDirectory: true,
	})

	page, err := r.Resolve(context.Background(), ownerAddr, "My-Site")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got := string(page.HTML)
	if !strings.Contains(got, `href="data:text/css;charset=utf-8,`) {
		t.Fatalf("stylesheet not inlined:\n%s", got)
	}
	if !strings.Contains(got, "hi") {
		t.Fatalf("body lost:\n%s", got)
	}
	if page.Mode != site.ModeEmbedded {
		t.Fatalf("mode = %q", page.Mode)
	}
}

type fakeFetcher struct {
	doc      []byte
	err      error
	addr     string
	subPath  string
	requests int
}

func (f *fakeFetcher) Fetch(ctx context.Context, addr, subPath string) ([]byte, error) {
	f.requests++
	f.addr, f.subPath = addr, subPath
	return f.doc, f.err
}

func TestResolveFetched(t *testing.T) {
	store := graph.NewMemoryStore()
	fetch := &fakeFetcher{doc: []byte(`<html><body><img src="logo.png"></body></html>`)}
	r := newTestResolver(store, fetch)

	putRecord(t, store, "remote", &site.Record{
		PageName:       "remote",
		PublishMode:    site.ModeUpload,
		ContentAddress: "QmDir",
		IsDirectory:    true,
		EntryPath:      "index.html",
	})

	page, err := r.Resolve(context.Background(), ownerAddr, "remote")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if fetch.addr != "QmDir" || fetch.subPath != "index.html" {
		t.Fatalf("fetch got addr=%q subPath=%q", fetch.addr, fetch.subPath)
	}
	if !strings.Contains(string(page.HTML), `src="https://ipfs.io/ipfs/QmDir/logo.png"`) {
		t.Fatalf("asset not rewritten:\n%s", page.HTML)
	}
}

func TestResolveFetchFailure(t *testing.T) {
	store := graph.NewMemoryStore()
	r := newTestResolver(store, &fakeFetcher{err: errors.New("all endpoints down")})

	putRecord(t, store, "remote", &site.Record{
		PageName:       "remote",
		PublishMode:    site.ModeReference,
		ContentAddress: "QmGone",
	})

	_, err := r.Resolve(context.Background(), ownerAddr, "remote")
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("err = %v, want ErrFetch", err)
	}
}

func TestResolveToken(t *testing.T) {
	store := graph.NewMemoryStore()
	r := newTestResolver(store, nil)

	token, err := codec.CompressWithStyle("# Hello\nWorld", "body{margin:0}")
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	putRecord(t, store, "note", &site.Record{
		PageName:        "note",
		PublishMode:     site.ModeToken,
		CompressedToken: token,
	})

	page, err := r.Resolve(context.Background(), ownerAddr, "note")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got := string(page.HTML)
	if !strings.Contains(got, "<title>Hello</title>") {
		t.Fatalf("title not extracted:\n%s", got)
	}
	if !strings.Contains(got, "World") {
		t.Fatalf("body lost:\n%s", got)
	}
	if !strings.Contains(got, "body{margin:0}") {
		t.Fatalf("style lost:\n%s", got)
	}
}

// Records written by other publishers carry string-valued htmlEncoding and
// per-file encoding fields; they must decode, not render as raw base64.
func TestResolveLegacyEncodedRecord(t *testing.T) {
	store := graph.NewMemoryStore()
	r := newTestResolver(store, nil)
	ctx := context.Background()

	doc := `<html><head><link rel="stylesheet" href="style.css"></head><body>legacy body</body></html>`
	raw := `{
		"pageName": "legacy",
		"publishMode": "gundb",
		"html": "` + base64.StdEncoding.EncodeToString([]byte(doc)) + `",
		"htmlEncoding": "base64",
		"files": {
			"logo.png": {"content": "aW1hZ2U=", "encoding": "base64", "type": "image/png"},
			"style.css": {"content": "body{color:red}", "type": "text/css"}
		}
	}`
	if err := store.Put(ctx, site.RecordPath(ownerAddr, "legacy"), json.RawMessage(raw)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	page, err := r.Resolve(ctx, ownerAddr, "legacy")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got := string(page.HTML)
	if !strings.Contains(got, "legacy body") {
		t.Fatalf("document not decoded:\n%s", got)
	}
	if strings.Contains(got, base64.StdEncoding.EncodeToString([]byte(doc))) {
		t.Fatalf("raw base64 served as the page:\n%s", got)
	}
	if !strings.Contains(got, `href="data:text/css;charset=utf-8,`) {
		t.Fatalf("text asset not inlined:\n%s", got)
	}
}

func TestResolveLegacyRecord(t *testing.T) {
	store := graph.NewMemoryStore()
	fetch := &fakeFetcher{doc: []byte("<html></html>")}
	r := newTestResolver(store, fetch)

	// No mode tag at all; the content address decides.
	putRecord(t, store, "old", &site.Record{
		PageName:       "old",
		ContentAddress: "QmLegacy",
	})

	page, err := r.Resolve(context.Background(), ownerAddr, "old")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if page.Mode != site.ModeUpload {
		t.Fatalf("inferred mode = %q", page.Mode)
	}
	if fetch.addr != "QmLegacy" {
		t.Fatalf("fetch addr = %q", fetch.addr)
	}
}

func TestFileLookup(t *testing.T) {
	store := graph.NewMemoryStore()
	r := newTestResolver(store, nil)
	ctx := context.Background()

	putRecord(t, store, "assets", &site.Record{
		PageName:    "assets",
		PublishMode: site.ModeEmbedded,
		Document:    "PGh0bWw+",
		Bundle: map[string]site.BundleFile{
			"mysite/css/style.css": {Content: "p{margin:0}", MediaType: "text/css"},
			"logo.png":             {Content: "aW1hZ2U=", Encoding: site.EncodingBase64, MediaType: "image/png"},
		},
	})

	f, err := r.File(ctx, ownerAddr, "assets", "logo.png")
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if !f.IsBase64() || f.Content != "aW1hZ2U=" {
		t.Fatalf("file = %+v", f)
	}

	// Shorter references fall back to the suffix match the inline rewriter
	// uses, and a leading slash is ignored.
	f, err = r.File(ctx, ownerAddr, "assets", "/css/style.css")
	if err != nil {
		t.Fatalf("File suffix: %v", err)
	}
	if f.Content != "p{margin:0}" {
		t.Fatalf("suffix file = %+v", f)
	}

	if _, err := r.File(ctx, ownerAddr, "assets", "missing.js"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: err = %v, want ErrNotFound", err)
	}
}

func TestResolveNotFound(t *testing.T) {
	store := graph.NewMemoryStore()
	r := newTestResolver(store, nil)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, ownerAddr, "never-published"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("absent: err = %v, want ErrNotFound", err)
	}

	// Tombstoned pages read the same as absent ones.
	putRecord(t, store, "deleted", &site.Record{
		PageName: "deleted", PublishMode: site.ModeToken, CompressedToken: "x",
	})
	store.Put(ctx, site.RecordPath(ownerAddr, "deleted"), nil)
	if _, err := r.Resolve(ctx, ownerAddr, "deleted"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("tombstone: err = %v, want ErrNotFound", err)
	}
}

func TestRenderTokenStandalone(t *testing.T) {
	token, err := codec.Compress("plain text, no title")
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	out, err := RenderToken(token)
	if err != nil {
		t.Fatalf("RenderToken: %v", err)
	}
	if !strings.Contains(string(out), "plain text, no title") {
		t.Fatalf("content lost:\n%s", out)
	}
	if !strings.Contains(string(out), "<title>Published Page</title>") {
		t.Fatalf("default title missing:\n%s", out)
	}

	if _, err := RenderToken("!!!not-a-token!!!"); !errors.Is(err, ErrDecode) {
		t.Fatalf("malformed token: err = %v, want ErrDecode", err)
	}
}

func TestRenderTextEscapesContent(t *testing.T) {
	out := string(RenderText("# T\n<script>alert(1)</script>", ""))
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Fatalf("content not escaped:\n%s", out)
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Fatalf("escaped form missing:\n%s", out)
	}
}

func TestList(t *testing.T) {
	store := graph.NewMemoryStore()
	r := newTestResolver(store, nil)
	ctx := context.Background()

	putRecord(t, store, "first", &site.Record{
		PageName: "first", PublishMode: site.ModeToken,
		CompressedToken: "t", PublishedAt: 100,
	})
	putRecord(t, store, "second", &site.Record{
		PageName: "second", PublishMode: site.ModeEmbedded,
		Document: "PGh0bWw-", DocumentEncoding: site.EncodingBase64, PublishedAt: 200,
	})
	putRecord(t, store, "gone", &site.Record{
		PageName: "gone", PublishMode: site.ModeToken,
		CompressedToken: "t", PublishedAt: 300,
	})
	store.Put(ctx, site.RecordPath(ownerAddr, "gone"), nil)

	pages, err := r.List(ctx, ownerAddr)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages: %+v", len(pages), pages)
	}
	// Newest first.
	if pages[0].PageName != "second" || pages[1].PageName != "first" {
		t.Fatalf("order wrong: %+v", pages)
	}
}
