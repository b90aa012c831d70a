// internal/resolve/resolver.go
//
// Resolver: turn (owner, page) into a renderable HTML document.
//
// Context
// -------
// Resolution is the read half of the publish pipeline.  The owner reference
// may be an alias or a raw backend address; the alias goes through the Name
// Mapping subtree first, then the backend's own identity-alias node, and an
// unresolvable reference is finally tried as an address verbatim.  The page
// record is read with a bounded consistency wait because a record published
// through another relay may not be visible yet.
//
// Each publish mode renders differently:
//
//   • embedded  – base64 document decoded, bundle assets inlined as data
//                 references.
//   • relay and reference – content fetched by address, relative asset
//                 references rewritten to gateway URLs.
//   • token     – token inflated and wrapped in a fixed HTML shell.
//
// Records written before the mode tag existed go through site.InferMode.

package resolve

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/dweb/internal/codec"
	"github.com/yanizio/dweb/internal/graph"
	"github.com/yanizio/dweb/internal/metrics"
	"github.com/yanizio/dweb/internal/rewrite"
	"github.com/yanizio/dweb/internal/site"
)

var (
	// ErrNotFound reports a page that is absent, tombstoned, or still
	// invisible when the consistency window closes.
	ErrNotFound = errors.New("resolve: page not found")

	// ErrFetch reports content-addressed retrieval failure.
	ErrFetch = errors.New("resolve: content fetch failed")

	// ErrDecode reports a record whose payload cannot be decoded.
	ErrDecode = errors.New("resolve: record payload undecodable")
)

// Fetcher retrieves content-addressed bytes; satisfied by *filenet.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, addr, subPath string) ([]byte, error)
}

// Resolver reads and renders published pages.  Construct with New.
type Resolver struct {
	store   graph.Store
	fetch   Fetcher
	gateway string // base for rewritten asset URLs
	wait    time.Duration
}

// Option tunes a Resolver.
type Option func(*Resolver)

// WithWaitWindow bounds the consistency wait on record reads.
func WithWaitWindow(d time.Duration) Option {
	return func(r *Resolver) { r.wait = d }
}

// New builds a resolver.  fetch may be nil when content-addressed modes are
// not served; gateway is the URL base rewritten into fetched documents.
func New(store graph.Store, fetch Fetcher, gateway string, opts ...Option) *Resolver {
	r := &Resolver{
		store:   store,
		fetch:   fetch,
		gateway: strings.TrimRight(gateway, "/"),
		wait:    10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Page is one resolved, renderable page.
type Page struct {
	HTML     []byte
	Mode     site.Mode
	PageName string
	Owner    string // backend address the record was read from
}

// aliasNode is the backend's own identity-alias record, the secondary
// lookup when no Name Mapping exists.
type aliasNode struct {
	Pub string `json:"pub"`
}

// Owner resolves an owner reference (alias or address) to a backend
// address.  An unresolvable alias falls through to the reference itself, so
// direct addresses always work.
func (r *Resolver) Owner(ctx context.Context, ref string) string {
	ref = strings.TrimSpace(ref)

	if raw, err := r.store.Get(ctx, site.MappingPath(ref)); err == nil && raw != nil {
		var m site.Mapping
		if json.Unmarshal(raw, &m) == nil && m.Address != "" {
			return m.Address
		}
	}
	if raw, err := r.store.Get(ctx, site.AliasPath(ref)); err == nil && raw != nil {
		var n aliasNode
		if json.Unmarshal(raw, &n) == nil && n.Pub != "" {
			return n.Pub
		}
	}
	return ref
}

// Resolve reads the page record and renders it per its publish mode.
func (r *Resolver) Resolve(ctx context.Context, ownerRef, pageName string) (*Page, error) {
	addr := r.Owner(ctx, ownerRef)

	rec, err := r.record(ctx, addr, pageName)
	if err != nil {
		metrics.ResolveTotal.WithLabelValues("unknown", "miss").Inc()
		return nil, err
	}

	mode, ok := site.InferMode(rec)
	if !ok {
		metrics.ResolveTotal.WithLabelValues("unknown", "error").Inc()
		return nil, fmt.Errorf("%w: record has no usable payload", ErrDecode)
	}

	var doc []byte
	switch mode {
	case site.ModeEmbedded:
		doc, err = r.renderEmbedded(rec)
	case site.ModeUpload, site.ModeReference:
		doc, err = r.renderFetched(ctx, rec)
	case site.ModeToken:
		doc, err = r.renderToken(rec)
	}
	if err != nil {
		metrics.ResolveTotal.WithLabelValues(string(mode), "error").Inc()
		return nil, err
	}

	metrics.ResolveTotal.WithLabelValues(string(mode), "ok").Inc()
	return &Page{HTML: doc, Mode: mode, PageName: rec.PageName, Owner: addr}, nil
}

// record reads the page node inside the consistency window.  A node that
// exists but carries no payload keeps the wait going; it is a record whose
// fields have not finished syncing.
func (r *Resolver) record(ctx context.Context, addr, pageName string) (*site.Record, error) {
	path := site.RecordPath(addr, pageName)

	start := time.Now()
	raw, err := graph.WaitGet(ctx, r.store, path, r.wait, func(raw json.RawMessage) bool {
		if raw == nil {
			return false
		}
		var rec site.Record
		if json.Unmarshal(raw, &rec) != nil {
			return true // undecodable is final, surface it below
		}
		return !rec.Empty()
	})
	metrics.GraphWaitSeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, graph.ErrWaitExpired) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, addr, pageName)
		}
		return nil, err
	}

	var rec site.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &rec, nil
}

// File returns one bundle asset of an embedded page, for serving under its
// own URL.  Match order follows the inline rewriter: exact path first, then
// the first bundle key (in sorted order) ending with the requested path.
func (r *Resolver) File(ctx context.Context, ownerRef, pageName, filePath string) (site.BundleFile, error) {
	addr := r.Owner(ctx, ownerRef)

	rec, err := r.record(ctx, addr, pageName)
	if err != nil {
		return site.BundleFile{}, err
	}
	if len(rec.Bundle) == 0 {
		return site.BundleFile{}, fmt.Errorf("%w: %s/%s has no bundle", ErrNotFound, addr, pageName)
	}

	clean := strings.TrimLeft(filePath, "/")
	if f, ok := rec.Bundle[clean]; ok {
		return f, nil
	}

	keys := make([]string, 0, len(rec.Bundle))
	for k := range rec.Bundle {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.HasSuffix(k, clean) {
			return rec.Bundle[k], nil
		}
	}
	return site.BundleFile{}, fmt.Errorf("%w: %s/%s/%s", ErrNotFound, addr, pageName, clean)
}

/*──────────────────────────── mode renderers ──────────────────────────────*/

func (r *Resolver) renderEmbedded(rec *site.Record) ([]byte, error) {
	doc := []byte(rec.Document)
	if rec.DocumentEncoding == site.EncodingBase64 {
		decoded, err := base64.StdEncoding.DecodeString(rec.Document)
		if err != nil {
			return nil, fmt.Errorf("%w: document base64: %v", ErrDecode, err)
		}
		doc = decoded
	}

	if len(rec.Bundle) == 0 {
		return doc, nil
	}
	out, err := rewrite.Inline(doc, rec.Bundle)
	if err != nil {
		zap.S().Warnw("resolve: asset inlining failed, serving document as-is",
			"page", rec.PageName, "err", err)
		return doc, nil
	}
	return out, nil
}

func (r *Resolver) renderFetched(ctx context.Context, rec *site.Record) ([]byte, error) {
	if r.fetch == nil {
		return nil, fmt.Errorf("%w: no content fetcher configured", ErrFetch)
	}

	subPath := ""
	if rec.IsDirectory && rec.EntryPath != "" {
		subPath = rec.EntryPath
	}

	doc, err := r.fetch.Fetch(ctx, rec.ContentAddress, subPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	out, err := rewrite.Gateway(doc, r.gateway, rec.ContentAddress)
	if err != nil {
		zap.S().Warnw("resolve: gateway rewrite failed, serving document as-is",
			"page", rec.PageName, "err", err)
		return doc, nil
	}
	return out, nil
}

func (r *Resolver) renderToken(rec *site.Record) ([]byte, error) {
	text, style, err := codec.DecompressWithStyle(rec.CompressedToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return RenderText(text, style), nil
}

// titleRE extracts a leading "# Title" line, markdown style.  Only the very
// first line counts; later headings stay body text.
var titleRE = regexp.MustCompile(`^\n*#(.+)\n`)

// RenderText wraps decompressed token content in the fixed viewer shell.
// Content is HTML-escaped; only the optional style string is trusted as CSS.
func RenderText(text, style string) []byte {
	title := "Published Page"
	if m := titleRE.FindStringSubmatch(text); m != nil {
		title = strings.TrimSpace(m[1])
		text = text[len(m[0]):]
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title>\n")
	if style != "" {
		b.WriteString("<style>\n")
		b.WriteString(style)
		b.WriteString("\n</style>\n")
	}
	b.WriteString("</head>\n<body>\n<h1>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</h1>\n<pre>")
	b.WriteString(html.EscapeString(text))
	b.WriteString("</pre>\n</body>\n</html>\n")
	return []byte(b.String())
}

// RenderToken inflates a standalone token and renders the viewer shell,
// used by the token viewer route that needs no graph lookup at all.
func RenderToken(token string) ([]byte, error) {
	text, style, err := codec.DecompressWithStyle(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return RenderText(text, style), nil
}

/*──────────────────────────── listing ─────────────────────────────────────*/

// Summary is one page in an owner's listing.
type Summary struct {
	PageName    string    `json:"pageName"`
	Mode        site.Mode `json:"publishMode"`
	PublishedAt int64     `json:"publishedAt"`
	FileName    string    `json:"fileName,omitempty"`
	FileCount   int       `json:"fileCount,omitempty"`
}

// List snapshots an owner's pages via a short-lived subscription.  The
// stream has no end-of-snapshot marker, so the drain stops after a quiet
// period with no further events.
func (r *Resolver) List(ctx context.Context, ownerRef string) ([]Summary, error) {
	addr := r.Owner(ctx, ownerRef)

	sub, err := r.store.Subscribe(ctx, site.SitesPath(addr))
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	const quiet = 300 * time.Millisecond
	pages := make(map[string]Summary)
	timer := time.NewTimer(quiet)
	defer timer.Stop()

drain:
	for {
		select {
		case <-ctx.Done():
			break drain
		case <-timer.C:
			break drain
		case ev, ok := <-sub.Events:
			if !ok {
				break drain
			}
			if ev.Tombstone {
				delete(pages, ev.Key)
			} else {
				var rec site.Record
				if json.Unmarshal(ev.Data, &rec) != nil || rec.Empty() {
					continue
				}
				mode, _ := site.InferMode(&rec)
				pages[ev.Key] = Summary{
					PageName:    ev.Key,
					Mode:        mode,
					PublishedAt: rec.PublishedAt,
					FileName:    rec.FileName,
					FileCount:   rec.FileCount,
				}
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(quiet)
		}
	}

	out := make([]Summary, 0, len(pages))
	for _, s := range pages {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PublishedAt != out[j].PublishedAt {
			return out[i].PublishedAt > out[j].PublishedAt
		}
		return out[i].PageName < out[j].PageName
	})
	return out, nil
}
