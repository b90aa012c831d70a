// internal/rewrite/rewrite.go
//
// Asset-reference rewriting for retrieved HTML documents.
//
// Context
// -------
// A published document references its assets relatively ("style.css"), but
// after retrieval those references must resolve against wherever the
// assets actually live: a content-addressed gateway URL for file-network
// bundles, or inline data references for assets embedded in the graph
// record.  The rewriter parses the document with x/net/html, touches only
// stylesheet links, script sources, and image sources, and re-serializes.
//
// Guarantees
// ----------
// Absolute URLs, protocol-relative URLs, and existing data references are
// never modified.  A relative reference with no matching strategy target
// is left untouched; precision over recall, a broken asset beats a
// corrupted document.

package rewrite

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/yanizio/dweb/internal/bundle"
	"github.com/yanizio/dweb/internal/site"
)

// Strategy maps one relative asset reference to its replacement, or returns
// ok=false to leave the reference alone.
type Strategy func(ref string) (replacement string, ok bool)

// Gateway rewrites relative references to {base}/ipfs/{addr}/{path}.
func Gateway(doc []byte, base, addr string) ([]byte, error) {
	base = strings.TrimRight(base, "/")
	return Apply(doc, func(ref string) (string, bool) {
		clean := strings.TrimLeft(ref, "/")
		return base + "/ipfs/" + addr + "/" + clean, true
	})
}

// Inline rewrites relative references to data: URLs built from the bundle
// entry matching the reference.  Exact path match first, then the first
// entry (in sorted key order, for determinism) whose key ends with the
// reference; anything else is a silent no-op.
func Inline(doc []byte, files map[string]site.BundleFile) ([]byte, error) {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return Apply(doc, func(ref string) (string, bool) {
		clean := strings.TrimLeft(ref, "/")

		key := clean
		if _, ok := files[key]; !ok {
			key = ""
			for _, k := range keys {
				if strings.HasSuffix(k, clean) {
					key = k
					break
				}
			}
		}
		if key == "" {
			return "", false
		}
		return dataURL(key, files[key]), true
	})
}

// Apply parses doc, rewrites eligible references through strategy, and
// renders the result.
func Apply(doc []byte, strategy Strategy) ([]byte, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("rewrite: parse document: %w", err)
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "link":
				if isStylesheet(n) {
					rewriteAttr(n, "href", strategy)
				}
			case "script":
				rewriteAttr(n, "src", strategy)
			case "img":
				rewriteAttr(n, "src", strategy)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	var out bytes.Buffer
	if err := html.Render(&out, root); err != nil {
		return nil, fmt.Errorf("rewrite: render document: %w", err)
	}
	return out.Bytes(), nil
}

func isStylesheet(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key == "rel" && strings.EqualFold(a.Val, "stylesheet") {
			return true
		}
	}
	return false
}

func rewriteAttr(n *html.Node, key string, strategy Strategy) {
	for i, a := range n.Attr {
		if a.Key != key || a.Val == "" {
			continue
		}
		if isUntouchable(a.Val) {
			return
		}
		if replacement, ok := strategy(a.Val); ok {
			n.Attr[i].Val = replacement
		}
		return
	}
}

// isUntouchable reports references the rewriter must never modify.
func isUntouchable(ref string) bool {
	return strings.HasPrefix(ref, "http") ||
		strings.HasPrefix(ref, "//") ||
		strings.HasPrefix(ref, "data:")
}

// dataURL renders a bundle file as an inline data reference: base64 form
// for binary content, percent-encoded UTF-8 for text.
func dataURL(key string, f site.BundleFile) string {
	mediaType := f.MediaType
	if mediaType == "" {
		mediaType = bundle.MediaTypeFor(key)
	}
	if f.IsBase64() {
		return "data:" + mediaType + ";base64," + f.Content
	}
	return "data:" + mediaType + ";charset=utf-8," + url.PathEscape(f.Content)
}
