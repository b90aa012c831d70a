// internal/bundle/bundle.go
//
// Site bundle model and normalization.
//
// Context
// -------
// A published site arrives as one HTML document, several loose files, or a
// whole directory tree.  This package folds any of those into a canonical
// Bundle: every file gets a normalized logical path, a media type, and a
// text-or-binary classification, and exactly one file is designated the
// entry document.
//
// Path normalization is defensive.  The graph backend keys nodes by path,
// and its wire parser misreads keys that look like URLs, so scheme prefixes
// are stripped and characters outside a safe set become underscores before
// anything is written.
//
// Notes
// -----
// • Binary files are stored base64-encoded; text files stay raw.
// • Oxford commas, two spaces after periods.

package bundle

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

var (
	// ErrNoFiles reports an empty submission.
	ErrNoFiles = errors.New("bundle: no files submitted")

	// ErrNoEntryDocument reports a bundle without any renderable HTML file,
	// required by the embedded and upload publish modes.
	ErrNoEntryDocument = errors.New("bundle: no HTML entry document")

	// ErrInvalidPageName reports a page name that sanitizes to nothing.
	ErrInvalidPageName = errors.New("bundle: page name sanitizes to empty string")
)

// Input is one submitted file before normalization.  MediaType may be empty;
// classification then falls back to the path extension.
type Input struct {
	Path      string
	MediaType string
	Data      []byte
}

// File is one normalized bundle member.
type File struct {
	Path         string // normalized logical path, the storage key
	OriginalPath string // submitted path, kept for diagnostics
	Content      string // raw text, or base64 when Base64 is set
	Base64       bool
	MediaType    string
	Size         int // size of the original bytes, not the encoded form
}

// Bundle is a canonical one-or-many-file site.
type Bundle struct {
	Files     []File
	EntryPath string // normalized path of the entry document
}

// textExtensions lists extensions stored as raw text regardless of the
// declared media type.  Mirrors the upload form's accept list.
var textExtensions = map[string]bool{
	".html": true, ".htm": true, ".css": true, ".js": true,
	".json": true, ".svg": true, ".txt": true, ".md": true, ".xml": true,
}

// mediaTypes maps extensions to media types for files submitted without one.
var mediaTypes = map[string]string{
	".html": "text/html", ".htm": "text/html",
	".css": "text/css", ".js": "application/javascript",
	".json": "application/json", ".txt": "text/plain",
	".md": "text/markdown", ".xml": "application/xml",
	".png": "image/png", ".jpg": "image/jpeg", ".jpeg": "image/jpeg",
	".gif": "image/gif", ".svg": "image/svg+xml",
	".ico": "image/x-icon", ".webp": "image/webp",
}

// New normalizes a submission into a Bundle.  The entry document is the
// first file with an HTML extension; when none exists the first file in
// submission order is used and the caller decides whether that is fatal
// (RequireEntry does).
func New(inputs []Input) (*Bundle, error) {
	if len(inputs) == 0 {
		return nil, ErrNoFiles
	}

	b := &Bundle{Files: make([]File, 0, len(inputs))}
	for _, in := range inputs {
		f := File{
			Path:         NormalizePath(in.Path),
			OriginalPath: in.Path,
			MediaType:    in.MediaType,
			Size:         len(in.Data),
		}
		if f.MediaType == "" {
			f.MediaType = MediaTypeFor(in.Path)
		}

		if isText(in.Path, f.MediaType) {
			f.Content = string(in.Data)
		} else {
			f.Content = base64.StdEncoding.EncodeToString(in.Data)
			f.Base64 = true
		}
		b.Files = append(b.Files, f)
	}

	for _, f := range b.Files {
		if isHTMLPath(f.Path) {
			b.EntryPath = f.Path
			break
		}
	}
	if b.EntryPath == "" {
		b.EntryPath = b.Files[0].Path
	}
	return b, nil
}

// RequireEntry verifies the bundle has a renderable HTML entry document.
func (b *Bundle) RequireEntry() error {
	if !isHTMLPath(b.EntryPath) {
		return ErrNoEntryDocument
	}
	return nil
}

// Entry returns the entry document, which New guarantees to exist.
func (b *Bundle) Entry() File {
	for _, f := range b.Files {
		if f.Path == b.EntryPath {
			return f
		}
	}
	return b.Files[0]
}

// Multi reports whether the bundle carries auxiliary assets beyond the
// entry document.
func (b *Bundle) Multi() bool { return len(b.Files) > 1 }

/*──────────────────────── path and name helpers ────────────────────────────*/

var (
	schemeRE   = regexp.MustCompile(`^https?://`)
	unsafeRE   = regexp.MustCompile(`[^a-zA-Z0-9._/-]`)
	pageNameRE = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// NormalizePath converts a submitted path into a storage-safe logical key:
// leading slashes and scheme prefixes are stripped, and everything outside
// [a-zA-Z0-9._/-] becomes an underscore.
func NormalizePath(p string) string {
	p = strings.TrimLeft(p, "/")
	p = schemeRE.ReplaceAllString(p, "")
	return unsafeRE.ReplaceAllString(p, "_")
}

// SanitizePageName restricts a page name to [A-Za-z0-9_-].  Every other
// character becomes a hyphen, leading and trailing hyphens are trimmed, and
// an empty result is a hard validation failure.
func SanitizePageName(name string) (string, error) {
	s := pageNameRE.ReplaceAllString(name, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPageName, name)
	}
	return s, nil
}

// MediaTypeFor resolves a media type from the path extension, defaulting to
// application/octet-stream.
func MediaTypeFor(p string) string {
	if mt, ok := mediaTypes[strings.ToLower(path.Ext(p))]; ok {
		return mt
	}
	return "application/octet-stream"
}

func isHTMLPath(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	return ext == ".html" || ext == ".htm"
}

func isText(p, mediaType string) bool {
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	return textExtensions[strings.ToLower(path.Ext(p))]
}
