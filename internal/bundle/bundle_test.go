// internal/bundle/bundle_test.go
//
// Unit-tests for bundle normalization, classification, and sanitization.

package bundle

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestSanitizePageName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"My Site!", "My-Site"},
		{"my-app", "my-app"},
		{"hello/world page", "hello-world-page"},
		{"--already--trimmed--", "already--trimmed"},
		{"under_score_ok", "under_score_ok"},
	}
	for _, tc := range cases {
		got, err := SanitizePageName(tc.in)
		if err != nil {
			t.Fatalf("SanitizePageName(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("SanitizePageName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizePageNameEmpty(t *testing.T) {
	for _, in := range []string{"", "!!!", "---", "   "} {
		if _, err := SanitizePageName(in); !errors.Is(err, ErrInvalidPageName) {
			t.Fatalf("SanitizePageName(%q) err = %v, want ErrInvalidPageName", in, err)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/assets/style.css", "assets/style.css"},
		{"https://cdn.example/app.js", "cdn.example/app.js"},
		{"http://host/x.png", "host/x.png"},
		{"weird name?.css", "weird_name_.css"},
		{"nested/dir/file.js", "nested/dir/file.js"},
	}
	for _, tc := range cases {
		if got := NormalizePath(tc.in); got != tc.want {
			t.Fatalf("NormalizePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewClassifiesTextAndBinary(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	b, err := New([]Input{
		{Path: "index.html", Data: []byte("<html></html>")},
		{Path: "style.css", Data: []byte("body{color:red}")},
		{Path: "logo.png", Data: png},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if b.EntryPath != "index.html" {
		t.Fatalf("EntryPath = %q, want index.html", b.EntryPath)
	}
	if !b.Multi() {
		t.Fatal("Multi() = false for three files")
	}

	byPath := map[string]File{}
	for _, f := range b.Files {
		byPath[f.Path] = f
	}

	css := byPath["style.css"]
	if css.Base64 || css.Content != "body{color:red}" {
		t.Fatalf("css stored wrong: base64=%v content=%q", css.Base64, css.Content)
	}
	if css.MediaType != "text/css" {
		t.Fatalf("css media type = %q", css.MediaType)
	}

	img := byPath["logo.png"]
	if !img.Base64 {
		t.Fatal("png not base64-encoded")
	}
	decoded, err := base64.StdEncoding.DecodeString(img.Content)
	if err != nil || string(decoded) != string(png) {
		t.Fatalf("png content does not round-trip: %v", err)
	}
	if img.Size != len(png) {
		t.Fatalf("png size = %d, want %d", img.Size, len(png))
	}
}

func TestEntryPicksFirstHTML(t *testing.T) {
	b, err := New([]Input{
		{Path: "readme.txt", Data: []byte("hi")},
		{Path: "main.htm", Data: []byte("<html></html>")},
		{Path: "other.html", Data: []byte("<html></html>")},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.EntryPath != "main.htm" {
		t.Fatalf("EntryPath = %q, want main.htm", b.EntryPath)
	}
	if err := b.RequireEntry(); err != nil {
		t.Fatalf("RequireEntry: %v", err)
	}
}

func TestRequireEntryFailsWithoutHTML(t *testing.T) {
	b, err := New([]Input{{Path: "notes.txt", Data: []byte("text")}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.EntryPath != "notes.txt" {
		t.Fatalf("EntryPath = %q, want notes.txt", b.EntryPath)
	}
	if err := b.RequireEntry(); !errors.Is(err, ErrNoEntryDocument) {
		t.Fatalf("RequireEntry err = %v, want ErrNoEntryDocument", err)
	}
}

func TestNewEmpty(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("New(nil) err = %v, want ErrNoFiles", err)
	}
}
