// internal/site/record_test.go
//
// Unit-tests for record validation and legacy mode inference.

package site

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		rec  Record
		ok   bool
	}{
		{"embedded", Record{PublishMode: ModeEmbedded, Document: "PGh0bWw+"}, true},
		{"upload", Record{PublishMode: ModeUpload, ContentAddress: "QmAbc"}, true},
		{"reference", Record{PublishMode: ModeReference, ContentAddress: "bafybeigd"}, true},
		{"token", Record{PublishMode: ModeToken, CompressedToken: "q1pKzs8"}, true},
		{"unknown mode", Record{PublishMode: "ftp", Document: "x"}, false},
		{"embedded missing doc", Record{PublishMode: ModeEmbedded}, false},
		{"mixed payloads", Record{PublishMode: ModeEmbedded, Document: "x", ContentAddress: "QmAbc"}, false},
		{"token with bundle", Record{PublishMode: ModeToken, CompressedToken: "x", Bundle: map[string]BundleFile{"a.css": {}}}, false},
	}

	for _, tc := range cases {
		err := tc.rec.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok {
			if !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("%s: err = %v, want ErrInvalidRecord", tc.name, err)
			}
		}
	}
}

func TestInferMode(t *testing.T) {
	cases := []struct {
		name string
		rec  Record
		want Mode
		ok   bool
	}{
		{"tagged wins", Record{PublishMode: ModeToken, CompressedToken: "x", ContentAddress: "QmAbc"}, ModeToken, true},
		{"address first", Record{ContentAddress: "QmAbc", Document: "x"}, ModeUpload, true},
		{"document second", Record{Document: "PGh0bWw+"}, ModeEmbedded, true},
		{"token third", Record{CompressedToken: "q1pKzs8"}, ModeToken, true},
		{"nothing", Record{}, "", false},
	}

	for _, tc := range cases {
		got, ok := InferMode(&tc.rec)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%s: InferMode = (%q, %v), want (%q, %v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

// Encoding is carried as the string-valued htmlEncoding and per-file
// encoding fields other publishers write; booleans would not round trip.
func TestEncodingWireNames(t *testing.T) {
	rec := Record{
		PageName:         "p",
		PublishMode:      ModeEmbedded,
		Document:         "PGh0bWw+",
		DocumentEncoding: EncodingBase64,
		Bundle: map[string]BundleFile{
			"logo.png": {Content: "aW1hZ2U=", Encoding: EncodingBase64, MediaType: "image/png"},
		},
	}

	raw, err := json.Marshal(&rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"htmlEncoding":"base64"`, `"encoding":"base64"`} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("missing %s in:\n%s", want, raw)
		}
	}

	var back Record
	if err := json.Unmarshal([]byte(`{
		"pageName": "old",
		"publishMode": "gundb",
		"html": "PGh0bWw+",
		"htmlEncoding": "base64",
		"files": {"a.png": {"content": "aW1hZ2U=", "encoding": "base64"}}
	}`), &back); err != nil {
		t.Fatalf("unmarshal legacy record: %v", err)
	}
	if back.DocumentEncoding != EncodingBase64 {
		t.Fatalf("htmlEncoding = %q", back.DocumentEncoding)
	}
	if !back.Bundle["a.png"].IsBase64() {
		t.Fatalf("file encoding lost: %+v", back.Bundle["a.png"])
	}
}

func TestEmpty(t *testing.T) {
	if !(&Record{PageName: "p", PublishedAt: 1}).Empty() {
		t.Fatal("record without payload should be Empty")
	}
	if (&Record{Document: "x"}).Empty() {
		t.Fatal("record with document should not be Empty")
	}
}
