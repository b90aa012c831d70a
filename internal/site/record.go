// internal/site/record.go
//
// Persisted data model: Site Record and Name Mapping Record.
//
// Context
// -------
// A Site Record is the unit written to the graph backend for one published
// page.  Exactly one payload field is populated, selected by PublishMode;
// mixing payloads is a bug, and Validate enforces that invariant before any
// write.  A Name Mapping Record maps a human alias to the owner's backend
// address and lives in a separate global subtree so lookups never enumerate
// site records.
//
// Wire names match what earlier publishers wrote ("gundb", "relay",
// "deals", "textarea"), so records published before this implementation
// still decode.  Records with no mode tag at all go through InferMode,
// which is best-effort compatibility decoding and not part of the core
// contract.

package site

import (
	"errors"
	"fmt"
)

// Mode selects the storage backend for one published page.
type Mode string

const (
	// ModeEmbedded stores the document (and any bundle) inside the graph
	// record itself.
	ModeEmbedded Mode = "gundb"

	// ModeUpload uploads the bundle to the file network and stores only the
	// returned content address.
	ModeUpload Mode = "relay"

	// ModeReference stores a caller-supplied content address verbatim.
	ModeReference Mode = "deals"

	// ModeToken stores page text as a compressed URL-safe token.
	ModeToken Mode = "textarea"
)

// Valid reports whether m is a known publish mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeEmbedded, ModeUpload, ModeReference, ModeToken:
		return true
	}
	return false
}

// EncodingBase64 is the wire value marking base64-encoded content.  Text
// content carries no encoding field at all.
const EncodingBase64 = "base64"

// BundleFile is one auxiliary asset inside an embedded multi-file record.
type BundleFile struct {
	Content      string `json:"content"`
	Encoding     string `json:"encoding,omitempty"` // EncodingBase64 or empty
	MediaType    string `json:"type,omitempty"`
	Size         int    `json:"size,omitempty"`
	OriginalPath string `json:"originalPath,omitempty"`
}

// IsBase64 reports whether the content must be base64-decoded before use.
func (f BundleFile) IsBase64() bool { return f.Encoding == EncodingBase64 }

// Record is the persisted unit for one published page.
type Record struct {
	PageName    string `json:"pageName"`
	PublishMode Mode   `json:"publishMode,omitempty"`
	PublishedAt int64  `json:"publishedAt"` // unix milliseconds, overwritten on republish
	FileName    string `json:"fileName,omitempty"`

	// ModeEmbedded payload.
	Document         string                `json:"html,omitempty"`
	DocumentEncoding string                `json:"htmlEncoding,omitempty"` // EncodingBase64 or empty
	Bundle           map[string]BundleFile `json:"files,omitempty"`
	EntryPath        string                `json:"entryPath,omitempty"`
	IsDirectory      bool                  `json:"isDirectory,omitempty"`
	FileCount        int                   `json:"fileCount,omitempty"`

	// ModeUpload and ModeReference payload.
	ContentAddress string `json:"ipfsHash,omitempty"`

	// ModeToken payload plus compression diagnostics.
	CompressedToken  string `json:"textareaHash,omitempty"`
	ContentLength    int    `json:"contentLength,omitempty"`
	CompressedLength int    `json:"compressedLength,omitempty"`
}

// ErrInvalidRecord reports a record whose payload does not match its mode.
var ErrInvalidRecord = errors.New("site: record payload does not match publish mode")

// Validate enforces the exactly-one-payload invariant.
func (r *Record) Validate() error {
	if !r.PublishMode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRecord, r.PublishMode)
	}

	hasDoc := r.Document != ""
	hasAddr := r.ContentAddress != ""
	hasToken := r.CompressedToken != ""

	switch r.PublishMode {
	case ModeEmbedded:
		if !hasDoc || hasAddr || hasToken {
			return fmt.Errorf("%w: embedded record wants document only", ErrInvalidRecord)
		}
	case ModeUpload, ModeReference:
		if !hasAddr || hasDoc || hasToken || len(r.Bundle) > 0 {
			return fmt.Errorf("%w: %s record wants content address only", ErrInvalidRecord, r.PublishMode)
		}
	case ModeToken:
		if !hasToken || hasDoc || hasAddr || len(r.Bundle) > 0 {
			return fmt.Errorf("%w: token record wants compressed token only", ErrInvalidRecord)
		}
	}
	return nil
}

// Empty reports whether the record carries no payload at all.  The Resolver
// treats "a document with no payload" differently from "no document": the
// former keeps the consistency wait going.
func (r *Record) Empty() bool {
	return r.Document == "" && r.ContentAddress == "" && r.CompressedToken == ""
}

// InferMode decodes a legacy record that predates the mode tag.  Best
// effort: a content address wins, an embedded document is second, and a
// compressed token third; otherwise the record is unusable.
func InferMode(r *Record) (Mode, bool) {
	if r.PublishMode.Valid() {
		return r.PublishMode, true
	}
	switch {
	case r.ContentAddress != "":
		return ModeUpload, true
	case r.Document != "":
		return ModeEmbedded, true
	case r.CompressedToken != "":
		return ModeToken, true
	}
	return "", false
}

// Mapping is the Name Mapping Record: alias to backend-native address,
// refreshed opportunistically on every publish.
type Mapping struct {
	Alias     string `json:"username"`
	Address   string `json:"pub"`
	UpdatedAt int64  `json:"lastUpdated"`
}
