// internal/filenet/client.go
//
// File-network boundary: upload to a relay, fetch by content address.
//
// Context
// -------
// The content-addressed network is reached through a relay that accepts a
// single-file upload or a multipart directory submission, and returns a
// content address under one of several response field names (see
// extract.go).  Retrieval goes through the configured relay first, then
// falls back across public gateways; the last underlying error rides along
// in the surfaced failure for diagnostics.
//
// Notes
// -----
// • The optional bearer credential is attached to uploads and relay
//   fetches, never to public gateways.
// • Gateway URLs serve content at {base}/ipfs/{address}/{subpath}.

package filenet

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/dweb/internal/bundle"
)

const (
	uploadPath    = "/api/v1/ipfs/upload"
	uploadDirPath = "/api/v1/ipfs/upload-directory"
)

var (
	// ErrUploadFailed reports a relay upload that did not yield a usable
	// content address.
	ErrUploadFailed = errors.New("filenet: upload failed")

	// ErrAllGatewaysFailed reports that every configured endpoint for a
	// content address was exhausted.
	ErrAllGatewaysFailed = errors.New("filenet: all gateways failed")
)

// Entry is one uploaded file in a directory listing, stored alongside the
// content address so the resolver knows the entry document's sub-path.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int    `json:"size,omitempty"`
	Type string `json:"type,omitempty"`
}

// Client uploads bundles to one relay.  Safe for concurrent use.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient returns an upload client for the relay at base.  token may be
// empty when the relay is open.
func NewClient(base, token string) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload submits the bundle and returns the content address plus the file
// listing.  One file goes through the single-file endpoint; anything more
// uses the directory endpoint with logical paths preserved.
func (c *Client) Upload(ctx context.Context, b *bundle.Bundle) (string, []Entry, error) {
	var (
		body     bytes.Buffer
		endpoint string
	)
	mw := multipart.NewWriter(&body)

	if b.Multi() {
		endpoint = c.base + uploadDirPath
		for _, f := range b.Files {
			part, err := mw.CreateFormFile("files", f.Path)
			if err != nil {
				return "", nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
			}
			if err := writeFileBytes(part, f); err != nil {
				return "", nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
			}
		}
	} else {
		endpoint = c.base + uploadPath
		f := b.Entry()
		part, err := mw.CreateFormFile("file", f.Path)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		if err := writeFileBytes(part, f); err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("%w: read response: %v", ErrUploadFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("%w: relay returned %s: %s", ErrUploadFailed, resp.Status, firstLine(raw))
	}

	addr, listing, err := ExtractAddress(raw)
	if err != nil {
		return "", nil, err
	}

	zap.S().Infow("filenet upload complete",
		"address", addr,
		"files", len(b.Files),
		"directory", b.Multi(),
	)
	return addr, listing, nil
}

// writeFileBytes decodes base64 members back to raw bytes for the wire.
func writeFileBytes(w io.Writer, f bundle.File) error {
	if f.Base64 {
		raw, err := base64.StdEncoding.DecodeString(f.Content)
		if err != nil {
			return err
		}
		_, err = w.Write(raw)
		return err
	}
	_, err := io.WriteString(w, f.Content)
	return err
}

func firstLine(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if i := strings.IndexByte(s, '\n'); i > 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
