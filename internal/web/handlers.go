// internal/web/handlers.go
//
// Route handlers for the publish API and the page viewers.
//
// Context
// -------
// The JSON API mirrors what the browser front-end sends: one publish call
// carries either an HTML document (with optional extra files), a
// pre-obtained content address, or raw text for the token mode.  The mode
// field uses the wire names stored in records ("gundb", "relay", "deals",
// "textarea") and is inferred from the payload when omitted, so older
// front-ends keep working unchanged.
//
// Viewer routes render resolved pages directly; errors map to plain HTTP
// statuses (400 validation, 404 missing, 502 upstream).

package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/dweb/internal/bundle"
	"github.com/yanizio/dweb/internal/publish"
	"github.com/yanizio/dweb/internal/resolve"
	"github.com/yanizio/dweb/internal/site"
)

// maxPublishBytes bounds one publish submission.  Embedded bundles are the
// largest legitimate payload; anything bigger belongs on the file network.
const maxPublishBytes = 16 << 20

/*──────────────────────────── API payloads ─────────────────────────────────*/

type fileUpload struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Base64    bool   `json:"base64,omitempty"`
	MediaType string `json:"type,omitempty"`
}

type publishRequest struct {
	PageName string       `json:"pageName"`
	Mode     string       `json:"mode,omitempty"`
	HTML     string       `json:"html,omitempty"`
	FileName string       `json:"fileName,omitempty"`
	Files    []fileUpload `json:"files,omitempty"`
	IPFSHash string       `json:"ipfsHash,omitempty"`
	Text     string       `json:"text,omitempty"`
	Style    string       `json:"style,omitempty"`
}

type publishResponse struct {
	Success      bool   `json:"success"`
	PubKey       string `json:"pubKey,omitempty"`
	PageName     string `json:"pageName,omitempty"`
	Mode         string `json:"mode,omitempty"`
	IPFSHash     string `json:"ipfsHash,omitempty"`
	TextareaHash string `json:"textareaHash,omitempty"`
	Degraded     bool   `json:"degraded,omitempty"`
	Error        string `json:"error,omitempty"`
}

/*──────────────────────────── publish API ──────────────────────────────────*/

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPublishBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, publishResponse{Error: "malformed request body"})
		return
	}

	preq, err := s.toPublishRequest(&req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, publishResponse{Error: err.Error()})
		return
	}

	receipt, err := s.publisher.Publish(r.Context(), *preq)
	if err != nil {
		status := statusForPublish(err)
		zap.S().Warnw("publish request failed",
			"page", req.PageName, "mode", preq.Mode, "status", status, "err", err)
		writeJSON(w, status, publishResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, publishResponse{
		Success:      true,
		PubKey:       receipt.OwnerAddress,
		PageName:     receipt.PageName,
		Mode:         string(receipt.Mode),
		IPFSHash:     receipt.ContentAddress,
		TextareaHash: receipt.Token,
		Degraded:     receipt.Degraded,
	})
}

// toPublishRequest maps the wire payload onto the orchestrator's request,
// inferring the mode from whichever payload field is populated.
func (s *Server) toPublishRequest(req *publishRequest) (*publish.Request, error) {
	mode := site.Mode(req.Mode)
	if req.Mode == "" {
		switch {
		case req.IPFSHash != "":
			mode = site.ModeReference
		case req.Text != "":
			mode = site.ModeToken
		default:
			mode = site.ModeEmbedded
		}
	}

	out := &publish.Request{
		Owner:          s.owner,
		PageName:       req.PageName,
		Mode:           mode,
		FileName:       req.FileName,
		ContentAddress: req.IPFSHash,
		Text:           req.Text,
		Style:          req.Style,
	}

	switch mode {
	case site.ModeEmbedded, site.ModeUpload:
		b, err := s.toBundle(req)
		if err != nil {
			return nil, err
		}
		out.Bundle = b
	}
	return out, nil
}

func (s *Server) toBundle(req *publishRequest) (*bundle.Bundle, error) {
	inputs := make([]bundle.Input, 0, len(req.Files)+1)
	if req.HTML != "" {
		name := req.FileName
		if name == "" {
			name = "index.html"
		}
		inputs = append(inputs, bundle.Input{Path: name, Data: []byte(req.HTML)})
	}
	for _, f := range req.Files {
		data := []byte(f.Content)
		if f.Base64 {
			// Keep base64 members as submitted; bundle.New re-encodes
			// binaries, so decode first to avoid double encoding.
			decoded, err := decodeBase64(f.Content)
			if err != nil {
				return nil, errors.New("file " + f.Path + " is not valid base64")
			}
			data = decoded
		}
		inputs = append(inputs, bundle.Input{Path: f.Path, MediaType: f.MediaType, Data: data})
	}
	return bundle.New(inputs)
}

func (s *Server) handlePubKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"pub":      s.owner.Address,
		"username": s.owner.Alias,
	})
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	pages, err := s.resolver.List(r.Context(), owner)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, publishResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"sites":   pages,
	})
}

func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "page")

	if err := s.publisher.Delete(r.Context(), s.owner, page); err != nil {
		writeJSON(w, statusForPublish(err), publishResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

/*──────────────────────────── viewers ──────────────────────────────────────*/

// defaultPage is served when the view URL names only the owner.
const defaultPage = "index"

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	page := chi.URLParam(r, "page")
	if page == "" {
		page = defaultPage
	}

	resolved, err := s.resolver.Resolve(r.Context(), owner, page)
	if err != nil {
		serveResolveError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(resolved.HTML)
}

// handleFile serves one bundle asset of an embedded page under its own URL,
// for assets the inline rewriter cannot reach (fonts, fetch targets, nested
// references inside stylesheets).
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	page := chi.URLParam(r, "page")
	filePath := chi.URLParam(r, "*")

	f, err := s.resolver.File(r.Context(), owner, page, filePath)
	if err != nil {
		serveResolveError(w, err)
		return
	}

	data := []byte(f.Content)
	if f.IsBase64() {
		decoded, err := decodeBase64(f.Content)
		if err != nil {
			http.Error(w, "file cannot be decoded", http.StatusInternalServerError)
			return
		}
		data = decoded
	}

	mediaType := f.MediaType
	if mediaType == "" {
		mediaType = bundle.MediaTypeFor(filePath)
	}
	w.Header().Set("Content-Type", mediaType)
	w.Write(data)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	doc, err := resolve.RenderToken(chi.URLParam(r, "token"))
	if err != nil {
		http.Error(w, "malformed token", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(doc)
}

func serveResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resolve.ErrNotFound):
		http.Error(w, "page not found", http.StatusNotFound)
	case errors.Is(err, resolve.ErrFetch):
		http.Error(w, "content temporarily unavailable", http.StatusBadGateway)
	default:
		http.Error(w, "page cannot be rendered", http.StatusInternalServerError)
	}
}

/*──────────────────────────── helpers ──────────────────────────────────────*/

func statusForPublish(err error) int {
	switch {
	case errors.Is(err, publish.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, publish.ErrUpload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeBase64 accepts both padded and unpadded input; browsers differ.
func decodeBase64(s string) ([]byte, error) {
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorw("response encode failed", "err", err)
	}
}
