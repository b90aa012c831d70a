// internal/publish/orchestrator.go
//
// Publish orchestrator: encode a site bundle and persist it.
//
// Context
// -------
// One Publish call takes a sanitized page name, the owner identity, a
// bundle (or raw text, or a pre-obtained content address), and a publish
// mode, then routes the payload to the right backend:
//
//   • embedded  – document (and bundle) written into the graph record.
//   • relay     – bundle uploaded to the file network, address recorded.
//   • reference – caller-supplied content address recorded verbatim.
//   • token     – text compressed into a URL-safe token.
//
// After the record write the owner's alias mapping is refreshed.  That
// upsert is a convenience index, not a consistency-critical structure: its
// failure is logged and the publish still succeeds, because the resolver
// can fall back to the backend's own alias lookup.
//
// A structured write the backend rejects is retried once with the
// multi-file bundle stripped out; the caller sees a degraded success, not
// a hard failure.
//
// Notes
// -----
// • Embedded documents are base64-encoded before the write so the graph
//   backend's key-path parser never sees raw URLs inside the payload.
// • Progress callbacks are observational only; stored state never depends
//   on them.

package publish

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/dweb/internal/bundle"
	"github.com/yanizio/dweb/internal/codec"
	"github.com/yanizio/dweb/internal/filenet"
	"github.com/yanizio/dweb/internal/graph"
	"github.com/yanizio/dweb/internal/identity"
	"github.com/yanizio/dweb/internal/metrics"
	"github.com/yanizio/dweb/internal/site"
)

// Stage identifies a progress checkpoint.
type Stage string

const (
	StageValidating Stage = "validating"
	StageUploading  Stage = "uploading"
	StageEncoding   Stage = "encoding"
	StageWriting    Stage = "writing"
	StageVerifying  Stage = "verifying"
)

// Progress receives checkpoint notifications during a publish.
type Progress func(stage Stage)

var (
	// ErrValidation reports bad input shape or name.  Never retried.
	ErrValidation = errors.New("publish: validation failed")

	// ErrUpload reports a file-network upload that yielded no usable
	// content address.
	ErrUpload = errors.New("publish: upload failed")

	// ErrStorageWrite reports a graph write the backend rejected even
	// after the simplification retry.
	ErrStorageWrite = errors.New("publish: storage write rejected")
)

// Uploader is the file-network dependency; satisfied by *filenet.Client.
type Uploader interface {
	Upload(ctx context.Context, b *bundle.Bundle) (string, []filenet.Entry, error)
}

// Orchestrator persists site bundles.  Construct with New; zero value is
// unusable.
type Orchestrator struct {
	store    graph.Store
	uploader Uploader
	verify   time.Duration
	progress Progress
}

// Option tunes an Orchestrator.
type Option func(*Orchestrator)

// WithProgress installs a checkpoint callback.
func WithProgress(p Progress) Option {
	return func(o *Orchestrator) { o.progress = p }
}

// WithVerifyWindow bounds the post-write read-back wait.
func WithVerifyWindow(d time.Duration) Option {
	return func(o *Orchestrator) { o.verify = d }
}

// New builds an orchestrator.  uploader may be nil when the relay upload
// mode is not offered (the CLI publisher does this).
func New(store graph.Store, uploader Uploader, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		uploader: uploader,
		verify:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Request carries one publish.  PageName is sanitized inside Publish; the
// caller may pass the raw user input.
type Request struct {
	Owner    identity.Owner
	PageName string
	Mode     site.Mode
	FileName string

	Bundle         *bundle.Bundle // embedded and relay modes
	Text, Style    string         // token mode
	ContentAddress string         // reference mode
}

// Receipt reports a completed publish.
type Receipt struct {
	PageName       string
	OwnerAddress   string
	Mode           site.Mode
	ContentAddress string // set by relay and reference modes
	Token          string // set by token mode
	Degraded       bool   // bundle was stripped by the write fallback
}

// Publish validates, encodes, writes, and verifies one page.
func (o *Orchestrator) Publish(ctx context.Context, req Request) (*Receipt, error) {
	o.step(StageValidating)

	pageName, err := bundle.SanitizePageName(req.PageName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.Owner.Address == "" {
		return nil, fmt.Errorf("%w: missing owner address", ErrValidation)
	}
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("%w: unknown publish mode %q", ErrValidation, req.Mode)
	}

	rec := &site.Record{
		PageName:    pageName,
		PublishMode: req.Mode,
		PublishedAt: time.Now().UnixMilli(),
		FileName:    req.FileName,
	}

	switch req.Mode {
	case site.ModeEmbedded:
		err = o.buildEmbedded(rec, req)
	case site.ModeUpload:
		err = o.buildUpload(ctx, rec, req)
	case site.ModeReference:
		err = o.buildReference(rec, req)
	case site.ModeToken:
		err = o.buildToken(rec, req)
	}
	if err != nil {
		metrics.PublishTotal.WithLabelValues(string(req.Mode), "error").Inc()
		return nil, err
	}

	if err := rec.Validate(); err != nil {
		metrics.PublishTotal.WithLabelValues(string(req.Mode), "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	o.step(StageWriting)
	degraded, err := o.write(ctx, req.Owner.Address, rec)
	if err != nil {
		metrics.PublishTotal.WithLabelValues(string(req.Mode), "error").Inc()
		return nil, err
	}

	// Convenience index; failure must not roll back the record write.
	if err := o.upsertMapping(ctx, req.Owner); err != nil {
		zap.S().Warnw("publish: mapping upsert failed",
			"alias", req.Owner.Alias, "err", err)
	}

	o.step(StageVerifying)
	o.verifyVisible(ctx, req.Owner.Address, pageName)

	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	metrics.PublishTotal.WithLabelValues(string(req.Mode), outcome).Inc()

	zap.S().Infow("page published",
		"owner", req.Owner.Alias,
		"page", pageName,
		"mode", req.Mode,
		"degraded", degraded,
	)

	return &Receipt{
		PageName:       pageName,
		OwnerAddress:   req.Owner.Address,
		Mode:           req.Mode,
		ContentAddress: rec.ContentAddress,
		Token:          rec.CompressedToken,
		Degraded:       degraded,
	}, nil
}

// Delete tombstones a page record.  After the write the page is
// indistinguishable from one that never existed.
func (o *Orchestrator) Delete(ctx context.Context, owner identity.Owner, pageName string) error {
	pageName, err := bundle.SanitizePageName(pageName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := o.store.Put(ctx, site.RecordPath(owner.Address, pageName), nil); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	zap.S().Infow("page deleted", "owner", owner.Alias, "page", pageName)
	return nil
}

/*──────────────────────────── mode builders ───────────────────────────────*/

func (o *Orchestrator) buildEmbedded(rec *site.Record, req Request) error {
	if req.Bundle == nil {
		return fmt.Errorf("%w: embedded mode needs a bundle", ErrValidation)
	}
	if err := req.Bundle.RequireEntry(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	o.step(StageEncoding)
	entry := req.Bundle.Entry()

	// The entry document is stored base64 regardless of its own encoding;
	// raw HTML full of URLs confuses the backend's key-path parser.
	doc := entry.Content
	if !entry.Base64 {
		doc = base64.StdEncoding.EncodeToString([]byte(entry.Content))
	}
	rec.Document = doc
	rec.DocumentEncoding = site.EncodingBase64
	rec.EntryPath = req.Bundle.EntryPath
	rec.FileCount = len(req.Bundle.Files)
	if rec.FileName == "" {
		rec.FileName = entry.OriginalPath
	}

	if req.Bundle.Multi() {
		rec.IsDirectory = true
		rec.Bundle = make(map[string]site.BundleFile, len(req.Bundle.Files))
		for _, f := range req.Bundle.Files {
			bf := site.BundleFile{
				Content:      f.Content,
				MediaType:    f.MediaType,
				Size:         f.Size,
				OriginalPath: f.OriginalPath,
			}
			if f.Base64 {
				bf.Encoding = site.EncodingBase64
			}
			rec.Bundle[f.Path] = bf
		}
	}
	return nil
}

func (o *Orchestrator) buildUpload(ctx context.Context, rec *site.Record, req Request) error {
	if req.Bundle == nil {
		return fmt.Errorf("%w: relay mode needs a bundle", ErrValidation)
	}
	if err := req.Bundle.RequireEntry(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if o.uploader == nil {
		return fmt.Errorf("%w: no file-network relay configured", ErrValidation)
	}

	o.step(StageUploading)
	addr, _, err := o.uploader.Upload(ctx, req.Bundle)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}

	// Only the address and the listing are stored, never the content.
	rec.ContentAddress = addr
	rec.FileCount = len(req.Bundle.Files)
	rec.IsDirectory = req.Bundle.Multi()
	rec.EntryPath = req.Bundle.EntryPath
	if rec.FileName == "" {
		if req.Bundle.Multi() {
			rec.FileName = fmt.Sprintf("%s (%d files)", rec.PageName, len(req.Bundle.Files))
		} else {
			rec.FileName = req.Bundle.Entry().OriginalPath
		}
	}
	return nil
}

func (o *Orchestrator) buildReference(rec *site.Record, req Request) error {
	addr := strings.TrimSpace(req.ContentAddress)
	if addr == "" {
		return fmt.Errorf("%w: reference mode needs a content address", ErrValidation)
	}
	rec.ContentAddress = addr
	if rec.FileName == "" {
		rec.FileName = rec.PageName + ".html"
	}
	return nil
}

func (o *Orchestrator) buildToken(rec *site.Record, req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("%w: token mode needs text content", ErrValidation)
	}

	o.step(StageEncoding)
	token, err := codec.CompressWithStyle(req.Text, req.Style)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	rec.CompressedToken = token
	rec.ContentLength = len(req.Text)
	rec.CompressedLength = len(token)
	if rec.FileName == "" {
		rec.FileName = rec.PageName + ".txt"
	}
	return nil
}

/*──────────────────────────── write path ──────────────────────────────────*/

// write issues the record write, retrying once with the bundle stripped
// when the backend rejects the structured payload.
func (o *Orchestrator) write(ctx context.Context, ownerAddr string, rec *site.Record) (degraded bool, err error) {
	path := site.RecordPath(ownerAddr, rec.PageName)

	err = o.store.Put(ctx, path, rec)
	if err == nil {
		return false, nil
	}
	if len(rec.Bundle) == 0 {
		return false, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	zap.S().Warnw("publish: structured write rejected, retrying simplified",
		"page", rec.PageName, "err", err)

	simplified := *rec
	simplified.Bundle = nil
	if err := o.store.Put(ctx, path, &simplified); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return true, nil
}

func (o *Orchestrator) upsertMapping(ctx context.Context, owner identity.Owner) error {
	if owner.Alias == "" {
		return nil
	}
	return o.store.Put(ctx, site.MappingPath(owner.Alias), &site.Mapping{
		Alias:     owner.Alias,
		Address:   owner.Address,
		UpdatedAt: time.Now().UnixMilli(),
	})
}

// verifyVisible waits (bounded) for the freshly written record to become
// readable.  Best effort: eventual consistency means the write may land
// after we stop looking, so failure only logs.
func (o *Orchestrator) verifyVisible(ctx context.Context, ownerAddr, pageName string) {
	if o.verify <= 0 {
		return
	}
	start := time.Now()
	_, err := graph.WaitGet(ctx, o.store, site.RecordPath(ownerAddr, pageName), o.verify,
		func(raw json.RawMessage) bool { return raw != nil })
	metrics.GraphWaitSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		zap.S().Warnw("publish: record not yet visible after write",
			"page", pageName, "err", err)
	}
}

func (o *Orchestrator) step(s Stage) {
	if o.progress != nil {
		o.progress(s)
	}
}
