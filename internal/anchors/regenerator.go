package anchors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/folio/internal/debounce"
	"github.com/starford/folio/internal/docstore"
)

const (
	DefaultDebounce      = 500 * time.Millisecond
	DefaultSafetyTimeout = 2 * time.Second
)

// ErrSectionNotFound is returned when a document has no section with the
// requested key.
var ErrSectionNotFound = errors.New("anchors: section not found")

// DocumentStore is the store access the regenerator needs.
type DocumentStore interface {
	docstore.Mutator
	GetDocument(ctx context.Context, id string) (*docstore.Document, error)
}

// ReferenceUpdater rewrites links after an anchor id change.
type ReferenceUpdater interface {
	UpdateAnchorReferences(ctx context.Context, req Request) Result
}

// SyncResult describes one title to anchor id synchronisation.
type SyncResult struct {
	DocumentID  string `json:"documentId"`
	SectionKey  string `json:"sectionKey"`
	OldAnchorID string `json:"oldAnchorId"`
	NewAnchorID string `json:"newAnchorId"`
	Changed     bool   `json:"changed"`
	References  Result `json:"references"`
	Err         error  `json:"-"`
}

// Regenerator keeps section anchor ids in sync with their titles.
type Regenerator struct {
	ctx      context.Context
	store    DocumentStore
	updater  ReferenceUpdater
	logger   *slog.Logger
	wait     time.Duration
	safety   time.Duration
	onResult func(SyncResult)

	debouncer *debounce.Debouncer

	mu          sync.Mutex
	lastApplied map[string]string
	generating  map[string]*time.Timer
}

// RegeneratorOption configures a Regenerator.
type RegeneratorOption func(*Regenerator)

// WithDebounce sets the quiet period after the last title change.
func WithDebounce(d time.Duration) RegeneratorOption {
	return func(r *Regenerator) {
		if d > 0 {
			r.wait = d
		}
	}
}

// WithSafetyTimeout sets how long the generating flag may stay raised.
func WithSafetyTimeout(d time.Duration) RegeneratorOption {
	return func(r *Regenerator) {
		if d > 0 {
			r.safety = d
		}
	}
}

// WithResultHandler registers a callback for every completed sync.
func WithResultHandler(fn func(SyncResult)) RegeneratorOption {
	return func(r *Regenerator) {
		r.onResult = fn
	}
}

// WithRegeneratorLogger sets the logger.
func WithRegeneratorLogger(l *slog.Logger) RegeneratorOption {
	return func(r *Regenerator) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegenerator creates a Regenerator. Debounced syncs run with ctx.
func NewRegenerator(ctx context.Context, store DocumentStore, updater ReferenceUpdater, opts ...RegeneratorOption) *Regenerator {
	r := &Regenerator{
		ctx:         ctx,
		store:       store,
		updater:     updater,
		logger:      slog.Default(),
		wait:        DefaultDebounce,
		safety:      DefaultSafetyTimeout,
		lastApplied: make(map[string]string),
		generating:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.debouncer = debounce.New(r.wait)
	return r
}

func sectionID(docID, key string) string {
	return docID + "/" + key
}

// TitleChanged schedules a sync for the section and returns the anchor id
// the new title would produce. Each call replaces the sync pending for the
// same section.
func (r *Regenerator) TitleChanged(docID, sectionKey, title string) string {
	preview := Generate(title)
	if doc, err := r.store.GetDocument(r.ctx, docID); err == nil {
		preview = ForSection(doc.Body, sectionKey, title)
	}

	id := sectionID(docID, sectionKey)
	r.debouncer.Do(id, func() {
		r.setGenerating(id)
		res := r.sync(r.ctx, docID, sectionKey, true)
		r.clearGenerating(id)
		r.deliver(res)
	})
	return preview
}

// Regenerate syncs the section immediately, dropping any pending sync.
func (r *Regenerator) Regenerate(ctx context.Context, docID, sectionKey string) (SyncResult, error) {
	id := sectionID(docID, sectionKey)
	r.debouncer.Cancel(id)
	r.setGenerating(id)
	res := r.sync(ctx, docID, sectionKey, false)
	r.clearGenerating(id)
	r.deliver(res)
	return res, res.Err
}

// Generating reports whether a sync for the section is in flight.
func (r *Regenerator) Generating(docID, sectionKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.generating[sectionID(docID, sectionKey)]
	return ok
}

// Close drops every pending sync.
func (r *Regenerator) Close() {
	r.debouncer.Stop()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.generating {
		t.Stop()
		delete(r.generating, id)
	}
}

func (r *Regenerator) setGenerating(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.generating[id]; ok {
		prev.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(r.safety, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.generating[id] == t {
			delete(r.generating, id)
		}
	})
	r.generating[id] = t
}

func (r *Regenerator) clearGenerating(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.generating[id]; ok {
		t.Stop()
		delete(r.generating, id)
	}
}

func (r *Regenerator) deliver(res SyncResult) {
	attrs := []any{
		slog.String("document_id", res.DocumentID),
		slog.String("section_key", res.SectionKey),
		slog.String("old_anchor_id", res.OldAnchorID),
		slog.String("new_anchor_id", res.NewAnchorID),
		slog.Bool("changed", res.Changed),
	}
	if res.Err != nil {
		r.logger.Warn("anchors: regenerate failed", append(attrs, slog.String("error", res.Err.Error()))...)
	} else {
		r.logger.Info("anchors: regenerate", attrs...)
	}
	if r.onResult != nil {
		r.onResult(res)
	}
}

func (r *Regenerator) sync(ctx context.Context, docID, sectionKey string, debounced bool) SyncResult {
	res := SyncResult{DocumentID: docID, SectionKey: sectionKey}

	doc, err := r.store.GetDocument(ctx, docID)
	if err != nil {
		res.Err = fmt.Errorf("anchors: load %s: %w", docID, err)
		return res
	}
	sec, ok := FindSection(doc.Body, sectionKey)
	if !ok {
		res.Err = fmt.Errorf("%w: %s in %s", ErrSectionNotFound, sectionKey, docID)
		return res
	}
	res.OldAnchorID = sec.AnchorID

	newID := ForSection(doc.Body, sectionKey, sec.Title)
	res.NewAnchorID = newID
	if newID == "" || newID == sec.AnchorID {
		return res
	}

	id := sectionID(docID, sectionKey)
	r.mu.Lock()
	last := r.lastApplied[id]
	r.mu.Unlock()
	if debounced && last == newID {
		return res
	}

	_, err = docstore.NewTransaction(r.store).
		PatchIfRevision(docID, doc.Rev, docstore.Set{sec.Path.Field("anchorId").String(): newID}).
		Commit(ctx)
	if err != nil {
		res.Err = fmt.Errorf("anchors: patch %s: %w", docID, err)
		return res
	}
	res.Changed = true

	r.mu.Lock()
	r.lastApplied[id] = newID
	r.mu.Unlock()

	if sec.AnchorID != "" && r.updater != nil {
		res.References = r.updater.UpdateAnchorReferences(ctx, Request{
			DocumentID:  docID,
			OldAnchorID: sec.AnchorID,
			NewAnchorID: newID,
			SectionKey:  sectionKey,
		})
	}
	return res
}
