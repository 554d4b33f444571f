package anchors

import (
	"context"
	"encoding/json"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/docpath"
	"github.com/starford/folio/internal/docstore"
)

// DefaultDocumentTypes are the document types scanned for anchor links in
// addition to any document exposing a navigable array.
var DefaultDocumentTypes = []string{"page", "homePage", "header", "footer"}

// Root arrays that may hold links.
var navigableFields = []string{"content", "horizontalNav", "verticalNav"}

// Nested arrays searched below each node.
var nestedFields = []string{"content", "cards"}

// Store is the document access the updater needs.
type Store interface {
	docstore.Mutator
	Fetch(ctx context.Context, q docstore.Query) ([]docstore.Document, error)
}

// Request describes an anchor id change.
type Request struct {
	DocumentID  string `json:"documentId"`
	OldAnchorID string `json:"oldAnchorId"`
	NewAnchorID string `json:"newAnchorId"`
	SectionKey  string `json:"sectionKey,omitempty"`
}

// Validate validates the request.
func (r Request) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DocumentID, validation.Required),
		validation.Field(&r.OldAnchorID, validation.Required),
		validation.Field(&r.NewAnchorID, validation.Required, AnchorIDRule),
	)
}

// Result reports what an update changed. A false Success means discovery
// failed and nothing was attempted.
type Result struct {
	Success           bool   `json:"success"`
	UpdatedDocuments  int    `json:"updatedDocuments"`
	UpdatedReferences int    `json:"updatedReferences"`
	Error             string `json:"error,omitempty"`
}

// Reference is one link to a section anchor.
type Reference struct {
	DocumentID string `json:"documentId"`
	Path       string `json:"path"`
}

// Updater rewrites links when a section's anchor id changes.
type Updater struct {
	store          Store
	logger         *slog.Logger
	types          []string
	strictLinkType bool
}

// UpdaterOption configures an Updater.
type UpdaterOption func(*Updater)

// WithDocumentTypes overrides the document types scanned during discovery.
func WithDocumentTypes(types ...string) UpdaterOption {
	return func(u *Updater) {
		if len(types) > 0 {
			u.types = types
		}
	}
}

// WithStrictLinkType skips links whose linkType is present and is not
// "internal".
func WithStrictLinkType() UpdaterOption {
	return func(u *Updater) {
		u.strictLinkType = true
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) UpdaterOption {
	return func(u *Updater) {
		if l != nil {
			u.logger = l
		}
	}
}

// NewUpdater creates an Updater over store.
func NewUpdater(store Store, opts ...UpdaterOption) *Updater {
	u := &Updater{
		store:  store,
		logger: slog.Default(),
		types:  DefaultDocumentTypes,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UpdateAnchorReferences rewrites every link to (DocumentID, OldAnchorID)
// so that it points at NewAnchorID. Each document is patched in its own
// transaction; a failed document is logged and skipped.
func (u *Updater) UpdateAnchorReferences(ctx context.Context, req Request) Result {
	if req.OldAnchorID == req.NewAnchorID {
		return Result{Success: true}
	}
	if err := req.Validate(); err != nil {
		return Result{Error: err.Error()}
	}

	docs, err := u.discover(ctx)
	if err != nil {
		u.logger.Error("anchors: discovery failed",
			slog.String("document_id", req.DocumentID),
			slog.String("error", err.Error()))
		return Result{Error: err.Error()}
	}

	targets := idSet(req.DocumentID)
	res := Result{Success: true}
	for _, doc := range docs {
		paths := u.find(doc.Body, targets, req.OldAnchorID)
		if len(paths) == 0 {
			continue
		}
		set := make(docstore.Set, len(paths))
		for _, p := range paths {
			set[p.String()] = req.NewAnchorID
		}
		if _, err := docstore.NewTransaction(u.store).Patch(doc.ID, set).Commit(ctx); err != nil {
			u.logger.Warn("anchors: patch failed",
				slog.String("document_id", doc.ID),
				slog.Int("references", len(set)),
				slog.String("error", err.Error()))
			continue
		}
		res.UpdatedDocuments++
		res.UpdatedReferences += len(set)
		u.logger.Debug("anchors: references updated",
			slog.String("document_id", doc.ID),
			slog.Int("references", len(set)))
	}

	u.logger.Info("anchors: update complete",
		slog.String("document_id", req.DocumentID),
		slog.String("old_anchor_id", req.OldAnchorID),
		slog.String("new_anchor_id", req.NewAnchorID),
		slog.Int("updated_documents", res.UpdatedDocuments),
		slog.Int("updated_references", res.UpdatedReferences))
	return res
}

// References lists every link to (documentID, anchorID) without changing
// anything.
func (u *Updater) References(ctx context.Context, documentID, anchorID string) ([]Reference, error) {
	docs, err := u.discover(ctx)
	if err != nil {
		return nil, err
	}
	targets := idSet(documentID)
	out := []Reference{}
	for _, doc := range docs {
		for _, p := range u.find(doc.Body, targets, anchorID) {
			out = append(out, Reference{DocumentID: doc.ID, Path: p.String()})
		}
	}
	return out, nil
}

func (u *Updater) discover(ctx context.Context) ([]docstore.Document, error) {
	return u.store.Fetch(ctx, docstore.Query{
		Types:       u.types,
		ArrayFields: navigableFields,
	})
}

// find returns the index path of every pageSectionId field that links to
// one of targets at anchorID.
func (u *Updater) find(body []byte, targets map[string]struct{}, anchorID string) []docpath.Path {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil
	}
	var out []docpath.Path
	for _, f := range navigableFields {
		u.walk(root[f], docpath.New(f), targets, anchorID, &out)
	}
	return out
}

func (u *Updater) walk(v any, prefix docpath.Path, targets map[string]struct{}, anchorID string, out *[]docpath.Path) {
	items, ok := v.([]any)
	if !ok {
		return
	}
	for i, it := range items {
		node, ok := it.(map[string]any)
		if !ok {
			continue
		}
		p := prefix.Index(i)
		if u.matches(node, targets, anchorID) {
			*out = append(*out, p.Field("pageSectionId"))
		}
		for _, f := range nestedFields {
			u.walk(node[f], p.Field(f), targets, anchorID, out)
		}
	}
}

func (u *Updater) matches(node map[string]any, targets map[string]struct{}, anchorID string) bool {
	link, ok := node["internalLink"].(map[string]any)
	if !ok {
		return false
	}
	ref, _ := link["_ref"].(string)
	if _, ok := targets[ref]; !ok {
		return false
	}
	if id, _ := node["pageSectionId"].(string); id != anchorID {
		return false
	}
	if u.strictLinkType {
		if lt, ok := node["linkType"].(string); ok && lt != "internal" {
			return false
		}
	}
	return true
}

func idSet(id string) map[string]struct{} {
	out := make(map[string]struct{}, 3)
	for _, v := range docstore.IDVariants(id) {
		out[v] = struct{}{}
	}
	return out
}
