// Package docservice coordinates the document store, anchor maintenance
// and rendering behind one API used by the HTTP and MCP surfaces.
package docservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/starford/folio/internal/anchors"
	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/content"
	"github.com/starford/folio/internal/docstore"
	"github.com/starford/folio/internal/render"
)

// DefaultProtectedTypes are singleton document types that may not be
// deleted or duplicated.
var DefaultProtectedTypes = []string{"homePage", "header", "footer", "siteSettings"}

// DocumentDetail is the full representation of a document.
type DocumentDetail struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Rev       string          `json:"rev"`
	Draft     bool            `json:"draft"`
	Body      json.RawMessage `json:"body"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DocumentListItem is a lightweight item in a list response.
type DocumentListItem struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Rev       string    `json:"rev"`
	Draft     bool      `json:"draft"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RenameResult is returned when a section title changes.
type RenameResult struct {
	DocumentID      string `json:"documentId"`
	SectionKey      string `json:"sectionKey"`
	Rev             string `json:"rev"`
	PreviewAnchorID string `json:"previewAnchorId"`
	Generating      bool   `json:"generating"`
}

// Service coordinates storage, anchors and rendering.
type Service struct {
	db        docstore.Store
	updater   *anchors.Updater
	regen     *anchors.Regenerator
	renderer  *render.Renderer
	site      render.Site
	protected map[string]struct{}
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithProtectedTypes replaces the protected singleton types.
func WithProtectedTypes(types ...string) Option {
	return func(s *Service) {
		s.protected = toSet(types)
	}
}

// WithSite sets the site data passed to the renderer.
func WithSite(site render.Site) Option {
	return func(s *Service) {
		s.site = site
	}
}

// WithRenderer replaces the default renderer.
func WithRenderer(r *render.Renderer) Option {
	return func(s *Service) {
		if r != nil {
			s.renderer = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a new document service.
func NewService(db docstore.Store, updater *anchors.Updater, regen *anchors.Regenerator, opts ...Option) *Service {
	s := &Service{
		db:        db,
		updater:   updater,
		regen:     regen,
		renderer:  render.New(),
		protected: toSet(DefaultProtectedTypes),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsProtected reports whether documents of type typ are protected.
func (s *Service) IsProtected(typ string) bool {
	_, ok := s.protected[typ]
	return ok
}

// GetDocument returns one document.
func (s *Service) GetDocument(ctx context.Context, id string) (*DocumentDetail, error) {
	d, err := s.db.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail(d), nil
}

// ListDocuments returns a page of documents, optionally filtered by type.
func (s *Service) ListDocuments(ctx context.Context, typ string, limit, offset int) ([]DocumentListItem, int, error) {
	docs, total, err := s.db.List(ctx, typ, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items := make([]DocumentListItem, len(docs))
	for i, d := range docs {
		items[i] = DocumentListItem{
			ID:        d.ID,
			Type:      d.Type,
			Title:     d.Title,
			Rev:       d.Rev,
			Draft:     docstore.IsDraft(d.ID),
			UpdatedAt: d.UpdatedAt,
		}
	}
	return items, total, nil
}

// PutDocument validates and stores body under id. A non-empty ifMatch must
// equal the stored revision.
func (s *Service) PutDocument(ctx context.Context, id string, body []byte, ifMatch string) (*DocumentDetail, error) {
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, fmt.Errorf("docservice: body must be a JSON object: %w", apperr.ErrInvalid)
	}
	switch bodyID := gjson.GetBytes(body, "_id"); {
	case !bodyID.Exists():
		var err error
		if body, err = sjson.SetBytes(body, "_id", id); err != nil {
			return nil, fmt.Errorf("docservice: set id: %w", err)
		}
	case bodyID.String() != id:
		return nil, fmt.Errorf("docservice: body _id %q does not match %q: %w", bodyID.String(), id, apperr.ErrInvalid)
	}
	if err := anchors.ValidateDocument(body); err != nil {
		return nil, err
	}

	var prev []anchors.SectionRef
	switch old, err := s.db.GetDocument(ctx, id); {
	case err == nil:
		prev = anchors.Sections(old.Body)
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	var (
		d   *docstore.Document
		err error
	)
	if ifMatch != "" {
		d, err = s.db.PutIfRevision(ctx, body, ifMatch)
	} else {
		d, err = s.db.Put(ctx, body)
	}
	if err != nil {
		return nil, err
	}
	s.syncSections(ctx, id, prev, anchors.Sections(d.Body))
	return detail(d), nil
}

// syncSections follows section edits made by a whole-document write. A
// changed anchor id has its links rewritten; a changed title with an
// untouched anchor id schedules an anchor sync.
func (s *Service) syncSections(ctx context.Context, id string, prev, next []anchors.SectionRef) {
	old := make(map[string]anchors.SectionRef, len(prev))
	for _, sec := range prev {
		old[sec.Key] = sec
	}
	for _, sec := range next {
		was, ok := old[sec.Key]
		if !ok || sec.Key == "" {
			continue
		}
		switch {
		case was.AnchorID != sec.AnchorID:
			if was.AnchorID == "" || sec.AnchorID == "" || s.updater == nil {
				continue
			}
			res := s.updater.UpdateAnchorReferences(ctx, anchors.Request{
				DocumentID:  id,
				OldAnchorID: was.AnchorID,
				NewAnchorID: sec.AnchorID,
				SectionKey:  sec.Key,
			})
			if !res.Success {
				s.logger.Warn("docservice: reference update failed",
					slog.String("document_id", id),
					slog.String("section_key", sec.Key),
					slog.String("error", res.Error))
			}
		case was.Title != sec.Title:
			if s.regen != nil {
				s.regen.TitleChanged(id, sec.Key, sec.Title)
			}
		}
	}
}

// DeleteDocument removes a document unless its type is protected.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	d, err := s.db.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if s.IsProtected(d.Type) {
		return fmt.Errorf("docservice: delete %s: %w", id, apperr.ErrProtected)
	}
	return s.db.Delete(ctx, id)
}

// DuplicateDocument copies a document into a new draft. The copy gets a
// fresh id, a "(copy)" title and, when the source has one, a "-copy" slug.
func (s *Service) DuplicateDocument(ctx context.Context, id string) (*DocumentDetail, error) {
	src, err := s.db.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.IsProtected(src.Type) {
		return nil, fmt.Errorf("docservice: duplicate %s: %w", id, apperr.ErrProtected)
	}

	body, err := sjson.SetBytes(src.Body, "_id", docstore.DraftID(uuid.NewString()))
	if err != nil {
		return nil, err
	}
	if src.Title != "" {
		if body, err = sjson.SetBytes(body, "title", src.Title+" (copy)"); err != nil {
			return nil, err
		}
	}
	if slug := gjson.GetBytes(body, "slug.current"); slug.Exists() && slug.String() != "" {
		if body, err = sjson.SetBytes(body, "slug.current", slug.String()+"-copy"); err != nil {
			return nil, err
		}
	}
	d, err := s.db.Create(ctx, body)
	if err != nil {
		return nil, err
	}
	s.logger.Info("document duplicated", slog.String("source", id), slog.String("id", d.ID))
	return detail(d), nil
}

// Search finds documents by title or body text.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]docstore.SearchResult, error) {
	return s.db.Search(ctx, query, limit)
}

// RenameSection sets a section title and schedules its anchor id sync.
func (s *Service) RenameSection(ctx context.Context, docID, sectionKey, title string) (*RenameResult, error) {
	d, err := s.db.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	sec, ok := anchors.FindSection(d.Body, sectionKey)
	if !ok {
		return nil, fmt.Errorf("docservice: section %s in %s: %w", sectionKey, docID, apperr.ErrNotFound)
	}
	res, err := docstore.NewTransaction(s.db).
		PatchIfRevision(docID, d.Rev, docstore.Set{sec.Path.Field("title").String(): title}).
		Commit(ctx)
	if err != nil {
		return nil, err
	}
	preview := s.regen.TitleChanged(docID, sectionKey, title)
	return &RenameResult{
		DocumentID:      docID,
		SectionKey:      sectionKey,
		Rev:             res.Revisions[docID],
		PreviewAnchorID: preview,
		Generating:      true,
	}, nil
}

// RegenerateAnchor syncs a section's anchor id with its title immediately.
func (s *Service) RegenerateAnchor(ctx context.Context, docID, sectionKey string) (anchors.SyncResult, error) {
	res, err := s.regen.Regenerate(ctx, docID, sectionKey)
	if errors.Is(err, anchors.ErrSectionNotFound) {
		return res, fmt.Errorf("%w: %w", apperr.ErrNotFound, err)
	}
	return res, err
}

// AnchorGenerating reports whether an anchor sync for the section is in flight.
func (s *Service) AnchorGenerating(docID, sectionKey string) bool {
	return s.regen.Generating(docID, sectionKey)
}

// PreviewAnchor returns the anchor id title would produce. With a document
// and section it accounts for the other anchors of that document.
func (s *Service) PreviewAnchor(ctx context.Context, docID, sectionKey, title string) (string, error) {
	if docID == "" {
		return anchors.Generate(title), nil
	}
	d, err := s.db.GetDocument(ctx, docID)
	if err != nil {
		return "", err
	}
	return anchors.ForSection(d.Body, sectionKey, title), nil
}

// UpdateAnchorReferences rewrites links after an anchor id change.
func (s *Service) UpdateAnchorReferences(ctx context.Context, req anchors.Request) anchors.Result {
	return s.updater.UpdateAnchorReferences(ctx, req)
}

// AnchorReferences lists links to a section anchor.
func (s *Service) AnchorReferences(ctx context.Context, docID, anchorID string) ([]anchors.Reference, error) {
	return s.updater.References(ctx, docID, anchorID)
}

// Render returns the render tree of a document.
func (s *Service) Render(ctx context.Context, id string) (*render.Element, error) {
	el, _, err := s.render(ctx, id)
	return el, err
}

// RenderHTML writes a document as a complete HTML page.
func (s *Service) RenderHTML(ctx context.Context, id string, w io.Writer) error {
	el, d, err := s.render(ctx, id)
	if err != nil {
		return err
	}
	title := d.Title
	if s.site.Name != "" {
		title = title + " | " + s.site.Name
	}
	return render.WritePage(w, title, el)
}

func (s *Service) render(ctx context.Context, id string) (*render.Element, *docstore.Document, error) {
	d, err := s.db.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	doc, err := content.DecodeDocument(d.Body)
	if err != nil {
		return nil, nil, err
	}
	return s.renderer.RenderDocument(render.Context{
		DocumentID:   d.ID,
		DocumentType: d.Type,
		Site:         s.site,
		Links:        s.linkResolver(ctx),
	}, doc), d, nil
}

// linkResolver maps referenced documents to their public paths for one
// render: the home page is "/", other documents use their slug, falling
// back to their published id.
func (s *Service) linkResolver(ctx context.Context) render.LinkResolver {
	cache := make(map[string]string)
	return render.LinkResolverFunc(func(ref string) (string, bool) {
		id := docstore.PublishedID(ref)
		if p, ok := cache[id]; ok {
			return p, p != ""
		}
		var target *docstore.Document
		for _, candidate := range []string{id, docstore.DraftID(id)} {
			if d, err := s.db.GetDocument(ctx, candidate); err == nil {
				target = d
				break
			}
		}
		p := ""
		switch {
		case target == nil:
		case target.Type == "homePage":
			p = "/"
		default:
			slug := gjson.GetBytes(target.Body, "slug.current").String()
			if slug == "" {
				slug = id
			}
			p = "/" + slug
		}
		cache[id] = p
		return p, p != ""
	})
}

func detail(d *docstore.Document) *DocumentDetail {
	return &DocumentDetail{
		ID:        d.ID,
		Type:      d.Type,
		Title:     d.Title,
		Rev:       d.Rev,
		Draft:     docstore.IsDraft(d.ID),
		Body:      d.JSON(),
		UpdatedAt: d.UpdatedAt,
	}
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}
