package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/anchors"
	"github.com/starford/folio/internal/docservice"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

func etag(rev string) string {
	return `"` + rev + `"`
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List documents with optional pagination and type filter
//	@Tags			documents
//	@Produce		json
//	@Param			type	query		string	false	"Document type"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListDocuments(r.Context(), q.Get("type"), limit, offset)
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: total})
}

// GetDocument handles GET /api/documents/{id}.
//
//	@Summary		Get a single document
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document id"
//	@Success		200	{object}	DocumentDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get document", err)
		return
	}
	w.Header().Set("ETag", etag(doc.Rev))
	writeJSON(w, http.StatusOK, doc)
}

// PutDocument handles PUT /api/documents/{id}.
//
//	@Summary		Create or replace a document with optimistic concurrency
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string	true	"Document id"
//	@Param			If-Match	header		string	false	"Revision for optimistic concurrency"
//	@Success		200			{object}	DocumentDetail
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [put]
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	doc, err := h.svc.PutDocument(r.Context(), chi.URLParam(r, "id"), body, ifMatch)
	if err != nil {
		writeError(w, "put document", err)
		return
	}
	w.Header().Set("ETag", etag(doc.Rev))
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/{id}.
//
//	@Summary		Delete a document
//	@Tags			documents
//	@Param			id	path	string	true	"Document id"
//	@Success		204	"Document deleted"
//	@Failure		403	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteDocument(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateDocument handles POST /api/documents/{id}/duplicate.
//
//	@Summary		Duplicate a document into a new draft
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document id"
//	@Success		201	{object}	DocumentDetail
//	@Failure		403	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id}/duplicate [post]
func (h *Handler) DuplicateDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.DuplicateDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "duplicate document", err)
		return
	}
	w.Header().Set("ETag", etag(doc.Rev))
	writeJSON(w, http.StatusCreated, doc)
}

// RenameSection handles PATCH /api/documents/{id}/sections/{key}.
// The anchor id follows asynchronously.
//
//	@Summary		Rename a section
//	@Tags			anchors
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Document id"
//	@Param			key		path		string					true	"Section key"
//	@Param			body	body		RenameSectionRequest	true	"New title"
//	@Success		202		{object}	RenameSectionResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id}/sections/{key} [patch]
func (h *Handler) RenameSection(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req RenameSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}
	res, err := h.svc.RenameSection(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "key"), req.Title)
	if err != nil {
		writeError(w, "rename section", err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// RegenerateAnchor handles POST /api/documents/{id}/sections/{key}/regenerate.
//
//	@Summary		Regenerate a section anchor id from its title now
//	@Tags			anchors
//	@Produce		json
//	@Param			id	path		string	true	"Document id"
//	@Param			key	path		string	true	"Section key"
//	@Success		200	{object}	RegenerateResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id}/sections/{key}/regenerate [post]
func (h *Handler) RegenerateAnchor(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.RegenerateAnchor(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, "regenerate anchor", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UpdateReferences handles POST /api/anchors/references.
//
//	@Summary		Rewrite links after an anchor id change
//	@Tags			anchors
//	@Accept			json
//	@Produce		json
//	@Param			body	body		UpdateReferencesRequest	true	"Anchor change"
//	@Success		200		{object}	UpdateReferencesResponse
//	@Failure		422		{object}	UpdateReferencesResponse
//	@Failure		500		{object}	UpdateReferencesResponse
//	@Security		BearerAuth
//	@Router			/anchors/references [post]
func (h *Handler) UpdateReferences(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req anchors.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res := h.svc.UpdateAnchorReferences(r.Context(), req)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
		if req.Validate() != nil {
			status = http.StatusUnprocessableEntity
		}
	}
	writeJSON(w, status, res)
}

// GenerateAnchor handles GET /api/anchors/generate.
//
//	@Summary		Preview the anchor id for a title
//	@Tags			anchors
//	@Produce		json
//	@Param			title		query		string	true	"Section title"
//	@Param			document	query		string	false	"Document id for collision checks"
//	@Param			section		query		string	false	"Section key to exclude from collision checks"
//	@Success		200			{object}	GenerateAnchorResponse
//	@Security		BearerAuth
//	@Router			/anchors/generate [get]
func (h *Handler) GenerateAnchor(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	title := q.Get("title")
	if title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'title' is required"))
		return
	}
	id, err := h.svc.PreviewAnchor(r.Context(), q.Get("document"), q.Get("section"), title)
	if err != nil {
		writeError(w, "generate anchor", err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateAnchorResponse{AnchorID: id})
}

// Search handles GET /api/search.
//
//	@Summary		Search documents by title and text
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// RenderHTML handles GET /api/render/{id}.
//
//	@Summary		Render a document as HTML
//	@Tags			render
//	@Produce		html
//	@Param			id	path	string	true	"Document id"
//	@Success		200	{string}	string	"HTML page"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/render/{id} [get]
func (h *Handler) RenderHTML(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.RenderHTML(r.Context(), chi.URLParam(r, "id"), &buf); err != nil {
		writeError(w, "render document", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// RenderTree handles GET /api/render/{id}/tree.
//
//	@Summary		Render a document as a JSON element tree
//	@Tags			render
//	@Produce		json
//	@Param			id	path	string	true	"Document id"
//	@Success		200	{object}	render.Element
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/render/{id}/tree [get]
func (h *Handler) RenderTree(w http.ResponseWriter, r *http.Request) {
	el, err := h.svc.Render(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "render document", err)
		return
	}
	writeJSON(w, http.StatusOK, el)
}
