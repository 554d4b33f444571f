package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents.
	r.Get("/documents", h.ListDocuments)
	r.Route("/documents/{id}", func(r chi.Router) {
		r.Get("/", h.GetDocument)
		r.Put("/", h.PutDocument)
		r.Delete("/", h.DeleteDocument)
		r.Post("/duplicate", h.DuplicateDocument)
		r.Patch("/sections/{key}", h.RenameSection)
		r.Post("/sections/{key}/regenerate", h.RegenerateAnchor)
	})

	// Anchors.
	r.Post("/anchors/references", h.UpdateReferences)
	r.Get("/anchors/generate", h.GenerateAnchor)

	// Search.
	r.Get("/search", h.Search)

	// Rendering.
	r.Get("/render/{id}", h.RenderHTML)
	r.Get("/render/{id}/tree", h.RenderTree)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
