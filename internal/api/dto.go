package api

import (
	"github.com/starford/folio/internal/anchors"
	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/docstore"
)

// DocumentDetail is the full document response type (aliased from the domain layer).
type DocumentDetail = docservice.DocumentDetail

// DocumentListItem is a lightweight item in a list response (aliased from the domain layer).
type DocumentListItem = docservice.DocumentListItem

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []DocumentListItem `json:"documents" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// RenameSectionRequest is the request body for renaming a section.
type RenameSectionRequest struct {
	Title string `json:"title" example:"Our Team" validate:"required"`
}

// RenameSectionResponse is returned when a rename is accepted.
type RenameSectionResponse = docservice.RenameResult

// UpdateReferencesRequest is the request body for rewriting anchor links.
type UpdateReferencesRequest = anchors.Request

// UpdateReferencesResponse reports the outcome of a reference update.
type UpdateReferencesResponse = anchors.Result

// RegenerateResponse reports an immediate anchor regeneration.
type RegenerateResponse = anchors.SyncResult

// GenerateAnchorResponse is the anchor id a title would produce.
type GenerateAnchorResponse struct {
	AnchorID string `json:"anchorId" example:"our-team" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult = docstore.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}
