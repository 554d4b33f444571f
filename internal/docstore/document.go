package docstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/starford/folio/internal/apperr"
)

// DraftPrefix marks the draft copy of a document.
const DraftPrefix = "drafts."

// Document is one stored JSON document.
type Document struct {
	ID        string
	Type      string
	Title     string
	Rev       string
	Body      json.RawMessage
	UpdatedAt time.Time
}

// JSON returns the body with the system fields _rev and _updatedAt set.
func (d *Document) JSON() json.RawMessage {
	out, err := sjson.SetBytes(d.Body, "_rev", d.Rev)
	if err != nil {
		return d.Body
	}
	out, err = sjson.SetBytes(out, "_updatedAt", d.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return d.Body
	}
	return out
}

// IsDraft reports whether id names a draft copy.
func IsDraft(id string) bool {
	return strings.HasPrefix(id, DraftPrefix)
}

// PublishedID strips the draft prefix.
func PublishedID(id string) string {
	return strings.TrimPrefix(id, DraftPrefix)
}

// DraftID returns the draft id for id.
func DraftID(id string) string {
	return DraftPrefix + PublishedID(id)
}

// IDVariants returns id itself followed by its draft and published ids,
// without duplicates.
func IDVariants(id string) []string {
	out := []string{id}
	for _, v := range []string{DraftID(id), PublishedID(id)} {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// normalize validates body and strips system fields that the store owns.
func normalize(body []byte) ([]byte, string, string, error) {
	if !gjson.ValidBytes(body) {
		return nil, "", "", fmt.Errorf("docstore: %w: malformed JSON", apperr.ErrInvalid)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, "", "", fmt.Errorf("docstore: %w: document must be an object", apperr.ErrInvalid)
	}
	id := root.Get("_id")
	typ := root.Get("_type")
	if id.Type != gjson.String || id.String() == "" {
		return nil, "", "", fmt.Errorf("docstore: %w: _id is required", apperr.ErrInvalid)
	}
	if typ.Type != gjson.String || typ.String() == "" {
		return nil, "", "", fmt.Errorf("docstore: %w: _type is required", apperr.ErrInvalid)
	}
	out := body
	for _, f := range []string{"_rev", "_updatedAt"} {
		if root.Get(f).Exists() {
			var err error
			if out, err = sjson.DeleteBytes(out, f); err != nil {
				return nil, "", "", fmt.Errorf("docstore: strip %s: %w", f, err)
			}
		}
	}
	return out, id.String(), typ.String(), nil
}
