package anchors

import (
	"encoding/json"

	"github.com/starford/folio/internal/docpath"
)

// SectionTypes are the node types that own an anchor id.
var SectionTypes = map[string]struct{}{
	"pageSection":   {},
	"subSection":    {},
	"subSubSection": {},
}

// Arrays that may hold sections, directly or through container blocks.
var containerFields = []string{"content", "items", "left", "right", "cards"}

// SectionRef locates one section inside a document.
type SectionRef struct {
	Key      string
	Type     string
	Title    string
	AnchorID string
	Path     docpath.Path
}

// Sections returns every section in body in document order.
func Sections(body []byte) []SectionRef {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil
	}
	var out []SectionRef
	for _, f := range containerFields {
		walkSections(root[f], docpath.New(f), &out)
	}
	return out
}

func walkSections(v any, prefix docpath.Path, out *[]SectionRef) {
	items, ok := v.([]any)
	if !ok {
		return
	}
	for i, it := range items {
		node, ok := it.(map[string]any)
		if !ok {
			continue
		}
		key, _ := node["_key"].(string)
		p := prefix.Index(i)
		if key != "" {
			p = prefix.Key(key)
		}
		typ, _ := node["_type"].(string)
		if _, isSection := SectionTypes[typ]; isSection {
			title, _ := node["title"].(string)
			anchorID, _ := node["anchorId"].(string)
			*out = append(*out, SectionRef{Key: key, Type: typ, Title: title, AnchorID: anchorID, Path: p})
		}
		for _, f := range containerFields {
			walkSections(node[f], p.Field(f), out)
		}
	}
}

// FindSection returns the section with the given key.
func FindSection(body []byte, key string) (SectionRef, bool) {
	for _, s := range Sections(body) {
		if s.Key == key {
			return s, true
		}
	}
	return SectionRef{}, false
}

// ExistingAnchorIDs collects the anchor ids of every section in body except
// the one whose key is excludeKey.
func ExistingAnchorIDs(body []byte, excludeKey string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range Sections(body) {
		if s.AnchorID == "" || (excludeKey != "" && s.Key == excludeKey) {
			continue
		}
		out[s.AnchorID] = struct{}{}
	}
	return out
}
