// Package render turns page-builder content into a presentational tree.
// Every element produced for a block carries an edit address so a visual
// editing overlay can map output back to the source field.
package render

import (
	"strings"

	"github.com/starford/folio/internal/docpath"
)

// Element is one node of the render tree.
type Element struct {
	Tag         string            `json:"tag"`
	Kind        string            `json:"kind,omitempty"`
	Key         string            `json:"key,omitempty"`
	Path        string            `json:"path,omitempty"`
	EditAddress string            `json:"editAddress,omitempty"`
	Classes     []string          `json:"classes,omitempty"`
	Attrs       map[string]string `json:"attrs,omitempty"`
	Text        string            `json:"text,omitempty"`
	Hidden      bool              `json:"hidden,omitempty"`
	Children    []*Element        `json:"children,omitempty"`
}

func (e *Element) setAttr(k, v string) {
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	e.Attrs[k] = v
}

func (e *Element) append(children ...*Element) {
	for _, c := range children {
		if c != nil {
			e.Children = append(e.Children, c)
		}
	}
}

// Find returns the first element in the tree, depth first, for which match
// returns true.
func (e *Element) Find(match func(*Element) bool) *Element {
	if e == nil {
		return nil
	}
	if match(e) {
		return e
	}
	for _, c := range e.Children {
		if found := c.Find(match); found != nil {
			return found
		}
	}
	return nil
}

// HasClass reports whether e carries class c.
func (e *Element) HasClass(c string) bool {
	for _, have := range e.Classes {
		if have == c {
			return true
		}
	}
	return false
}

// EditAddress identifies a field of a stored document. The string form is
// consumed by the editing overlay and is otherwise opaque.
type EditAddress struct {
	DocumentID   string
	DocumentType string
	Path         docpath.Path
}

func (a EditAddress) String() string {
	var sb strings.Builder
	sb.WriteString("id=")
	sb.WriteString(a.DocumentID)
	sb.WriteString(";type=")
	sb.WriteString(a.DocumentType)
	sb.WriteString(";path=")
	sb.WriteString(a.Path.String())
	return sb.String()
}

// ParseEditAddress parses the string form of an edit address.
func ParseEditAddress(s string) (EditAddress, error) {
	var a EditAddress
	for _, part := range strings.SplitN(s, ";", 3) {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return EditAddress{}, errMalformedAddress
		}
		switch k {
		case "id":
			a.DocumentID = v
		case "type":
			a.DocumentType = v
		case "path":
			p, err := docpath.Parse(v)
			if err != nil {
				return EditAddress{}, err
			}
			a.Path = p
		default:
			return EditAddress{}, errMalformedAddress
		}
	}
	if a.DocumentID == "" || a.Path == nil {
		return EditAddress{}, errMalformedAddress
	}
	return a, nil
}
