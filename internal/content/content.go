// Package content is the typed model of page-builder documents: sections,
// content blocks and the containers that nest them.
//
// Node is a closed sum type. Every block kind the renderer understands has
// its own variant; anything else decodes to Unknown so callers can decide
// what to do with it.
package content

// Section kinds.
const (
	KindPageSection   = "pageSection"
	KindSubSection    = "subSection"
	KindSubSubSection = "subSubSection"
)

// Content block kinds.
const (
	KindRichText        = "richText"
	KindImage           = "image"
	KindQuote           = "quote"
	KindCTA             = "cta"
	KindGallery         = "gallery"
	KindEmbed           = "embed"
	KindCard            = "card"
	KindGridLayout      = "gridLayout"
	KindTwoColumnLayout = "twoColumnLayout"
	KindNavLink         = "navLink"
)

// Node is one element of a content array.
type Node interface {
	Type() string
	Key() string
	node()
}

// Base carries the fields every node has.
type Base struct {
	TypeName string `json:"_type"`
	KeyValue string `json:"_key,omitempty"`
}

func (b Base) Type() string { return b.TypeName }
func (b Base) Key() string  { return b.KeyValue }
func (Base) node()          {}

// Section is a titled, anchorable region that owns nested content.
type Section struct {
	Base
	Title    string `json:"title"`
	AnchorID string `json:"anchorId,omitempty"`
	Hidden   bool   `json:"hideSection,omitempty"`
	Content  []Node `json:"-"`
}

// Card is a container whose children live in content.
type Card struct {
	Base
	Title   string `json:"title,omitempty"`
	Content []Node `json:"-"`
}

// GridLayout lays its items out in columns.
type GridLayout struct {
	Base
	Columns int    `json:"columns,omitempty"`
	Items   []Node `json:"-"`
}

// TwoColumnLayout splits its children into a left and right column.
type TwoColumnLayout struct {
	Base
	Left  []Node `json:"-"`
	Right []Node `json:"-"`
}

// RichText holds portable text.
type RichText struct {
	Base
	Body []TextBlock `json:"body"`
}

// Image is a single image with an optional size preset.
type Image struct {
	Base
	URL     string `json:"url"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
	Preset  string `json:"preset,omitempty"`
}

// Quote is a pull quote.
type Quote struct {
	Base
	Text        string `json:"text"`
	Attribution string `json:"attribution,omitempty"`
}

// Reference points at another document.
type Reference struct {
	Ref  string `json:"_ref"`
	Type string `json:"_type,omitempty"`
}

// Link is the target of a CTA or navigation entry. An internal link points
// at a document and, optionally, one of its section anchors.
type Link struct {
	Label         string     `json:"label"`
	LinkType      string     `json:"linkType,omitempty"`
	Href          string     `json:"href,omitempty"`
	InternalLink  *Reference `json:"internalLink,omitempty"`
	PageSectionID string     `json:"pageSectionId,omitempty"`
}

// IsInternal reports whether the link targets another document.
func (l Link) IsInternal() bool {
	return l.InternalLink != nil && l.InternalLink.Ref != ""
}

// CTA is a call-to-action button.
type CTA struct {
	Base
	Link
}

// NavLink is an entry of a header or footer navigation array.
type NavLink struct {
	Base
	Link
}

// Gallery is an ordered set of images.
type Gallery struct {
	Base
	Images []Image `json:"images"`
}

// Embed is an external iframe.
type Embed struct {
	Base
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Unknown is any node whose _type is not modelled. Raw keeps the original
// JSON.
type Unknown struct {
	Base
	Raw []byte `json:"-"`
}

// IsSection reports whether n is a section of any level.
func IsSection(n Node) bool {
	_, ok := n.(*Section)
	return ok
}

// IsSectionKind reports whether kind names a section type.
func IsSectionKind(kind string) bool {
	switch kind {
	case KindPageSection, KindSubSection, KindSubSubSection:
		return true
	}
	return false
}

// Document is a decoded page-builder document.
type Document struct {
	ID            string
	Type          string
	Title         string
	Slug          string
	Content       []Node
	HorizontalNav []Node
	VerticalNav   []Node
}
