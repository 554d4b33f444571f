package render

import (
	"errors"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/starford/folio/internal/content"
	"github.com/starford/folio/internal/docpath"
)

var errMalformedAddress = errors.New("render: malformed edit address")

// Site is shared data passed through to every block.
type Site struct {
	Name    string
	BaseURL string
}

// LinkResolver maps a referenced document id to its public URL path.
type LinkResolver interface {
	ResolveLink(ref string) (string, bool)
}

// LinkResolverFunc adapts a function to LinkResolver.
type LinkResolverFunc func(ref string) (string, bool)

func (f LinkResolverFunc) ResolveLink(ref string) (string, bool) { return f(ref) }

// Context is the pass-through state of one render.
type Context struct {
	DocumentID   string
	DocumentType string
	Site         Site
	TextAlign    string
	Links        LinkResolver
}

func (c Context) address(p docpath.Path) string {
	return EditAddress{DocumentID: c.DocumentID, DocumentType: c.DocumentType, Path: p}.String()
}

// Default image preset widths in pixels.
var DefaultPresets = map[string]int{
	"thumbnail": 400,
	"card":      800,
	"hero":      1600,
}

// Renderer renders content nodes. It holds no per-render state and is safe
// for concurrent use.
type Renderer struct {
	logger  *slog.Logger
	presets map[string]int
	widths  []int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used for dropped-block warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPresets replaces the image preset widths.
func WithPresets(p map[string]int) Option {
	return func(r *Renderer) {
		if len(p) > 0 {
			r.presets = p
		}
	}
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		logger:  slog.Default(),
		presets: DefaultPresets,
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, w := range r.presets {
		r.widths = append(r.widths, w)
	}
	slices.Sort(r.widths)
	return r
}

// RenderDocument renders a whole document: its navigation arrays followed
// by its content.
func (r *Renderer) RenderDocument(ctx Context, doc *content.Document) *Element {
	if ctx.DocumentID == "" {
		ctx.DocumentID = doc.ID
	}
	if ctx.DocumentType == "" {
		ctx.DocumentType = doc.Type
	}
	root := &Element{
		Tag:         "article",
		Kind:        doc.Type,
		EditAddress: ctx.address(docpath.New("title")),
		Classes:     []string{"document", "document-" + doc.Type},
	}
	if ctx.TextAlign != "" {
		root.Classes = append(root.Classes, "text-"+ctx.TextAlign)
	}
	root.setAttr("data-document-id", ctx.DocumentID)

	for _, nav := range []struct {
		field string
		nodes []content.Node
	}{{"horizontalNav", doc.HorizontalNav}, {"verticalNav", doc.VerticalNav}} {
		if len(nav.nodes) == 0 {
			continue
		}
		p := docpath.New(nav.field)
		el := &Element{Tag: "nav", Path: p.String(), EditAddress: ctx.address(p), Classes: []string{"nav-" + nav.field}}
		el.append(r.RenderBlocks(ctx, nav.nodes, p, 0)...)
		root.append(el)
	}

	p := docpath.New("content")
	body := &Element{Tag: "main", Path: p.String(), EditAddress: ctx.address(p)}
	body.append(r.RenderBlocks(ctx, doc.Content, p, 0)...)
	root.append(body)
	return root
}

// RenderRaw decodes raw and renders it. A non-array input renders nothing.
func (r *Renderer) RenderRaw(ctx Context, raw []byte, prefix docpath.Path, level int) []*Element {
	nodes, ok := content.DecodeNodes(raw)
	if !ok {
		return nil
	}
	return r.RenderBlocks(ctx, nodes, prefix, level)
}

// RenderBlocks renders an array of nodes found at prefix. Sections recurse
// one level deeper; containers recurse at the same level.
func (r *Renderer) RenderBlocks(ctx Context, blocks []content.Node, prefix docpath.Path, level int) []*Element {
	if len(blocks) == 0 {
		return nil
	}
	siblings := make([]Sibling, len(blocks))
	for i, b := range blocks {
		if s, ok := b.(*content.Section); ok {
			siblings[i] = Sibling{Section: true, Hidden: s.Hidden}
		}
	}
	spacing := ComputeSpacing(siblings, level)

	out := make([]*Element, 0, len(blocks))
	for i, b := range blocks {
		p := prefix.Index(i)
		if k := b.Key(); k != "" {
			p = prefix.Key(k)
		}
		el := r.renderNode(ctx, b, p, level)
		if el == nil {
			continue
		}
		el.Kind = b.Type()
		el.Key = b.Key()
		el.Path = p.String()
		el.EditAddress = ctx.address(p)
		el.Classes = append(el.Classes, spacing[i].Classes()...)
		out = append(out, el)
	}
	return out
}

func (r *Renderer) renderNode(ctx Context, n content.Node, p docpath.Path, level int) *Element {
	switch b := n.(type) {
	case *content.Section:
		if b.Hidden {
			return hiddenPlaceholder()
		}
		return r.section(ctx, b, p, level)
	case *content.Card:
		el := &Element{Tag: "div", Classes: []string{"card"}}
		if b.Title != "" {
			el.append(&Element{Tag: "h3", Text: b.Title, EditAddress: ctx.address(p.Field("title"))})
		}
		el.append(r.RenderBlocks(ctx, b.Content, p.Field("content"), level)...)
		return el
	case *content.GridLayout:
		cols := b.Columns
		if cols <= 0 {
			cols = 1
		}
		el := &Element{Tag: "div", Classes: []string{"grid", "grid-cols-" + strconv.Itoa(cols)}}
		el.append(r.RenderBlocks(ctx, b.Items, p.Field("items"), level)...)
		return el
	case *content.TwoColumnLayout:
		el := &Element{Tag: "div", Classes: []string{"two-column"}}
		for _, col := range []struct {
			field string
			nodes []content.Node
		}{{"left", b.Left}, {"right", b.Right}} {
			cp := p.Field(col.field)
			c := &Element{Tag: "div", Path: cp.String(), EditAddress: ctx.address(cp), Classes: []string{"column-" + col.field}}
			c.append(r.RenderBlocks(ctx, col.nodes, cp, level)...)
			el.append(c)
		}
		return el
	case *content.RichText:
		return r.richText(ctx, b, p)
	case *content.Image:
		return r.image(ctx, *b, p)
	case *content.Quote:
		el := &Element{Tag: "blockquote", Classes: []string{"quote"}}
		el.append(&Element{Tag: "p", Text: b.Text, EditAddress: ctx.address(p.Field("text"))})
		if b.Attribution != "" {
			el.append(&Element{Tag: "cite", Text: b.Attribution, EditAddress: ctx.address(p.Field("attribution"))})
		}
		return el
	case *content.CTA:
		return r.link(ctx, b.Link, "cta")
	case *content.NavLink:
		return r.link(ctx, b.Link, "nav-link")
	case *content.Gallery:
		el := &Element{Tag: "div", Classes: []string{"gallery"}}
		for i, img := range b.Images {
			ip := p.Field("images").Index(i)
			if img.Key() != "" {
				ip = p.Field("images").Key(img.Key())
			}
			fig := r.image(ctx, img, ip)
			fig.Path = ip.String()
			fig.EditAddress = ctx.address(ip)
			el.append(fig)
		}
		return el
	case *content.Embed:
		u, err := url.Parse(b.URL)
		if err != nil || u.Scheme != "https" {
			r.logger.Warn("render: embed dropped, https required",
				slog.String("document_id", ctx.DocumentID),
				slog.String("path", p.String()),
				slog.String("url", b.URL))
			return nil
		}
		el := &Element{Tag: "div", Classes: []string{"embed"}}
		frame := &Element{Tag: "iframe"}
		frame.setAttr("src", u.String())
		frame.setAttr("loading", "lazy")
		if b.Title != "" {
			frame.setAttr("title", b.Title)
		}
		el.append(frame)
		return el
	default:
		r.logger.Warn("render: unknown block type dropped",
			slog.String("document_id", ctx.DocumentID),
			slog.String("path", p.String()),
			slog.String("type", n.Type()))
		return nil
	}
}

func hiddenPlaceholder() *Element {
	el := &Element{Tag: "div", Hidden: true, Classes: []string{"section-hidden"}}
	el.setAttr("aria-hidden", "true")
	el.setAttr("hidden", "")
	return el
}

var headingByKind = map[string]string{
	content.KindPageSection:   "h2",
	content.KindSubSection:    "h3",
	content.KindSubSubSection: "h4",
}

func (r *Renderer) section(ctx Context, s *content.Section, p docpath.Path, level int) *Element {
	el := &Element{Tag: "section", Classes: []string{"section", "section-" + s.Type()}}
	if s.AnchorID != "" {
		el.setAttr("id", s.AnchorID)
	}
	if s.Title != "" {
		el.append(&Element{Tag: headingByKind[s.Type()], Text: s.Title, EditAddress: ctx.address(p.Field("title"))})
	}
	el.append(r.RenderBlocks(ctx, s.Content, p.Field("content"), level+1)...)
	return el
}

func (r *Renderer) link(ctx Context, l content.Link, class string) *Element {
	el := &Element{Tag: "a", Text: l.Label, Classes: []string{class}}
	if href := resolveHref(ctx, l); href != "" {
		if safeHref(href) {
			el.setAttr("href", href)
		} else {
			r.logger.Warn("render: link href dropped, scheme not allowed",
				slog.String("document_id", ctx.DocumentID),
				slog.String("href", href))
		}
	}
	if l.LinkType == "external" {
		el.setAttr("rel", "noopener noreferrer")
		el.setAttr("target", "_blank")
	}
	return el
}

func resolveHref(ctx Context, l content.Link) string {
	if !l.IsInternal() {
		return l.Href
	}
	base := ""
	if ctx.Links != nil {
		if resolved, ok := ctx.Links.ResolveLink(l.InternalLink.Ref); ok {
			base = resolved
		}
	}
	if l.PageSectionID != "" {
		return base + "#" + l.PageSectionID
	}
	return base
}

var allowedSchemes = []string{"http", "https", "mailto", "tel"}

// safeHref accepts relative URLs and the schemes in allowedSchemes.
func safeHref(href string) bool {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return false
	}
	return u.Scheme == "" || slices.Contains(allowedSchemes, strings.ToLower(u.Scheme))
}

func (r *Renderer) image(ctx Context, img content.Image, p docpath.Path) *Element {
	fig := &Element{Tag: "figure", Classes: []string{"image"}}
	src := absoluteURL(ctx.Site.BaseURL, img.URL)
	tag := &Element{Tag: "img"}
	tag.setAttr("alt", img.Alt)
	tag.setAttr("loading", "lazy")
	if w, ok := r.presets[img.Preset]; ok {
		fig.Classes = append(fig.Classes, "image-"+img.Preset)
		tag.setAttr("src", withWidth(src, w))
		tag.setAttr("width", strconv.Itoa(w))
		var set []string
		for _, pw := range r.widths {
			if pw > w {
				break
			}
			set = append(set, withWidth(src, pw)+" "+strconv.Itoa(pw)+"w")
		}
		tag.setAttr("srcset", strings.Join(set, ", "))
	} else {
		tag.setAttr("src", src)
	}
	fig.append(tag)
	if img.Caption != "" {
		fig.append(&Element{Tag: "figcaption", Text: img.Caption, EditAddress: ctx.address(p.Field("caption"))})
	}
	return fig
}

func absoluteURL(base, ref string) string {
	if base == "" || !strings.HasPrefix(ref, "/") {
		return ref
	}
	return strings.TrimRight(base, "/") + ref
}

func withWidth(src string, w int) string {
	u, err := url.Parse(src)
	if err != nil {
		return src
	}
	q := u.Query()
	q.Set("w", strconv.Itoa(w))
	u.RawQuery = q.Encode()
	return u.String()
}
