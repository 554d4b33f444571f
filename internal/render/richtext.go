package render

import (
	"github.com/starford/folio/internal/content"
	"github.com/starford/folio/internal/docpath"
)

var tagByStyle = map[string]string{
	"normal":     "p",
	"h1":         "h1",
	"h2":         "h2",
	"h3":         "h3",
	"h4":         "h4",
	"h5":         "h5",
	"h6":         "h6",
	"blockquote": "blockquote",
}

var tagByMark = map[string]string{
	"strong":         "strong",
	"em":             "em",
	"code":           "code",
	"underline":      "u",
	"strike-through": "s",
}

func (r *Renderer) richText(ctx Context, rt *content.RichText, p docpath.Path) *Element {
	el := &Element{Tag: "div", Classes: []string{"rich-text"}}
	var list *Element
	for i, b := range rt.Body {
		bp := p.Field("body").Index(i)
		if b.Key != "" {
			bp = p.Field("body").Key(b.Key)
		}
		if b.ListItem != "" {
			tag := "ul"
			if b.ListItem == "number" {
				tag = "ol"
			}
			if list == nil || list.Tag != tag {
				list = &Element{Tag: tag}
				el.append(list)
			}
			li := &Element{Tag: "li", EditAddress: ctx.address(bp)}
			li.append(spans(b)...)
			list.append(li)
			continue
		}
		list = nil
		tag, ok := tagByStyle[b.StyleOrDefault()]
		if !ok {
			tag = "p"
		}
		blk := &Element{Tag: tag, EditAddress: ctx.address(bp)}
		blk.append(spans(b)...)
		el.append(blk)
	}
	return el
}

func spans(b content.TextBlock) []*Element {
	out := make([]*Element, 0, len(b.Children))
	for _, s := range b.Children {
		var (
			outer *Element
			inner *Element
		)
		for _, m := range s.Marks {
			var wrap *Element
			if tag, ok := tagByMark[m]; ok {
				wrap = &Element{Tag: tag}
			} else if md, ok := b.MarkDef(m); ok && md.Type == "link" {
				wrap = &Element{Tag: "a"}
				if safeHref(md.Href) {
					wrap.setAttr("href", md.Href)
				}
			} else {
				continue
			}
			if outer == nil {
				outer = wrap
			} else {
				inner.append(wrap)
			}
			inner = wrap
		}
		if outer == nil {
			out = append(out, &Element{Tag: "span", Text: s.Text})
			continue
		}
		inner.Text = s.Text
		out = append(out, outer)
	}
	return out
}
