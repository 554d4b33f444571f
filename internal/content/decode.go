package content

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrNotObject is returned when a document body is not a JSON object.
var ErrNotObject = errors.New("content: document is not a JSON object")

// DecodeNodes decodes a JSON array of nodes. ok is false when raw is not an
// array. Elements that cannot be decoded as their declared kind become
// Unknown.
func DecodeNodes(raw []byte) ([]Node, bool) {
	if !gjson.ValidBytes(raw) {
		return nil, false
	}
	arr := gjson.ParseBytes(raw)
	if !arr.IsArray() {
		return nil, false
	}
	out := make([]Node, 0, len(arr.Array()))
	arr.ForEach(func(_, v gjson.Result) bool {
		out = append(out, decodeNode([]byte(v.Raw)))
		return true
	})
	return out, true
}

// DecodeDocument decodes a whole document body.
func DecodeDocument(body []byte) (*Document, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("content: decode document: invalid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, ErrNotObject
	}
	return &Document{
		ID:            root.Get("_id").String(),
		Type:          root.Get("_type").String(),
		Title:         root.Get("title").String(),
		Slug:          root.Get("slug.current").String(),
		Content:       children(root, "content"),
		HorizontalNav: children(root, "horizontalNav"),
		VerticalNav:   children(root, "verticalNav"),
	}, nil
}

func children(parent gjson.Result, field string) []Node {
	v := parent.Get(field)
	if !v.IsArray() {
		return nil
	}
	nodes, _ := DecodeNodes([]byte(v.Raw))
	return nodes
}

func decodeNode(raw []byte) Node {
	obj := gjson.ParseBytes(raw)
	base := Base{TypeName: obj.Get("_type").String(), KeyValue: obj.Get("_key").String()}
	if !obj.IsObject() {
		return &Unknown{Base: base, Raw: raw}
	}

	var (
		n   Node
		err error
	)
	switch base.TypeName {
	case KindPageSection, KindSubSection, KindSubSubSection:
		s := &Section{}
		err = json.Unmarshal(raw, s)
		s.Content = children(obj, "content")
		n = s
	case KindCard:
		c := &Card{}
		err = json.Unmarshal(raw, c)
		c.Content = children(obj, "content")
		n = c
	case KindGridLayout:
		g := &GridLayout{}
		err = json.Unmarshal(raw, g)
		g.Items = children(obj, "items")
		n = g
	case KindTwoColumnLayout:
		tc := &TwoColumnLayout{Base: base}
		tc.Left = children(obj, "left")
		tc.Right = children(obj, "right")
		n = tc
	case KindRichText:
		rt := &RichText{}
		err = json.Unmarshal(raw, rt)
		n = rt
	case KindImage:
		img := &Image{}
		err = json.Unmarshal(raw, img)
		n = img
	case KindQuote:
		q := &Quote{}
		err = json.Unmarshal(raw, q)
		n = q
	case KindCTA:
		c := &CTA{}
		err = json.Unmarshal(raw, c)
		n = c
	case KindNavLink:
		l := &NavLink{}
		err = json.Unmarshal(raw, l)
		n = l
	case KindGallery:
		g := &Gallery{}
		err = json.Unmarshal(raw, g)
		n = g
	case KindEmbed:
		e := &Embed{}
		err = json.Unmarshal(raw, e)
		n = e
	default:
		return &Unknown{Base: base, Raw: raw}
	}
	if err != nil {
		return &Unknown{Base: base, Raw: raw}
	}
	return n
}
