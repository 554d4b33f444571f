package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// AttrEditAddress is the attribute carrying an element's edit address.
const AttrEditAddress = "data-edit-address"

// WriteHTML serializes the tree rooted at el.
func WriteHTML(w io.Writer, el *Element) error {
	if el == nil {
		return nil
	}
	if err := html.Render(w, toNode(el)); err != nil {
		return fmt.Errorf("render: write html: %w", err)
	}
	return nil
}

// WritePage serializes el as the body of a complete HTML page.
func WritePage(w io.Writer, title string, el *Element) error {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := elementNode("html", nil)
	head := elementNode("head", nil)
	meta := elementNode("meta", []html.Attribute{{Key: "charset", Val: "utf-8"}})
	head.AppendChild(meta)
	t := elementNode("title", nil)
	t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	head.AppendChild(t)
	body := elementNode("body", nil)
	if el != nil {
		body.AppendChild(toNode(el))
	}
	root.AppendChild(head)
	root.AppendChild(body)
	doc.AppendChild(root)

	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("render: write page: %w", err)
	}
	return nil
}

func elementNode(tag string, attrs []html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

func toNode(el *Element) *html.Node {
	var attrs []html.Attribute
	if len(el.Classes) > 0 {
		attrs = append(attrs, html.Attribute{Key: "class", Val: strings.Join(el.Classes, " ")})
	}
	if el.EditAddress != "" {
		attrs = append(attrs, html.Attribute{Key: AttrEditAddress, Val: el.EditAddress})
	}
	keys := make([]string, 0, len(el.Attrs))
	for k := range el.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, html.Attribute{Key: k, Val: el.Attrs[k]})
	}

	n := elementNode(el.Tag, attrs)
	if el.Text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: el.Text})
	}
	for _, c := range el.Children {
		n.AppendChild(toNode(c))
	}
	return n
}
