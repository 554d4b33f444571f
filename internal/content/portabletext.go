package content

import "strings"

// TextBlock is a portable text block.
type TextBlock struct {
	Type     string    `json:"_type"`
	Key      string    `json:"_key,omitempty"`
	Style    string    `json:"style,omitempty"`
	ListItem string    `json:"listItem,omitempty"`
	Level    int       `json:"level,omitempty"`
	Children []Span    `json:"children,omitempty"`
	MarkDefs []MarkDef `json:"markDefs,omitempty"`
}

// Span is an inline run of text.
type Span struct {
	Type  string   `json:"_type"`
	Key   string   `json:"_key,omitempty"`
	Text  string   `json:"text"`
	Marks []string `json:"marks,omitempty"`
}

// MarkDef is an annotation referenced from span marks, such as a link.
type MarkDef struct {
	Key  string `json:"_key"`
	Type string `json:"_type"`
	Href string `json:"href,omitempty"`
}

// StyleOrDefault returns the block style, "normal" when unset.
func (b TextBlock) StyleOrDefault() string {
	if b.Style == "" {
		return "normal"
	}
	return b.Style
}

// PlainText concatenates the text of every span.
func (b TextBlock) PlainText() string {
	var sb strings.Builder
	for _, s := range b.Children {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// MarkDef returns the annotation with the given key.
func (b TextBlock) MarkDef(key string) (MarkDef, bool) {
	for _, md := range b.MarkDefs {
		if md.Key == key {
			return md, true
		}
	}
	return MarkDef{}, false
}
