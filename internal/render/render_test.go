package render

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/content"
	"github.com/starford/folio/internal/docpath"
)

const pageBody = `{"_id":"p1","_type":"page","title":"About","content":[
	{"_type":"pageSection","_key":"s1","title":"Intro","anchorId":"intro","content":[
		{"_type":"richText","_key":"r1","body":[{"_type":"block","_key":"b1","style":"h3","children":[{"_type":"span","text":"Hello "},{"_type":"span","text":"world","marks":["strong","l1"]}],"markDefs":[{"_key":"l1","_type":"link","href":"https://example.com"}]}]},
		{"_type":"subSection","_key":"s2","title":"Deeper","content":[{"_type":"quote","_key":"q1","text":"Hi"}]}
	]},
	{"_type":"pageSection","_key":"s3","title":"Secret","hideSection":true},
	{"_type":"mystery","_key":"m1"},
	{"_type":"cta","_key":"c1","label":"Meet the team","internalLink":{"_ref":"drafts.p2"},"pageSectionId":"team"},
	{"_type":"pageSection","_key":"s4","title":"Outro"}
]}`

func testRenderer(buf *bytes.Buffer) *Renderer {
	return New(WithLogger(slog.New(slog.NewTextHandler(buf, nil))))
}

func renderPage(t *testing.T, r *Renderer) *Element {
	t.Helper()
	doc, err := content.DecodeDocument([]byte(pageBody))
	require.NoError(t, err)
	return r.RenderDocument(Context{
		Links: LinkResolverFunc(func(ref string) (string, bool) {
			if ref == "drafts.p2" {
				return "/team", true
			}
			return "", false
		}),
	}, doc)
}

func byKey(key string) func(*Element) bool {
	return func(e *Element) bool { return e.Key == key }
}

func TestRenderDocument_EditAddresses(t *testing.T) {
	root := renderPage(t, New())

	s2 := root.Find(byKey("s2"))
	require.NotNil(t, s2)
	assert.Equal(t, `content[_key=="s1"].content[_key=="s2"]`, s2.Path)
	assert.Equal(t, `id=p1;type=page;path=content[_key=="s1"].content[_key=="s2"]`, s2.EditAddress)

	q := root.Find(byKey("q1"))
	require.NotNil(t, q)
	assert.Equal(t, `id=p1;type=page;path=content[_key=="s1"].content[_key=="s2"].content[_key=="q1"]`, q.EditAddress)

	addr, err := ParseEditAddress(q.EditAddress)
	require.NoError(t, err)
	assert.Equal(t, "p1", addr.DocumentID)
	assert.Equal(t, q.Path, addr.Path.String())
}

func TestRenderDocument_HiddenAndUnknown(t *testing.T) {
	var logs bytes.Buffer
	root := renderPage(t, testRenderer(&logs))

	placeholder := root.Find(byKey("s3"))
	require.NotNil(t, placeholder)
	assert.True(t, placeholder.Hidden)
	assert.Equal(t, "true", placeholder.Attrs["aria-hidden"])
	assert.Empty(t, placeholder.Children)
	assert.Equal(t, `id=p1;type=page;path=content[_key=="s3"]`, placeholder.EditAddress)

	assert.Nil(t, root.Find(byKey("m1")))
	assert.Contains(t, logs.String(), "unknown block type dropped")
	assert.Contains(t, logs.String(), "mystery")
}

func TestRenderDocument_Spacing(t *testing.T) {
	root := renderPage(t, New())

	// Visible root siblings: s1, m1, c1, s4. Dropped blocks still count.
	assert.Empty(t, root.Find(byKey("s1")).Classes[2:])
	cta := root.Find(byKey("c1"))
	assert.True(t, cta.HasClass(ClassSpaceBottom))
	s4 := root.Find(byKey("s4"))
	assert.True(t, s4.HasClass(ClassSpaceTop))
	assert.True(t, s4.HasClass(ClassSectionPadded))

	// Nested: r1 then s2 at level 1.
	assert.True(t, root.Find(byKey("r1")).HasClass(ClassSpaceBottom))
	s2 := root.Find(byKey("s2"))
	assert.True(t, s2.HasClass(ClassSpaceTop))
	assert.True(t, s2.HasClass(ClassSectionPadded))
	assert.False(t, root.Find(byKey("q1")).HasClass(ClassSpaceBottom))
}

func TestRenderDocument_Links(t *testing.T) {
	root := renderPage(t, New())
	cta := root.Find(byKey("c1"))
	assert.Equal(t, "a", cta.Tag)
	assert.Equal(t, "/team#team", cta.Attrs["href"])
	assert.Equal(t, "Meet the team", cta.Text)

	s1 := root.Find(byKey("s1"))
	assert.Equal(t, "intro", s1.Attrs["id"])
}

func TestRenderDocument_UnsafeHrefDropped(t *testing.T) {
	var logs bytes.Buffer
	r := testRenderer(&logs)
	els := r.RenderRaw(Context{DocumentID: "d", DocumentType: "page"}, []byte(`[
		{"_type":"cta","_key":"bad","label":"Click","linkType":"external","href":"javascript:alert(document.cookie)"},
		{"_type":"cta","_key":"mail","label":"Mail","linkType":"external","href":"mailto:hi@example.com"},
		{"_type":"cta","_key":"rel","label":"Docs","href":"/docs"},
		{"_type":"richText","_key":"r","body":[{"_type":"block","children":[{"_type":"span","text":"x","marks":["l"]}],"markDefs":[{"_key":"l","_type":"link","href":" JavaScript:alert(1)"}]}]}
	]`), docpath.New("content"), 0)
	require.Len(t, els, 4)

	_, ok := els[0].Attrs["href"]
	assert.False(t, ok, "javascript href must be dropped")
	assert.Equal(t, "mailto:hi@example.com", els[1].Attrs["href"])
	assert.Equal(t, "/docs", els[2].Attrs["href"])
	assert.Contains(t, logs.String(), "scheme not allowed")

	var buf bytes.Buffer
	for _, el := range els {
		require.NoError(t, WriteHTML(&buf, el))
	}
	assert.NotContains(t, strings.ToLower(buf.String()), "javascript:")
}

func TestRenderRaw_NonArray(t *testing.T) {
	r := New()
	assert.Nil(t, r.RenderRaw(Context{}, []byte(`{"_type":"richText"}`), docpath.New("content"), 0))
	assert.Nil(t, r.RenderRaw(Context{}, []byte(`nope`), docpath.New("content"), 0))
}

func TestRenderBlocks_IndexFallback(t *testing.T) {
	els := New().RenderRaw(Context{DocumentID: "d", DocumentType: "page"},
		[]byte(`[{"_type":"quote","text":"no key"}]`), docpath.New("content"), 0)
	require.Len(t, els, 1)
	assert.Equal(t, "content[0]", els[0].Path)
}

func TestRender_Containers(t *testing.T) {
	els := New().RenderRaw(Context{DocumentID: "d", DocumentType: "page"}, []byte(`[
		{"_type":"gridLayout","_key":"g","columns":2,"items":[
			{"_type":"card","_key":"c","title":"Card","content":[{"_type":"pageSection","_key":"inner","title":"In card"}]}
		]},
		{"_type":"twoColumnLayout","_key":"t","left":[{"_type":"quote","_key":"l","text":"L"}],"right":[]}
	]`), docpath.New("content"), 0)
	require.Len(t, els, 2)

	grid := els[0]
	assert.True(t, grid.HasClass("grid-cols-2"))
	inner := grid.Find(byKey("inner"))
	require.NotNil(t, inner)
	assert.Equal(t, `content[_key=="g"].items[_key=="c"].content[_key=="inner"]`, inner.Path)
	assert.Equal(t, "h2", inner.Children[0].Tag)

	left := els[1].Find(byKey("l"))
	require.NotNil(t, left)
	assert.Equal(t, `content[_key=="t"].left[_key=="l"]`, left.Path)
}

func TestRender_ImagePresetsAndEmbeds(t *testing.T) {
	var logs bytes.Buffer
	r := testRenderer(&logs)
	els := r.RenderRaw(Context{DocumentID: "d", DocumentType: "page", Site: Site{BaseURL: "https://cdn.example.com/"}}, []byte(`[
		{"_type":"image","_key":"i","url":"/img/a.png","alt":"A","preset":"card","caption":"Cap"},
		{"_type":"embed","_key":"e1","url":"https://player.example.com/v/1","title":"Video"},
		{"_type":"embed","_key":"e2","url":"http://insecure.example.com"}
	]`), docpath.New("content"), 0)
	require.Len(t, els, 2)

	img := els[0].Children[0]
	assert.Equal(t, "img", img.Tag)
	assert.Equal(t, "https://cdn.example.com/img/a.png?w=800", img.Attrs["src"])
	assert.Equal(t, "https://cdn.example.com/img/a.png?w=400 400w, https://cdn.example.com/img/a.png?w=800 800w", img.Attrs["srcset"])
	assert.Equal(t, "figcaption", els[0].Children[1].Tag)

	assert.Equal(t, "e1", els[1].Key)
	assert.Contains(t, logs.String(), "https required")
}

func TestRichText_Lists(t *testing.T) {
	els := New().RenderRaw(Context{}, []byte(`[{"_type":"richText","_key":"r","body":[
		{"_type":"block","listItem":"bullet","children":[{"_type":"span","text":"one"}]},
		{"_type":"block","listItem":"bullet","children":[{"_type":"span","text":"two"}]},
		{"_type":"block","children":[{"_type":"span","text":"para"}]}
	]}]`), docpath.New("content"), 0)
	require.Len(t, els, 1)
	require.Len(t, els[0].Children, 2)
	assert.Equal(t, "ul", els[0].Children[0].Tag)
	assert.Len(t, els[0].Children[0].Children, 2)
	assert.Equal(t, "p", els[0].Children[1].Tag)
}

func TestWriteHTML(t *testing.T) {
	root := renderPage(t, New())
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, root))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<article "))
	assert.Contains(t, out, `<section class="section section-pageSection" data-edit-address="id=p1;type=page;path=content[_key==&#34;s1&#34;]" id="intro">`)
	assert.Contains(t, out, `<strong><a href="https://example.com">world</a></strong>`)
	assert.Contains(t, out, `aria-hidden="true"`)
	assert.NotContains(t, out, "Secret")

	var again bytes.Buffer
	require.NoError(t, WriteHTML(&again, renderPage(t, New())))
	assert.Equal(t, out, again.String())
}

func TestWritePage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePage(&buf, "About & more", &Element{Tag: "p", Text: "x"}))
	assert.True(t, strings.HasPrefix(buf.String(), "<!DOCTYPE html><html><head><meta charset=\"utf-8\"/><title>About &amp; more</title></head><body><p>x</p></body></html>"))
}
