package docpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	p := New("content").Key("s1").Field("content").Index(2).Field("pageSectionId")
	assert.Equal(t, `content[_key=="s1"].content[2].pageSectionId`, p.String())
}

func TestAppendDoesNotAlias(t *testing.T) {
	base := make(Path, 1, 8)
	base[0] = Field("content")
	a := base.Key("a")
	b := base.Key("b")
	assert.Equal(t, `content[_key=="a"]`, a.String())
	assert.Equal(t, `content[_key=="b"]`, b.String())
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Path
	}{
		{"title", Path{Field("title")}},
		{`content[_key=="k1"].anchorId`, Path{Field("content"), Key("k1"), Field("anchorId")}},
		{"horizontalNav[3].cards[0].pageSectionId", Path{Field("horizontalNav"), Index(3), Field("cards"), Index(0), Field("pageSectionId")}},
		{"grid[1][2]", Path{Field("grid"), Index(1), Index(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{
		"",
		".title",
		"title.",
		"a..b",
		"[0]",
		"a[x]",
		"a[-1]",
		"a[0",
		`a[_key==""]`,
		"a[0]b",
		"1abc",
		"a.b-c",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestResolve(t *testing.T) {
	doc := []byte(`{
		"content": [
			{"_key": "a", "content": [{"_key": "x"}, {"_key": "y"}]},
			{"_key": "b", "cards": [{"_key": "c1"}]}
		]
	}`)

	p, err := Parse(`content[_key=="a"].content[_key=="y"].pageSectionId`)
	require.NoError(t, err)
	got, err := p.Resolve(doc)
	require.NoError(t, err)
	assert.Equal(t, "content.0.content.1.pageSectionId", got)

	got, err = New("content").Index(1).Field("cards").Index(0).Field("title").Resolve(doc)
	require.NoError(t, err)
	assert.Equal(t, "content.1.cards.0.title", got)
}

func TestResolveErrors(t *testing.T) {
	doc := []byte(`{"content": [{"_key": "a"}], "title": "x"}`)

	_, err := New("content").Key("zzz").Field("title").Resolve(doc)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = New("content").Index(5).Resolve(doc)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = New("title").Index(0).Resolve(doc)
	assert.ErrorIs(t, err, ErrNotArray)

	_, err = Path{Index(0)}.Resolve(doc)
	assert.ErrorIs(t, err, ErrSyntax)
}
