// Package docpath models addresses into a JSON document as a list of
// selectors and converts them to and from the string form used by edit
// overlays and patch operations (content[_key=="a1"].content[2].title).
package docpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	keyOpen  = `[_key=="`
	keyClose = `"]`
)

var (
	ErrSyntax      = errors.New("docpath: syntax error")
	ErrKeyNotFound = errors.New("docpath: key not found")
	ErrNotArray    = errors.New("docpath: not an array")
	ErrOutOfRange  = errors.New("docpath: index out of range")
)

// Selector is one step of a Path. Exactly one of Field, Key or Index is
// meaningful: a non-empty Field selects an object member, a non-empty Key
// selects the array item whose _key matches, otherwise Index selects an
// array item by position.
type Selector struct {
	Field string
	Key   string
	Index int
}

// Field selects an object member.
func Field(name string) Selector { return Selector{Field: name} }

// Key selects an array item by its _key.
func Key(key string) Selector { return Selector{Key: key} }

// Index selects an array item by position.
func Index(i int) Selector { return Selector{Index: i} }

func (s Selector) isField() bool { return s.Field != "" }
func (s Selector) isKey() bool   { return s.Field == "" && s.Key != "" }

// Path is an ordered list of selectors starting at the document root.
type Path []Selector

// New returns a path rooted at the given top-level field.
func New(field string) Path {
	return Path{Field(field)}
}

// Append returns a new path with sels appended. The receiver is not modified.
func (p Path) Append(sels ...Selector) Path {
	out := make(Path, 0, len(p)+len(sels))
	out = append(out, p...)
	return append(out, sels...)
}

// Field returns p extended with an object member selector.
func (p Path) Field(name string) Path { return p.Append(Field(name)) }

// Key returns p extended with a _key selector.
func (p Path) Key(key string) Path { return p.Append(Key(key)) }

// Index returns p extended with a positional selector.
func (p Path) Index(i int) Path { return p.Append(Index(i)) }

// String serializes the path, e.g. content[_key=="a1"].cards[0].title.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		switch {
		case s.isField():
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(s.Field)
		case s.isKey():
			b.WriteString(keyOpen)
			b.WriteString(s.Key)
			b.WriteString(keyClose)
		default:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// Parse is the inverse of String.
func Parse(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty path", ErrSyntax)
	}
	var p Path
	needField := true
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == '[':
			if needField {
				return nil, fmt.Errorf("%w: unexpected '[' at %d in %q", ErrSyntax, i, s)
			}
			rest := s[i:]
			if strings.HasPrefix(rest, keyOpen) {
				end := strings.Index(rest[len(keyOpen):], keyClose)
				if end <= 0 {
					return nil, fmt.Errorf("%w: bad key selector at %d in %q", ErrSyntax, i, s)
				}
				p = append(p, Key(rest[len(keyOpen):len(keyOpen)+end]))
				i += len(keyOpen) + end + len(keyClose)
				continue
			}
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated '[' at %d in %q", ErrSyntax, i, s)
			}
			n, err := strconv.Atoi(rest[1:end])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: bad index %q in %q", ErrSyntax, rest[1:end], s)
			}
			p = append(p, Index(n))
			i += end + 1
		case c == '.':
			if needField {
				return nil, fmt.Errorf("%w: unexpected '.' at %d in %q", ErrSyntax, i, s)
			}
			needField = true
			i++
		default:
			if !needField {
				return nil, fmt.Errorf("%w: expected '.' or '[' at %d in %q", ErrSyntax, i, s)
			}
			j := i
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			name := s[i:j]
			if !ValidField(name) {
				return nil, fmt.Errorf("%w: bad field name at %d in %q", ErrSyntax, i, s)
			}
			p = append(p, Field(name))
			needField = false
			i = j
		}
	}
	if needField {
		return nil, fmt.Errorf("%w: trailing '.' in %q", ErrSyntax, s)
	}
	return p, nil
}

// ValidField reports whether name can be used as a field selector.
func ValidField(name string) bool {
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isIdentByte(name[i]) {
			return false
		}
	}
	return true
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Resolve maps p onto doc and returns the equivalent dotted gjson/sjson
// path with every key selector replaced by its current index. Arrays along
// the way must exist; the final field may be absent.
func (p Path) Resolve(doc []byte) (string, error) {
	if len(p) == 0 || !p[0].isField() {
		return "", fmt.Errorf("%w: path must start with a field", ErrSyntax)
	}
	parts := make([]string, 0, len(p))
	for _, sel := range p {
		if sel.isField() {
			parts = append(parts, sel.Field)
			continue
		}
		cur := strings.Join(parts, ".")
		arr := gjson.GetBytes(doc, cur)
		if !arr.IsArray() {
			return "", fmt.Errorf("%w: %s", ErrNotArray, cur)
		}
		items := arr.Array()
		if sel.isKey() {
			idx := -1
			for j, item := range items {
				if item.Get("_key").String() == sel.Key {
					idx = j
					break
				}
			}
			if idx < 0 {
				return "", fmt.Errorf("%w: %s[_key==%q]", ErrKeyNotFound, cur, sel.Key)
			}
			parts = append(parts, strconv.Itoa(idx))
			continue
		}
		if sel.Index >= len(items) {
			return "", fmt.Errorf("%w: %s[%d]", ErrOutOfRange, cur, sel.Index)
		}
		parts = append(parts, strconv.Itoa(sel.Index))
	}
	return strings.Join(parts, "."), nil
}
