// Package anchors derives section anchor ids from titles and keeps links
// that point at those anchors consistent across documents.
package anchors

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxLength caps a generated anchor id before any collision suffix.
const MaxLength = 50

// DigitPrefix is prepended to ids that would otherwise start with a digit,
// since anchor ids double as DOM ids and CSS selectors.
const DigitPrefix = "section-"

var (
	nonWordRe = regexp.MustCompile(`[^\w\s\p{Zs}-]`)
	spaceRe   = regexp.MustCompile(`[\s\p{Zs}]+`)
	suffixRe  = regexp.MustCompile(`-[0-9]+$`)
	hyphenRe  = regexp.MustCompile(`-+`)
)

// Generate derives a URL-safe slug from title.
func Generate(title string) string {
	s := strings.ToLower(title)
	s = nonWordRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, "-")
	s = hyphenRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxLength {
		s = s[:MaxLength]
	}
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = DigitPrefix + s
	}
	return s
}

// baseID strips a trailing collision suffix from id.
func baseID(id string) string {
	return suffixRe.ReplaceAllString(id, "")
}

// Unique returns base, or base with the smallest suffix -2, -3, ... that is
// not in existing. An empty base stays empty.
func Unique(base string, existing map[string]struct{}) string {
	if base == "" {
		return ""
	}
	if _, taken := existing[base]; !taken {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, taken := existing[candidate]; !taken {
			return candidate
		}
	}
}

// ForSection generates the anchor id for the section with key sectionKey in
// the document body, avoiding every other anchor id in that document.
func ForSection(body []byte, sectionKey, title string) string {
	return Unique(Generate(title), ExistingAnchorIDs(body, sectionKey))
}
