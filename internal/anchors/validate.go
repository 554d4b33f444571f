package anchors

import (
	"regexp"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var anchorIDRe = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)

// AnchorIDRule checks the format of a stored anchor id. Empty ids pass.
var AnchorIDRule = validation.Match(anchorIDRe).
	Error("must contain only lowercase letters, digits, hyphens or underscores and must not start with a digit or hyphen")

// anchorLengthRule caps the part of an anchor id before its collision
// suffix at the longest id Generate returns.
var anchorLengthRule = validation.By(func(value any) error {
	id, _ := value.(string)
	if len(baseID(id)) > MaxLength+len(DigitPrefix) {
		return validation.NewError("validation_anchor_length",
			"must be no more than "+strconv.Itoa(MaxLength+len(DigitPrefix))+" characters before a numeric suffix")
	}
	return nil
})

// ValidateDocument checks every section in body: a title is required,
// anchor ids must be well formed and unique within the document. Errors
// are keyed by the field's edit path.
func ValidateDocument(body []byte) error {
	errs := validation.Errors{}
	seen := make(map[string]string)
	for _, s := range Sections(body) {
		titlePath := s.Path.Field("title").String()
		anchorPath := s.Path.Field("anchorId").String()

		if err := validation.Validate(s.Title, validation.Required.Error("title is required")); err != nil {
			errs[titlePath] = err
		}
		if err := validation.Validate(s.AnchorID, AnchorIDRule, anchorLengthRule); err != nil {
			errs[anchorPath] = err
			continue
		}
		if s.AnchorID == "" {
			continue
		}
		if first, dup := seen[s.AnchorID]; dup {
			errs[anchorPath] = validation.NewError("validation_anchor_duplicate",
				"duplicates the anchor id at "+first)
			continue
		}
		seen[s.AnchorID] = anchorPath
	}
	return errs.Filter()
}
