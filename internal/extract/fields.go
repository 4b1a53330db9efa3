// internal/extract/fields.go
package extract

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/steltix/newsgrab/pkg/types"
)

// minTitleRunes and minContentChars separate real values from scraps. A
// three-rune "title" or a one-line "article body" is worse than nothing
// because it stops later strategies from trying.
const (
	minTitleRunes   = 4
	minContentChars = 50
)

// titleFragments are single tokens that show up when a selector catches
// half a headline or a navigation crumb.
var titleFragments = map[string]struct{}{
	"and": {}, "or": {}, "but": {}, "the": {}, "a": {},
	"of": {}, "in": {}, "to": {}, "with": {},
}

// MeaningfulTitle reports whether s is usable as an article title.
func MeaningfulTitle(s string) bool {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) < minTitleRunes {
		return false
	}
	if _, frag := titleFragments[strings.ToLower(s)]; frag {
		return false
	}

	first, _ := utf8.DecodeRuneInString(s)
	if unicode.IsLower(first) {
		return false
	}

	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	return hasLetter
}

// MeaningfulContent reports whether s is long enough to be an article body
// rather than a teaser or an error string.
func MeaningfulContent(s string) bool {
	return len(strings.TrimSpace(s)) >= minContentChars
}

// MeaningfulAuthor reports whether s names anyone at all.
func MeaningfulAuthor(s string) bool {
	return strings.TrimSpace(s) != ""
}

// MeaningfulDate reports whether t is a real timestamp.
func MeaningfulDate(t *time.Time) bool {
	return t != nil && !t.IsZero()
}

// MeaningfulMetadata reports whether the map carries at least one
// non-empty value.
func MeaningfulMetadata(m map[string]string) bool {
	for _, v := range m {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// meaningful dispatches the per-field predicate by field name.
func (f *Fields) meaningful(field string) bool {
	switch field {
	case types.FieldTitle:
		return MeaningfulTitle(f.Title)
	case types.FieldAuthor:
		return MeaningfulAuthor(f.AuthorRaw)
	case types.FieldContent:
		return MeaningfulContent(f.Content)
	case types.FieldPublishDate:
		return MeaningfulDate(f.PublishDate)
	case types.FieldMetadata:
		return MeaningfulMetadata(f.Metadata)
	}
	return false
}

// allFields is the merge/provenance order. fieldPriority below decides the
// primary method; this list just enumerates.
var allFields = []string{
	types.FieldTitle,
	types.FieldAuthor,
	types.FieldContent,
	types.FieldPublishDate,
	types.FieldMetadata,
}

// fieldPriority orders fields by importance for the primary-method pick.
var fieldPriority = []string{
	types.FieldContent,
	types.FieldTitle,
	types.FieldAuthor,
	types.FieldPublishDate,
	types.FieldMetadata,
}
