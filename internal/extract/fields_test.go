// internal/extract/fields_test.go
package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMeaningfulTitle(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"Breaking: Markets Rally", true},
		{"Война и мир", true},
		{"", false},
		{"   ", false},
		{"abc", false},             // too short
		{"the", false},             // fragment token
		{"And", false},             // fragment token, any case
		{"lowercase start", false}, // headlines are capitalized
		{"1234", false},            // no letters
		{"!!!!", false},
		{"2024 Budget Approved", true}, // digit start is fine
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MeaningfulTitle(tt.title), "title %q", tt.title)
	}
}

func TestMeaningfulContent(t *testing.T) {
	assert.False(t, MeaningfulContent(""))
	assert.False(t, MeaningfulContent("Too short."))
	assert.False(t, MeaningfulContent(strings.Repeat(" ", 100)))
	assert.True(t, MeaningfulContent(strings.Repeat("word ", 20)))
}

func TestMeaningfulAuthor(t *testing.T) {
	assert.False(t, MeaningfulAuthor(""))
	assert.False(t, MeaningfulAuthor("   "))
	assert.True(t, MeaningfulAuthor("J. Doe"))
}

func TestMeaningfulDate(t *testing.T) {
	assert.False(t, MeaningfulDate(nil))
	assert.False(t, MeaningfulDate(&time.Time{}))
	now := time.Now()
	assert.True(t, MeaningfulDate(&now))
}

func TestMeaningfulMetadata(t *testing.T) {
	assert.False(t, MeaningfulMetadata(nil))
	assert.False(t, MeaningfulMetadata(map[string]string{}))
	assert.False(t, MeaningfulMetadata(map[string]string{"site_name": "  "}))
	assert.True(t, MeaningfulMetadata(map[string]string{"site_name": "Example News"}))
}

func TestBasicBylineCleaner(t *testing.T) {
	c := basicBylineCleaner{}
	assert.Equal(t, "Jane Doe", c.Clean("By Jane Doe"))
	assert.Equal(t, "Jane Doe", c.Clean("by: Jane Doe"))
	assert.Equal(t, "Jane Doe", c.Clean("Written by Jane Doe"))
	assert.Equal(t, "Jane Doe", c.Clean("  Jane   Doe  "))
	assert.Equal(t, "Byron Smith", c.Clean("Byron Smith"), "a name starting with By must survive")
	assert.Equal(t, "", c.Clean(""))
}
