package langid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testDetector() *Detector {
	return NewDetector([]Language{
		{Code: "eng"},
		{Code: "nob", Alternatives: []string{"nno"}},
		{Code: "swe"},
	}, "eng")
}

func TestNormalize_RemapTable(t *testing.T) {
	assert.Equal(t, "nob", Normalize("no"), "generic Norwegian steers to Bokmål")
	assert.Equal(t, "nno", Normalize("nn"))
	assert.Equal(t, "swe", Normalize("sv"))
	assert.Equal(t, "eng", Normalize("en"))
	assert.Equal(t, "xx", Normalize("xx"), "unmapped codes pass through")
}

func TestDetect_English(t *testing.T) {
	d := testDetector()

	code, suggested := d.Detect("the quick brown fox jumps over the lazy dog near the river bank")
	assert.True(t, suggested)
	assert.Equal(t, "eng", code)
}

func TestDetect_EmptySampleFallsBack(t *testing.T) {
	d := testDetector()

	code, suggested := d.Detect("   ")
	assert.False(t, suggested)
	assert.Equal(t, "eng", code)
}

func TestDetect_UnsupportedFallsBack(t *testing.T) {
	d := NewDetector([]Language{{Code: "nob"}}, "nob")

	// Japanese is confidently detected but not in the supported set.
	code, suggested := d.Detect("これは日本語のテキストです。長い文章を書いています。")
	assert.False(t, suggested)
	assert.Equal(t, "nob", code)
}

func TestPickAlternative_MinimumMissingWins(t *testing.T) {
	d := testDetector()

	scores := map[string]int{"nob": 5, "nno": 2}
	got := d.PickAlternative("nob", func(code string) int { return scores[code] })
	assert.Equal(t, "nno", got)
}

func TestPickAlternative_TieKeepsOriginal(t *testing.T) {
	d := testDetector()

	got := d.PickAlternative("nob", func(code string) int { return 3 })
	assert.Equal(t, "nob", got)
}

func TestPickAlternative_NoAlternativesIsNoop(t *testing.T) {
	d := testDetector()

	called := false
	got := d.PickAlternative("swe", func(string) int { called = true; return 0 })
	assert.Equal(t, "swe", got)
	assert.False(t, called)
}
