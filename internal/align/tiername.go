package align

import (
	"regexp"
	"strings"

	"github.com/openphon/alignd/internal/textgrid"
)

// tierRules canonicalizes the tier-name variants the aligner families
// emit. Rules are evaluated in order; the first match wins. Everything
// converges on the " - word" / " - phone" suffixes.
var tierRules = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\s*[-:]\s*words?$`), " - word"},
	{regexp.MustCompile(`(?i)\s*[-:]\s*phones?$`), " - phone"},
	{regexp.MustCompile(`(?i)^words?$`), " - word"},
	{regexp.MustCompile(`(?i)^phones?$`), " - phone"},
}

const transSuffix = " - trans"

// CanonicalTierName rewrites an aligner-produced tier name into the
// canonical form and prefixes the source tier name when the aligner
// dropped it.
func CanonicalTierName(name, source string) string {
	for _, rule := range tierRules {
		if rule.pattern.MatchString(name) {
			name = rule.pattern.ReplaceAllString(name, rule.replacement)
			break
		}
	}
	if !strings.HasPrefix(name, source) {
		name = source + name
	}
	return name
}

// IsWordTier reports whether a canonicalized tier name is a word-level
// tier. Word tiers sort after phone tiers in the merged output.
func IsWordTier(name string) bool {
	return strings.HasSuffix(name, " - word")
}

// mergeAligned stitches one source tier's aligned output back into the
// merged document: the original transcription tier first, renamed with
// the trans suffix, then the generated tiers with canonical names and
// the word tier re-appended last.
func mergeAligned(merged *textgrid.Document, source textgrid.Tier, aligned *textgrid.Document) {
	trans := source
	trans.Name = source.Name + transSuffix
	merged.AppendTier(trans)

	var wordTiers []textgrid.Tier
	for _, tier := range aligned.Tiers {
		tier.Name = CanonicalTierName(tier.Name, source.Name)
		if IsWordTier(tier.Name) {
			wordTiers = append(wordTiers, tier)
			continue
		}
		merged.AppendTier(tier)
	}
	for _, tier := range wordTiers {
		merged.AppendTier(tier)
	}
}
