package analyze

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/openphon/alignd/internal/dict"
	"github.com/openphon/alignd/internal/langid"
	"github.com/openphon/alignd/internal/textgrid"
)

// stripChars is the fixed punctuation/quote set removed from interval
// text before tokenizing. Apostrophes stay so contractions survive as
// single tokens.
const stripChars = ".,!?;:()[]{}<>\"«»“”„‚—–…¡¿"

var stripReplacer = func() *strings.Replacer {
	pairs := make([]string, 0, len(stripChars)*2)
	for _, r := range stripChars {
		pairs = append(pairs, string(r), " ")
	}
	return strings.NewReplacer(pairs...)
}()

// Result summarizes one transcription document against the dictionaries.
type Result struct {
	WordCount        int
	MissingWords     dict.Set
	IsMultiTier      bool
	TierCount        int
	ResolvedLanguage string
	WasSuggested     bool
}

// Tokenize splits interval text into word tokens with punctuation
// stripped. Tokens keep their case; membership checks lower-case them.
func Tokenize(text string) []string {
	return strings.Fields(stripReplacer.Replace(text))
}

// ProcessDocument scans every interval tier, counts word tokens, and
// classifies each token as known or missing against the language and
// user dictionaries. When language is empty the document's language is
// detected from the first tier's text.
func ProcessDocument(doc *textgrid.Document, language, owner string,
	cache *dict.Cache, detector *langid.Detector) Result {

	resolved := language
	suggested := false
	if resolved == "" {
		sample := sampleText(doc)
		resolved, suggested = detector.Detect(sample)
		if suggested {
			// A detection hit with declared alternatives is re-scored
			// against each candidate dictionary; fewest missing wins.
			resolved = detector.PickAlternative(resolved, func(code string) int {
				known := cache.KnownWords(code)
				user, _ := cache.UserWords(owner, code)
				_, missing := countWords(doc, known, user)
				return len(missing)
			})
		}
	}

	known := cache.KnownWords(resolved)
	user, _ := cache.UserWords(owner, resolved)
	wordCount, missing := countWords(doc, known, user)

	return Result{
		WordCount:        wordCount,
		MissingWords:     missing,
		IsMultiTier:      len(doc.Tiers) > 1,
		TierCount:        len(doc.Tiers),
		ResolvedLanguage: resolved,
		WasSuggested:     suggested,
	}
}

// countWords walks all tiers; the total counts duplicates, the missing
// set does not.
func countWords(doc *textgrid.Document, known, user dict.Set) (int, dict.Set) {
	total := 0
	missing := make(dict.Set)
	for _, tier := range doc.Tiers {
		for _, interval := range tier.Intervals {
			for _, token := range Tokenize(interval.Text) {
				total++
				word := strings.ToLower(token)
				if known.Contains(word) {
					continue
				}
				if user != nil && user.Contains(word) {
					continue
				}
				missing[word] = struct{}{}
			}
		}
	}
	return total, missing
}

// sampleText concatenates the first tier's interval texts for language
// detection.
func sampleText(doc *textgrid.Document) string {
	if len(doc.Tiers) == 0 {
		return ""
	}
	parts := make([]string, 0, len(doc.Tiers[0].Intervals))
	for _, interval := range doc.Tiers[0].Intervals {
		if interval.Text != "" {
			parts = append(parts, interval.Text)
		}
	}
	return strings.Join(parts, " ")
}

// WriteMissingFile writes the missing-word set one word per line,
// sorted. An empty file is written even when the set is empty so
// downstream tooling can rely on its presence.
func WriteMissingFile(path string, missing dict.Set) error {
	words := make([]string, 0, len(missing))
	for word := range missing {
		words = append(words, word)
	}
	sort.Strings(words)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create missing-word file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, word := range words {
		fmt.Fprintln(w, word)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
