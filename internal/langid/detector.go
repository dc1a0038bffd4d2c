package langid

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/openphon/alignd/pkg/log"
)

// Language describes one supported alignment language. Alternatives
// list sibling dictionary codes a detection hit should be re-scored
// against (dialects sharing a detector code).
type Language struct {
	Code         string   `json:"code"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// remap corrects near-miss detector output before matching against the
// supported set. whatlanggo reports macro codes for some families; we
// steer those to the closest dictionary we actually carry.
var remap = map[string]string{
	"no": "nob", // generic Norwegian → Bokmål
	"nn": "nno",
	"nb": "nob",
	"da": "dan",
	"sv": "swe",
	"en": "eng",
	"de": "deu",
	"fr": "fra",
	"es": "spa",
	"nl": "nld",
	"fi": "fin",
	"et": "est",
	"is": "isl",
}

// Normalize rewrites a raw classifier code through the remap table.
// Codes without an entry pass through unchanged.
func Normalize(code string) string {
	if mapped, ok := remap[code]; ok {
		return mapped
	}
	return code
}

// Detector resolves a language code for a transcription sample against
// the set of active supported languages.
type Detector struct {
	Supported []Language
	Default   string
}

func NewDetector(supported []Language, defaultCode string) *Detector {
	return &Detector{Supported: supported, Default: defaultCode}
}

// Detect classifies the sample text and returns the matched supported
// code. When nothing matches, the fixed default is returned; suggested
// reports whether the result came from the classifier rather than the
// fallback.
func (d *Detector) Detect(sample string) (code string, suggested bool) {
	if strings.TrimSpace(sample) == "" {
		return d.Default, false
	}

	detected := Normalize(whatlanggo.DetectLang(sample).Iso6391())

	for _, lang := range d.Supported {
		if lang.Code == detected {
			return lang.Code, true
		}
	}

	log.Warn("Detected language %q is not supported, falling back to %s", detected, d.Default)
	return d.Default, false
}

// Find returns the supported language entry for a code.
func (d *Detector) Find(code string) (Language, bool) {
	for _, lang := range d.Supported {
		if lang.Code == code {
			return lang, true
		}
	}
	return Language{}, false
}

// PickAlternative re-scores a detection hit against the language's
// declared alternative dictionaries and returns the code with the
// fewest missing words. Ties keep declaration order, with the original
// code scored first.
func (d *Detector) PickAlternative(code string, score func(code string) int) string {
	lang, ok := d.Find(code)
	if !ok || len(lang.Alternatives) == 0 {
		return code
	}

	best := code
	bestScore := score(code)
	for _, alt := range lang.Alternatives {
		if s := score(alt); s < bestScore {
			best = alt
			bestScore = s
		}
	}
	if best != code {
		log.Info("Language %s re-scored to alternative %s", code, best)
	}
	return best
}
