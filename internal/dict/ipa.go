package dict

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/openphon/alignd/internal/textgrid"
)

// LoadIPAMap reads the phone→IPA substitution table, a JSON list of
// {dummy, ipa} entries. The dummy symbol is the ASCII-safe phone the
// aligner emits; ipa is the presentation symbol.
func LoadIPAMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []struct {
		Dummy string `json:"dummy"`
		IPA   string `json:"ipa"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("malformed IPA map %s: %w", path, err)
	}

	mapping := make(map[string]string, len(entries))
	for _, entry := range entries {
		mapping[entry.Dummy] = entry.IPA
	}
	return mapping, nil
}

// ApplyIPA substitutes interval labels on the tiers selected by
// tierFilter. Only labels exactly matching a table entry are replaced;
// everything else is left as-is. The input document is not modified.
func ApplyIPA(doc *textgrid.Document, mapping map[string]string, tierFilter func(name string) bool) *textgrid.Document {
	out := &textgrid.Document{XMin: doc.XMin, XMax: doc.XMax}
	for _, tier := range doc.Tiers {
		copied := textgrid.Tier{
			Name:      tier.Name,
			XMin:      tier.XMin,
			XMax:      tier.XMax,
			Intervals: make([]textgrid.Interval, len(tier.Intervals)),
		}
		copy(copied.Intervals, tier.Intervals)

		if tierFilter == nil || tierFilter(tier.Name) {
			for i := range copied.Intervals {
				if ipa, ok := mapping[copied.Intervals[i].Text]; ok {
					copied.Intervals[i].Text = ipa
				}
			}
		}
		out.Tiers = append(out.Tiers, copied)
	}
	return out
}
