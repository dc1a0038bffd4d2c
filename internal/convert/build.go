package convert

import (
	"github.com/openphon/alignd/internal/textgrid"
	"golang.org/x/text/unicode/norm"
)

// BuildTextGrid groups canonical rows by tier name into an interval
// document. Document bounds are the min/max across all tiers, and
// interval text is NFC-normalized so decomposed accents collapse into
// single composed characters.
func BuildTextGrid(rows []Row) *textgrid.Document {
	doc := &textgrid.Document{}
	order := make([]string, 0)
	byTier := make(map[string][]textgrid.Interval)

	for _, row := range rows {
		if _, seen := byTier[row.Tier]; !seen {
			order = append(order, row.Tier)
		}
		byTier[row.Tier] = append(byTier[row.Tier], textgrid.Interval{
			XMin: row.Start,
			XMax: row.End,
			Text: norm.NFC.String(row.Text),
		})
	}

	for _, name := range order {
		intervals := byTier[name]
		tier := textgrid.Tier{
			Name:      name,
			Intervals: intervals,
			XMin:      intervals[0].XMin,
			XMax:      intervals[0].XMax,
		}
		for _, iv := range intervals {
			if iv.XMin < tier.XMin {
				tier.XMin = iv.XMin
			}
			if iv.XMax > tier.XMax {
				tier.XMax = iv.XMax
			}
		}
		doc.AppendTier(tier)
	}
	return doc
}

// TextGridToRows flattens a document back into canonical rows, used to
// prepare TSV input for the single-file aligner family.
func TextGridToRows(doc *textgrid.Document) []Row {
	rows := make([]Row, 0)
	for _, tier := range doc.Tiers {
		for _, iv := range tier.Intervals {
			rows = append(rows, Row{
				Tier:  tier.Name,
				Start: iv.XMin,
				End:   iv.XMax,
				Text:  iv.Text,
			})
		}
	}
	return rows
}
