package convert

import (
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// eafDocument maps the parts of an ELAN annotation document we need:
// the time-slot table and the aligned annotations per tier.
type eafDocument struct {
	TimeOrder struct {
		Slots []struct {
			ID    string `xml:"TIME_SLOT_ID,attr"`
			Value string `xml:"TIME_VALUE,attr"`
		} `xml:"TIME_SLOT"`
	} `xml:"TIME_ORDER"`
	Tiers []struct {
		ID          string `xml:"TIER_ID,attr"`
		Annotations []struct {
			Alignable struct {
				Ref1  string `xml:"TIME_SLOT_REF1,attr"`
				Ref2  string `xml:"TIME_SLOT_REF2,attr"`
				Value string `xml:"ANNOTATION_VALUE"`
			} `xml:"ALIGNABLE_ANNOTATION"`
		} `xml:"ANNOTATION"`
	} `xml:"TIER"`
}

// FromEAF converts an ELAN .eaf file into canonical rows. Time values
// in EAF are milliseconds.
func FromEAF(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read EAF file: %w", err)
	}

	var doc eafDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse EAF XML: %w", err)
	}

	slots := make(map[string]float64, len(doc.TimeOrder.Slots))
	for _, slot := range doc.TimeOrder.Slots {
		ms, err := strconv.ParseFloat(slot.Value, 64)
		if err != nil {
			return nil, &ValidationError{Label: "eaf", Reason: fmt.Sprintf(
				"time slot %s has non-numeric value %q", slot.ID, slot.Value)}
		}
		slots[slot.ID] = ms / 1000.0
	}

	rows := make([]Row, 0)
	lineNo := 0
	for _, tier := range doc.Tiers {
		for _, ann := range tier.Annotations {
			al := ann.Alignable
			if al.Ref1 == "" && al.Ref2 == "" {
				// reference annotations have no direct time slots
				continue
			}
			lineNo++
			start, ok1 := slots[al.Ref1]
			end, ok2 := slots[al.Ref2]
			if !ok1 || !ok2 {
				return nil, &ValidationError{Label: "eaf", Line: lineNo, Reason: fmt.Sprintf(
					"annotation references unknown time slot %q/%q", al.Ref1, al.Ref2)}
			}
			row, err := buildRow("eaf", lineNo, []string{
				tier.ID,
				strconv.FormatFloat(start, 'f', -1, 64),
				strconv.FormatFloat(end, 'f', -1, 64),
				al.Value,
			})
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}

	// EAF annotation order is not guaranteed to be chronological.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Tier != rows[j].Tier {
			return rows[i].Tier < rows[j].Tier
		}
		return rows[i].Start < rows[j].Start
	})
	return rows, nil
}
