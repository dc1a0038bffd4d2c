package convert

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// FromXLSX converts the first sheet of an Excel workbook into canonical
// rows. Column layout matches the TSV format: tier, start, end, text.
func FromXLSX(path string) ([]Row, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ValidationError{Label: "xlsx", Reason: "workbook has no sheets"}
	}

	records, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	rows := make([]Row, 0, len(records))
	for i, cols := range records {
		if len(cols) == 0 {
			continue
		}
		empty := true
		for _, c := range cols {
			if c != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}
		if i == 0 && looksLikeHeader(cols) {
			continue
		}
		row, err := buildRow("xlsx", i+1, cols)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
