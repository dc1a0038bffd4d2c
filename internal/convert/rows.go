package convert

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Row is the canonical 4-column form every source format converts into:
// tier name, start seconds, end seconds, interval text.
type Row struct {
	Tier  string
	Start float64
	End   float64
	Text  string
}

// ValidationError labels a rejected source row so the caller can log it
// and skip the file without aborting the whole batch.
type ValidationError struct {
	Label  string
	Line   int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] row %d: %s", e.Label, e.Line, e.Reason)
}

// parseSeconds accepts decimal-comma values ("1,25") alongside
// decimal-point ones.
func parseSeconds(raw string) (float64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	return strconv.ParseFloat(normalized, 64)
}

// looksLikeHeader reports whether the first row is a header: columns 2-3
// of a payload row must parse as numbers.
func looksLikeHeader(cols []string) bool {
	if len(cols) < 3 {
		return true
	}
	if _, err := parseSeconds(cols[1]); err != nil {
		return true
	}
	if _, err := parseSeconds(cols[2]); err != nil {
		return true
	}
	return false
}

// buildRow validates one payload record: at least 3 columns, numeric
// start/end, end strictly after start.
func buildRow(label string, lineNo int, cols []string) (Row, error) {
	if len(cols) < 3 {
		return Row{}, &ValidationError{Label: label, Line: lineNo,
			Reason: fmt.Sprintf("expected at least 3 columns, got %d", len(cols))}
	}

	start, err := parseSeconds(cols[1])
	if err != nil {
		return Row{}, &ValidationError{Label: label, Line: lineNo,
			Reason: fmt.Sprintf("start %q is not numeric", cols[1])}
	}
	end, err := parseSeconds(cols[2])
	if err != nil {
		return Row{}, &ValidationError{Label: label, Line: lineNo,
			Reason: fmt.Sprintf("end %q is not numeric", cols[2])}
	}
	if end <= start {
		return Row{}, &ValidationError{Label: label, Line: lineNo,
			Reason: fmt.Sprintf("end %v not after start %v", end, start)}
	}

	text := ""
	if len(cols) > 3 {
		text = strings.TrimSpace(cols[3])
	}
	return Row{
		Tier:  strings.TrimSpace(cols[0]),
		Start: start,
		End:   end,
		Text:  text,
	}, nil
}

// FromTSV reads a tab-separated transcription into canonical rows. An
// auto-detected header row is dropped.
func FromTSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open TSV: %w", err)
	}
	defer f.Close()

	label := "tsv"
	rows := make([]Row, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if lineNo == 1 && looksLikeHeader(cols) {
			continue
		}
		row, err := buildRow(label, lineNo, cols)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read TSV: %w", err)
	}
	return rows, nil
}

// WriteTSV writes canonical rows as the 4-column tab-separated
// intermediate format.
func WriteTSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create TSV: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			row.Tier,
			strconv.FormatFloat(row.Start, 'f', -1, 64),
			strconv.FormatFloat(row.End, 'f', -1, 64),
			row.Text)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return nil
}
