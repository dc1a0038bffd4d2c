package textgrid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Parse reads a Praat long-format TextGrid. Only interval tiers are
// kept; point tiers carry no alignable spans and are skipped.
func Parse(r io.Reader) (*Document, error) {
	doc := &Document{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	// state walks item header → tier header → intervals, mirroring the
	// block nesting of the long format.
	state := "document"
	var current Tier
	var interval Interval
	keepTier := true
	sawHeader := false
	sawAnyTier := false

	flushTier := func() {
		if !sawAnyTier {
			return
		}
		if keepTier {
			doc.Tiers = append(doc.Tiers, current)
		}
		current = Tier{}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "File type") || strings.HasPrefix(line, "Object class") {
			if strings.Contains(line, "TextGrid") {
				sawHeader = true
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "item ["):
			if line == "item []:" {
				continue
			}
			if state == "interval" {
				current.Intervals = append(current.Intervals, interval)
			}
			flushTier()
			sawAnyTier = true
			keepTier = true
			state = "tier"

		case strings.HasPrefix(line, "class ="):
			keepTier = strings.Contains(line, "IntervalTier")

		case strings.HasPrefix(line, "name ="):
			current.Name = parseQuoted(line)

		case strings.HasPrefix(line, "intervals ["):
			if state == "interval" {
				current.Intervals = append(current.Intervals, interval)
			}
			interval = Interval{}
			state = "interval"

		case strings.HasPrefix(line, "intervals: size") || strings.HasPrefix(line, "points: size"):
			// counts are redundant with the blocks themselves

		case strings.HasPrefix(line, "xmin ="):
			v, err := parseNumber(line)
			if err != nil {
				return nil, err
			}
			switch state {
			case "document":
				doc.XMin = v
			case "tier":
				current.XMin = v
			case "interval":
				interval.XMin = v
			}

		case strings.HasPrefix(line, "xmax ="):
			v, err := parseNumber(line)
			if err != nil {
				return nil, err
			}
			switch state {
			case "document":
				doc.XMax = v
			case "tier":
				current.XMax = v
			case "interval":
				interval.XMax = v
			}

		case strings.HasPrefix(line, "text ="):
			interval.Text = parseQuoted(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read TextGrid: %w", err)
	}

	if state == "interval" {
		current.Intervals = append(current.Intervals, interval)
	}
	flushTier()

	if !sawHeader {
		return nil, fmt.Errorf("not a TextGrid document")
	}
	return doc, nil
}

// ParseFile opens and parses a TextGrid from disk.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open TextGrid: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// parseNumber extracts the value of a `key = 1.25` line.
func parseNumber(line string) (float64, error) {
	_, raw, ok := strings.Cut(line, "=")
	if !ok {
		return 0, fmt.Errorf("malformed line: %s", line)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in %q: %w", line, err)
	}
	return v, nil
}

// parseQuoted extracts the value of a `key = "some text"` line,
// unescaping Praat's doubled quotes.
func parseQuoted(line string) string {
	first := strings.Index(line, `"`)
	last := strings.LastIndex(line, `"`)
	if first < 0 || last <= first {
		return ""
	}
	return strings.ReplaceAll(line[first+1:last], `""`, `"`)
}
