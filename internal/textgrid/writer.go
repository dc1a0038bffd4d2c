package textgrid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Write emits the document in Praat long text format.
func Write(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "File type = \"ooTextFile\"\n")
	fmt.Fprintf(bw, "Object class = \"TextGrid\"\n\n")
	fmt.Fprintf(bw, "xmin = %s\n", formatTime(doc.XMin))
	fmt.Fprintf(bw, "xmax = %s\n", formatTime(doc.XMax))
	fmt.Fprintf(bw, "tiers? <exists>\n")
	fmt.Fprintf(bw, "size = %d\n", len(doc.Tiers))
	fmt.Fprintf(bw, "item []:\n")

	for i, tier := range doc.Tiers {
		fmt.Fprintf(bw, "    item [%d]:\n", i+1)
		fmt.Fprintf(bw, "        class = \"IntervalTier\"\n")
		fmt.Fprintf(bw, "        name = %s\n", quote(tier.Name))
		fmt.Fprintf(bw, "        xmin = %s\n", formatTime(tier.XMin))
		fmt.Fprintf(bw, "        xmax = %s\n", formatTime(tier.XMax))
		fmt.Fprintf(bw, "        intervals: size = %d\n", len(tier.Intervals))
		for j, iv := range tier.Intervals {
			fmt.Fprintf(bw, "        intervals [%d]:\n", j+1)
			fmt.Fprintf(bw, "            xmin = %s\n", formatTime(iv.XMin))
			fmt.Fprintf(bw, "            xmax = %s\n", formatTime(iv.XMax))
			fmt.Fprintf(bw, "            text = %s\n", quote(iv.Text))
		}
	}

	return bw.Flush()
}

// WriteFile writes the document to disk.
func WriteFile(path string, doc *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create TextGrid: %w", err)
	}
	if err := Write(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatTime(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// quote wraps a value in Praat quoting, doubling embedded quotes.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
