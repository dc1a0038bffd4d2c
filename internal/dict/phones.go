package dict

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadPhoneMap reads a complex→simple phone mapping table. The file is
// a JSON list of {complex, simple} pairs.
func LoadPhoneMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pairs []struct {
		Complex string `json:"complex"`
		Simple  string `json:"simple"`
	}
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("malformed phone map %s: %w", path, err)
	}

	mapping := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		mapping[pair.Complex] = pair.Simple
	}
	return mapping, nil
}

// SimplifyLine rewrites every phone token of a dictionary line through
// the mapping. The first token is the word and passes untouched, as do
// phones without a table entry.
func SimplifyLine(line string, mapping map[string]string) string {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return line
	}
	for i := 1; i < len(fields); i++ {
		if simple, ok := mapping[fields[i]]; ok {
			fields[i] = simple
		}
	}
	return strings.Join(fields, "\t")
}

// SimplifyFile rewrites all lines of a dictionary file through the
// phone mapping, in place via a temp file.
func SimplifyFile(path string, mapping map[string]string) error {
	lines, err := readLines(path, false)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	w := bufio.NewWriter(f)
	for _, line := range lines {
		fmt.Fprintln(w, SimplifyLine(line, mapping))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadInventory reads the language's declared phone inventory.
func LoadInventory(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var meta struct {
		Phones []string `json:"phones"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("malformed phone inventory %s: %w", path, err)
	}

	set := make(Set, len(meta.Phones))
	for _, phone := range meta.Phones {
		set[phone] = struct{}{}
	}
	return set, nil
}

// CheckPhones validates every phone token of a dictionary against the
// inventory and returns the set of invalid phones. Blank lines are
// skipped, not rejected. Callers must reject the whole file when the
// result is non-empty; partial writes are never allowed.
func CheckPhones(dictPath string, inventory Set) (Set, error) {
	lines, err := readLines(dictPath, false)
	if err != nil {
		return nil, err
	}

	invalid := make(Set)
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		for _, phone := range fields[1:] {
			if !inventory.Contains(phone) {
				invalid[phone] = struct{}{}
			}
		}
	}
	return invalid, nil
}
