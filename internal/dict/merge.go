package dict

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// readLines returns the non-empty lines of a dictionary file. A missing
// optional file yields no lines.
func readLines(path string, optional bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open dictionary %s: %w", path, err)
	}
	defer f.Close()

	lines := make([]string, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dictionary %s: %w", path, err)
	}
	return lines, nil
}

// headword extracts the first whitespace-delimited token, lower-cased.
func headword(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// sortDedupe sorts lines and removes exact duplicates.
func sortDedupe(lines []string) []string {
	sort.Strings(lines)
	out := lines[:0]
	var prev string
	for i, line := range lines {
		if i > 0 && line == prev {
			continue
		}
		out = append(out, line)
		prev = line
	}
	return out
}

// MergeDictionaries produces the single working dictionary handed to
// the aligner: base entries plus this task's missing-pronunciation
// additions, with user pronunciations overriding base ones word for
// word (matched on the first token, case-insensitive) and user-only
// words appended. The output is sorted and deduplicated; the temp file
// is cleaned up on every path.
func MergeDictionaries(basePath, missingPath, userPath, outPath string) error {
	base, err := readLines(basePath, false)
	if err != nil {
		return err
	}
	missing, err := readLines(missingPath, true)
	if err != nil {
		return err
	}

	merged := sortDedupe(append(base, missing...))

	if userPath != "" {
		user, err := readLines(userPath, true)
		if err != nil {
			return err
		}
		if len(user) > 0 {
			overrides := make(map[string]string, len(user))
			order := make([]string, 0, len(user))
			for _, line := range user {
				word := headword(line)
				if word == "" {
					continue
				}
				if _, seen := overrides[word]; !seen {
					order = append(order, word)
				}
				overrides[word] = line
			}

			replaced := make(map[string]bool, len(overrides))
			out := merged[:0]
			for _, line := range merged {
				word := headword(line)
				if override, ok := overrides[word]; ok {
					if !replaced[word] {
						out = append(out, override)
						replaced[word] = true
					}
					continue
				}
				out = append(out, line)
			}
			for _, word := range order {
				if !replaced[word] {
					out = append(out, overrides[word])
				}
			}
			merged = sortDedupe(out)
		}
	}

	tmp := outPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create merged dictionary: %w", err)
	}
	defer os.Remove(tmp)

	w := bufio.NewWriter(f)
	for _, line := range merged {
		fmt.Fprintln(w, line)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, outPath)
}

// RegenerateKnownWords re-derives the word→true index from a
// pronunciation dictionary. The index is a cache; the dictionary stays
// the source of truth.
func RegenerateKnownWords(dictPath, jsonPath string) error {
	lines, err := readLines(dictPath, false)
	if err != nil {
		return err
	}

	words := make(map[string]bool, len(lines))
	for _, line := range lines {
		if word := headword(line); word != "" {
			words[word] = true
		}
	}

	data, err := json.Marshal(words)
	if err != nil {
		return err
	}
	return os.WriteFile(jsonPath, data, 0644)
}
