package dict

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readMerged(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestMergeDictionaries_UserOverridesBase(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.dict", "cat\t0 1 2\ndog\ta b\n")
	user := writeFile(t, dir, "user.dict", "cat\tk ae t\n")
	out := filepath.Join(dir, "merged.dict")

	require.NoError(t, MergeDictionaries(base, "", user, out))

	lines := readMerged(t, out)
	var catLines []string
	for _, line := range lines {
		if headword(line) == "cat" {
			catLines = append(catLines, line)
		}
	}
	// cat resolves only to the user pronunciation, with no duplicates
	require.Len(t, catLines, 1)
	assert.Equal(t, "cat\tk ae t", catLines[0])
	assert.Contains(t, lines, "dog\ta b")
}

func TestMergeDictionaries_UserOnlyWordsAppended(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.dict", "dog\ta b\n")
	user := writeFile(t, dir, "user.dict", "zebra\tz e b\n")
	out := filepath.Join(dir, "merged.dict")

	require.NoError(t, MergeDictionaries(base, "", user, out))

	lines := readMerged(t, out)
	assert.Contains(t, lines, "zebra\tz e b")
	assert.Contains(t, lines, "dog\ta b")
}

func TestMergeDictionaries_MissingAdditionsIncludedAndDeduped(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.dict", "dog\ta b\n")
	missing := writeFile(t, dir, "missing.dict", "cat\tk ae t\ndog\ta b\n")
	out := filepath.Join(dir, "merged.dict")

	require.NoError(t, MergeDictionaries(base, missing, "", out))

	lines := readMerged(t, out)
	assert.Equal(t, []string{"cat\tk ae t", "dog\ta b"}, lines)
}

func TestMergeDictionaries_OverrideIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.dict", "Cat\t0 1 2\n")
	user := writeFile(t, dir, "user.dict", "cat\tk ae t\n")
	out := filepath.Join(dir, "merged.dict")

	require.NoError(t, MergeDictionaries(base, "", user, out))

	lines := readMerged(t, out)
	require.Len(t, lines, 1)
	assert.Equal(t, "cat\tk ae t", lines[0])
}

func TestMergeDictionaries_SortedOutputNoTempLeftover(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.dict", "zebra\tz\napple\ta\n")
	out := filepath.Join(dir, "merged.dict")

	require.NoError(t, MergeDictionaries(base, "", "", out))

	lines := readMerged(t, out)
	assert.Equal(t, []string{"apple\ta", "zebra\tz"}, lines)

	_, err := os.Stat(out + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be cleaned up")
}

func TestMergeDictionaries_MissingBaseFails(t *testing.T) {
	dir := t.TempDir()
	err := MergeDictionaries(filepath.Join(dir, "nope.dict"), "", "", filepath.Join(dir, "out.dict"))
	assert.Error(t, err)
}

func TestRegenerateKnownWords(t *testing.T) {
	dir := t.TempDir()
	dictPath := writeFile(t, dir, "eng.dict", "The\tdh ah\ncat\tk ae t\n\ncat\tk a t\n")
	jsonPath := filepath.Join(dir, "eng_words.json")

	require.NoError(t, RegenerateKnownWords(dictPath, jsonPath))

	set := loadWordSet(jsonPath)
	assert.True(t, set.Contains("the"), "index keys are lower-cased")
	assert.True(t, set.Contains("cat"))
	assert.False(t, set.Contains("dog"))
}
