package dict

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLanguage(t *testing.T, root, code, wordsJSON string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, code), 0755))
	require.NoError(t, os.WriteFile(
		NewLanguageFiles(root, code).KnownWordsJSON(), []byte(wordsJSON), 0644))
}

func TestCache_KnownWords(t *testing.T) {
	root := t.TempDir()
	seedLanguage(t, root, "eng", `{"the":true,"sat":true}`)

	cache := NewCache(root)
	set := cache.KnownWords("eng")
	assert.True(t, set.Contains("the"))
	assert.False(t, set.Contains("cat"))
}

func TestCache_MissingIndexDegradesToEmpty(t *testing.T) {
	cache := NewCache(t.TempDir())

	set := cache.KnownWords("und")
	assert.Empty(t, set)
}

func TestCache_MemoizesUntilReset(t *testing.T) {
	root := t.TempDir()
	seedLanguage(t, root, "eng", `{"before":true}`)

	cache := NewCache(root)
	assert.True(t, cache.KnownWords("eng").Contains("before"))

	// rewrite the backing file; the cached set must keep serving
	seedLanguage(t, root, "eng", `{"after":true}`)
	assert.True(t, cache.KnownWords("eng").Contains("before"))
	assert.False(t, cache.KnownWords("eng").Contains("after"))

	cache.Reset()
	assert.True(t, cache.KnownWords("eng").Contains("after"))
}

func TestCache_UserWords(t *testing.T) {
	root := t.TempDir()
	files := NewLanguageFiles(root, "eng")
	require.NoError(t, os.MkdirAll(filepath.Dir(files.UserWordsJSON("user-1")), 0755))
	require.NoError(t, os.WriteFile(files.UserWordsJSON("user-1"), []byte(`{"zyx":true}`), 0644))

	cache := NewCache(root)

	set, ok := cache.UserWords("user-1", "eng")
	require.True(t, ok)
	assert.True(t, set.Contains("zyx"))

	// absence is memoized too
	_, ok = cache.UserWords("user-2", "eng")
	assert.False(t, ok)
	_, ok = cache.UserWords("user-2", "eng")
	assert.False(t, ok)
}

func TestCheckAlignable(t *testing.T) {
	root := t.TempDir()
	files := NewLanguageFiles(root, "eng")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "eng"), 0755))

	assert.Error(t, files.CheckAlignable(), "no dictionary, no model")

	require.NoError(t, os.WriteFile(files.Dictionary(), []byte("cat\tk ae t\n"), 0644))
	assert.Error(t, files.CheckAlignable(), "model still missing")

	require.NoError(t, os.WriteFile(files.AcousticModel(), []byte("zip"), 0644))
	assert.NoError(t, files.CheckAlignable())
}
