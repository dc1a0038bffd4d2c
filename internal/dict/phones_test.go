package dict

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimplifyLine(t *testing.T) {
	mapping := map[string]string{"ae1": "ae", "dh0": "dh"}

	assert.Equal(t, "cat\tk\tae\tt", SimplifyLine("cat\tk ae1 t", mapping))
	// unmapped phones pass through unchanged
	assert.Equal(t, "dog\td\togg", SimplifyLine("dog d ogg", mapping))
	// a bare word has no phones to rewrite
	assert.Equal(t, "word", SimplifyLine("word", mapping))
}

func TestSimplifyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "missing.dict", "cat\tk ae1 t\nthe\tdh0 ah\n")
	mapping := map[string]string{"ae1": "ae", "dh0": "dh"}

	require.NoError(t, SimplifyFile(path, mapping))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cat\tk\tae\tt\nthe\tdh\tah\n", string(data))
}

func TestLoadPhoneMap(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "map.json",
		`[{"complex":"ae1","simple":"ae"},{"complex":"ih0","simple":"ih"}]`)

	mapping, err := LoadPhoneMap(path)
	require.NoError(t, err)
	assert.Equal(t, "ae", mapping["ae1"])
	assert.Equal(t, "ih", mapping["ih0"])

	_, err = LoadPhoneMap(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)
}

func TestCheckPhones(t *testing.T) {
	dir := t.TempDir()
	inventory := Set{"k": {}, "ae": {}, "t": {}, "dh": {}, "ah": {}}

	valid := writeFile(t, dir, "valid.dict", "cat\tk ae t\n\nthe\tdh ah\n")
	invalid, err := CheckPhones(valid, inventory)
	require.NoError(t, err)
	assert.Empty(t, invalid, "blank lines are skipped, not rejected")

	bad := writeFile(t, dir, "bad.dict", "cat\tk ae t\nxyz\tq zz\n")
	invalid, err = CheckPhones(bad, inventory)
	require.NoError(t, err)
	assert.True(t, invalid.Contains("q"))
	assert.True(t, invalid.Contains("zz"))
	assert.False(t, invalid.Contains("k"))
}

func TestLoadInventory(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "phones.json", `{"phones":["k","ae","t"]}`)

	inv, err := LoadInventory(path)
	require.NoError(t, err)
	assert.True(t, inv.Contains("ae"))
	assert.False(t, inv.Contains("zz"))
}
