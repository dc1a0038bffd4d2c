package file

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "dir/name.TextGrid", ReplaceExt("dir/name.wav", ".TextGrid"))
	assert.Equal(t, "dir/name.tsv", ReplaceExt("dir/name.eaf", "tsv"))
	assert.Equal(t, "name.wav", ReplaceExt("name", ".wav"))
}

func TestBaseKey(t *testing.T) {
	assert.Equal(t, "sess01", BaseKey("/data/tasks/abc/sess01.wav"))
	assert.Equal(t, "sess01", BaseKey("sess01.TextGrid"))
	assert.Equal(t, "sess01", BaseKey("sess01"))
	assert.Equal(t, "archive.tar", BaseKey("archive.tar.gz"))
	assert.Equal(t, ".env", BaseKey(".env"))
}
