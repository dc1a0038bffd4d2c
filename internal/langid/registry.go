package langid

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/openphon/alignd/pkg/log"
)

// defaultLanguages is the built-in registry used when the admin root
// carries no languages.json. Kept deliberately small; deployments are
// expected to ship their own file.
var defaultLanguages = []Language{
	{Code: "eng"},
	{Code: "nob", Alternatives: []string{"nno"}},
}

// LoadLanguages resolves the active language registry through an
// ordered chain: languages.json under the admin root, then the built-in
// default. Each fallback is logged.
func LoadLanguages(adminRoot string) []Language {
	path := filepath.Join(adminRoot, "languages.json")

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("Language registry %s unavailable, using built-in defaults: %v", path, err)
		return defaultLanguages
	}

	var langs []Language
	if err := json.Unmarshal(data, &langs); err != nil {
		log.Warn("Language registry %s is malformed, using built-in defaults: %v", path, err)
		return defaultLanguages
	}
	if len(langs) == 0 {
		log.Warn("Language registry %s is empty, using built-in defaults", path)
		return defaultLanguages
	}
	return langs
}
