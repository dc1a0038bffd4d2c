package dict

import (
	"fmt"
	"os"
	"path/filepath"
)

// LanguageFiles resolves the filesystem layout of one language's
// alignment resources under the admin root. Everything is keyed by the
// language code.
type LanguageFiles struct {
	Root string
	Code string
}

func NewLanguageFiles(root, code string) LanguageFiles {
	return LanguageFiles{Root: root, Code: code}
}

func (l LanguageFiles) dir() string {
	return filepath.Join(l.Root, l.Code)
}

// Dictionary is the base pronunciation dictionary (word⇥phones, one
// entry per line).
func (l LanguageFiles) Dictionary() string {
	return filepath.Join(l.dir(), l.Code+".dict")
}

// ComplexDictionary is the phonetically richer variant used for the
// IPA/complex-phone output tree.
func (l LanguageFiles) ComplexDictionary() string {
	return filepath.Join(l.dir(), l.Code+"_complex.dict")
}

// KnownWordsJSON is the derived word→true index; regenerable from the
// dictionary at any time.
func (l LanguageFiles) KnownWordsJSON() string {
	return filepath.Join(l.dir(), l.Code+"_words.json")
}

// PhoneMapJSON is the complex→simple phone mapping table.
func (l LanguageFiles) PhoneMapJSON() string {
	return filepath.Join(l.dir(), l.Code+"_phonemap.json")
}

// IPAMapJSON is the phone→IPA substitution table.
func (l LanguageFiles) IPAMapJSON() string {
	return filepath.Join(l.dir(), l.Code+"_ipa.json")
}

// InventoryJSON declares the closed phone set valid for the language.
func (l LanguageFiles) InventoryJSON() string {
	return filepath.Join(l.dir(), l.Code+"_phones.json")
}

// AcousticModel is the model archive handed to the aligner.
func (l LanguageFiles) AcousticModel() string {
	return filepath.Join(l.dir(), l.Code+".zip")
}

// UserDictionary is a per-user pronunciation override file.
func (l LanguageFiles) UserDictionary(userID string) string {
	return filepath.Join(l.Root, "users", userID, l.Code+".dict")
}

// UserWordsJSON is the derived word index of a user dictionary.
func (l LanguageFiles) UserWordsJSON(userID string) string {
	return filepath.Join(l.Root, "users", userID, l.Code+"_words.json")
}

// CheckAlignable verifies the hard preconditions for alignment: the
// base dictionary and the acoustic model must exist. A miss is a
// non-retryable task failure.
func (l LanguageFiles) CheckAlignable() error {
	if _, err := os.Stat(l.Dictionary()); err != nil {
		return fmt.Errorf("language %s has no dictionary: %w", l.Code, err)
	}
	if _, err := os.Stat(l.AcousticModel()); err != nil {
		return fmt.Errorf("language %s has no acoustic model: %w", l.Code, err)
	}
	return nil
}
