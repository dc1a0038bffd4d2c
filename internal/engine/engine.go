package engine

import "fmt"

// AlignJob carries the inputs for one single-tier alignment invocation.
// Directory-based engines consume CorpusDir; single-file engines consume
// WAV/TextGrid/TSV.
type AlignJob struct {
	BinPath    string
	CorpusDir  string
	Dictionary string
	Model      string
	OutputDir  string
	WAV        string
	TextGrid   string
	TSV        string
	Name       string
}

// Engine abstracts one external aligner family. Each family exposes the
// same two-step contract: prepare any intermediate inputs, then build
// the argv to run. Adding a family means adding an implementation, not
// growing a dispatch chain.
type Engine interface {
	Name() string
	PrepareInputs(job *AlignJob) error
	BuildCommand(job *AlignJob) []string
}

// ForCode resolves an engine identifier stored on a task.
func ForCode(code string) (Engine, error) {
	switch code {
	case "mfa":
		return BatchAligner{}, nil
	case "mfa-clean":
		return CleanBatchAligner{}, nil
	case "fave":
		return TSVAligner{}, nil
	case "fase":
		return PromptAligner{}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q", code)
	}
}
