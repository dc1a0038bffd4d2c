package engine

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openphon/alignd/internal/convert"
	"github.com/openphon/alignd/internal/textgrid"
	"github.com/openphon/alignd/pkg/file"
)

// BatchAligner is the directory-based batch family:
// <bin> <corpus_dir> <dictionary> <model.zip> <output_dir>
type BatchAligner struct{}

func (BatchAligner) Name() string { return "mfa" }

func (BatchAligner) PrepareInputs(job *AlignJob) error {
	return os.MkdirAll(job.OutputDir, 0755)
}

func (BatchAligner) BuildCommand(job *AlignJob) []string {
	return []string{job.BinPath, job.CorpusDir, job.Dictionary, job.Model, job.OutputDir}
}

// CleanBatchAligner is the batch family's cleaning variant:
// <bin> align --clean <corpus_dir> <dictionary> <model.zip> <output_dir>
type CleanBatchAligner struct{}

func (CleanBatchAligner) Name() string { return "mfa-clean" }

func (CleanBatchAligner) PrepareInputs(job *AlignJob) error {
	return os.MkdirAll(job.OutputDir, 0755)
}

func (CleanBatchAligner) BuildCommand(job *AlignJob) []string {
	return []string{job.BinPath, "align", "--clean", job.CorpusDir, job.Dictionary, job.Model, job.OutputDir}
}

// TSVAligner is the single-file family driven by a speaker/time/text
// TSV intermediate built from the transcript:
// <bin> -d <dict> <wav> <tsv> <output.TextGrid>
type TSVAligner struct{}

func (TSVAligner) Name() string { return "fave" }

func (TSVAligner) PrepareInputs(job *AlignJob) error {
	doc, err := textgrid.ParseFile(job.TextGrid)
	if err != nil {
		return fmt.Errorf("prepare tsv input: %w", err)
	}
	job.TSV = file.ReplaceExt(job.TextGrid, ".tsv")
	return convert.WriteTSV(job.TSV, convert.TextGridToRows(doc))
}

func (TSVAligner) BuildCommand(job *AlignJob) []string {
	out := filepath.Join(job.OutputDir, job.Name+".TextGrid")
	return []string{job.BinPath, "-d", job.Dictionary, job.WAV, job.TSV, out}
}

// PromptAligner is the single-file family whose dictionary wants
// uppercase headwords and space-delimited fields:
// <bin> -d <dict> -w <wav> -t <textgrid> -o <output_dir> -n <name>
type PromptAligner struct{}

func (PromptAligner) Name() string { return "fase" }

func (PromptAligner) PrepareInputs(job *AlignJob) error {
	prepared := file.ReplaceExt(job.Dictionary, ".upper.dict")
	if err := uppercaseDictionary(job.Dictionary, prepared); err != nil {
		return fmt.Errorf("prepare dictionary: %w", err)
	}
	job.Dictionary = prepared
	return os.MkdirAll(job.OutputDir, 0755)
}

func (PromptAligner) BuildCommand(job *AlignJob) []string {
	return []string{
		job.BinPath,
		"-d", job.Dictionary,
		"-w", job.WAV,
		"-t", job.TextGrid,
		"-o", job.OutputDir,
		"-n", job.Name,
	}
}

// uppercaseDictionary rewrites word⇥phones entries as "WORD phone
// phone" with single-space delimiters.
func uppercaseDictionary(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		fields[0] = strings.ToUpper(fields[0])
		fmt.Fprintln(w, strings.Join(fields, " "))
	}
	if err := scanner.Err(); err != nil {
		out.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
