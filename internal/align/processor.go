package align

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openphon/alignd/internal/config"
	"github.com/openphon/alignd/internal/dict"
	"github.com/openphon/alignd/internal/engine"
	"github.com/openphon/alignd/internal/tasks"
	"github.com/openphon/alignd/internal/textgrid"
	"github.com/openphon/alignd/pkg/file"
	"github.com/openphon/alignd/pkg/log"
)

// tierParallelism bounds concurrent aligner subprocesses within one
// task. Cross-task concurrency is the worker pool's job.
const tierParallelism = 2

// missingDictName is the per-task missing-pronunciation file. The web
// layer writes it into the task directory once users have supplied
// pronunciations for the words the upload analysis reported missing.
const missingDictName = "missing.dict"

// Processor runs one task through the full alignment lifecycle:
// validate, prepare dictionaries, align every tier of every file group,
// merge and substitute output tiers, package the deliverable.
type Processor struct {
	Store  tasks.Store
	Runner engine.Runner
	Cfg    *config.Config
}

func NewProcessor(store tasks.Store, runner engine.Runner, cfg *config.Config) *Processor {
	return &Processor{Store: store, Runner: runner, Cfg: cfg}
}

// fileGroup is one audio/transcript pair sharing a file key.
type fileGroup struct {
	key        string
	audio      string
	transcript string
}

// groupResult carries one group's per-tier aligner output between the
// align and output-building stages.
type groupResult struct {
	group   fileGroup
	source  *textgrid.Document
	simple  []*textgrid.Document
	complex []*textgrid.Document
}

// taskRun is the working state of one Process invocation.
type taskRun struct {
	task   *tasks.Task
	eng    engine.Engine
	groups []fileGroup
	lang   dict.LanguageFiles

	tmpDir string
	outDir string

	// raw vs simplified copies of the task's missing-pronunciation
	// file and the user dictionary; the complex merge keeps the
	// original phones, the simple merge gets the simplified ones.
	missingRaw    string
	missingSimple string
	userRaw       string
	userSimple    string

	mergedDict    string
	mergedComplex string
	ipaMap        map[string]string

	results      []*groupResult
	downloadPath string
}

// Process executes every stage for one task. Temp state is always
// removed, success or failure. The final stage writes the completed
// status together with the download path.
func (p *Processor) Process(ctx context.Context, task *tasks.Task) error {
	run := &taskRun{task: task}
	if err := p.validate(ctx, run); err != nil {
		return err
	}

	run.tmpDir = filepath.Join(os.TempDir(), "alignd-"+uuid.NewString())
	run.outDir = filepath.Join(run.tmpDir, "output")
	if err := os.MkdirAll(run.outDir, 0755); err != nil {
		return failStage("prepare_support", err)
	}
	defer os.RemoveAll(run.tmpDir)

	stages := []struct {
		name string
		fn   func(context.Context, *taskRun) error
	}{
		{"prepare_support", p.prepareSupport},
		{"prepare_dictionaries", p.prepareDictionaries},
		{"align_groups", p.alignGroups},
		{"build_outputs", p.buildOutputs},
		{"pack", p.pack},
		{"complete", p.complete},
	}
	for _, stage := range stages {
		if err := stage.fn(ctx, run); err != nil {
			log.Error("Task %s failed in stage %s: %v", task.ID, stage.name, err)
			return err
		}
	}
	return nil
}

// validate checks the data-integrity preconditions. Any miss is
// non-retryable: retrying cannot repair a half-formed task record.
func (p *Processor) validate(ctx context.Context, run *taskRun) error {
	task := run.task
	if task.ID == "" || task.Language == "" || task.Engine == "" {
		return rejectStage("validate", "task is missing id, language or engine")
	}

	eng, err := engine.ForCode(task.Engine)
	if err != nil {
		return rejectStage("validate", "task %s: %v", task.ID, err)
	}
	run.eng = eng

	info, err := os.Stat(task.Dir)
	if err != nil || !info.IsDir() {
		return rejectStage("validate", "task %s has no working directory %s", task.ID, task.Dir)
	}

	files, err := p.Store.GetTaskFiles(ctx, task.ID)
	if err != nil {
		return failStage("validate", err)
	}
	if len(files) == 0 {
		return rejectStage("validate", "task %s has no file records", task.ID)
	}

	groups, err := groupFiles(files)
	if err != nil {
		return rejectStage("validate", "task %s: %v", task.ID, err)
	}
	run.groups = groups
	return nil
}

// groupFiles pairs audio and transcript records by shared file key.
// Any key lacking one half of the pair is a validation failure.
func groupFiles(files []*tasks.TaskFile) ([]fileGroup, error) {
	byKey := make(map[string]*fileGroup)
	order := make([]string, 0)
	for _, f := range files {
		if f.Role != tasks.RoleAudio && f.Role != tasks.RoleTranscript {
			continue
		}
		group, ok := byKey[f.FileKey]
		if !ok {
			group = &fileGroup{key: f.FileKey}
			byKey[f.FileKey] = group
			order = append(order, f.FileKey)
		}
		if f.Role == tasks.RoleAudio {
			group.audio = f.Path
		} else {
			group.transcript = f.Path
		}
	}

	groups := make([]fileGroup, 0, len(order))
	for _, key := range order {
		group := byKey[key]
		if group.audio == "" || group.transcript == "" {
			return nil, fmt.Errorf("file group %q is missing its audio or transcript half", key)
		}
		groups = append(groups, *group)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no audio/transcript pairs found")
	}
	return groups, nil
}

// prepareSupport resolves the language resources and stages per-task
// dictionary inputs into the temp workspace, with phone simplification
// applied to the copies the simple merge will consume.
func (p *Processor) prepareSupport(_ context.Context, run *taskRun) error {
	run.lang = dict.NewLanguageFiles(p.Cfg.Storage.AdminRoot, run.task.Language)
	if err := run.lang.CheckAlignable(); err != nil {
		return rejectStage("prepare_support", "%v", err)
	}

	missingSrc := filepath.Join(run.task.Dir, missingDictName)
	if _, err := os.Stat(missingSrc); err == nil {
		run.missingRaw = filepath.Join(run.tmpDir, "missing_raw.dict")
		run.missingSimple = filepath.Join(run.tmpDir, "missing.dict")
		if err := file.Copy(missingSrc, run.missingRaw); err != nil {
			return failStage("prepare_support", err)
		}
		if err := file.Copy(missingSrc, run.missingSimple); err != nil {
			return failStage("prepare_support", err)
		}
	}

	userSrc := run.lang.UserDictionary(run.task.Owner)
	if _, err := os.Stat(userSrc); err == nil {
		run.userRaw = filepath.Join(run.tmpDir, "user_raw.dict")
		run.userSimple = filepath.Join(run.tmpDir, "user.dict")
		if err := file.Copy(userSrc, run.userRaw); err != nil {
			return failStage("prepare_support", err)
		}
		if err := file.Copy(userSrc, run.userSimple); err != nil {
			return failStage("prepare_support", err)
		}
	}

	if mapping, err := dict.LoadPhoneMap(run.lang.PhoneMapJSON()); err == nil {
		for _, path := range []string{run.missingSimple, run.userSimple} {
			if path == "" {
				continue
			}
			if err := dict.SimplifyFile(path, mapping); err != nil {
				return failStage("prepare_support", err)
			}
		}
	} else if !os.IsNotExist(err) {
		return failStage("prepare_support", err)
	}

	if mapping, err := dict.LoadIPAMap(run.lang.IPAMapJSON()); err == nil {
		run.ipaMap = mapping
	} else if !os.IsNotExist(err) {
		return failStage("prepare_support", err)
	}
	return nil
}

// prepareDictionaries builds the merged working dictionary for the
// aligner and, when the language carries a complex variant, a parallel
// complex merge for the IPA output tree.
func (p *Processor) prepareDictionaries(_ context.Context, run *taskRun) error {
	run.mergedDict = filepath.Join(run.tmpDir, "merged.dict")
	err := dict.MergeDictionaries(run.lang.Dictionary(), run.missingSimple, run.userSimple, run.mergedDict)
	if err != nil {
		return failStage("prepare_dictionaries", err)
	}

	complexDict := run.lang.ComplexDictionary()
	if _, err := os.Stat(complexDict); err == nil && run.ipaMap != nil {
		run.mergedComplex = filepath.Join(run.tmpDir, "merged_complex.dict")
		err := dict.MergeDictionaries(complexDict, run.missingRaw, run.userRaw, run.mergedComplex)
		if err != nil {
			return failStage("prepare_dictionaries", err)
		}
	}
	return nil
}

// alignGroups runs the external aligner per tier per file group, once
// against the simple dictionary and, when available, once against the
// complex one.
func (p *Processor) alignGroups(ctx context.Context, run *taskRun) error {
	for _, group := range run.groups {
		if err := ctx.Err(); err != nil {
			return failStage("align_groups", err)
		}

		doc, err := textgrid.ParseFile(group.transcript)
		if err != nil {
			return rejectStage("align_groups", "transcript %s: %v", group.transcript, err)
		}

		result := &groupResult{group: group, source: doc}
		result.simple, err = p.alignDocument(ctx, run, group, doc, run.mergedDict, "simple")
		if err != nil {
			return err
		}
		if run.mergedComplex != "" {
			result.complex, err = p.alignDocument(ctx, run, group, doc, run.mergedComplex, "complex")
			if err != nil {
				return err
			}
		}
		run.results = append(run.results, result)
	}
	return nil
}

// alignDocument aligns every tier of one transcript, bounded by
// tierParallelism. Any tier failure fails the group, and the group
// failure fails the task.
func (p *Processor) alignDocument(ctx context.Context, run *taskRun, group fileGroup,
	doc *textgrid.Document, dictPath, variant string) ([]*textgrid.Document, error) {

	results := make([]*textgrid.Document, len(doc.Tiers))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(tierParallelism)
	for i := range doc.Tiers {
		i := i
		eg.Go(func() error {
			aligned, err := p.alignTier(egCtx, run, group, doc, i, dictPath, variant)
			if err != nil {
				return err
			}
			results[i] = aligned
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// alignTier stages a single-tier TextGrid plus an audio copy into its
// own corpus directory and hands it to the engine.
func (p *Processor) alignTier(ctx context.Context, run *taskRun, group fileGroup,
	doc *textgrid.Document, tierIdx int, dictPath, variant string) (*textgrid.Document, error) {

	tierDir := filepath.Join(run.tmpDir, "work", variant, group.key, fmt.Sprintf("tier%02d", tierIdx))
	workOut := filepath.Join(tierDir, "out")
	if err := os.MkdirAll(workOut, 0755); err != nil {
		return nil, failStage("align_groups", err)
	}

	single := &textgrid.Document{
		XMin:  doc.XMin,
		XMax:  doc.XMax,
		Tiers: []textgrid.Tier{doc.Tiers[tierIdx]},
	}
	gridPath := filepath.Join(tierDir, group.key+".TextGrid")
	if err := textgrid.WriteFile(gridPath, single); err != nil {
		return nil, failStage("align_groups", err)
	}
	audioPath := filepath.Join(tierDir, group.key+".wav")
	if err := file.Copy(group.audio, audioPath); err != nil {
		return nil, failStage("align_groups", err)
	}

	// Each tier works on its own dictionary copy: some engine families
	// rewrite the dictionary during prepare, and tiers run concurrently.
	dictCopy := filepath.Join(tierDir, filepath.Base(dictPath))
	if err := file.Copy(dictPath, dictCopy); err != nil {
		return nil, failStage("align_groups", err)
	}

	job := &engine.AlignJob{
		BinPath:    p.Cfg.Engines.BinPath(run.task.Engine),
		CorpusDir:  tierDir,
		Dictionary: dictCopy,
		Model:      run.lang.AcousticModel(),
		OutputDir:  workOut,
		WAV:        audioPath,
		TextGrid:   gridPath,
		Name:       group.key,
	}

	// Concurrent tiers overwrite each other's pid record; any one of
	// them is enough for external cancellation to find a live process.
	onStart := func(pid int) {
		if err := p.Store.UpdateTask(ctx, run.task.ID, tasks.Fields{PID: &pid}); err != nil {
			log.Warn("Failed to record pid %d for task %s: %v", pid, run.task.ID, err)
		}
	}
	started := time.Now()
	if err := p.Runner.Run(ctx, run.eng, job, onStart); err != nil {
		return nil, failStage("align_groups", err)
	}
	p.collectEngineLogs(run, group, tierIdx, variant, workOut, started)

	aligned, err := textgrid.ParseFile(filepath.Join(workOut, group.key+".TextGrid"))
	if err != nil {
		return nil, failStage("align_groups", fmt.Errorf("aligner produced no readable output for %s tier %d: %w",
			group.key, tierIdx, err))
	}
	return aligned, nil
}

// collectEngineLogs copies log files the aligner dropped during the run
// into the deliverable's logs directory. Best effort.
func (p *Processor) collectEngineLogs(run *taskRun, group fileGroup, tierIdx int,
	variant, workOut string, started time.Time) {

	recent, err := file.FindRecentAfter(workOut, started)
	if err != nil {
		return
	}
	for _, path := range recent {
		if strings.ToLower(filepath.Ext(path)) != ".log" {
			continue
		}
		dst := filepath.Join(run.outDir, "logs",
			fmt.Sprintf("%s-%s-tier%02d-%s", variant, group.key, tierIdx, filepath.Base(path)))
		if err := file.Copy(path, dst); err != nil {
			log.Warn("Failed to keep aligner log %s: %v", path, err)
		}
	}
}

// buildOutputs merges each group's per-tier aligner output back into
// one multi-tier document and writes the phonetic tree, plus the IPA
// tree when the language carries a substitution table.
func (p *Processor) buildOutputs(ctx context.Context, run *taskRun) error {
	names := p.originalNames(ctx, run.task.ID)

	for _, result := range run.results {
		base := result.group.key
		if original, ok := names[result.group.key]; ok {
			base = strings.TrimSuffix(original, filepath.Ext(original))
		}

		merged := &textgrid.Document{}
		for i, tier := range result.source.Tiers {
			mergeAligned(merged, tier, result.simple[i])
		}
		if err := textgrid.WriteFile(filepath.Join(run.outDir, base+".TextGrid"), merged); err != nil {
			return failStage("build_outputs", err)
		}

		if result.complex == nil {
			continue
		}
		complexMerged := &textgrid.Document{}
		for i, tier := range result.source.Tiers {
			mergeAligned(complexMerged, tier, result.complex[i])
		}
		ipaDoc := dict.ApplyIPA(complexMerged, run.ipaMap, func(name string) bool {
			return !IsWordTier(name) && !strings.HasSuffix(name, transSuffix)
		})
		ipaPath := filepath.Join(run.outDir, "ipa", base+".TextGrid")
		if err := os.MkdirAll(filepath.Dir(ipaPath), 0755); err != nil {
			return failStage("build_outputs", err)
		}
		if err := textgrid.WriteFile(ipaPath, ipaDoc); err != nil {
			return failStage("build_outputs", err)
		}
	}
	return nil
}

// originalNames maps file keys back to user-supplied names for the
// deliverable. Failures degrade to internal keys.
func (p *Processor) originalNames(ctx context.Context, taskID string) map[string]string {
	records, err := p.Store.GetFileNames(ctx, taskID)
	if err != nil {
		log.Warn("Failed to load original file names for task %s: %v", taskID, err)
		return nil
	}
	names := make(map[string]string, len(records))
	for _, record := range records {
		names[record.FileKey] = record.OriginalName
	}
	return names
}

// pack zips the output tree, together with the language README and
// citation text and the per-task log when present, into the owner's
// output area.
func (p *Processor) pack(_ context.Context, run *taskRun) error {
	for _, extra := range []string{
		filepath.Join(p.Cfg.Storage.AdminRoot, "README.txt"),
		filepath.Join(p.Cfg.Storage.AdminRoot, "citation.txt"),
		filepath.Join(run.task.Dir, "task.log"),
	} {
		if _, err := os.Stat(extra); err != nil {
			continue
		}
		if err := file.Copy(extra, filepath.Join(run.outDir, filepath.Base(extra))); err != nil {
			return failStage("pack", err)
		}
	}

	zipPath := filepath.Join(p.Cfg.Storage.OutputRoot, run.task.Owner, run.task.ID+".zip")
	if err := packTree(run.outDir, zipPath); err != nil {
		return failStage("pack", err)
	}
	run.downloadPath = zipPath
	return nil
}

// complete records the terminal state: completed status, cleared pid,
// download path. A failed write here is an infrastructure error the
// worker escalates.
func (p *Processor) complete(ctx context.Context, run *taskRun) error {
	status := tasks.StatusCompleted
	pid := 0
	err := p.Store.UpdateTask(ctx, run.task.ID, tasks.Fields{
		Status:       &status,
		PID:          &pid,
		DownloadPath: &run.downloadPath,
	})
	if err != nil {
		return failStage("complete", err)
	}
	log.Info("Task %s completed, deliverable at %s", run.task.ID, run.downloadPath)
	return nil
}
