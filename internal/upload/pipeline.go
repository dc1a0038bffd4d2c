package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/openphon/alignd/internal/align"
	"github.com/openphon/alignd/internal/analyze"
	"github.com/openphon/alignd/internal/config"
	"github.com/openphon/alignd/internal/convert"
	"github.com/openphon/alignd/internal/dict"
	"github.com/openphon/alignd/internal/langid"
	"github.com/openphon/alignd/internal/tasks"
	"github.com/openphon/alignd/internal/textgrid"
	"github.com/openphon/alignd/pkg/file"
	"github.com/openphon/alignd/pkg/log"
)

// heldDirName holds backup copies of original transcripts inside the
// task directory; excluded from discovery so retries stay idempotent.
const heldDirName = "held"

// MissingWordsName is the per-task missing-word list the upload
// analysis writes, one word per line.
const MissingWordsName = "missing_words.txt"

// uploadGroup is one discovered audio/transcript pair.
type uploadGroup struct {
	key        string
	audio      string
	transcript string
}

// Pipeline validates and normalizes a freshly uploaded task: discovers
// its files, converts transcripts to TextGrid, resolves the language,
// and records the missing-word analysis.
type Pipeline struct {
	Store    tasks.Store
	Cache    *dict.Cache
	Detector *langid.Detector
	Cfg      *config.Config
}

func NewPipeline(store tasks.Store, cache *dict.Cache, detector *langid.Detector,
	cfg *config.Config) *Pipeline {
	return &Pipeline{Store: store, Cache: cache, Detector: detector, Cfg: cfg}
}

// Process runs the upload analysis for one task. A transcript whose
// conversion fails is logged and skipped; the task fails only when no
// usable group remains.
func (p *Pipeline) Process(ctx context.Context, task *tasks.Task) error {
	groups, err := p.discover(task)
	if err != nil {
		return err
	}

	recorded, err := p.recordedFiles(ctx, task.ID)
	if err != nil {
		return err
	}

	var (
		sizeBytes int64
		wordCount int
		tierCount int
		duration  float64
		missing   = make(dict.Set)
		resolved  = task.Language
		processed = 0
	)
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}

		originalName := filepath.Base(group.transcript)
		doc, transcript, err := p.normalizeTranscript(ctx, task, group, recorded)
		if err != nil {
			log.Warn("Task %s: skipping group %q: %v", task.ID, group.key, err)
			continue
		}
		group.transcript = transcript

		result := analyze.ProcessDocument(doc, resolved, task.Owner, p.Cache, p.Detector)
		if resolved == "" {
			resolved = result.ResolvedLanguage
			if result.WasSuggested {
				log.Info("Task %s: detected language %s", task.ID, resolved)
			}
		}

		wordCount += result.WordCount
		for word := range result.MissingWords {
			missing[word] = struct{}{}
		}
		if result.TierCount > tierCount {
			tierCount = result.TierCount
		}
		duration += doc.XMax - doc.XMin
		sizeBytes += fileSize(group.audio) + fileSize(group.transcript)

		if err := p.recordGroup(ctx, task.ID, group, originalName, recorded); err != nil {
			return err
		}
		processed++
	}
	if processed == 0 {
		return &align.StageError{Stage: "upload", Retryable: false,
			Err: fmt.Errorf("no usable audio/transcript group in %s", task.Dir)}
	}

	if err := analyze.WriteMissingFile(filepath.Join(task.Dir, MissingWordsName), missing); err != nil {
		return fmt.Errorf("task %s: %w", task.ID, err)
	}

	fields := tasks.Fields{
		SizeBytes:    &sizeBytes,
		WordCount:    &wordCount,
		TierCount:    &tierCount,
		Duration:     &duration,
		MissingCount: intPtr(len(missing)),
	}
	if resolved != task.Language {
		fields.Language = &resolved
	}
	if err := p.Store.UpdateTask(ctx, task.ID, fields); err != nil {
		return fmt.Errorf("task %s: %w", task.ID, err)
	}
	return nil
}

// discover walks the task directory for audio and transcript files,
// enforces the size limit, and pairs the halves by base key. A key
// holding both a raw transcript and a TextGrid keeps the TextGrid: a
// retried task has already converted it.
func (p *Pipeline) discover(task *tasks.Task) ([]uploadGroup, error) {
	paths, err := doublestar.FilepathGlob(filepath.Join(task.Dir, "**", "*.*"))
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", task.ID, err)
	}

	byKey := make(map[string]*uploadGroup)
	for _, path := range paths {
		rel, err := filepath.Rel(task.Dir, path)
		if err != nil || strings.HasPrefix(rel, heldDirName+string(filepath.Separator)) {
			continue
		}
		if filepath.Base(path) == MissingWordsName {
			continue
		}

		ext := strings.ToLower(filepath.Ext(path))
		isAudio := ext == ".wav"
		isGrid := ext == ".textgrid"
		isRaw := ext == ".eaf" || ext == ".tsv" || ext == ".txt" || ext == ".xlsx"
		if !isAudio && !isGrid && !isRaw {
			continue
		}

		if size := fileSize(path); size > p.Cfg.Storage.MaxUploadBytes {
			return nil, &align.StageError{Stage: "upload", Retryable: false,
				Err: fmt.Errorf("%s exceeds the %d byte upload limit", path, p.Cfg.Storage.MaxUploadBytes)}
		}

		key := file.BaseKey(path)
		group, ok := byKey[key]
		if !ok {
			group = &uploadGroup{key: key}
			byKey[key] = group
		}
		switch {
		case isAudio:
			group.audio = path
		case isGrid:
			group.transcript = path
		case group.transcript == "" || strings.ToLower(filepath.Ext(group.transcript)) != ".textgrid":
			group.transcript = path
		}
	}

	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	groups := make([]uploadGroup, 0, len(keys))
	for _, key := range keys {
		group := byKey[key]
		if group.audio == "" || group.transcript == "" {
			return nil, &align.StageError{Stage: "upload", Retryable: false,
				Err: fmt.Errorf("file group %q is missing its audio or transcript half", key)}
		}
		groups = append(groups, *group)
	}
	if len(groups) == 0 {
		return nil, &align.StageError{Stage: "upload", Retryable: false,
			Err: fmt.Errorf("task directory %s holds no alignable files", task.Dir)}
	}
	return groups, nil
}

// normalizeTranscript converts a non-TextGrid transcript to TextGrid,
// keeping a held backup of the original, and returns the parsed
// document plus the TextGrid path.
func (p *Pipeline) normalizeTranscript(ctx context.Context, task *tasks.Task,
	group uploadGroup, recorded map[string]bool) (*textgrid.Document, string, error) {

	ext := strings.ToLower(filepath.Ext(group.transcript))
	if ext == ".textgrid" {
		doc, err := textgrid.ParseFile(group.transcript)
		return doc, group.transcript, err
	}

	heldPath := filepath.Join(task.Dir, heldDirName, filepath.Base(group.transcript))
	if err := file.Copy(group.transcript, heldPath); err != nil {
		return nil, "", err
	}
	if !recorded[group.key+":"+string(tasks.RoleHeld)] {
		err := p.Store.AddTaskFile(ctx, &tasks.TaskFile{
			TaskID: task.ID, FileKey: group.key, Role: tasks.RoleHeld,
			Path: heldPath, SizeBytes: fileSize(heldPath),
		})
		if err != nil {
			return nil, "", err
		}
		recorded[group.key+":"+string(tasks.RoleHeld)] = true
	}

	var (
		rows []convert.Row
		err  error
	)
	switch ext {
	case ".eaf":
		rows, err = convert.FromEAF(group.transcript)
	case ".tsv", ".txt":
		rows, err = convert.FromTSV(group.transcript)
	case ".xlsx":
		rows, err = convert.FromXLSX(group.transcript)
	default:
		err = fmt.Errorf("unsupported transcript format %q", ext)
	}
	if err != nil {
		return nil, "", err
	}

	doc := convert.BuildTextGrid(rows)
	gridPath := filepath.Join(filepath.Dir(group.transcript), group.key+".TextGrid")
	if err := textgrid.WriteFile(gridPath, doc); err != nil {
		return nil, "", err
	}
	return doc, gridPath, nil
}

// recordGroup persists the group's file records and the original-name
// mapping, skipping records a previous attempt already wrote.
func (p *Pipeline) recordGroup(ctx context.Context, taskID string, group uploadGroup,
	originalName string, recorded map[string]bool) error {

	entries := []struct {
		role tasks.FileRole
		path string
	}{
		{tasks.RoleAudio, group.audio},
		{tasks.RoleTranscript, group.transcript},
	}
	for _, entry := range entries {
		marker := group.key + ":" + string(entry.role)
		if recorded[marker] {
			continue
		}
		err := p.Store.AddTaskFile(ctx, &tasks.TaskFile{
			TaskID: taskID, FileKey: group.key, Role: entry.role,
			Path: entry.path, SizeBytes: fileSize(entry.path),
		})
		if err != nil {
			return err
		}
		recorded[marker] = true
	}

	// The name mapping is written once; a retry that already converted
	// the transcript must not overwrite the user's original name.
	nameMarker := group.key + ":name"
	if recorded[nameMarker] {
		return nil
	}
	err := p.Store.PutFileName(ctx, &tasks.TaskFileName{
		TaskID:       taskID,
		FileKey:      group.key,
		OriginalName: originalName,
	})
	if err == nil {
		recorded[nameMarker] = true
	}
	return err
}

// recordedFiles indexes already-persisted (key, role) pairs so a
// retried upload does not duplicate file records.
func (p *Pipeline) recordedFiles(ctx context.Context, taskID string) (map[string]bool, error) {
	files, err := p.Store.GetTaskFiles(ctx, taskID)
	if err != nil {
		return nil, err
	}
	recorded := make(map[string]bool, len(files))
	for _, f := range files {
		recorded[f.FileKey+":"+string(f.Role)] = true
	}

	names, err := p.Store.GetFileNames(ctx, taskID)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		recorded[name.FileKey+":name"] = true
	}
	return recorded, nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func intPtr(v int) *int { return &v }
