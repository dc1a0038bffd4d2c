package align

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openphon/alignd/internal/config"
	"github.com/openphon/alignd/internal/engine"
	"github.com/openphon/alignd/internal/persistence"
	"github.com/openphon/alignd/internal/tasks"
	"github.com/openphon/alignd/internal/textgrid"
)

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(rejectStage("validate", "broken")))
	assert.True(t, Retryable(failStage("align_groups", errors.New("exit 1"))))
	assert.True(t, Retryable(errors.New("plain")))
}

func TestGroupFiles(t *testing.T) {
	groups, err := groupFiles([]*tasks.TaskFile{
		{FileKey: "a", Role: tasks.RoleAudio, Path: "/t/a.wav"},
		{FileKey: "a", Role: tasks.RoleTranscript, Path: "/t/a.TextGrid"},
		{FileKey: "a", Role: tasks.RoleHeld, Path: "/t/a.eaf"},
		{FileKey: "b", Role: tasks.RoleTranscript, Path: "/t/b.TextGrid"},
		{FileKey: "b", Role: tasks.RoleAudio, Path: "/t/b.wav"},
	})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "a", groups[0].key)
	assert.Equal(t, "/t/a.wav", groups[0].audio)
	assert.Equal(t, "/t/b.TextGrid", groups[1].transcript)
}

func TestGroupFiles_ImbalanceRejected(t *testing.T) {
	_, err := groupFiles([]*tasks.TaskFile{
		{FileKey: "a", Role: tasks.RoleAudio, Path: "/t/a.wav"},
	})
	assert.Error(t, err)
}

func TestProcessor_ValidateRejectsHalfFormedTask(t *testing.T) {
	proc := &Processor{Cfg: testConfig(t, t.TempDir(), "")}

	err := proc.Process(context.Background(), &tasks.Task{ID: "t1", Engine: "mfa"})
	require.Error(t, err)
	assert.False(t, Retryable(err))

	err = proc.Process(context.Background(), &tasks.Task{
		ID: "t1", Language: "eng", Engine: "htk", Dir: t.TempDir(),
	})
	require.Error(t, err)
	assert.False(t, Retryable(err))
}

func testConfig(t *testing.T, root, binPath string) *config.Config {
	t.Helper()
	cfg, err := config.NewFromEnv(func(c *config.Config) {
		c.Storage.DataRoot = filepath.Join(root, "tasks")
		c.Storage.AdminRoot = filepath.Join(root, "admin")
		c.Storage.OutputRoot = filepath.Join(root, "output")
		if binPath != "" {
			c.Engines.MFAPath = binPath
		}
	})
	require.NoError(t, err)
	return cfg
}

// writeFakeAligner installs a stand-in batch aligner that copies the
// corpus TextGrid to the output directory, shaped like a real engine's
// argv contract.
func writeFakeAligner(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "mfa_align")
	script := "#!/bin/sh\ncp \"$1\"/*.TextGrid \"$4\"/\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestProcessor_EndToEnd(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(t, root, writeFakeAligner(t, root))

	langDir := filepath.Join(cfg.Storage.AdminRoot, "eng")
	require.NoError(t, os.MkdirAll(langDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(langDir, "eng.dict"),
		[]byte("hello\thh ah l ow\nworld\tw er l d\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(langDir, "eng.zip"),
		[]byte("model"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Storage.AdminRoot, "README.txt"),
		[]byte("how to cite\n"), 0644))

	taskDir := filepath.Join(cfg.Storage.DataRoot, "t1")
	require.NoError(t, os.MkdirAll(taskDir, 0755))
	wavPath := filepath.Join(taskDir, "sess01.wav")
	require.NoError(t, os.WriteFile(wavPath, []byte("RIFF"), 0644))
	gridPath := filepath.Join(taskDir, "sess01.TextGrid")
	require.NoError(t, textgrid.WriteFile(gridPath, &textgrid.Document{
		XMax: 2,
		Tiers: []textgrid.Tier{
			{Name: "speaker1", XMax: 2, Intervals: []textgrid.Interval{
				{XMin: 0, XMax: 2, Text: "hello world"},
			}},
		},
	}))

	store, err := persistence.NewSQLiteStore(filepath.Join(root, "alignd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	task := &tasks.Task{
		ID: "t1", Owner: "u1", Language: "eng", Engine: "mfa",
		Status: tasks.StatusProcessing, Dir: taskDir,
	}
	require.NoError(t, store.CreateTask(ctx, task))
	require.NoError(t, store.AddTaskFile(ctx, &tasks.TaskFile{
		TaskID: "t1", FileKey: "sess01", Role: tasks.RoleAudio, Path: wavPath,
	}))
	require.NoError(t, store.AddTaskFile(ctx, &tasks.TaskFile{
		TaskID: "t1", FileKey: "sess01", Role: tasks.RoleTranscript, Path: gridPath,
	}))
	require.NoError(t, store.PutFileName(ctx, &tasks.TaskFileName{
		TaskID: "t1", FileKey: "sess01", OriginalName: "Interview One.TextGrid",
	}))

	proc := NewProcessor(store, engine.Runner{}, cfg)
	require.NoError(t, proc.Process(ctx, task))

	stored, err := store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusCompleted, stored.Status)
	assert.Equal(t, 0, stored.PID)
	require.NotEmpty(t, stored.DownloadPath)

	zr, err := zip.OpenReader(stored.DownloadPath)
	require.NoError(t, err)
	defer zr.Close()

	entries := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = true
	}
	assert.True(t, entries["Interview One.TextGrid"], "output named after the uploaded file")
	assert.True(t, entries["README.txt"])

	grid, err := zr.Open("Interview One.TextGrid")
	require.NoError(t, err)
	defer grid.Close()
	doc, err := textgrid.Parse(grid)
	require.NoError(t, err)
	assert.Equal(t, []string{"speaker1 - trans", "speaker1"}, doc.TierNames())
}
