package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/openphon/alignd/internal/tasks"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

const taskColumns = `id, owner, language, engine, status, dir, size_bytes, word_count, missing_count,
	tier_count, duration, pid, pre_error, download_path, created_at, updated_at, aligned_at, deleted_at`

func (s *SQLiteStore) CreateTask(ctx context.Context, task *tasks.Task) error {
	if task == nil {
		return fmt.Errorf("task is nil")
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Owner,
		task.Language,
		task.Engine,
		string(task.Status),
		task.Dir,
		task.SizeBytes,
		task.WordCount,
		task.MissingCount,
		task.TierCount,
		task.Duration,
		task.PID,
		task.PreError,
		task.DownloadPath,
		task.CreatedAt,
		task.UpdatedAt,
		task.AlignedAt,
		task.DeletedAt,
	)
	return err
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*tasks.Task, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`,
		id,
	)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s not found", id)
	}
	return task, err
}

func (s *SQLiteStore) FindTasksByStatus(ctx context.Context, status tasks.Status) ([]*tasks.Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+taskColumns+`
		 FROM tasks
		 WHERE status = ? AND deleted_at IS NULL
		 ORDER BY created_at ASC`,
		string(status),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*tasks.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, fields tasks.Fields) error {
	sets := make([]string, 0, 12)
	args := make([]any, 0, 12)

	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if fields.Status != nil {
		add("status", string(*fields.Status))
	}
	if fields.Language != nil {
		add("language", *fields.Language)
	}
	if fields.SizeBytes != nil {
		add("size_bytes", *fields.SizeBytes)
	}
	if fields.WordCount != nil {
		add("word_count", *fields.WordCount)
	}
	if fields.MissingCount != nil {
		add("missing_count", *fields.MissingCount)
	}
	if fields.TierCount != nil {
		add("tier_count", *fields.TierCount)
	}
	if fields.Duration != nil {
		add("duration", *fields.Duration)
	}
	if fields.PID != nil {
		add("pid", *fields.PID)
	}
	if fields.PreError != nil {
		add("pre_error", *fields.PreError)
	}
	if fields.DownloadPath != nil {
		add("download_path", *fields.DownloadPath)
	}
	if fields.AlignedAt != nil {
		add("aligned_at", *fields.AlignedAt)
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now().UTC())

	args = append(args, id)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// ClaimTask flips the status only when the task is still in the expected
// state, so concurrent worker processes cannot both win the same task.
func (s *SQLiteStore) ClaimTask(ctx context.Context, id string, from, to tasks.Status) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND deleted_at IS NULL`,
		string(to),
		time.Now().UTC(),
		id,
		string(from),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *SQLiteStore) SoftDeleteTask(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, id,
	)
	return err
}

func (s *SQLiteStore) ExpireTasksBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = ?, updated_at = ?
		 WHERE status IN (?, ?) AND created_at <= ? AND deleted_at IS NULL`,
		string(tasks.StatusExpired),
		time.Now().UTC(),
		string(tasks.StatusUploaded),
		string(tasks.StatusAligned),
		cutoff.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) AddTaskFile(ctx context.Context, file *tasks.TaskFile) error {
	if file == nil {
		return fmt.Errorf("file is nil")
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO task_files (task_id, file_key, role, path, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		file.TaskID,
		file.FileKey,
		string(file.Role),
		file.Path,
		file.SizeBytes,
		file.CreatedAt,
	)
	if err != nil {
		return err
	}
	file.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) GetTaskFiles(ctx context.Context, taskID string) ([]*tasks.TaskFile, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, task_id, file_key, role, path, size_bytes, created_at
		 FROM task_files
		 WHERE task_id = ?
		 ORDER BY file_key ASC, role ASC`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*tasks.TaskFile, 0)
	for rows.Next() {
		var item tasks.TaskFile
		var role string
		if err := rows.Scan(
			&item.ID,
			&item.TaskID,
			&item.FileKey,
			&role,
			&item.Path,
			&item.SizeBytes,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.Role = tasks.FileRole(role)
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) PutFileName(ctx context.Context, name *tasks.TaskFileName) error {
	if name == nil {
		return fmt.Errorf("name is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO task_file_names (task_id, file_key, original_name)
		 VALUES (?, ?, ?)
		 ON CONFLICT(task_id, file_key) DO UPDATE SET
			original_name=excluded.original_name`,
		name.TaskID,
		name.FileKey,
		name.OriginalName,
	)
	return err
}

func (s *SQLiteStore) GetFileNames(ctx context.Context, taskID string) ([]*tasks.TaskFileName, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT task_id, file_key, original_name
		 FROM task_file_names
		 WHERE task_id = ?
		 ORDER BY file_key ASC`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*tasks.TaskFileName, 0)
	for rows.Next() {
		var item tasks.TaskFileName
		if err := rows.Scan(&item.TaskID, &item.FileKey, &item.OriginalName); err != nil {
			return nil, err
		}
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*tasks.Task, error) {
	var task tasks.Task
	var status string
	var alignedAt sql.NullTime
	var deletedAt sql.NullTime
	if err := row.Scan(
		&task.ID,
		&task.Owner,
		&task.Language,
		&task.Engine,
		&status,
		&task.Dir,
		&task.SizeBytes,
		&task.WordCount,
		&task.MissingCount,
		&task.TierCount,
		&task.Duration,
		&task.PID,
		&task.PreError,
		&task.DownloadPath,
		&task.CreatedAt,
		&task.UpdatedAt,
		&alignedAt,
		&deletedAt,
	); err != nil {
		return nil, err
	}
	task.Status = tasks.Status(status)
	if alignedAt.Valid {
		t := alignedAt.Time
		task.AlignedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		task.DeletedAt = &t
	}
	return &task, nil
}
