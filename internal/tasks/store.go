package tasks

import (
	"context"
	"time"
)

// Fields is a sparse update: only non-nil members are written. Updates
// are applied atomically per task.
type Fields struct {
	Status       *Status
	Language     *string
	SizeBytes    *int64
	WordCount    *int
	MissingCount *int
	TierCount    *int
	Duration     *float64
	PID          *int
	PreError     *string
	DownloadPath *string
	AlignedAt    *time.Time
}

// Store is the task persistence contract consumed by the workers and
// processors. Any store with atomic per-task updates satisfies it.
type Store interface {
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, id string) (*Task, error)
	// FindTasksByStatus returns non-deleted tasks in the given status,
	// oldest first.
	FindTasksByStatus(ctx context.Context, status Status) ([]*Task, error)
	UpdateTask(ctx context.Context, id string, fields Fields) error
	// ClaimTask performs a conditional status transition and reports
	// whether this caller won the claim. It is the store-level guard
	// against double dispatch across worker processes.
	ClaimTask(ctx context.Context, id string, from, to Status) (bool, error)
	SoftDeleteTask(ctx context.Context, id string) error
	// ExpireTasksBefore marks tasks whose files passed the retention
	// horizon before alignment started. Returns the number expired.
	ExpireTasksBefore(ctx context.Context, cutoff time.Time) (int64, error)

	AddTaskFile(ctx context.Context, file *TaskFile) error
	GetTaskFiles(ctx context.Context, taskID string) ([]*TaskFile, error)
	PutFileName(ctx context.Context, name *TaskFileName) error
	GetFileNames(ctx context.Context, taskID string) ([]*TaskFileName, error)
}
