package tasks

import "time"

// FileRole tags what a stored file is for within its task.
type FileRole string

const (
	RoleAudio      FileRole = "audio"
	RoleTranscript FileRole = "transcript"
	RoleHeld       FileRole = "held"
	RoleOutput     FileRole = "output"
	RoleLog        FileRole = "log"
)

// Task is the central work item moving through the upload and alignment
// pipelines. It is created by the web layer in StatusPending/StatusUploading
// and mutated by the workers from there on.
type Task struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Language string `json:"language"`
	Engine   string `json:"engine"`
	Status   Status `json:"status"`

	// Dir is the task's working directory holding uploaded files.
	Dir string `json:"dir"`

	SizeBytes    int64   `json:"size_bytes"`
	WordCount    int     `json:"word_count"`
	MissingCount int     `json:"missing_count"`
	TierCount    int     `json:"tier_count"`
	Duration     float64 `json:"duration"`

	// PID tracks a live external aligner process, 0 when none.
	PID int `json:"pid"`

	// PreError records an upload-stage failure before the retry budget
	// is spent, so the web layer can surface early feedback.
	PreError string `json:"pre_error,omitempty"`

	DownloadPath string `json:"download_path,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	AlignedAt *time.Time `json:"aligned_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// TaskFile is one physical file owned by a task. Audio and transcript
// files are paired through a shared FileKey.
type TaskFile struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	FileKey   string    `json:"file_key"`
	Role      FileRole  `json:"role"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskFileName maps an internal file key back to the name the user
// uploaded, used to restore human-readable names in output packaging.
type TaskFileName struct {
	TaskID       string `json:"task_id"`
	FileKey      string `json:"file_key"`
	OriginalName string `json:"original_name"`
}
