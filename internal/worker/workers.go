package worker

import (
	"github.com/openphon/alignd/internal/align"
	"github.com/openphon/alignd/internal/config"
	"github.com/openphon/alignd/internal/tasks"
	"github.com/openphon/alignd/internal/upload"
)

// NewAlignmentWorker polls the alignment queue. Dispatch goes through
// the store-level claim so concurrent worker processes cannot double
// align a task; the processor records the completed status itself,
// together with the download path.
func NewAlignmentWorker(store tasks.Store, processor *align.Processor,
	term Terminator, cfg *config.Config) *Poller {
	return New(store, processor.Process, term, Config{
		Name:   "alignment",
		Queue:  tasks.StatusAligned,
		Claim:  tasks.StatusProcessing,
		Reset:  tasks.StatusUploaded,
		Worker: cfg.AlignWorker,
	})
}

// NewUploadWorker polls freshly submitted tasks at sub-second latency.
// A single upload worker runs per store, so the in-memory active set is
// the only dispatch guard; failures carry the pre-error flag for early
// user feedback.
func NewUploadWorker(store tasks.Store, pipeline *upload.Pipeline,
	cfg *config.Config) *Poller {
	return New(store, pipeline.Process, nil, Config{
		Name:           "upload",
		Queue:          tasks.StatusUploading,
		Done:           tasks.StatusUploaded,
		Reset:          tasks.StatusUploading,
		RecordPreError: true,
		Worker:         cfg.UploadWorker,
	})
}
