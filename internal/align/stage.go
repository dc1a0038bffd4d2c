package align

import (
	"errors"
	"fmt"
)

// StageError marks a pipeline failure with the stage that produced it
// and whether a retry could plausibly succeed. Precondition and
// validation failures are not retryable; external-process and I/O
// failures are.
type StageError struct {
	Stage     string
	Retryable bool
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func failStage(stage string, err error) error {
	return &StageError{Stage: stage, Retryable: true, Err: err}
}

func rejectStage(stage string, format string, args ...any) error {
	return &StageError{Stage: stage, Retryable: false, Err: fmt.Errorf(format, args...)}
}

// Retryable reports whether an error is worth another attempt. Errors
// outside the stage taxonomy default to retryable.
func Retryable(err error) bool {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Retryable
	}
	return true
}
