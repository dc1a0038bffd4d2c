package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"github.com/openphon/alignd/pkg/log"
)

// Runner executes aligner commands as subprocesses. Paths travel as
// discrete argv entries; no shell is ever involved.
type Runner struct{}

// Run prepares the job's inputs and executes the engine. onStart, if
// set, receives the child pid as soon as the process starts, so the
// caller can record it for external cancellation.
func (Runner) Run(ctx context.Context, eng Engine, job *AlignJob, onStart func(pid int)) error {
	if err := eng.PrepareInputs(job); err != nil {
		return fmt.Errorf("engine %s: %w", eng.Name(), err)
	}

	argv := eng.BuildCommand(job)
	if len(argv) == 0 {
		return fmt.Errorf("engine %s produced an empty command", eng.Name())
	}

	cmdPath, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("engine %s binary not found: %w", eng.Name(), err)
	}

	cmd := exec.CommandContext(ctx, cmdPath, argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Debug("Running %s: %s", eng.Name(), strings.Join(argv, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("engine %s failed to start: %w", eng.Name(), err)
	}
	if onStart != nil {
		onStart(cmd.Process.Pid)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("engine %s exited abnormally: %w (stderr: %s)",
			eng.Name(), err, tail(stderr.String(), 512))
	}
	return nil
}

// Terminate signals a tracked external process. Used when a user
// cancels an in-flight alignment or a worker shuts down.
func (Runner) Terminate(pid int) error {
	if pid <= 0 {
		return nil
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
