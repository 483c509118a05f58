package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/sempr/cptest/pkg/models"
	"golang.org/x/sys/unix"
)

// ErrTimeout means the wall-clock deadline measured by the harness itself
// was exceeded and the child was forcibly terminated.
var ErrTimeout = errors.New("wall-clock time limit exceeded")

// ErrMemoryExceeded means the sandbox reported a memory-limit violation.
var ErrMemoryExceeded = errors.New("memory limit exceeded")

// RuntimeError means the program terminated abnormally: a non-zero exit
// code or a fatal signal.
type RuntimeError struct {
	ExitCode int
	Signal   string
	Detail   string
}

func (e *RuntimeError) Error() string {
	switch {
	case e.Signal != "":
		return fmt.Sprintf("the process was terminated by signal: %s", e.Signal)
	case e.Detail != "":
		return "runtime error: " + e.Detail
	default:
		return fmt.Sprintf("the program returned a non-zero exit code: %d", e.ExitCode)
	}
}

// SandboxError means the sandbox delegate itself misbehaved: it crashed,
// wrote to stderr or produced an unreadable report.
type SandboxError struct {
	Msg string
}

func (e *SandboxError) Error() string {
	return "sandbox error: " + e.Msg
}

// Result is what one execution produced. Output may hold partial stdout
// even when the run failed; it is kept for diagnostics only and is never
// compared after a failure.
type Result struct {
	Output []byte
	Stats  models.ExecutionStats
}

// Runner executes the compiled program once with the given file as stdin.
type Runner interface {
	Run(ctx context.Context, inputPath string) (Result, error)
}

// Direct launches the executable with no sandbox. The timeout is enforced
// by the harness's own clock, never by any in-process signal.
type Direct struct {
	Executable string
	Timeout    time.Duration
}

func (r *Direct) Run(ctx context.Context, inputPath string) (Result, error) {
	input, err := os.Open(inputPath)
	if err != nil {
		return Result{Stats: unknownStats()}, err
	}
	defer input.Close()

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(r.Executable)
	cmd.Stdin = input
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Own process group so a forced kill reaches grandchildren too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{Stats: unknownStats()}, err
	}

	waitErr, timedOut := waitWithDeadline(ctx, cmd, r.Timeout)
	res := Result{
		Output: stdout.Bytes(),
		Stats: models.ExecutionStats{
			Time:     time.Since(start),
			MemoryKB: maxRSS(cmd),
		},
	}
	if timedOut {
		res.Stats.Time = r.Timeout
		return res, ErrTimeout
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if waitErr != nil {
		return res, classifyExit(waitErr)
	}
	return res, nil
}

// waitWithDeadline waits for cmd, killing its process group when the
// wall-clock deadline passes or ctx is cancelled. It always reaps the
// child before returning so partial stdout is fully drained.
func waitWithDeadline(ctx context.Context, cmd *exec.Cmd, timeout time.Duration) (waitErr error, timedOut bool) {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err, false
	case <-timer.C:
		killGroup(cmd)
		<-done
		return nil, true
	case <-ctx.Done():
		killGroup(cmd)
		return <-done, false
	}
}

func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
}

// maxRSS extracts the peak resident set size in KiB from the reaped
// child's rusage, -1 when unavailable.
func maxRSS(cmd *exec.Cmd) int64 {
	if cmd.ProcessState == nil {
		return -1
	}
	ru, ok := cmd.ProcessState.SysUsage().(*syscall.Rusage)
	if !ok || ru == nil {
		return -1
	}
	return ru.Maxrss
}

func classifyExit(waitErr error) error {
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return waitErr
	}
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return waitErr
	}
	if ws.Signaled() {
		return &RuntimeError{Signal: unix.SignalName(unix.Signal(ws.Signal()))}
	}
	return &RuntimeError{ExitCode: ws.ExitStatus()}
}

func unknownStats() models.ExecutionStats {
	return models.ExecutionStats{MemoryKB: -1}
}
