package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sempr/cptest/pkg/models"
)

// DefaultMemoryLimitKB is used when the sandbox flag is set without an
// explicit memory limit (1 GiB).
const DefaultMemoryLimitKB = 1 << 20

// badAllocStderr is what a glibc program prints when it dies on an
// allocation failure inside the jail; it is reported as a memory-limit
// violation rather than a sandbox fault.
const badAllocStderr = "terminate called after throwing an instance of 'std::bad_alloc'\n  what():  std::bad_alloc\n"

// Sio2jail routes execution through the external sio2jail binary for
// accurate time and memory accounting. The harness's own wall-clock
// deadline stays in force on top of whatever the sandbox reports, because
// the two measurements are not guaranteed identical.
type Sio2jail struct {
	Executable    string
	JailPath      string
	Timeout       time.Duration
	MemoryLimitKB uint64
}

// Locate resolves the sio2jail binary: an explicit path from the config
// file wins, otherwise the user's executable directory is tried.
func Locate(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("sio2jail not found at %s", explicit)
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate sio2jail: %w", err)
	}
	path := filepath.Join(home, ".local", "bin", "sio2jail")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("sio2jail not found at %s", path)
	}
	return path, nil
}

func (r *Sio2jail) Run(ctx context.Context, inputPath string) (Result, error) {
	input, err := os.Open(inputPath)
	if err != nil {
		return Result{Stats: unknownStats()}, err
	}
	defer input.Close()

	// The jail writes its resource report to fd 3.
	reportR, reportW, err := os.Pipe()
	if err != nil {
		return Result{Stats: unknownStats()}, err
	}
	defer reportR.Close()

	args := []string{
		"-f", "3", "-o", "oiaug",
		"--mount-namespace", "off",
		"--pid-namespace", "off",
		"--uts-namespace", "off",
		"--ipc-namespace", "off",
		"--net-namespace", "off",
		"--capability-drop", "off",
		"--user-namespace", "off",
		"-s", "-m", strconv.FormatUint(r.MemoryLimitKB, 10),
		"--", r.Executable,
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(r.JailPath, args...)
	cmd.Stdin = input
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.ExtraFiles = []*os.File{reportW}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		reportW.Close()
		return Result{Stats: unknownStats()}, err
	}
	// Close the parent's copy so the report pipe sees EOF once the jail
	// exits.
	reportW.Close()

	waitErr, timedOut := waitWithDeadline(ctx, cmd, r.Timeout)
	report, _ := io.ReadAll(reportR)

	res := Result{Output: stdout.Bytes(), Stats: unknownStats()}
	if timedOut {
		res.Stats.Time = r.Timeout
		return res, ErrTimeout
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	stats, runErr := parseReport(report, stderr.Bytes(), waitErr, r.MemoryLimitKB)
	res.Stats = stats
	return res, runErr
}

// parseReport interprets the sandbox's fd-3 report together with its
// stderr and exit status. The report's first line is
// "STATUS _ TIME_MS _ MEM_KB _"; an optional second line carries an error
// message.
func parseReport(report, stderr []byte, waitErr error, memoryLimitKB uint64) (models.ExecutionStats, error) {
	stats := unknownStats()

	if len(stderr) > 0 {
		if string(stderr) == badAllocStderr {
			stats.MemoryKB = int64(memoryLimitKB)
			return stats, ErrMemoryExceeded
		}
		return stats, &SandboxError{Msg: strings.TrimSpace(string(stderr))}
	}

	fields := strings.Fields(string(report))
	if len(fields) < 6 {
		return stats, &SandboxError{Msg: fmt.Sprintf("the report is too short: %q", string(report))}
	}

	status := fields[0]
	timeMS, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return stats, &SandboxError{Msg: "the report carries an invalid runtime: " + fields[2]}
	}
	memKB, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return stats, &SandboxError{Msg: "the report carries an invalid memory use: " + fields[4]}
	}
	stats.Time = time.Duration(timeMS * float64(time.Millisecond))
	stats.MemoryKB = memKB

	var message string
	if lines := strings.SplitN(strings.TrimSpace(string(report)), "\n", 2); len(lines) > 1 {
		message = strings.TrimSpace(lines[1])
	}

	if waitErr != nil {
		if rtErr, ok := classifyExit(waitErr).(*RuntimeError); ok && rtErr.Signal != "" {
			return stats, rtErr
		}
		return stats, &SandboxError{Msg: "the sandbox exited abnormally: " + waitErr.Error()}
	}

	switch status {
	case "OK":
		return stats, nil
	case "RE", "RV":
		if message == "" {
			message = "reported by the sandbox"
		}
		return stats, &RuntimeError{Detail: message}
	case "TLE":
		return stats, ErrTimeout
	case "MLE":
		return stats, ErrMemoryExceeded
	case "OLE":
		return stats, &RuntimeError{Detail: "output limit exceeded"}
	default:
		return stats, &SandboxError{Msg: "the report carries an unknown status: " + status}
	}
}
