package compiler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// ErrCompileTimeout means the compiler did not finish within the compile
// timeout. It aborts the whole invocation before any case runs.
var ErrCompileTimeout = errors.New("compilation timed out")

// CompileError carries the compiler's captured stderr after a non-zero
// exit. It aborts the whole invocation before any case runs.
type CompileError struct {
	Stderr string
}

func (e *CompileError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return "compilation failed"
	}
	return "compilation failed:\n" + msg
}

// Program is the resolved executable for one invocation. Temporary marks
// a build artifact living in the invocation temp directory; the directory
// owner removes it exactly once at teardown.
type Program struct {
	Path      string
	Temporary bool
}

// Options configures the compile stage.
type Options struct {
	// Template is the compile command with <IN> and <OUT> placeholders.
	Template string
	Timeout  time.Duration
	// TempDir receives the built executable.
	TempDir string
	// Name is the built executable's file name inside TempDir. It
	// defaults to "program".
	Name string
}

// BuildCommand substitutes the literal <IN> and <OUT> placeholders in the
// compile command template with the source and output paths.
func BuildCommand(template, sourcePath, outputPath string) string {
	cmd := strings.ReplaceAll(template, "<IN>", sourcePath)
	return strings.ReplaceAll(cmd, "<OUT>", outputPath)
}

var sourceExts = map[string]bool{
	".cpp": true,
	".cc":  true,
	".cxx": true,
	".c":   true,
}

// IsSourceFile decides whether path needs compilation. Known source
// extensions always do; anything else is treated as a source file only if
// it is not executable.
func IsSourceFile(path string) bool {
	if sourceExts[filepath.Ext(path)] {
		return true
	}
	return !isExecutable(path)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}

// Prepare returns the executable to test. A path that is already an
// executable is passed through unchanged; a source file is compiled once
// into opts.TempDir under the compile timeout.
func Prepare(ctx context.Context, opts Options, sourcePath string) (*Program, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, err
	}

	if !IsSourceFile(sourcePath) {
		slog.Debug("target is already executable, skipping compilation", "path", sourcePath)
		return &Program{Path: sourcePath}, nil
	}

	name := opts.Name
	if name == "" {
		name = "program"
	}
	outputPath := filepath.Join(opts.TempDir, name)
	cmdline := BuildCommand(opts.Template, sourcePath, outputPath)
	argv := strings.Fields(cmdline)
	if len(argv) == 0 {
		return nil, &CompileError{Stderr: "the compile command is empty"}
	}

	runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	slog.Debug("compiling", "command", cmdline)
	start := time.Now()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, ErrCompileTimeout
	}
	// A canceled parent context (Ctrl-C teardown) also fails cmd.Run and
	// must not be mistaken for a compiler diagnostic.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, &CompileError{Stderr: "the compiler was not found"}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &CompileError{Stderr: stderr.String()}
		}
		return nil, err
	}

	slog.Info("compilation finished", "elapsed", time.Since(start).Round(10*time.Millisecond))
	return &Program{Path: outputPath, Temporary: true}, nil
}
