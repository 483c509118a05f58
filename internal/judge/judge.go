package judge

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/sempr/cptest/internal/checker"
	"github.com/sempr/cptest/internal/compare"
	"github.com/sempr/cptest/internal/compiler"
	"github.com/sempr/cptest/internal/runner"
	"github.com/sempr/cptest/internal/testcase"
	"github.com/sempr/cptest/pkg/models"
	"github.com/sempr/cptest/pkg/verdict"
)

// Options is the resolved, read-only configuration for one invocation.
// It is shared by every worker and never mutated after startup.
type Options struct {
	Filename       string
	InDir          string
	InExt          string
	OutDir         string
	OutExt         string
	Timeout        time.Duration
	CompileTimeout time.Duration
	CompileCommand string
	// UseSandbox routes every run through the sio2jail delegate. A
	// present memory limit enables it unconditionally.
	UseSandbox    bool
	MemoryLimitKB uint64
	Generate      bool
	// CheckerPath names a checker program that decides correctness
	// instead of comparing against output files. Source files are
	// compiled with the same compile command as the solution.
	CheckerPath  string
	Sio2jailPath string
	// Workers bounds the concurrent case executions, 0 means the host's
	// available parallelism.
	Workers int
}

// Invocation owns all per-run state: the temporary directory, the
// compiled program and the runner. Close tears everything down exactly
// once regardless of how the run ended.
type Invocation struct {
	opts    Options
	tempDir string
	program *compiler.Program
	run     runner.Runner
	check   *checker.Checker
}

// New creates the invocation context. The caller must Close it on every
// exit path so temporary executables never outlive the process.
func New(opts Options) (*Invocation, error) {
	if opts.UseSandbox && opts.MemoryLimitKB == 0 {
		opts.MemoryLimitKB = runner.DefaultMemoryLimitKB
	}
	if opts.MemoryLimitKB > 0 {
		opts.UseSandbox = true
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	tempDir, err := os.MkdirTemp("", "cptest-")
	if err != nil {
		return nil, err
	}
	return &Invocation{opts: opts, tempDir: tempDir}, nil
}

// Close removes the invocation's temporary directory, including the
// compiled executable if one was built.
func (inv *Invocation) Close() {
	if err := os.RemoveAll(inv.tempDir); err != nil {
		slog.Warn("could not clean up temp directory", "path", inv.tempDir, "err", err)
	}
}

// Compile runs the compile stage once. Any returned error is fatal to the
// invocation: no case runs after a compile failure.
func (inv *Invocation) Compile(ctx context.Context) error {
	program, err := compiler.Prepare(ctx, compiler.Options{
		Template: inv.opts.CompileCommand,
		Timeout:  inv.opts.CompileTimeout,
		TempDir:  inv.tempDir,
	}, inv.opts.Filename)
	if err != nil {
		return err
	}
	inv.program = program

	if inv.opts.CheckerPath != "" {
		chk, err := compiler.Prepare(ctx, compiler.Options{
			Template: inv.opts.CompileCommand,
			Timeout:  inv.opts.CompileTimeout,
			TempDir:  inv.tempDir,
			Name:     "checker",
		}, inv.opts.CheckerPath)
		if err != nil {
			return err
		}
		inv.check = &checker.Checker{Executable: chk.Path, Timeout: inv.opts.Timeout}
	}

	if inv.opts.UseSandbox {
		jailPath, err := runner.Locate(inv.opts.Sio2jailPath)
		if err != nil {
			return err
		}
		inv.run = &runner.Sio2jail{
			Executable:    program.Path,
			JailPath:      jailPath,
			Timeout:       inv.opts.Timeout,
			MemoryLimitKB: inv.opts.MemoryLimitKB,
		}
	} else {
		inv.run = &runner.Direct{
			Executable: program.Path,
			Timeout:    inv.opts.Timeout,
		}
	}
	return nil
}

// Run enumerates all test cases and dispatches them across the worker
// pool. Every enumerated case yields exactly one result; one case's
// failure never aborts another. Compile must have succeeded first.
func (inv *Invocation) Run(ctx context.Context) (*models.RunReport, error) {
	cases, err := testcase.Enumerate(inv.opts.InDir, inv.opts.InExt, inv.opts.OutDir, inv.opts.OutExt)
	if err != nil {
		return nil, err
	}

	if inv.opts.Generate {
		if err := os.MkdirAll(inv.opts.OutDir, 0755); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	summary := NewSummary(inv.opts.Generate, len(cases))
	jobs := make(chan testcase.TestCase)

	var wg sync.WaitGroup
	for i := 0; i < inv.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tc := range jobs {
				result := inv.runCase(ctx, tc)
				summary.Add(result)
				logResult(result)
			}
		}()
	}
	for _, tc := range cases {
		jobs <- tc
	}
	close(jobs)
	wg.Wait()

	return summary.Report(time.Since(start))
}

// runCase executes one test case end to end and classifies the outcome.
func (inv *Invocation) runCase(ctx context.Context, tc testcase.TestCase) models.CaseResult {
	result := models.CaseResult{Name: tc.Name, Stats: models.ExecutionStats{MemoryKB: -1}}

	res, err := inv.run.Run(ctx, tc.InputPath)
	result.Output = res.Output
	result.Stats = res.Stats
	if err != nil {
		classify(&result, err)
		return result
	}

	if inv.opts.Generate {
		if err := writeGenerated(tc.OutputPath, res.Output); err != nil {
			result.Verdict = verdict.IoError
			result.Detail = err.Error()
			return result
		}
		result.Verdict = verdict.GenerateWritten
		return result
	}

	if inv.check != nil {
		judgeWithChecker(ctx, inv.check, &result, tc.InputPath, res.Output)
		return result
	}

	expected, err := os.ReadFile(tc.OutputPath)
	if err != nil {
		result.Verdict = verdict.IoError
		if os.IsNotExist(err) {
			result.Detail = "output file does not exist"
		} else {
			result.Detail = err.Error()
		}
		return result
	}

	if compare.Outputs(res.Output, expected) {
		result.Verdict = verdict.Passed
	} else {
		result.Verdict = verdict.WrongAnswer
		result.Detail = compare.Diff(expected, res.Output)
	}
	return result
}

// judgeWithChecker delegates the correctness decision to the external
// checker. Output files play no part in checker mode.
func judgeWithChecker(ctx context.Context, chk *checker.Checker, result *models.CaseResult, inputPath string, output []byte) {
	err := chk.Check(ctx, inputPath, output)
	var rejected *checker.Rejected
	var failure *checker.Failure
	switch {
	case err == nil:
		result.Verdict = verdict.Passed
	case errors.As(err, &rejected):
		result.Verdict = verdict.WrongAnswer
		result.Detail = rejected.Error()
	case errors.As(err, &failure):
		result.Verdict = verdict.CheckerError
		result.Detail = failure.Msg
	default:
		result.Verdict = verdict.IoError
		result.Detail = err.Error()
	}
}

func writeGenerated(path string, output []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, output, 0644)
}

// classify maps a runner error onto the case's verdict. Context
// cancellation (Ctrl-C teardown) is recorded as an io error so the case
// is still accounted for in the aggregate.
func classify(result *models.CaseResult, err error) {
	var rtErr *runner.RuntimeError
	var sbErr *runner.SandboxError
	switch {
	case errors.Is(err, runner.ErrTimeout):
		result.Verdict = verdict.Timeout
	case errors.Is(err, runner.ErrMemoryExceeded):
		result.Verdict = verdict.MemoryExceeded
	case errors.As(err, &rtErr):
		result.Verdict = verdict.RuntimeError
		result.ExitCode = rtErr.ExitCode
		result.Detail = rtErr.Error()
	case errors.As(err, &sbErr):
		result.Verdict = verdict.SandboxError
		result.Detail = sbErr.Msg
	default:
		result.Verdict = verdict.IoError
		result.Detail = err.Error()
	}
}

func logResult(result models.CaseResult) {
	if result.Verdict.OK() {
		slog.Info("test finished", "case", result.Name, "verdict", result.Verdict.String(),
			"time", result.Stats.Time.Round(time.Millisecond))
		return
	}
	slog.Warn("test failed", "case", result.Name, "verdict", result.Verdict.String(),
		"detail", result.Detail)
}
