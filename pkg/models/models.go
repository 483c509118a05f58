package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/sempr/cptest/pkg/verdict"
)

// ExecutionStats describes the resources one program run consumed.
type ExecutionStats struct {
	// Time is the wall-clock time measured by the harness, or the time
	// reported by the sandbox when one is in use.
	Time time.Duration `json:"time"`
	// MemoryKB is the peak memory use in KiB, -1 when unknown.
	MemoryKB int64 `json:"memory_kb"`
}

// CaseResult is the judged outcome of a single test case.
type CaseResult struct {
	Name    string          `json:"name"`
	Verdict verdict.Verdict `json:"verdict"`
	// ExitCode is set for runtime errors caused by a non-zero exit.
	ExitCode int `json:"exit_code,omitempty"`
	// Detail carries a human-readable explanation: the comparator diff,
	// the terminating signal, the io error and so on.
	Detail string `json:"detail,omitempty"`
	// Output is the captured stdout, possibly partial on failure. It is
	// kept for diagnostics and never used for comparison after a failure.
	Output []byte         `json:"-"`
	Stats  ExecutionStats `json:"stats"`
}

// RunReport aggregates all case results of one invocation.
type RunReport struct {
	GenerateMode bool
	Total        int
	Counts       map[verdict.Verdict]int
	// Failures holds every non-OK case result, sorted by case name.
	Failures []CaseResult
	Elapsed  time.Duration

	SlowestCase string
	SlowestTime time.Duration
	PeakMemCase string
	PeakMemKB   int64
}

// Success reports whether every enumerated case passed (check mode) or
// was generated (generate mode).
func (r *RunReport) Success() bool {
	return r.Counts[verdict.Passed]+r.Counts[verdict.GenerateWritten] == r.Total
}

// FormatCounts renders the per-verdict breakdown, e.g.
// "3 passed, 1 wrong answer, 1 timed out". Verdicts with zero results are
// omitted except the success kind, which is always shown.
func (r *RunReport) FormatCounts() string {
	var parts []string
	for _, v := range verdict.All {
		n := r.Counts[v]
		if n == 0 && !v.OK() {
			continue
		}
		if v.OK() && v == verdict.Passed && r.GenerateMode {
			continue
		}
		if v.OK() && v == verdict.GenerateWritten && !r.GenerateMode {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, v.Plural(n)))
	}
	return strings.Join(parts, ", ")
}
