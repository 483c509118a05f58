package checker

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Rejected is the checker's verdict that the output is wrong. Msg holds
// the checker's explanation, if it printed one after the leading N.
type Rejected struct {
	Msg string
}

func (e *Rejected) Error() string {
	if e.Msg == "" {
		return "incorrect output"
	}
	return "incorrect output: " + e.Msg
}

// Failure means the checker itself misbehaved: it crashed, timed out or
// did not follow the verdict format.
type Failure struct {
	Msg string
}

func (e *Failure) Error() string {
	return "checker failed: " + e.Msg
}

// Checker judges a test case by delegating to an external program. The
// checker reads the case input followed by the tested program's output on
// stdin and prints its verdict: a first line starting with C accepts, one
// starting with N rejects with an optional message after it.
type Checker struct {
	Executable string
	Timeout    time.Duration
}

// Check runs the checker for one test case. A nil error accepts the
// output, *Rejected means a wrong answer and *Failure means the checker
// could not deliver a verdict.
func (c *Checker) Check(ctx context.Context, inputPath string, output []byte) error {
	input, err := os.Open(inputPath)
	if err != nil {
		return &Failure{Msg: err.Error()}
	}
	defer input.Close()

	runCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var stdout bytes.Buffer
	cmd := exec.CommandContext(runCtx, c.Executable)
	// The extra newline keeps the two parts separated even when the case
	// input has no trailing newline of its own.
	cmd.Stdin = io.MultiReader(input, strings.NewReader("\n"), bytes.NewReader(output))
	cmd.Stdout = &stdout

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return &Failure{Msg: "the checker timed out"}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if runErr != nil {
		return &Failure{Msg: runErr.Error()}
	}
	return parseVerdict(stdout.String())
}

func parseVerdict(out string) error {
	if out == "" {
		return &Failure{Msg: "the checker printed nothing"}
	}
	switch out[0] {
	case 'C':
		return nil
	case 'N':
		msg := ""
		if len(out) > 1 {
			msg = strings.TrimSpace(out[2:])
		}
		return &Rejected{Msg: msg}
	}
	return &Failure{Msg: "the checker's verdict must start with C or N"}
}
