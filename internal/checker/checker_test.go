package checker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checker")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "case.in")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		wantErr error
		wantMsg string
	}{
		{name: "accepted", out: "C\n", wantErr: nil},
		{name: "accepted with comment", out: "C looks good\n", wantErr: nil},
		{name: "rejected bare", out: "N\n", wantErr: &Rejected{}},
		{name: "rejected with message", out: "N wrong sum in line 3\n", wantErr: &Rejected{}, wantMsg: "wrong sum in line 3"},
		{name: "empty output", out: "", wantErr: &Failure{}},
		{name: "unknown verdict letter", out: "X\n", wantErr: &Failure{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseVerdict(tt.out)
			switch want := tt.wantErr.(type) {
			case nil:
				if err != nil {
					t.Fatalf("parseVerdict(%q) = %v, want nil", tt.out, err)
				}
			case *Rejected:
				var rejected *Rejected
				if !errors.As(err, &rejected) {
					t.Fatalf("parseVerdict(%q) = %v, want Rejected", tt.out, err)
				}
				if rejected.Msg != tt.wantMsg {
					t.Errorf("Msg = %q, want %q", rejected.Msg, tt.wantMsg)
				}
			case *Failure:
				var failure *Failure
				if !errors.As(err, &failure) {
					t.Fatalf("parseVerdict(%q) = %v, want Failure", tt.out, err)
				}
			default:
				t.Fatalf("unhandled want type %T", want)
			}
		})
	}
}

func TestCheckSeesInputThenOutput(t *testing.T) {
	// Accepts when the program echoed the input back. The input file has
	// no trailing newline, so this also covers the inserted separator.
	c := &Checker{
		Executable: writeScript(t, "read a\nread b\nif [ \"$a\" = \"$b\" ]; then echo C; else echo \"N $a does not match $b\"; fi\n"),
		Timeout:    5 * time.Second,
	}

	if err := c.Check(context.Background(), writeInput(t, "42"), []byte("42\n")); err != nil {
		t.Errorf("matching output rejected: %v", err)
	}

	err := c.Check(context.Background(), writeInput(t, "42"), []byte("7\n"))
	var rejected *Rejected
	if !errors.As(err, &rejected) {
		t.Fatalf("expected Rejected, got %v", err)
	}
	if rejected.Msg != "42 does not match 7" {
		t.Errorf("Msg = %q", rejected.Msg)
	}
}

func TestCheckTimeout(t *testing.T) {
	c := &Checker{Executable: writeScript(t, "sleep 30\n"), Timeout: 200 * time.Millisecond}

	start := time.Now()
	err := c.Check(context.Background(), writeInput(t, "1\n"), nil)
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected Failure, got %v", err)
	}
	if !strings.Contains(failure.Msg, "timed out") {
		t.Errorf("Msg = %q, want a timeout message", failure.Msg)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("checker was not killed promptly, took %v", elapsed)
	}
}

func TestCheckCrashIsFailure(t *testing.T) {
	c := &Checker{Executable: writeScript(t, "exit 2\n"), Timeout: time.Second}

	err := c.Check(context.Background(), writeInput(t, "1\n"), nil)
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected Failure, got %v", err)
	}
}

func TestCheckCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &Checker{Executable: writeScript(t, "echo C\n"), Timeout: time.Second}
	err := c.Check(ctx, writeInput(t, "1\n"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	var failure *Failure
	if errors.As(err, &failure) {
		t.Error("cancellation must not be reported as a checker failure")
	}
}
