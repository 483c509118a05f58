package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "default gcc template",
			template: "g++ -std=c++17 -O3 -static <IN> -o <OUT>",
			want:     "g++ -std=c++17 -O3 -static /src/main.cpp -o /tmp/program",
		},
		{
			name:     "placeholders in any order",
			template: "cc -o <OUT> <IN>",
			want:     "cc -o /tmp/program /src/main.cpp",
		},
		{
			name:     "no placeholders",
			template: "make all",
			want:     "make all",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildCommand(tt.template, "/src/main.cpp", "/tmp/program")
			if got != tt.want {
				t.Errorf("BuildCommand = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsSourceFile(t *testing.T) {
	dir := t.TempDir()

	cpp := filepath.Join(dir, "main.cpp")
	if err := os.WriteFile(cpp, []byte("int main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if !IsSourceFile(cpp) {
		t.Error("a .cpp file must be treated as source")
	}

	script := writeScript(t, dir, "solution", "echo hi\n")
	if IsSourceFile(script) {
		t.Error("an executable without a source extension must be passed through")
	}

	plain := filepath.Join(dir, "solution.py")
	if err := os.WriteFile(plain, []byte("print(1)\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if !IsSourceFile(plain) {
		t.Error("a non-executable file must be treated as source")
	}
}

func TestPrepareExecutablePassThrough(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "solution", "cat\n")

	program, err := Prepare(context.Background(), Options{
		Template: "unused <IN> <OUT>",
		Timeout:  time.Second,
		TempDir:  t.TempDir(),
	}, script)
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if program.Path != script {
		t.Errorf("Path = %q, want pass-through %q", program.Path, script)
	}
	if program.Temporary {
		t.Error("a pass-through executable must not be marked temporary")
	}
}

func TestPrepareCompiles(t *testing.T) {
	dir := t.TempDir()
	tempDir := t.TempDir()
	source := filepath.Join(dir, "main.cpp")
	if err := os.WriteFile(source, []byte("#!/bin/sh\ncat\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// cp stands in for the compiler: it takes <IN> and produces <OUT>.
	program, err := Prepare(context.Background(), Options{
		Template: "cp <IN> <OUT>",
		Timeout:  5 * time.Second,
		TempDir:  tempDir,
	}, source)
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if program.Path != filepath.Join(tempDir, "program") {
		t.Errorf("Path = %q", program.Path)
	}
	if !program.Temporary {
		t.Error("a built executable must be marked temporary")
	}
	if _, err := os.Stat(program.Path); err != nil {
		t.Errorf("built executable missing: %v", err)
	}
}

func TestPrepareCustomName(t *testing.T) {
	tempDir := t.TempDir()
	source := filepath.Join(t.TempDir(), "check.cpp")
	if err := os.WriteFile(source, []byte("int main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	program, err := Prepare(context.Background(), Options{
		Template: "cp <IN> <OUT>",
		Timeout:  5 * time.Second,
		TempDir:  tempDir,
		Name:     "checker",
	}, source)
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if program.Path != filepath.Join(tempDir, "checker") {
		t.Errorf("Path = %q, want the checker name", program.Path)
	}
}

func TestPrepareCompileError(t *testing.T) {
	dir := t.TempDir()
	fakecc := writeScript(t, dir, "fakecc", "echo 'main.cpp:1: error: boom' >&2\nexit 1\n")
	source := filepath.Join(dir, "main.cpp")
	if err := os.WriteFile(source, []byte("int main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Prepare(context.Background(), Options{
		Template: fakecc + " <IN> <OUT>",
		Timeout:  5 * time.Second,
		TempDir:  t.TempDir(),
	}, source)

	var compileErr *CompileError
	if !errors.As(err, &compileErr) {
		t.Fatalf("expected CompileError, got %v", err)
	}
	if !strings.Contains(compileErr.Stderr, "boom") {
		t.Errorf("Stderr = %q, want captured compiler output", compileErr.Stderr)
	}
}

func TestPrepareCompilerNotFound(t *testing.T) {
	source := filepath.Join(t.TempDir(), "main.cpp")
	if err := os.WriteFile(source, []byte("int main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Prepare(context.Background(), Options{
		Template: "cptest-no-such-compiler <IN> <OUT>",
		Timeout:  time.Second,
		TempDir:  t.TempDir(),
	}, source)

	var compileErr *CompileError
	if !errors.As(err, &compileErr) {
		t.Fatalf("expected CompileError, got %v", err)
	}
}

func TestPrepareCompileTimeout(t *testing.T) {
	dir := t.TempDir()
	slowcc := writeScript(t, dir, "slowcc", "sleep 5\n")
	source := filepath.Join(dir, "main.cpp")
	if err := os.WriteFile(source, []byte("int main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	_, err := Prepare(context.Background(), Options{
		Template: slowcc + " <IN> <OUT>",
		Timeout:  100 * time.Millisecond,
		TempDir:  t.TempDir(),
	}, source)

	if !errors.Is(err, ErrCompileTimeout) {
		t.Fatalf("expected ErrCompileTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout was not enforced, took %v", elapsed)
	}
}

func TestPrepareCanceledContext(t *testing.T) {
	source := filepath.Join(t.TempDir(), "main.cpp")
	if err := os.WriteFile(source, []byte("int main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Prepare(ctx, Options{
		Template: "cp <IN> <OUT>",
		Timeout:  time.Second,
		TempDir:  t.TempDir(),
	}, source)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		t.Error("cancellation must not be reported as a compile failure")
	}
}

func TestPrepareMissingSource(t *testing.T) {
	_, err := Prepare(context.Background(), Options{
		Template: "cp <IN> <OUT>",
		Timeout:  time.Second,
		TempDir:  t.TempDir(),
	}, filepath.Join(t.TempDir(), "nope.cpp"))
	if err == nil {
		t.Error("expected error for a missing source file")
	}
}
