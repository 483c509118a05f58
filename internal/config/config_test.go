package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cptest.toml")
	content := `
compile_command = "gcc <IN> -o <OUT>"
timeout = 2
in_ext = ".txt"
sio2jail_path = "/opt/sio2jail"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.CompileCommand != "gcc <IN> -o <OUT>" {
		t.Errorf("CompileCommand = %q", cfg.CompileCommand)
	}
	if cfg.Timeout != 2 {
		t.Errorf("Timeout = %d, want 2", cfg.Timeout)
	}
	if cfg.CompileTimeout != 0 {
		t.Errorf("CompileTimeout = %d, want 0 (unset)", cfg.CompileTimeout)
	}
	if cfg.InExt != ".txt" {
		t.Errorf("InExt = %q", cfg.InExt)
	}
	if cfg.Sio2jailPath != "/opt/sio2jail" {
		t.Errorf("Sio2jailPath = %q", cfg.Sio2jailPath)
	}
}

func TestLoadMissingDefaultFileIsNotAnError(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if *cfg != (FileConfig{}) {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("explicit path missing", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing explicit config file")
		}
	})

	t.Run("invalid toml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(path, []byte("timeout = [not toml"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Error("expected error for invalid toml")
		}
	})
}
