package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileConfig(t *testing.T) {
	path := writeConfig(t, `
spool_root = "/data/spool"
scheme = "http"
max_batch_files = 50
max_batch_rows = 5000
split_batch_on_failure = false
poll_interval = "250ms"
backoff_max = "30s"
dir_fsync = true
`)

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cfg := DefaultConfig()
	if err := ApplyFileConfig(&cfg, fc, map[string]bool{}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.SpoolRoot != "/data/spool" || cfg.Scheme != "http" {
		t.Fatalf("strings not applied: %+v", cfg)
	}
	if cfg.MaxBatchFiles != 50 || cfg.MaxBatchRows != 5000 {
		t.Fatalf("limits not applied: %+v", cfg)
	}
	if cfg.SplitBatchOnFailure {
		t.Fatal("split_batch_on_failure=false not applied")
	}
	if !cfg.DirFsync {
		t.Fatal("dir_fsync=true not applied")
	}
	if cfg.PollInterval != 250*time.Millisecond || cfg.BackoffMax != 30*time.Second {
		t.Fatalf("durations not applied: %+v", cfg)
	}
	// Fields absent from the file keep their defaults.
	if cfg.MaxBatchBytes != DefaultConfig().MaxBatchBytes {
		t.Fatalf("unset field changed: %d", cfg.MaxBatchBytes)
	}
}

func TestFileDoesNotOverrideChangedFlags(t *testing.T) {
	path := writeConfig(t, `spool_root = "/file/spool"`)

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cfg := DefaultConfig()
	cfg.SpoolRoot = "/flag/spool"
	if err := ApplyFileConfig(&cfg, fc, map[string]bool{"spool-root": true}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.SpoolRoot != "/flag/spool" {
		t.Fatalf("explicit flag overridden by file: %q", cfg.SpoolRoot)
	}
}

func TestLoadFileConfigBadTOML(t *testing.T) {
	path := writeConfig(t, `spool_root = [not toml`)
	if _, err := LoadFileConfig(path); err == nil {
		t.Fatal("bad TOML accepted")
	}
}
