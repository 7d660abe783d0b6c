package cliconfig

import (
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/shardspool/internal/domain"
)

func TestValidateRequiresSpoolRoot(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("got %v, want ErrInvalidConfig", err)
	}

	cfg.SpoolRoot = "/var/lib/shardspool"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad scheme", func(c *Config) { c.Scheme = "ftp" }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"inverted backoff", func(c *Config) { c.BackoffInitial = time.Minute; c.BackoffMax = time.Second }},
		{"no limits", func(c *Config) { c.MaxBatchFiles = 0; c.MaxBatchRows = 0; c.MaxBatchBytes = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.SpoolRoot = "/var/lib/shardspool"
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidConfig) {
				t.Fatalf("got %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("SHARDSPOOL_SPOOL_ROOT", "/env/spool")
	t.Setenv("SHARDSPOOL_MAX_BATCH_FILES", "7")
	t.Setenv("SHARDSPOOL_POLL_INTERVAL", "2s")
	t.Setenv("SHARDSPOOL_FSYNC", "true")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, map[string]bool{}); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.SpoolRoot != "/env/spool" {
		t.Fatalf("spool root %q, want /env/spool", cfg.SpoolRoot)
	}
	if cfg.MaxBatchFiles != 7 {
		t.Fatalf("max batch files %d, want 7", cfg.MaxBatchFiles)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("poll interval %v, want 2s", cfg.PollInterval)
	}
	if !cfg.Fsync {
		t.Fatal("fsync not applied from env")
	}
}

func TestEnvDoesNotOverrideChangedFlags(t *testing.T) {
	t.Setenv("SHARDSPOOL_SPOOL_ROOT", "/env/spool")

	cfg := DefaultConfig()
	cfg.SpoolRoot = "/flag/spool"
	changed := map[string]bool{"spool-root": true}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.SpoolRoot != "/flag/spool" {
		t.Fatalf("explicit flag overridden by env: %q", cfg.SpoolRoot)
	}
}

func TestApplyEnvBadDuration(t *testing.T) {
	t.Setenv("SHARDSPOOL_POLL_INTERVAL", "soon")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, map[string]bool{}); err == nil {
		t.Fatal("bad duration accepted")
	}
}
