package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config but uses strings for durations to make TOML friendly.
type fileConfig struct {
	SpoolRoot           string `toml:"spool_root"`
	Scheme              string `toml:"scheme"`
	AuthKey             string `toml:"auth_key"`
	MetricsAddr         string `toml:"metrics_addr"`
	MaxBatchFiles       int    `toml:"max_batch_files"`
	MaxBatchRows        uint64 `toml:"max_batch_rows"`
	MaxBatchBytes       uint64 `toml:"max_batch_bytes"`
	SplitBatchOnFailure *bool  `toml:"split_batch_on_failure"`
	Fsync               *bool  `toml:"fsync"`
	DirFsync            *bool  `toml:"dir_fsync"`
	PollInterval        string `toml:"poll_interval"`
	BackoffInitial      string `toml:"backoff_initial"`
	BackoffMax          string `toml:"backoff_max"`
	HTTPTimeout         string `toml:"http_timeout"`
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".shardspool", "config.toml")
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// ApplyFileConfig applies file values onto cfg, skipping any field whose CLI
// flag was explicitly set.
func ApplyFileConfig(cfg *Config, fc fileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("spool-root", fc.SpoolRoot, &cfg.SpoolRoot)
	s.setString("scheme", fc.Scheme, &cfg.Scheme)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setInt("max-batch-files", fc.MaxBatchFiles, &cfg.MaxBatchFiles)
	s.setUint64("max-batch-rows", fc.MaxBatchRows, &cfg.MaxBatchRows)
	s.setUint64("max-batch-bytes", fc.MaxBatchBytes, &cfg.MaxBatchBytes)
	s.setBool("split-batch-on-failure", fc.SplitBatchOnFailure, &cfg.SplitBatchOnFailure)
	s.setBool("fsync", fc.Fsync, &cfg.Fsync)
	s.setBool("dir-fsync", fc.DirFsync, &cfg.DirFsync)

	if err := s.setDuration("poll-interval", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("backoff-initial", fc.BackoffInitial, &cfg.BackoffInitial); err != nil {
		return err
	}
	if err := s.setDuration("backoff-max", fc.BackoffMax, &cfg.BackoffMax); err != nil {
		return err
	}
	return s.setDuration("http-timeout", fc.HTTPTimeout, &cfg.HTTPTimeout)
}
