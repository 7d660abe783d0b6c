package cliconfig

import "os"

// Environment variable names. Env values override file config but are
// overridden by explicitly set CLI flags.
const (
	envSpoolRoot      = "SHARDSPOOL_SPOOL_ROOT"
	envScheme         = "SHARDSPOOL_SCHEME"
	envAuthKey        = "SHARDSPOOL_AUTH_KEY"
	envMetricsAddr    = "SHARDSPOOL_METRICS_ADDR"
	envMaxBatchFiles  = "SHARDSPOOL_MAX_BATCH_FILES"
	envMaxBatchRows   = "SHARDSPOOL_MAX_BATCH_ROWS"
	envMaxBatchBytes  = "SHARDSPOOL_MAX_BATCH_BYTES"
	envSplitOnFailure = "SHARDSPOOL_SPLIT_BATCH_ON_FAILURE"
	envFsync          = "SHARDSPOOL_FSYNC"
	envDirFsync       = "SHARDSPOOL_DIR_FSYNC"
	envPollInterval   = "SHARDSPOOL_POLL_INTERVAL"
	envBackoffInitial = "SHARDSPOOL_BACKOFF_INITIAL"
	envBackoffMax     = "SHARDSPOOL_BACKOFF_MAX"
	envHTTPTimeout    = "SHARDSPOOL_HTTP_TIMEOUT"
)

// ApplyEnvConfig applies SHARDSPOOL_* environment variables onto cfg,
// skipping any field whose CLI flag was explicitly set.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("spool-root", os.Getenv(envSpoolRoot), &cfg.SpoolRoot)
	s.setString("scheme", os.Getenv(envScheme), &cfg.Scheme)
	s.setString("auth-key", os.Getenv(envAuthKey), &cfg.AuthKey)
	s.setString("metrics-addr", os.Getenv(envMetricsAddr), &cfg.MetricsAddr)
	s.setBoolFromString("split-batch-on-failure", os.Getenv(envSplitOnFailure), &cfg.SplitBatchOnFailure)
	s.setBoolFromString("fsync", os.Getenv(envFsync), &cfg.Fsync)
	s.setBoolFromString("dir-fsync", os.Getenv(envDirFsync), &cfg.DirFsync)

	if err := s.setIntFromString("max-batch-files", os.Getenv(envMaxBatchFiles), &cfg.MaxBatchFiles); err != nil {
		return err
	}
	if err := s.setUint64FromString("max-batch-rows", os.Getenv(envMaxBatchRows), &cfg.MaxBatchRows); err != nil {
		return err
	}
	if err := s.setUint64FromString("max-batch-bytes", os.Getenv(envMaxBatchBytes), &cfg.MaxBatchBytes); err != nil {
		return err
	}
	if err := s.setDuration("poll-interval", os.Getenv(envPollInterval), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("backoff-initial", os.Getenv(envBackoffInitial), &cfg.BackoffInitial); err != nil {
		return err
	}
	if err := s.setDuration("backoff-max", os.Getenv(envBackoffMax), &cfg.BackoffMax); err != nil {
		return err
	}
	return s.setDuration("http-timeout", os.Getenv(envHTTPTimeout), &cfg.HTTPTimeout)
}
