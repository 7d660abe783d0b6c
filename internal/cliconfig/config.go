// Package cliconfig loads and validates the shardspool daemon configuration
// from defaults, a TOML file, environment variables, and CLI flags, in
// ascending precedence.
package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bft-labs/shardspool/internal/domain"
)

// Config holds the configuration for the shardspool daemon.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config struct {
	// SpoolRoot is the directory holding one spool subdirectory per
	// destination shard.
	SpoolRoot string

	// Scheme is the URL scheme used to reach destinations ("http" or "https").
	Scheme string

	// AuthKey is the bearer token sent with every insert request.
	AuthKey string

	// MetricsAddr, when non-empty, serves Prometheus metrics on this address.
	MetricsAddr string

	// Batching thresholds. Zero disables the corresponding limit.
	MaxBatchFiles int
	MaxBatchRows  uint64
	MaxBatchBytes uint64

	// SplitBatchOnFailure degrades a failed whole-batch send into per-file sends.
	SplitBatchOnFailure bool

	// Fsync flushes batch descriptors to stable storage before sending.
	Fsync bool

	// DirFsync flushes spool directory metadata after descriptor writes and
	// file removals.
	DirFsync bool

	PollInterval   time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	HTTPTimeout    time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Scheme:              "https",
		MaxBatchFiles:       100,
		MaxBatchRows:        1_000_000,
		MaxBatchBytes:       16 << 20, // 16MB
		SplitBatchOnFailure: true,
		PollInterval:        500 * time.Millisecond,
		BackoffInitial:      500 * time.Millisecond,
		BackoffMax:          10 * time.Second,
		HTTPTimeout:         60 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.SpoolRoot == "" {
		return fmt.Errorf("%w: spool-root is required", domain.ErrInvalidConfig)
	}
	if c.Scheme != "http" && c.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", domain.ErrInvalidConfig, c.Scheme)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidConfig)
	}
	if c.BackoffInitial <= 0 || c.BackoffMax < c.BackoffInitial {
		return fmt.Errorf("%w: backoff bounds must be positive and ordered", domain.ErrInvalidConfig)
	}
	if c.MaxBatchFiles == 0 && c.MaxBatchRows == 0 && c.MaxBatchBytes == 0 {
		return fmt.Errorf("%w: at least one batch limit must be set", domain.ErrInvalidConfig)
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setUint64(flag string, value uint64, dst *uint64) {
	if value == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

func (s *configSetter) setUint64FromString(flag, value string, dst *uint64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	u, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if u == 0 {
		return nil
	}
	*dst = u
	return nil
}

// setBoolFromString accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
