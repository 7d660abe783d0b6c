package domain

import "errors"

// Domain errors represent error conditions in the shardspool domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrMalformedDescriptor is returned when an on-disk batch descriptor is
	// unparseable or truncated. A truncated descriptor is never treated as a
	// valid empty batch; the caller must discard it and rescan the directory.
	ErrMalformedDescriptor = errors.New("shardspool: malformed batch descriptor")

	// ErrStaleDescriptor is returned when a batch descriptor references a
	// member file that no longer exists on disk.
	ErrStaleDescriptor = errors.New("shardspool: stale batch descriptor")

	// ErrBatchNotReady is returned when Send is called on a batch that was
	// never persisted, or on a recovered batch whose members are gone.
	// This is a contract violation, not a retryable condition.
	ErrBatchNotReady = errors.New("shardspool: batch not ready to send")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("shardspool: invalid configuration")
)
