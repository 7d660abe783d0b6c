package spool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bft-labs/shardspool/internal/domain"
	"github.com/bft-labs/shardspool/internal/ports"
	"github.com/bft-labs/shardspool/pkg/log"
)

// Limits bounds batch accumulation. A zero value disables the corresponding
// limit. Exact numbers are injected policy, not core invariants.
type Limits struct {
	MaxFiles int
	MaxRows  uint64
	MaxBytes uint64
}

// Options holds the per-directory batching policy.
type Options struct {
	// SplitOnFailure degrades a failed whole-batch send into independent
	// per-file sends, isolating a single bad file from the rest.
	SplitOnFailure bool

	// Fsync flushes the descriptor file to stable storage before any send.
	Fsync bool

	// DirFsync flushes the spool directory after descriptor writes and
	// file removals.
	DirFsync bool

	Logger log.Logger
}

// Batch accumulates a subset of pending files under the configured limits,
// persists its membership to the spool directory, and drives the send
// protocol. One batch instance is active per spool directory at a time.
type Batch struct {
	dir   string
	files []domain.PendingFile

	totalRows  uint64
	totalBytes uint64

	limits Limits
	opts   Options

	// recovered is true iff this instance was reconstructed from an on-disk
	// descriptor rather than built by fresh accumulation.
	recovered bool

	// persisted is true once the descriptor is durably on disk.
	persisted bool
}

// NewBatch creates an empty batch for the given spool directory.
func NewBatch(dir string, limits Limits, opts Options) *Batch {
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Batch{dir: dir, limits: limits, opts: opts}
}

// Accept adds file to the batch if it fits within the configured limits.
// It returns false without mutating the batch when the addition would push
// the member count, total rows, or total bytes past a limit — unless the
// batch is empty: a single oversized file must still be sendable alone.
func (b *Batch) Accept(file domain.PendingFile) bool {
	if len(b.files) > 0 {
		if b.limits.MaxFiles > 0 && len(b.files)+1 > b.limits.MaxFiles {
			return false
		}
		if b.limits.MaxRows > 0 && b.totalRows+file.Rows > b.limits.MaxRows {
			return false
		}
		if b.limits.MaxBytes > 0 && b.totalBytes+file.Bytes > b.limits.MaxBytes {
			return false
		}
	}
	b.files = append(b.files, file)
	b.totalRows += file.Rows
	b.totalBytes += file.Bytes
	return true
}

// IsEnoughSize reports whether the batch has reached capacity and should stop
// accumulating and proceed to persist and send.
func (b *Batch) IsEnoughSize() bool {
	if len(b.files) == 0 {
		return false
	}
	if b.limits.MaxFiles > 0 && len(b.files) >= b.limits.MaxFiles {
		return true
	}
	if b.limits.MaxRows > 0 && b.totalRows >= b.limits.MaxRows {
		return true
	}
	if b.limits.MaxBytes > 0 && b.totalBytes >= b.limits.MaxBytes {
		return true
	}
	return false
}

// Empty reports whether the batch has no members.
func (b *Batch) Empty() bool { return len(b.files) == 0 }

// Len returns the number of member files.
func (b *Batch) Len() int { return len(b.files) }

// TotalRows returns the running row sum over current members.
func (b *Batch) TotalRows() uint64 { return b.totalRows }

// TotalBytes returns the running byte sum over current members.
func (b *Batch) TotalBytes() uint64 { return b.totalBytes }

// Files returns the member files in send order.
func (b *Batch) Files() []domain.PendingFile { return b.files }

// Recovered reports whether this batch was reconstructed from disk.
func (b *Batch) Recovered() bool { return b.recovered }

// descriptorPath returns the path of the bookkeeping file.
func (b *Batch) descriptorPath() string {
	return filepath.Join(b.dir, DescriptorFileName)
}

// Persist commits the batch's membership and totals to the spool directory.
// The descriptor is fully on disk (and flushed, per the configured policy)
// before Persist returns, so a descriptor found after a crash always reflects
// a batch that was fully formed pre-crash.
func (b *Batch) Persist() error {
	d := Descriptor{TotalRows: b.totalRows, TotalBytes: b.totalBytes}
	for _, f := range b.files {
		d.Files = append(d.Files, f.Path)
	}
	if err := writeFileAtomic(b.descriptorPath(), MarshalDescriptor(d), b.opts.Fsync, b.opts.DirFsync); err != nil {
		return fmt.Errorf("persist batch: %w", err)
	}
	b.persisted = true
	return nil
}

// Valid reports whether every member file still exists on disk with a
// readable size. This only matters for recovered batches: fresh batches
// reference files the caller just observed.
func (b *Batch) Valid() bool {
	for _, f := range b.files {
		if _, err := os.Stat(f.Path); err != nil {
			return false
		}
	}
	return true
}

// Result describes the outcome of a Send.
type Result struct {
	// Delivered holds the members confirmed delivered and removed from the
	// spool directory.
	Delivered []domain.PendingFile

	// Remaining holds the members left in place for a later retry cycle.
	Remaining []domain.PendingFile

	// Split is true when the whole-batch send failed and the batch degraded
	// to per-file sends.
	Split bool
}

// Send drives the send protocol against conn.
//
// The whole batch is attempted as one combined operation first. On success,
// every member file is deleted, then the descriptor — in that order, so a
// crash between the two leaves a descriptor pointing at already-deleted
// files, which recovery treats as already delivered.
//
// On failure, with SplitOnFailure set, each member is sent individually: a
// file that delivers is deleted immediately, a file that fails stays for a
// later retry; the descriptor is removed once the pass completes, since
// survivors revert to ordinary pending files. Without SplitOnFailure the
// batch is left intact on disk for the scheduler to retry as a unit.
//
// Send performs no retry loop itself; any transport error surfaces to the
// caller as a retryable failure.
func (b *Batch) Send(ctx context.Context, conn ports.Connection) (Result, error) {
	if !b.persisted {
		return Result{}, fmt.Errorf("%w: batch was never persisted", domain.ErrBatchNotReady)
	}
	if b.recovered && !b.Valid() {
		return Result{}, fmt.Errorf("%w: recovered batch references missing files", domain.ErrBatchNotReady)
	}

	if err := conn.SendBatch(ctx, b.files); err != nil {
		if !b.opts.SplitOnFailure {
			b.opts.Logger.Warn("batch send failed, keeping batch for retry",
				log.Int("files", len(b.files)),
				log.Err(err),
			)
			return Result{Remaining: b.files}, fmt.Errorf("send batch: %w", err)
		}
		b.opts.Logger.Warn("batch send failed, falling back to separate files",
			log.Int("files", len(b.files)),
			log.Err(err),
		)
		return b.sendSeparateFiles(ctx, conn)
	}

	// Member files first, descriptor last.
	for _, f := range b.files {
		if err := removeFile(f.Path, b.opts.DirFsync); err != nil {
			return Result{Delivered: b.files}, err
		}
	}
	if err := b.removeDescriptor(); err != nil {
		return Result{Delivered: b.files}, err
	}

	b.opts.Logger.Info("batch delivered",
		log.Int("files", len(b.files)),
		log.Uint64("rows", b.totalRows),
		log.Uint64("bytes", b.totalBytes),
	)
	return Result{Delivered: b.files}, nil
}

// sendSeparateFiles sends each member individually. Each delivered file is
// its own durability unit: deleted right after its acknowledgment. Failed
// members are left in place and reported through the aggregated error.
func (b *Batch) sendSeparateFiles(ctx context.Context, conn ports.Connection) (Result, error) {
	res := Result{Split: true}
	var errs []error

	for _, f := range b.files {
		if err := conn.SendFile(ctx, f); err != nil {
			b.opts.Logger.Warn("file send failed",
				log.String("file", f.Path),
				log.Err(err),
			)
			res.Remaining = append(res.Remaining, f)
			errs = append(errs, fmt.Errorf("send file %s: %w", f.Path, err))
			continue
		}
		if err := removeFile(f.Path, b.opts.DirFsync); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Delivered = append(res.Delivered, f)
	}

	// The commit record no longer matches reality: delivered members are
	// gone and survivors go back to plain pending files, so the descriptor
	// must not outlive this pass.
	if err := b.removeDescriptor(); err != nil {
		errs = append(errs, err)
	}
	return res, errors.Join(errs...)
}

func (b *Batch) removeDescriptor() error {
	return removeFile(b.descriptorPath(), b.opts.DirFsync)
}
