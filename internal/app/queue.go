package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/shardspool/internal/domain"
	"github.com/bft-labs/shardspool/internal/metrics"
	"github.com/bft-labs/shardspool/internal/ports"
	"github.com/bft-labs/shardspool/internal/spool"
	"github.com/bft-labs/shardspool/pkg/log"
)

// QueueConfig configures a single per-destination queue worker.
type QueueConfig struct {
	// Dir is the spool directory owned by this queue.
	Dir string

	// Destination is the identity of the remote shard, by convention the
	// base name of Dir.
	Destination string

	Limits         spool.Limits
	SplitOnFailure bool
	Fsync          bool
	DirFsync       bool

	// PollInterval bounds how long new spool files can go unnoticed when
	// filesystem notifications are unavailable.
	PollInterval time.Duration

	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// DirectoryQueue owns the batch lifecycle for one spool directory: it
// discovers pending files, accumulates them into batches, persists each batch
// before sending, and retries failed sends with backoff. It is the single
// writer for its directory.
type DirectoryQueue struct {
	cfg     QueueConfig
	conn    ports.Connection
	insp    ports.FileInspector
	logger  log.Logger
	metrics *metrics.Metrics

	registry *spool.Registry

	// inflight is a persisted batch awaiting (re)send: either recovered
	// from disk at startup or kept intact after a failed unsplit send.
	inflight *spool.Batch
}

// NewDirectoryQueue creates a queue worker for one spool directory.
func NewDirectoryQueue(cfg QueueConfig, conn ports.Connection, insp ports.FileInspector, logger log.Logger, m *metrics.Metrics) *DirectoryQueue {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &DirectoryQueue{
		cfg:      cfg,
		conn:     conn,
		insp:     insp,
		logger:   logger,
		metrics:  m,
		registry: spool.NewRegistry(),
	}
}

func (q *DirectoryQueue) batchOptions() spool.Options {
	return spool.Options{
		SplitOnFailure: q.cfg.SplitOnFailure,
		Fsync:          q.cfg.Fsync,
		DirFsync:       q.cfg.DirFsync,
		Logger:         q.logger,
	}
}

// Run executes the queue loop until ctx is canceled. It first resumes any
// batch left on disk by a previous process, then alternates between scanning
// for new pending files and draining them in batches. Send failures are
// retried with exponential backoff; a contract violation
// (domain.ErrBatchNotReady) aborts the queue.
func (q *DirectoryQueue) Run(ctx context.Context) error {
	recovered, err := spool.Recover(q.cfg.Dir, q.cfg.Limits, q.batchOptions(), q.logger)
	if err != nil {
		return err
	}
	if recovered != nil {
		q.inflight = recovered
		q.metrics.BatchesRecovered.WithLabelValues(q.cfg.Destination).Inc()
	}

	// Filesystem notifications make discovery prompt; polling remains the
	// correctness fallback.
	var events chan struct{}
	watcher, werr := fsnotify.NewWatcher()
	if werr == nil {
		if err := watcher.Add(q.cfg.Dir); err != nil {
			q.logger.Warn("spool watch unavailable, using polling only",
				log.String("dir", q.cfg.Dir),
				log.Err(err),
			)
			watcher.Close()
			watcher = nil
		}
	} else {
		q.logger.Warn("fsnotify unavailable, using polling only", log.Err(werr))
		watcher = nil
	}
	if watcher != nil {
		defer watcher.Close()
		events = make(chan struct{}, 1)
		go q.forwardEvents(ctx, watcher, events)
	}

	retry := newBackoff(q.cfg.BackoffInitial, q.cfg.BackoffMax)

	for {
		err := q.ProcessPending(ctx)
		switch {
		case err == nil:
			retry.Reset()
		case errors.Is(err, domain.ErrBatchNotReady):
			return err
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			q.logger.Warn("send cycle failed, backing off",
				log.String("destination", q.cfg.Destination),
				log.Duration("backoff", retry.Current()),
				log.Err(err),
			)
			if werr := retry.Wait(ctx); werr != nil {
				return werr
			}
			continue
		}

		t := time.NewTimer(q.cfg.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-events:
			t.Stop()
		case <-t.C:
		}
	}
}

// forwardEvents collapses fsnotify create/rename events into a wakeup signal.
func (q *DirectoryQueue) forwardEvents(ctx context.Context, watcher *fsnotify.Watcher, events chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Base(ev.Name) == spool.DescriptorFileName {
				continue
			}
			select {
			case events <- struct{}{}:
			default:
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// ProcessPending runs one full cycle: rescan the directory, then drain the
// registry into persisted batches and send them. It returns nil when every
// known pending file has been delivered, or the first retryable error
// encountered, leaving on-disk state consistent for the next cycle.
func (q *DirectoryQueue) ProcessPending(ctx context.Context) error {
	// A batch kept intact after a failed unsplit send (or recovered at
	// startup) is retried as a unit before anything new is formed.
	if q.inflight != nil {
		if err := q.sendBatch(ctx, q.inflight); err != nil {
			// A split pass removed the descriptor and its survivors
			// revert to ordinary pending files; only an unsplit
			// failure leaves the batch intact for another attempt.
			if q.cfg.SplitOnFailure {
				q.inflight = nil
			}
			return err
		}
		q.inflight = nil
	}

	if err := q.scan(); err != nil {
		return err
	}

	for q.registry.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		b := spool.NewBatch(q.cfg.Dir, q.cfg.Limits, q.batchOptions())
		for _, f := range q.registry.Pending() {
			if !b.Accept(f) {
				break
			}
			if b.IsEnoughSize() {
				break
			}
		}
		if b.Empty() {
			return nil
		}

		if err := b.Persist(); err != nil {
			return err
		}
		if err := q.sendBatch(ctx, b); err != nil {
			if !q.cfg.SplitOnFailure {
				q.inflight = b
			}
			return err
		}
	}
	return nil
}

// sendBatch drives one send attempt and reconciles the registry with its
// outcome. Delivered members are forgotten; members left on disk stay
// registered for the next batch.
func (q *DirectoryQueue) sendBatch(ctx context.Context, b *spool.Batch) error {
	res, err := b.Send(ctx, q.conn)

	for _, f := range res.Delivered {
		q.registry.Forget(f.Path)
	}
	q.metrics.FilesSent.WithLabelValues(q.cfg.Destination).Add(float64(len(res.Delivered)))
	if res.Split {
		q.metrics.BatchSplits.WithLabelValues(q.cfg.Destination).Inc()
	}

	if err != nil {
		q.metrics.SendFailures.WithLabelValues(q.cfg.Destination).Inc()
		return err
	}
	q.metrics.BatchesSent.WithLabelValues(q.cfg.Destination).Inc()
	return nil
}

// scan lists the spool directory and registers files not yet known. Files
// whose metadata header cannot be read are quarantined instead of blocking
// the queue.
func (q *DirectoryQueue) scan() error {
	entries, err := os.ReadDir(q.cfg.Dir)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == spool.DescriptorFileName || strings.HasSuffix(name, ".tmp") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(q.cfg.Dir, name)
		if q.registry.Known(path) {
			continue
		}
		f, err := q.insp.Inspect(path)
		if err != nil {
			q.logger.Error("quarantining unreadable spool file",
				log.String("file", path),
				log.Err(err),
			)
			if qerr := spool.Quarantine(path); qerr != nil {
				return qerr
			}
			q.metrics.FilesQuarantined.WithLabelValues(q.cfg.Destination).Inc()
			continue
		}
		q.registry.Observe(f)
	}
	return nil
}
