package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bft-labs/shardspool/internal/metrics"
	"github.com/bft-labs/shardspool/internal/ports"
	"github.com/bft-labs/shardspool/internal/spool"
	"github.com/bft-labs/shardspool/pkg/log"
)

// SchedulerConfig configures the spool root scheduler.
type SchedulerConfig struct {
	// Root is the directory holding one spool subdirectory per destination.
	Root string

	Limits         spool.Limits
	SplitOnFailure bool
	Fsync          bool
	DirFsync       bool

	PollInterval   time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Scheduler owns one DirectoryQueue per destination subdirectory of the spool
// root. Each queue runs on its own goroutine so one slow or unreachable
// destination does not stall the others. The scheduler is the only component
// that creates queues, which preserves the single-writer-per-directory rule.
type Scheduler struct {
	cfg      SchedulerConfig
	provider ports.ConnectionProvider
	insp     ports.FileInspector
	logger   log.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler over the given spool root.
func NewScheduler(cfg SchedulerConfig, provider ports.ConnectionProvider, insp ports.FileInspector, logger log.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Scheduler{
		cfg:      cfg,
		provider: provider,
		insp:     insp,
		logger:   logger,
		metrics:  m,
		running:  make(map[string]struct{}),
	}
}

// Run discovers destination directories and keeps a queue worker alive for
// each until ctx is canceled. New subdirectories picked up on later scans get
// workers of their own.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.wg.Wait()

	for {
		if err := s.spawnQueues(ctx); err != nil {
			s.logger.Error("spool root scan failed", log.String("root", s.cfg.Root), log.Err(err))
		}

		t := time.NewTimer(s.cfg.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// spawnQueues starts a worker for every destination directory not yet owned.
func (s *Scheduler) spawnQueues(ctx context.Context) error {
	entries, err := os.ReadDir(s.cfg.Root)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !e.IsDir() || e.Name() == spool.BrokenDirName {
			continue
		}
		s.startQueue(ctx, e.Name())
	}
	return nil
}

func (s *Scheduler) startQueue(ctx context.Context, destination string) {
	s.mu.Lock()
	if _, ok := s.running[destination]; ok {
		s.mu.Unlock()
		return
	}
	s.running[destination] = struct{}{}
	s.mu.Unlock()

	conn, err := s.provider.Connection(destination)
	if err != nil {
		s.logger.Error("cannot resolve destination, skipping",
			log.String("destination", destination),
			log.Err(err),
		)
		s.mu.Lock()
		delete(s.running, destination)
		s.mu.Unlock()
		return
	}

	qcfg := QueueConfig{
		Dir:            s.dirFor(destination),
		Destination:    destination,
		Limits:         s.cfg.Limits,
		SplitOnFailure: s.cfg.SplitOnFailure,
		Fsync:          s.cfg.Fsync,
		DirFsync:       s.cfg.DirFsync,
		PollInterval:   s.cfg.PollInterval,
		BackoffInitial: s.cfg.BackoffInitial,
		BackoffMax:     s.cfg.BackoffMax,
	}
	queue := NewDirectoryQueue(qcfg, conn, s.insp, s.logger, s.metrics)

	s.logger.Info("starting destination queue",
		log.String("destination", destination),
		log.String("dir", qcfg.Dir),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, destination)
			s.mu.Unlock()
		}()
		if err := queue.Run(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("destination queue stopped",
				log.String("destination", destination),
				log.Err(err),
			)
		}
	}()
}

func (s *Scheduler) dirFor(destination string) string {
	return filepath.Join(s.cfg.Root, destination)
}
