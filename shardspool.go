// Package shardspool provides the durable, crash-recoverable batching layer
// of an asynchronous cross-shard insert pipeline.
//
// Each subdirectory of the spool root holds files queued for one destination
// shard. A background queue per destination groups pending files into
// batches, commits each batch's membership to disk before any network
// attempt, and forwards the batch to the destination, so a crash mid-send
// loses nothing and resends nothing already acknowledged.
//
// Example usage:
//
//	cfg := shardspool.DefaultConfig()
//	cfg.SpoolRoot = "/var/lib/shardspool"
//	cfg.AuthKey = "your-api-key"
//	if err := shardspool.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
package shardspool

import (
	"context"
	"errors"
	nethttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	fsAdapter "github.com/bft-labs/shardspool/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/shardspool/internal/adapters/http"
	"github.com/bft-labs/shardspool/internal/app"
	"github.com/bft-labs/shardspool/internal/cliconfig"
	"github.com/bft-labs/shardspool/internal/domain"
	"github.com/bft-labs/shardspool/internal/metrics"
	"github.com/bft-labs/shardspool/internal/ports"
	"github.com/bft-labs/shardspool/internal/spool"
	"github.com/bft-labs/shardspool/pkg/log"
)

// Config holds the configuration for the spool batching daemon.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// PendingFile is a spooled insert awaiting delivery.
type PendingFile = domain.PendingFile

// Connection is a capability to deliver spooled inserts to one destination.
type Connection = ports.Connection

// ConnectionProvider resolves a destination identity to a Connection.
type ConnectionProvider = ports.ConnectionProvider

// FileInspector reads per-file insert metadata from a spooled file.
type FileInspector = ports.FileInspector

// Exported domain errors, checkable with errors.Is.
var (
	ErrMalformedDescriptor = domain.ErrMalformedDescriptor
	ErrStaleDescriptor     = domain.ErrStaleDescriptor
	ErrBatchNotReady       = domain.ErrBatchNotReady
	ErrInvalidConfig       = domain.ErrInvalidConfig
)

// DefaultConfig returns a Config with sensible default values.
// At minimum, you must set SpoolRoot before calling Run.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Option configures optional behavior of Run.
type Option func(*options)

type options struct {
	logger   log.Logger
	provider ports.ConnectionProvider
	insp     ports.FileInspector
	registry *prometheus.Registry
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithConnectionProvider sets a custom connection provider. If not provided,
// an HTTP provider built from the configured scheme and auth key is used.
func WithConnectionProvider(provider ConnectionProvider) Option {
	return func(o *options) { o.provider = provider }
}

// WithFileInspector sets a custom spool file inspector.
func WithFileInspector(insp FileInspector) Option {
	return func(o *options) { o.insp = insp }
}

// WithMetricsRegistry sets the Prometheus registry receiving queue counters.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// Run starts the spool batching daemon with the given configuration.
// It blocks until the context is canceled or an unrecoverable error occurs.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewNoopLogger()
	}
	if o.provider == nil {
		client := &nethttp.Client{Timeout: cfg.HTTPTimeout}
		o.provider = httpAdapter.NewProvider(client, cfg.Scheme, cfg.AuthKey, o.logger)
	}
	if o.insp == nil {
		o.insp = fsAdapter.NewHeaderInspector()
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	m := metrics.New(o.registry)

	scheduler := app.NewScheduler(app.SchedulerConfig{
		Root: cfg.SpoolRoot,
		Limits: spool.Limits{
			MaxFiles: cfg.MaxBatchFiles,
			MaxRows:  cfg.MaxBatchRows,
			MaxBytes: cfg.MaxBatchBytes,
		},
		SplitOnFailure: cfg.SplitBatchOnFailure,
		Fsync:          cfg.Fsync,
		DirFsync:       cfg.DirFsync,
		PollInterval:   cfg.PollInterval,
		BackoffInitial: cfg.BackoffInitial,
		BackoffMax:     cfg.BackoffMax,
	}, o.provider, o.insp, o.logger, m)

	if cfg.MetricsAddr != "" {
		srv := &nethttp.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(o.registry)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				o.logger.Error("metrics server stopped", log.Err(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		o.logger.Info("serving metrics", log.String("addr", cfg.MetricsAddr))
	}

	return scheduler.Run(ctx)
}
