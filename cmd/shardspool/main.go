package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/shardspool"
	"github.com/bft-labs/shardspool/internal/cliconfig"
	"github.com/bft-labs/shardspool/pkg/log"
)

const longHelp = `Durable batching daemon for asynchronous cross-shard inserts.

Each subdirectory of the spool root queues files for one destination shard.
Pending files are grouped into batches, committed to disk before any network
attempt, and forwarded with crash-safe bookkeeping: a restart resumes the
in-flight batch from disk, and a file is deleted only after its delivery is
acknowledged.`

var exampleUsage = `  shardspool --spool-root /var/lib/shardspool --auth-key <api-key>
  shardspool --config $HOME/.shardspool/config.toml --metrics-addr :9090`

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()

	root := &cobra.Command{
		Use:     "shardspool",
		Short:   "Durable batching daemon for asynchronous cross-shard inserts",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first, then env, then flag overrides.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			// Log configuration (masking the auth key)
			logCfg := cfg
			if len(logCfg.AuthKey) > 0 {
				logCfg.AuthKey = "*****"
			}
			logger.Info().Interface("config", logCfg).Msg("configuration")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err := shardspool.Run(ctx, cfg,
				shardspool.WithLogger(log.NewZerologAdapterWithLogger(logger)),
			)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	flags := root.Flags()
	flags.StringVar(&cfgPath, "config", "", "path to TOML config file")
	flags.StringVar(&cfg.SpoolRoot, "spool-root", cfg.SpoolRoot, "directory holding one spool subdirectory per destination")
	flags.StringVar(&cfg.Scheme, "scheme", cfg.Scheme, "URL scheme used to reach destinations (http or https)")
	flags.StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "bearer token sent with every insert request")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address serving Prometheus metrics (empty disables)")
	flags.IntVar(&cfg.MaxBatchFiles, "max-batch-files", cfg.MaxBatchFiles, "max files per batch (0 disables)")
	flags.Uint64Var(&cfg.MaxBatchRows, "max-batch-rows", cfg.MaxBatchRows, "max rows per batch (0 disables)")
	flags.Uint64Var(&cfg.MaxBatchBytes, "max-batch-bytes", cfg.MaxBatchBytes, "max bytes per batch (0 disables)")
	flags.BoolVar(&cfg.SplitBatchOnFailure, "split-batch-on-failure", cfg.SplitBatchOnFailure, "retry a failed batch file by file")
	flags.BoolVar(&cfg.Fsync, "fsync", cfg.Fsync, "flush batch descriptors to stable storage before sending")
	flags.BoolVar(&cfg.DirFsync, "dir-fsync", cfg.DirFsync, "flush spool directory metadata after descriptor writes")
	flags.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "spool rescan interval")
	flags.DurationVar(&cfg.BackoffInitial, "backoff-initial", cfg.BackoffInitial, "initial retry backoff")
	flags.DurationVar(&cfg.BackoffMax, "backoff-max", cfg.BackoffMax, "max retry backoff")
	flags.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "timeout for insert requests")

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("shardspool exited with error")
		os.Exit(1)
	}
}
