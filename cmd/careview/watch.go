package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gyeh/careview/internal/exitcode"
	"github.com/gyeh/careview/internal/ingest"
	"github.com/gyeh/careview/internal/logging"
	"github.com/gyeh/careview/internal/notify"
	"github.com/gyeh/careview/internal/store"
	"github.com/gyeh/careview/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a directory and ingest bundle files as they arrive",
	RunE:  runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&cfg.WatchDir, "dir", "", "Directory to watch for bundle JSON files (required)")
	f.StringVar(&cfg.NotifyURL, "notify-url", "", "Endpoint to POST after each successful ingestion")
	f.DurationVar(&cfg.StabilityWindow, "stability-window", watch.DefaultStability, "Quiet period before a changed file is ingested")
	f.UintVar(&cfg.RetryAttempts, "retry-attempts", ingest.DefaultMaxAttempts, "Retry attempts per store statement on lock contention")
	f.DurationVar(&cfg.RetryDelay, "retry-delay", ingest.DefaultRetryDelay, "Delay between retry attempts")
	_ = watchCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)

	if err := loadConfigFile(); err != nil {
		log.Error().Err(err).Msg("config file invalid")
		os.Exit(exitcode.UsageError)
	}
	if err := cfg.ValidateDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	if err := cfg.ValidateWatchDir(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.ValidationError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	var notifier ingest.Notifier = notify.Nop{}
	if cfg.NotifyURL != "" {
		notifier = notify.NewHTTP(cfg.NotifyURL)
	}

	exec := ingest.NewExecutor(cfg.RetryAttempts, cfg.RetryDelay, log)
	pipe := ingest.NewPipeline(ingest.NewWriter(pool, exec, log), log)
	coord := ingest.NewCoordinator(pipe, notifier, log)

	watcher, err := watch.New(cfg.WatchDir, coord, cfg.StabilityWindow, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to start watcher")
		os.Exit(exitcode.IngestError)
	}

	log.Info().Str("dir", cfg.WatchDir).Msg("watching for bundle files")
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("watcher failed")
		os.Exit(exitcode.IngestError)
	}

	// Let the in-flight job and backlog finish before exiting.
	coord.WaitIdle()
	return nil
}
