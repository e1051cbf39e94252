package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gyeh/careview/internal/exitcode"
	"github.com/gyeh/careview/internal/ingest"
	"github.com/gyeh/careview/internal/insights"
	"github.com/gyeh/careview/internal/logging"
	"github.com/gyeh/careview/internal/server"
	"github.com/gyeh/careview/internal/store"
	"github.com/gyeh/careview/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the records API, ingesting bundle files from a watched directory",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&cfg.ListenAddr, "listen", ":8080", "HTTP listen address")
	f.StringVar(&cfg.WatchDir, "watch-dir", "", "Directory of bundle JSON files to watch (optional)")
	f.DurationVar(&cfg.StabilityWindow, "stability-window", watch.DefaultStability, "Quiet period before a changed file is ingested")
	f.UintVar(&cfg.RetryAttempts, "retry-attempts", ingest.DefaultMaxAttempts, "Retry attempts per store statement on lock contention")
	f.DurationVar(&cfg.RetryDelay, "retry-delay", ingest.DefaultRetryDelay, "Delay between retry attempts")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)

	if err := loadConfigFile(); err != nil {
		log.Error().Err(err).Msg("config file invalid")
		os.Exit(exitcode.UsageError)
	}
	if err := cfg.ValidateDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	if cfg.WatchDir != "" {
		if err := cfg.ValidateWatchDir(); err != nil {
			log.Error().Err(err).Msg("config validation failed")
			os.Exit(exitcode.ValidationError)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	st := store.New(pool)
	hub := server.NewHub(log)

	opts := server.Options{UploadDir: cfg.WatchDir}

	// In-process ingestion: the coordinator notifies the hub directly, and
	// uploads land in the watched directory where the watcher queues them.
	var coord *ingest.Coordinator
	if cfg.WatchDir != "" {
		exec := ingest.NewExecutor(cfg.RetryAttempts, cfg.RetryDelay, log)
		pipe := ingest.NewPipeline(ingest.NewWriter(pool, exec, log), log)
		coord = ingest.NewCoordinator(pipe, hub, log)
		opts.WatchActive = true

		watcher, err := watch.New(cfg.WatchDir, coord, cfg.StabilityWindow, log)
		if err != nil {
			log.Error().Err(err).Msg("failed to start watcher")
			os.Exit(exitcode.ServeError)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("watcher stopped")
			}
		}()
	}

	if cfg.InsightsAPIKey == "" {
		cfg.InsightsAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.InsightsAPIKey != "" {
		var insOpts []insights.Option
		if cfg.InsightsModel != "" {
			insOpts = append(insOpts, insights.WithModel(cfg.InsightsModel))
		}
		opts.Insights = insights.NewClient(cfg.InsightsAPIKey, insOpts...)
		log.Info().Msg("insights enabled")
	}

	srv := server.New(st, hub, opts, log)
	log.Info().Str("addr", cfg.ListenAddr).Msg("serving records API")
	if err := srv.Start(ctx, cfg.ListenAddr); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(exitcode.ServeError)
	}

	if coord != nil {
		coord.WaitIdle()
	}
	return nil
}
