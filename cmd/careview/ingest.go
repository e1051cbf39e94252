package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyeh/careview/internal/exitcode"
	"github.com/gyeh/careview/internal/ingest"
	"github.com/gyeh/careview/internal/logging"
	"github.com/gyeh/careview/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest bundle files into the database, then exit",
	RunE:  runIngestCmd,
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&cfg.FilePath, "file", "", "Path to one bundle JSON file")
	f.StringVar(&cfg.WatchDir, "dir", "", "Directory of bundle JSON files")
	f.UintVar(&cfg.RetryAttempts, "retry-attempts", ingest.DefaultMaxAttempts, "Retry attempts per store statement on lock contention")
	f.DurationVar(&cfg.RetryDelay, "retry-delay", ingest.DefaultRetryDelay, "Delay between retry attempts")
	rootCmd.AddCommand(ingestCmd)
}

func runIngestCmd(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if err := loadConfigFile(); err != nil {
		log.Error().Err(err).Msg("config file invalid")
		os.Exit(exitcode.UsageError)
	}
	if err := cfg.ValidateDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	var files []string
	switch {
	case cfg.FilePath != "":
		if err := cfg.ValidateFile(); err != nil {
			log.Error().Err(err).Msg("config validation failed")
			os.Exit(exitcode.ValidationError)
		}
		files = []string{cfg.FilePath}
	case cfg.WatchDir != "":
		if err := cfg.ValidateWatchDir(); err != nil {
			log.Error().Err(err).Msg("config validation failed")
			os.Exit(exitcode.ValidationError)
		}
		var err error
		files, err = listBundleFiles(cfg.WatchDir)
		if err != nil {
			log.Error().Err(err).Msg("failed to list bundle files")
			os.Exit(exitcode.ValidationError)
		}
	default:
		log.Error().Msg("--file or --dir is required")
		os.Exit(exitcode.UsageError)
	}

	pool, err := store.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	exec := ingest.NewExecutor(cfg.RetryAttempts, cfg.RetryDelay, log)
	pipe := ingest.NewPipeline(ingest.NewWriter(pool, exec, log), log)

	failed := 0
	for _, file := range files {
		summary, err := pipe.Run(ctx, file)
		if err != nil {
			failed++
			log.Error().Err(err).Str("file", file).Msg("ingest failed")
			continue
		}
		fmt.Printf("%s: patient %s, %d conditions, %d medications, %d encounters (%d rejected, %.1fs)\n",
			filepath.Base(file), summary.PatientID, summary.Conditions,
			summary.Medications, summary.Encounters, summary.RowsRejected,
			summary.Duration.Seconds())
	}

	if failed == len(files) && failed > 0 {
		os.Exit(exitcode.IngestError)
	}
	if failed > 0 {
		os.Exit(exitcode.PartialSuccess)
	}
	return nil
}

func listBundleFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}
