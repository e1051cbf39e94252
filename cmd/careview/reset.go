package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/careview/internal/exitcode"
	"github.com/gyeh/careview/internal/ingest"
	"github.com/gyeh/careview/internal/logging"
	"github.com/gyeh/careview/internal/store"
)

var resetReingestDir string

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all stored records, optionally re-ingesting a directory",
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().StringVar(&resetReingestDir, "reingest-dir", "", "Directory of bundle files to ingest after the wipe")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if err := cfg.ValidateDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool, err := store.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	st := store.New(pool)
	if err := st.ClearAll(ctx, log); err != nil {
		log.Error().Err(err).Msg("reset failed")
		os.Exit(exitcode.IngestError)
	}
	fmt.Println("All stored records deleted.")

	if resetReingestDir == "" {
		return nil
	}

	files, err := listBundleFiles(resetReingestDir)
	if err != nil {
		log.Error().Err(err).Msg("failed to list bundle files")
		os.Exit(exitcode.ValidationError)
	}

	exec := ingest.NewExecutor(cfg.RetryAttempts, cfg.RetryDelay, log)
	pipe := ingest.NewPipeline(ingest.NewWriter(pool, exec, log), log)

	failed := 0
	for _, file := range files {
		if _, err := pipe.Run(ctx, file); err != nil {
			failed++
			log.Error().Err(err).Str("file", file).Msg("re-ingest failed")
		}
	}
	fmt.Printf("Re-ingested %d of %d bundle files.\n", len(files)-failed, len(files))
	if failed > 0 {
		os.Exit(exitcode.PartialSuccess)
	}
	return nil
}
