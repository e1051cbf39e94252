package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/careview/internal/config"
	"github.com/gyeh/careview/internal/exitcode"
)

var cfg config.Config

var configFile string

var rootCmd = &cobra.Command{
	Use:   "careview",
	Short: "Clinical record bundle ingester and viewer API",
	Long:  "Ingests patient bundle JSON files into Postgres and serves the normalized records over HTTP.",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string (or set DATABASE_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&configFile, "config", "", "Optional YAML config file with tuning knobs")
}

// loadConfigFile merges the optional YAML file, after flags are parsed.
func loadConfigFile() error {
	if configFile == "" {
		return nil
	}
	return cfg.LoadFromFile(configFile)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.UsageError)
	}
}
