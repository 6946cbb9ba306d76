package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chainsignal/chainsignal/internal/telemetry"
)

const (
	appName = "chainsignal"
	version = "v0.1.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Crypto chat-signal ingestion and reputation pipeline",
		Version: version,
	}

	rootCmd.PersistentFlags().String("config-dir", "config", "directory containing tickers/keywords/filter/providers/pipeline YAML")
	rootCmd.PersistentFlags().String("data-dir", "data", "directory for persisted JSON state and caches")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newScheduleCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newHealthCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	telemetry.Init("INFO", true)
}
