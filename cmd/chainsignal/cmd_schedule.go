package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chainsignal/chainsignal/internal/config"
	"github.com/chainsignal/chainsignal/internal/pipeline"
)

// newScheduleCmd runs only the periodic reputation-recompute/archival
// cycle, without a live chat source — useful for a sidecar
// process that republishes reputations on a cadence independent of
// ingestion.
func newScheduleCmd() *cobra.Command {
	var (
		cronSpec    string
		postgresDSN string
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the periodic reputation/archival scheduler only",
		Long: `Schedule drives the reputation-recompute, aged-outcome-archival, and
sink-republish cycle on its own, without a chat source attached.
Use --cron to drive the cycle on a crontab expression instead of the
configured fixed interval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			dataDir, _ := cmd.Flags().GetString("data-dir")

			cfg, err := config.Load(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, err := pipeline.New(ctx, cfg, pipeline.Options{
				DataDir:     dataDir,
				PostgresDSN: postgresDSN,
			})
			if err != nil {
				return fmt.Errorf("constructing pipeline: %w", err)
			}
			defer p.Close()

			if cronSpec != "" {
				log.Info().Str("cron", cronSpec).Msg("running scheduler on crontab cadence")
				return p.RunScheduleCron(ctx, cronSpec)
			}

			log.Info().Msg("running scheduler on configured fixed interval")
			p.RunSchedule(ctx)
			return nil
		},
	}

	cmd.Flags().StringVar(&cronSpec, "cron", "", "crontab expression to drive the cycle instead of the fixed interval")
	cmd.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "optional Postgres DSN for the reputation-republish sink")

	return cmd
}
