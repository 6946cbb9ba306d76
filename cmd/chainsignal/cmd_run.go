package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chainsignal/chainsignal/internal/chatsource"
	"github.com/chainsignal/chainsignal/internal/config"
	"github.com/chainsignal/chainsignal/internal/pipeline"
	"github.com/chainsignal/chainsignal/internal/telemetry"
)

// newRunCmd starts the long-lived ingestion pipeline: chat source ->
// priority queue -> detect/resolve/price/filter/score -> outcome
// tracking, plus the periodic reputation/archival scheduler.
func newRunCmd() *cobra.Command {
	var (
		websocketURL string
		metricsAddr  string
		postgresDSN  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the chat-signal ingestion pipeline",
		Long: `Run streams chat messages from the configured source through
detection, resolution, pricing, filtering, and scoring, admitting
qualifying mentions into outcome tracking. It drives the periodic
reputation-recompute and archival scheduler in the same process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			dataDir, _ := cmd.Flags().GetString("data-dir")

			cfg, err := config.Load(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			telemetry.Init(cfg.Pipeline.LogLevel, true)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var source chatsource.Source
			if websocketURL != "" {
				source = chatsource.NewWebSocketSource(websocketURL)
			}

			p, err := pipeline.New(ctx, cfg, pipeline.Options{
				DataDir:     dataDir,
				Source:      source,
				PostgresDSN: postgresDSN,
			})
			if err != nil {
				return fmt.Errorf("constructing pipeline: %w", err)
			}
			defer p.Close()

			if metricsAddr != "" {
				go serveMetrics(metricsAddr, p.MetricsHandler(), p.ProvidersHandler())
			}

			log.Info().Str("config_dir", configDir).Str("data_dir", dataDir).Msg("chainsignal pipeline starting")
			if err := p.Run(ctx); err != nil {
				return fmt.Errorf("pipeline run: %w", err)
			}
			log.Info().Msg("chainsignal pipeline stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&websocketURL, "websocket-url", "", "chat source websocket endpoint (empty disables live streaming)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve /metrics on (empty disables)")
	cmd.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "optional Postgres DSN for the upsert and message sinks")

	return cmd
}

func serveMetrics(addr string, metricsHandler, providersHandler http.Handler) {
	router := mux.NewRouter()
	router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	router.Handle("/providers", providersHandler).Methods(http.MethodGet)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	log.Info().Str("addr", addr).Msg("serving /metrics and /providers")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}
