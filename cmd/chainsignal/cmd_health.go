package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chainsignal/chainsignal/internal/config"
	"github.com/chainsignal/chainsignal/internal/pipeline"
)

// newHealthCmd probes the detector and price-engine provider chain
// without starting ingestion, for use as a readiness/liveness check.
func newHealthCmd() *cobra.Command {
	var (
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check detector and provider health",
		Long: `Health constructs the pipeline, confirms the detector has a non-empty
ticker/keyword set, and probes the price engine with a known-good token
to confirm at least one price provider is reachable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			dataDir, _ := cmd.Flags().GetString("data-dir")

			cfg, err := config.Load(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			p, err := pipeline.New(ctx, cfg, pipeline.Options{DataDir: dataDir})
			if err != nil {
				return fmt.Errorf("constructing pipeline: %w", err)
			}
			defer p.Close()

			hc := p.HealthCheck(ctx)

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(hc)
			}

			fmt.Printf("detector functional:   %v\n", hc.DetectorFunctional)
			fmt.Printf("price engine healthy:  %v\n", hc.PriceEngineHealthy)
			if hc.PriceEngineError != "" {
				fmt.Printf("price engine error:    %s\n", hc.PriceEngineError)
			}
			fmt.Printf("queue depth:           %d\n", hc.QueueDepth)
			for stage, m := range hc.StageLatencies {
				fmt.Printf("stage %-10s p50=%.1fms p95=%.1fms p99=%.1fms n=%d\n", stage, m.P50, m.P95, m.P99, m.Count)
			}
			fmt.Printf("providers healthy:    %d/%d\n", hc.ProviderFleet.HealthyProviders, hc.ProviderFleet.TotalProviders)

			if !hc.DetectorFunctional || !hc.PriceEngineHealthy {
				return fmt.Errorf("health check failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print health status as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "overall health check timeout")
	return cmd
}
