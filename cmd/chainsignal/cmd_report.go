package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chainsignal/chainsignal/internal/config"
	"github.com/chainsignal/chainsignal/internal/pipeline"
)

// newReportCmd prints the current channel-reputation leaderboard
// built from whatever reputation state is on disk, without
// starting ingestion or the scheduler.
func newReportCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the channel reputation leaderboard",
		Long: `Report loads the persisted reputation state and prints every tracked
channel's composite score, tier, win rate, and ROI statistics,
ranked highest-score first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			dataDir, _ := cmd.Flags().GetString("data-dir")

			cfg, err := config.Load(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			ctx := cmd.Context()
			p, err := pipeline.New(ctx, cfg, pipeline.Options{DataDir: dataDir})
			if err != nil {
				return fmt.Errorf("constructing pipeline: %w", err)
			}
			defer p.Close()

			channels := p.ChannelReputations()
			names := make([]string, 0, len(channels))
			for name := range channels {
				names = append(names, name)
			}
			sort.Slice(names, func(i, j int) bool {
				return channels[names[i]].ReputationScore > channels[names[j]].ReputationScore
			})

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(channels)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHANNEL\tTIER\tSCORE\tSIGNALS\tWIN RATE\tAVG ROI\tSHARPE")
			for _, name := range names {
				r := channels[name]
				fmt.Fprintf(w, "%s\t%s\t%.1f\t%d\t%.1f%%\t%.2fx\t%.2f\n",
					r.ChannelName, r.ReputationTier, r.ReputationScore, r.TotalSignals,
					r.WinRate, r.AverageROI, r.SharpeRatio)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the leaderboard as JSON instead of a table")
	return cmd
}
