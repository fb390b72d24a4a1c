package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"memoscope.dev/pkg/memoscope/internal/domain"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

// rankCmd represents the rank command.
var rankCmd = newRankCmd()

func newRankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank cache candidates by joining purity and hotspots",
		Long: `Join the pure functions from the last scan with the hotspots from the
last profile and rank the intersection by priority and cumulative time.
Run "scan" and "hotspots" first.`,
		Args: cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			reportsDir := m.Path(viper.GetString(outputFlagName))
			report, err := reportStore.Load(reportsDir, reportFileName)
			if err != nil {
				return fmt.Errorf("no report found in %s, run scan first: %w", reportsDir, err)
			}

			candidates := ranker.Rank(domain.AllCandidates(report.Files), report.Hotspots)

			report.Candidates = candidates
			if err := reportStore.Save(reportsDir, reportFileName, report); err != nil {
				return err
			}

			return ui.DisplayCandidates(ctx, candidates)
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(rankCmd)
}
