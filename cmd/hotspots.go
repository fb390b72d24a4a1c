package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"memoscope.dev/pkg/memoscope/internal/adapter"
	"memoscope.dev/pkg/memoscope/internal/domain"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

var minCallsFlagValue int64
var minCumTimeFlagValue float64

// hotspotsCmd represents the hotspots command.
var hotspotsCmd = newHotspotsCmd()

func newHotspotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hotspots <profile>",
		Short: "Extract hotspots from a CPU profile",
		Long: `Read a pprof CPU profile and list the project functions that exceed the
call count and cumulative time thresholds, sorted by cumulative time.
Runtime and dependency frames are filtered out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()

			extractor := domain.NewHotspotExtractor(
				profileAdapter,
				viper.GetInt64(minCallsConfigKey),
				viper.GetFloat64(minCumTimeConfigKey),
			)
			hotspots := extractor.Extract(m.Path(args[0]))

			reportsDir := m.Path(viper.GetString(outputFlagName))
			report, err := reportStore.Load(reportsDir, reportFileName)
			if err != nil {
				// No prior scan: persist the hotspots on their own.
				report = &adapter.ScanReport{}
			}

			report.Hotspots = hotspots
			if err := reportStore.Save(reportsDir, reportFileName, report); err != nil {
				return err
			}

			return ui.DisplayHotspots(ctx, hotspots)
		},
	}

	configureHotspotsFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(hotspotsCmd)
}

func configureHotspotsFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&minCallsFlagValue, minCallsFlagName, viper.GetInt64(minCallsConfigKey), "minimum sampled call count for a hotspot")
	bindFlagToConfig(cmd.Flags().Lookup(minCallsFlagName), minCallsConfigKey)

	cmd.Flags().Float64Var(&minCumTimeFlagValue, minCumTimeFlagName, viper.GetFloat64(minCumTimeConfigKey), "minimum cumulative time in seconds for a hotspot")
	bindFlagToConfig(cmd.Flags().Lookup(minCumTimeFlagName), minCumTimeConfigKey)
}
