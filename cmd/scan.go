package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"memoscope.dev/pkg/memoscope/internal/adapter"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

var scanParallelFlagValue int

// scanCmd represents the scan command.
var scanCmd = newScanCmd()

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Classify functions as cacheable or not",
		Long:  scanLongDescription,
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()
			paths := parsePaths(args)
			if len(paths) == 0 {
				paths = []m.Path{"."}
			}

			reports, err := scanner.Scan(ctx, paths, viper.GetStringSlice(excludeConfigKey), viper.GetInt(scanParallelConfigKey))
			if err != nil {
				return err
			}

			report := &adapter.ScanReport{Files: reports}

			reportsDir := m.Path(viper.GetString(outputFlagName))
			if err := reportStore.Save(reportsDir, reportFileName, report); err != nil {
				return err
			}

			return ui.DisplayScan(ctx, report)
		},
	}

	configureScanFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func configureScanFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&scanParallelFlagValue, scanParallelFlag, "p", viper.GetInt(scanParallelConfigKey), "number of parallel workers for file classification")
	bindFlagToConfig(cmd.Flags().Lookup(scanParallelFlag), scanParallelConfigKey)
}
