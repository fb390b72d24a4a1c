package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"memoscope.dev/pkg/memoscope/internal/adapter"
	"memoscope.dev/pkg/memoscope/internal/domain"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

var cacheSizeFlagValue int
var hitRateFlagValue float64
var speedupFlagValue float64
var benchPatternFlagValue string
var benchTimeoutFlagValue int64
var memoModuleDirFlagValue string

// validateCmd represents the validate command.
var validateCmd = newValidateCmd()

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [repo-root]",
		Short: "Empirically validate ranked cache candidates",
		Long: `Take the candidates from the last rank, patch a memo wrapper into each
one on an isolated git branch, benchmark the patched tree in a fresh
process, and accept candidates that clear the hit-rate and speedup
thresholds. Every mutation is rolled back, pass or fail. Requires a
clean git working tree.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()

			repoRoot := m.Path(".")
			if len(args) == 1 {
				repoRoot = m.Path(args[0])
			}

			reportsDir := m.Path(viper.GetString(outputFlagName))
			report, err := reportStore.Load(reportsDir, reportFileName)
			if err != nil {
				return fmt.Errorf("no report found in %s, run rank first: %w", reportsDir, err)
			}

			if len(report.Candidates) == 0 {
				return fmt.Errorf("report has no candidates, run rank first")
			}

			bench := adapter.NewLocalBenchRunnerAdapter(benchTimeout())
			validator := domain.NewValidator(gitAdapter, fsAdapter, goFileAdapter, gomodAdapter, bench, ui)

			outcome, err := validator.Validate(ctx, domain.ValidateArgs{
				RepoRoot:         repoRoot,
				Candidates:       report.Candidates,
				CacheSize:        viper.GetInt(cacheSizeConfigKey),
				HitRateThreshold: viper.GetFloat64(hitRateConfigKey),
				SpeedupThreshold: viper.GetFloat64(speedupConfigKey),
				BenchPattern:     viper.GetString(benchPatternConfigKey),
				MemoModuleDir:    viper.GetString(memoModuleDirKey),
			})
			if err != nil {
				return err
			}

			report.Screening = outcome.Screening
			report.Validations = outcome.Validations
			report.Recommendations = outcome.Recommendations
			if err := reportStore.Save(reportsDir, reportFileName, report); err != nil {
				return err
			}

			return ui.DisplayRecommendations(ctx, outcome.Recommendations)
		},
	}

	configureValidateFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func configureValidateFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&cacheSizeFlagValue, cacheSizeFlagName, viper.GetInt(cacheSizeConfigKey), "LRU capacity for injected caches")
	bindFlagToConfig(cmd.Flags().Lookup(cacheSizeFlagName), cacheSizeConfigKey)

	cmd.Flags().Float64Var(&hitRateFlagValue, hitRateFlagName, viper.GetFloat64(hitRateConfigKey), "minimum cache hit rate percentage to accept a candidate")
	bindFlagToConfig(cmd.Flags().Lookup(hitRateFlagName), hitRateConfigKey)

	cmd.Flags().Float64Var(&speedupFlagValue, speedupFlagName, viper.GetFloat64(speedupConfigKey), "minimum benchmark speedup percentage to accept a candidate")
	bindFlagToConfig(cmd.Flags().Lookup(speedupFlagName), speedupConfigKey)

	cmd.Flags().StringVar(&benchPatternFlagValue, benchPatternFlag, viper.GetString(benchPatternConfigKey), "benchmark pattern passed to the test child process")
	bindFlagToConfig(cmd.Flags().Lookup(benchPatternFlag), benchPatternConfigKey)

	cmd.Flags().Int64Var(&benchTimeoutFlagValue, benchTimeoutFlag, viper.GetInt64(benchTimeoutConfigKey), "benchmark child process timeout in seconds")
	bindFlagToConfig(cmd.Flags().Lookup(benchTimeoutFlag), benchTimeoutConfigKey)

	cmd.Flags().StringVar(&memoModuleDirFlagValue, memoModuleDirFlag, viper.GetString(memoModuleDirKey), "local checkout used as a replace target for the memo module")
	bindFlagToConfig(cmd.Flags().Lookup(memoModuleDirFlag), memoModuleDirKey)
}
