// Package cmd provides the root command and CLI setup for memoscope.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"memoscope.dev/pkg/memoscope/internal/adapter"
	"memoscope.dev/pkg/memoscope/internal/controller"
	"memoscope.dev/pkg/memoscope/internal/domain"
	m "memoscope.dev/pkg/memoscope/internal/model"
)

var goFileAdapter adapter.GoFileAdapter
var fsAdapter adapter.SourceFSAdapter
var gitAdapter adapter.GitAdapter
var gomodAdapter adapter.GoModAdapter
var profileAdapter adapter.ProfileAdapter
var reportStore adapter.ReportStore
var classifier *domain.Classifier
var scanner *domain.Scanner
var ranker *domain.Ranker
var ui controller.UI

// reportsOutputDirFlag is a root-level flag shared by commands that read/write reports.
var reportsOutputDirFlag string

// excludePatterns is a root-level flag that filters files for applicable commands.
var excludePatterns []string

func init() {
	// Initialize shared dependencies.
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	goFileAdapter = adapter.NewLocalGoFileAdapter()
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	gitAdapter = adapter.NewLocalGitAdapter()
	gomodAdapter = adapter.NewLocalGoModAdapter()
	profileAdapter = adapter.NewLocalProfileAdapter()
	reportStore = adapter.NewReportStore()
	classifier = domain.NewClassifier(goFileAdapter)
	scanner = domain.NewScanner(fsAdapter, classifier)
	ranker = domain.NewRanker()
}

const pathPatternsHelp = `Supports Go-style path patterns:
  - ./...          recursively scan current directory
  - ./pkg/...      recursively scan pkg directory
  - ./cmd ./pkg    scan multiple directories`

const rootLongDescription = `Memoscope finds functions in a Go codebase that are worth memoizing.
It classifies functions as pure or impure, joins the pure ones with CPU
profile hotspots, and can empirically validate the survivors by patching
a memo wrapper into an isolated git branch, benchmarking it in a fresh
process, and rolling every change back.

` + pathPatternsHelp

const scanLongDescription = `Classify functions in the given paths as cacheable or not (default:
current module) and record existing memo caches.

` + pathPatternsHelp

// reportFileName is the basename (without extension) of the persisted report.
const reportFileName = "analysis"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memoscope",
		Short: "Cache candidate analysis for Go",
		Long:  rootLongDescription,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&reportsOutputDirFlag, outputFlagName, "o",
			viper.GetString(outputFlagName),
			"output directory for analysis reports",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude files whose path contains this substring (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	configureLogger("", viper.GetBool(logVerboseKey))

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}

func benchTimeout() time.Duration {
	seconds := viper.GetInt64(benchTimeoutConfigKey)
	if seconds <= 0 {
		return defaultBenchTimeout
	}

	return time.Duration(seconds) * time.Second
}
