package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"memoscope.dev/pkg/memoscope/internal/domain"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "memoscope"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName      = "output"
	excludeFlagName     = "exclude"
	scanParallelFlag    = "parallel"
	minCallsFlagName    = "min-calls"
	minCumTimeFlagName  = "min-cumtime"
	cacheSizeFlagName   = "cache-size"
	hitRateFlagName     = "hit-rate-threshold"
	speedupFlagName     = "speedup-threshold"
	benchPatternFlag    = "bench"
	benchTimeoutFlag    = "bench-timeout"
	memoModuleDirFlag   = "memo-module-dir"

	scanParallelConfigKey = "scan.parallel"
	minCallsConfigKey     = "analysis.min_calls"
	minCumTimeConfigKey   = "analysis.min_cumtime"
	cacheSizeConfigKey    = "validate.cache_size"
	hitRateConfigKey      = "validate.hit_rate_threshold"
	speedupConfigKey      = "validate.speedup_threshold"
	benchPatternConfigKey = "validate.bench_pattern"
	benchTimeoutConfigKey = "validate.bench_timeout"
	memoModuleDirKey      = "validate.memo_module_dir"
	excludeConfigKey      = "paths.exclude"

	defaultBenchTimeout = time.Minute * 5

	defaultReportsDir   = ".memoscope-reports"
	defaultScanParallel = 1
	defaultBenchPattern = "."

	envPrefix = "MEMOSCOPE"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".memoscope.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputFlagName, defaultReportsDir)
	viper.SetDefault(scanParallelConfigKey, defaultScanParallel)
	viper.SetDefault(minCallsConfigKey, domain.DefaultMinCalls)
	viper.SetDefault(minCumTimeConfigKey, domain.DefaultMinCumTime)
	viper.SetDefault(cacheSizeConfigKey, domain.DefaultCacheSize)
	viper.SetDefault(hitRateConfigKey, domain.DefaultHitRateThreshold)
	viper.SetDefault(speedupConfigKey, domain.DefaultSpeedupThreshold)
	viper.SetDefault(benchPatternConfigKey, defaultBenchPattern)
	viper.SetDefault(benchTimeoutConfigKey, int64(defaultBenchTimeout.Seconds()))
	viper.SetDefault(memoModuleDirKey, "")
	viper.SetDefault(excludeConfigKey, []string{})

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
