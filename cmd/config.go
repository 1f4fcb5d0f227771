package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"defectbench.dev/pkg/defectbench/internal/adapter"
	"defectbench.dev/pkg/defectbench/internal/domain"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "defectbench"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	corpusDirFlagName      = "corpus-dir"
	toolCmdFlagName        = "tool-cmd"
	toolFormatFlagName     = "tool-format"
	toolOKExitFlagName     = "tool-ok-exit-codes"
	timeoutFlagName        = "timeout"
	compileTimeoutFlagName = "compile-timeout"
	concurrencyFlagName    = "concurrency"
	sanitizerFlagName      = "sanitizer"
	categoryFlagName       = "category"
	repetitionsFlagName    = "repetitions"
	maxOutputFlagName      = "max-output-bytes"
	progressFlagName       = "progress"
	compilerFlagName       = "compiler"
	outputFlagName         = "output"
	gateFNRateFlagName     = "gate-fn-rate"
	gateFPRateFlagName     = "gate-fp-rate"
	verboseFlagName        = "verbose"
	logFileFlagName        = "log-file"

	corpusDirKey      = "corpus.dir"
	toolCmdKey        = "tool.cmd"
	toolFormatKey     = "tool.format"
	toolOKExitKey     = "tool.ok_exit_codes"
	timeoutKey        = "run.timeout_ms"
	compileTimeoutKey = "run.compile_timeout_ms"
	concurrencyKey    = "run.concurrency"
	sanitizerKey      = "run.sanitizer"
	categoryKey       = "run.category"
	maxOutputKey      = "run.max_output_bytes"
	progressKey       = "run.progress"
	spillDirKey       = "run.spill_dir"
	repetitionsKey    = "oracle.repetitions"
	compilerPathKey   = "compiler.path"
	compilerFlagsKey  = "compiler.flags"
	outputKey         = "output"
	gateFNRateKey     = "gate.fn_rate"
	gateFPRateKey     = "gate.fp_rate"

	defaultCorpusDir        = "."
	defaultToolFormat       = domain.FormatText
	defaultTimeoutMs        = 10_000
	defaultCompileTimeoutMs = 60_000
	defaultConcurrency      = 0
	defaultReportPath       = "defectbench-report.yaml"
	defaultGateRate         = -1.0

	envPrefix = "DEFECTBENCH"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".defectbench.log"
	defaultLogLevel      = "info"
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

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		slog.Debug("Config file not loaded", "error", err)
	}
}

func setDefaults() {
	viper.SetDefault(configVersionKey, currentConfigVersion)

	viper.SetDefault(corpusDirKey, defaultCorpusDir)
	viper.SetDefault(toolCmdKey, "")
	viper.SetDefault(toolFormatKey, defaultToolFormat)
	viper.SetDefault(toolOKExitKey, []int{0})
	viper.SetDefault(timeoutKey, defaultTimeoutMs)
	viper.SetDefault(compileTimeoutKey, defaultCompileTimeoutMs)
	viper.SetDefault(concurrencyKey, defaultConcurrency)
	viper.SetDefault(sanitizerKey, "")
	viper.SetDefault(categoryKey, "")
	viper.SetDefault(maxOutputKey, adapter.DefaultMaxOutputBytes)
	viper.SetDefault(progressKey, false)
	viper.SetDefault(spillDirKey, "")
	viper.SetDefault(repetitionsKey, domain.DefaultRepetitions)
	viper.SetDefault(compilerPathKey, adapter.DefaultCompiler)
	viper.SetDefault(compilerFlagsKey, adapter.DefaultCompilerFlags)
	viper.SetDefault(outputKey, defaultReportPath)
	viper.SetDefault(gateFNRateKey, defaultGateRate)
	viper.SetDefault(gateFPRateKey, defaultGateRate)

	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)
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

	// Numeric slog levels, e.g. -4 for debug.
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger installs the global slog logger writing to a rotating
// file. verbose forces debug level.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose || viper.GetBool(logVerboseKey) {
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
