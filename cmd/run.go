package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"defectbench.dev/pkg/defectbench/internal/domain"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

const runLongDescription = `Compile and run every corpus fixture to establish ground truth, run the
tool under test on the same sources, and write a per-category report.

The tool command is split like a shell command line; {source} is replaced
by the fixture path and appended when absent:

  defectbench run --corpus-dir corpus --tool-cmd "cppcheck --enable=all {source}"

Exit codes: 0 on completion, 1 on harness or configuration errors, 2 when
a --gate-fn-rate or --gate-fp-rate threshold is exceeded.`

var (
	runCorpusDirFlag      string
	runToolCmdFlag        string
	runToolFormatFlag     string
	runToolOKExitFlag     []int
	runTimeoutFlag        int
	runCompileTimeoutFlag int
	runConcurrencyFlag    int
	runSanitizerFlag      string
	runCategoryFlag       string
	runRepetitionsFlag    int
	runMaxOutputFlag      int
	runProgressFlag       bool
	runCompilerFlag       string
	runOutputFlag         string
	runGateFNRateFlag     float64
	runGateFPRateFlag     float64
)

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate the tool under test against the corpus",
		Long:  runLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			args, err := runArgsFromConfig()
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true

			ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = workflow.Run(ctx, args)
			if errors.Is(err, domain.ErrGateFailed) {
				return &ExitError{Code: exitGateFailed, Err: err}
			}

			return err
		},
	}

	configureRunFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func configureRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.StringVarP(&runCorpusDirFlag, corpusDirFlagName, "c", viper.GetString(corpusDirKey), "corpus directory holding metadata files")
	bindFlagToConfig(flags.Lookup(corpusDirFlagName), corpusDirKey)

	flags.StringVarP(&runToolCmdFlag, toolCmdFlagName, "t", viper.GetString(toolCmdKey), "tool under test command line ({source} is the fixture path)")
	bindFlagToConfig(flags.Lookup(toolCmdFlagName), toolCmdKey)

	flags.StringVar(&runToolFormatFlag, toolFormatFlagName, viper.GetString(toolFormatKey), "tool output format: text, sarif, infer or json")
	bindFlagToConfig(flags.Lookup(toolFormatFlagName), toolFormatKey)

	flags.IntSliceVar(&runToolOKExitFlag, toolOKExitFlagName, viper.GetIntSlice(toolOKExitKey), "tool exit codes treated as a successful invocation")
	bindFlagToConfig(flags.Lookup(toolOKExitFlagName), toolOKExitKey)

	flags.IntVar(&runTimeoutFlag, timeoutFlagName, viper.GetInt(timeoutKey), "per-execution wall-clock timeout in milliseconds")
	bindFlagToConfig(flags.Lookup(timeoutFlagName), timeoutKey)

	flags.IntVar(&runCompileTimeoutFlag, compileTimeoutFlagName, viper.GetInt(compileTimeoutKey), "per-compilation timeout in milliseconds")
	bindFlagToConfig(flags.Lookup(compileTimeoutFlagName), compileTimeoutKey)

	flags.IntVarP(&runConcurrencyFlag, concurrencyFlagName, "j", viper.GetInt(concurrencyKey), "number of parallel workers (0 = number of CPUs)")
	bindFlagToConfig(flags.Lookup(concurrencyFlagName), concurrencyKey)

	flags.StringVar(&runSanitizerFlag, sanitizerFlagName, viper.GetString(sanitizerKey), "override the per-category sanitizer: address, undefined, thread or none")
	bindFlagToConfig(flags.Lookup(sanitizerFlagName), sanitizerKey)

	flags.StringVar(&runCategoryFlag, categoryFlagName, viper.GetString(categoryKey), "only evaluate this category")
	bindFlagToConfig(flags.Lookup(categoryFlagName), categoryKey)

	flags.IntVar(&runRepetitionsFlag, repetitionsFlagName, viper.GetInt(repetitionsKey), "executions per concurrency fixture")
	bindFlagToConfig(flags.Lookup(repetitionsFlagName), repetitionsKey)

	flags.IntVar(&runMaxOutputFlag, maxOutputFlagName, viper.GetInt(maxOutputKey), "bytes of stdout/stderr kept per stream")
	bindFlagToConfig(flags.Lookup(maxOutputFlagName), maxOutputKey)

	flags.BoolVar(&runProgressFlag, progressFlagName, viper.GetBool(progressKey), "print a line per started and completed trial")
	bindFlagToConfig(flags.Lookup(progressFlagName), progressKey)

	flags.StringVar(&runCompilerFlag, compilerFlagName, viper.GetString(compilerPathKey), "C++ compiler driver")
	bindFlagToConfig(flags.Lookup(compilerFlagName), compilerPathKey)

	flags.StringVarP(&runOutputFlag, outputFlagName, "o", viper.GetString(outputKey), "report path (.json for JSON, YAML otherwise)")
	bindFlagToConfig(flags.Lookup(outputFlagName), outputKey)

	flags.Float64Var(&runGateFNRateFlag, gateFNRateFlagName, viper.GetFloat64(gateFNRateKey), "fail with exit code 2 above this false-negative rate (negative disables)")
	bindFlagToConfig(flags.Lookup(gateFNRateFlagName), gateFNRateKey)

	flags.Float64Var(&runGateFPRateFlag, gateFPRateFlagName, viper.GetFloat64(gateFPRateKey), "fail with exit code 2 above this false-positive rate (negative disables)")
	bindFlagToConfig(flags.Lookup(gateFPRateFlagName), gateFPRateKey)
}

// runArgsFromConfig resolves flags, env and config file into RunArgs.
func runArgsFromConfig() (domain.RunArgs, error) {
	sanitizer, err := m.ParseSanitizer(viper.GetString(sanitizerKey))
	if err != nil {
		return domain.RunArgs{}, fmt.Errorf("--%s: %w", sanitizerFlagName, err)
	}

	category, err := parseCategoryFlag(viper.GetString(categoryKey))
	if err != nil {
		return domain.RunArgs{}, err
	}

	toolCmd := viper.GetString(toolCmdKey)
	if toolCmd == "" {
		return domain.RunArgs{}, fmt.Errorf("--%s is required", toolCmdFlagName)
	}

	timeout := time.Duration(viper.GetInt(timeoutKey)) * time.Millisecond
	if timeout <= 0 {
		return domain.RunArgs{}, fmt.Errorf("--%s must be positive", timeoutFlagName)
	}

	compileTimeout := time.Duration(viper.GetInt(compileTimeoutKey)) * time.Millisecond
	if compileTimeout <= 0 {
		return domain.RunArgs{}, fmt.Errorf("--%s must be positive", compileTimeoutFlagName)
	}

	if viper.GetInt(concurrencyKey) < 0 {
		return domain.RunArgs{}, fmt.Errorf("--%s must not be negative", concurrencyFlagName)
	}

	return domain.RunArgs{
		CorpusDir: m.Path(viper.GetString(corpusDirKey)),
		Category:  category,
		Tool: domain.ToolConfig{
			Command:        toolCmd,
			Format:         viper.GetString(toolFormatKey),
			Timeout:        timeout,
			OKExitCodes:    viper.GetIntSlice(toolOKExitKey),
			MaxOutputBytes: viper.GetInt(maxOutputKey),
		},
		Compiler: domain.CompilerConfig{
			Path:  viper.GetString(compilerPathKey),
			Flags: viper.GetStringSlice(compilerFlagsKey),
		},
		Build: domain.BuildOptions{
			Sanitizer:      sanitizer,
			Timeout:        timeout,
			CompileTimeout: compileTimeout,
			Repetitions:    viper.GetInt(repetitionsKey),
		},
		Workers:        viper.GetInt(concurrencyKey),
		MaxOutputBytes: viper.GetInt(maxOutputKey),
		Output:         m.Path(viper.GetString(outputKey)),
		SpillDir:       viper.GetString(spillDirKey),
		Progress:       viper.GetBool(progressKey),
		Gate: domain.GateConfig{
			FNRate: viper.GetFloat64(gateFNRateKey),
			FPRate: viper.GetFloat64(gateFPRateKey),
		},
	}, nil
}

func parseCategoryFlag(value string) (m.Category, error) {
	if value == "" {
		return "", nil
	}

	category, err := m.ParseCategory(value)
	if err != nil {
		return "", fmt.Errorf("--%s: %w", categoryFlagName, err)
	}

	return category, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}
