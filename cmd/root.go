// Package cmd provides the root command and CLI setup for defectbench.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"defectbench.dev/pkg/defectbench/internal/adapter"
	"defectbench.dev/pkg/defectbench/internal/controller"
	"defectbench.dev/pkg/defectbench/internal/domain"
)

// Process exit codes.
const (
	exitOK           = 0
	exitHarnessError = 1
	exitGateFailed   = 2
)

var fsAdapter adapter.SourceFSAdapter
var processAdapter adapter.ProcessAdapter
var reportStore adapter.ReportStore
var corpusLoader domain.CorpusLoader
var workflow domain.Workflow
var ui controller.UI

var verboseFlag bool
var logFileFlag string

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = controller.NewSimpleUI(rootCmd)
	fsAdapter = adapter.NewLocalSourceFSAdapter("")
	processAdapter = adapter.NewLocalProcessAdapter()
	reportStore = adapter.NewReportStore()
	corpusLoader = domain.NewCorpusLoader(fsAdapter)
	workflow = domain.NewWorkflow(
		fsAdapter,
		reportStore,
		processAdapter,
		newCompiler,
		ui,
		corpusLoader,
	)
}

func newCompiler(cfg domain.CompilerConfig) adapter.CompilerAdapter {
	return adapter.NewLocalCompilerAdapter(cfg.Path, cfg.Flags, processAdapter)
}

const rootLongDescription = `defectbench evaluates a static or dynamic analysis tool against a corpus
of C/C++ fault/fix fixtures. Ground truth comes from compiling and running
every fixture under sanitizers in isolated, time-bounded subprocesses; the
tool is then scored per defect category with precision, recall and F1.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defectbench",
		Short: "Evaluate analysis tools against a C/C++ defect corpus",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(logFileFlag, verboseFlag)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)

	cmd.PersistentFlags().StringVar(&logFileFlag, logFileFlagName, viper.GetString(logFilenameKey), "log file path")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(logFileFlagName), logFilenameKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// ExitError carries a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return exitHarnessError
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(exitCode(err))
	}
}
