package cmd

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"defectbench.dev/pkg/defectbench/internal/adapter"
)

const compilerProbeTimeout = 5 * time.Second

var versionShortFlag bool

// buildVersion describes the running binary.
type buildVersion struct {
	Version   string
	GoVersion string
	Revision  string
	Modified  bool
}

func readBuildVersion() buildVersion {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return buildVersion{Version: "unknown"}
	}

	v := buildVersion{Version: info.Main.Version, GoVersion: info.GoVersion}
	if v.Version == "" {
		v.Version = "unknown"
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			v.Revision = setting.Value
		case "vcs.modified":
			v.Modified = setting.Value == "true"
		}
	}

	return v
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the defectbench, Go and compiler versions",
		Long: `Print the defectbench build version and the Go toolchain it was built
with, followed by the first line of "<compiler> --version" for the
configured compiler driver.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			v := readBuildVersion()
			out := cmd.OutOrStdout()

			if versionShortFlag {
				_, _ = fmt.Fprintln(out, v.Version)
				return
			}

			printVersion(out, v, probeCompiler(cmdContext(cmd), viper.GetString(compilerPathKey)))
		},
	}

	cmd.Flags().BoolVar(&versionShortFlag, "short", false, "print only the defectbench version")

	return cmd
}

func printVersion(out io.Writer, v buildVersion, compiler string) {
	_, _ = fmt.Fprintf(out, "defectbench\t%s\n", v.Version)

	if v.Revision != "" {
		revision := v.Revision
		if v.Modified {
			revision += " (modified)"
		}

		_, _ = fmt.Fprintf(out, "revision\t%s\n", revision)
	}

	if v.GoVersion != "" {
		_, _ = fmt.Fprintf(out, "go\t\t%s\n", v.GoVersion)
	}

	_, _ = fmt.Fprintf(out, "compiler\t%s\n", compiler)
}

// probeCompiler returns the first line of the compiler's --version output,
// or a note explaining why it could not be read.
func probeCompiler(ctx context.Context, path string) string {
	if path == "" {
		path = adapter.DefaultCompiler
	}

	execution, err := processAdapter.Run(ctx, adapter.ProcessRequest{
		Path:    path,
		Args:    []string{"--version"},
		Timeout: compilerProbeTimeout,
	})
	if err != nil {
		return path + ": not found"
	}

	if !execution.Exit.Success() {
		return fmt.Sprintf("%s: %s", path, execution.Exit)
	}

	line, _, _ := strings.Cut(strings.TrimSpace(string(execution.Stdout)), "\n")

	return line
}

// versionCmd represents the version command.
var versionCmd = newVersionCmd()

func init() {
	rootCmd.AddCommand(versionCmd)
}
