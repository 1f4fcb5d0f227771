package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"defectbench.dev/pkg/defectbench/internal/domain"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

const defaultMergeOutput = "defectbench-merged.yaml"

var (
	mergeOutputFlag     string
	mergeGateFNRateFlag float64
	mergeGateFPRateFlag float64
)

// mergeCmd represents the merge command.
var mergeCmd = newMergeCmd()

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge REPORT...",
		Short: "Merge reports of disjoint runs into one",
		Long: `Combine reports produced by separate runs over disjoint parts of the
corpus, for example one run per --category, into a single report. Counts
are summed and precision, recall and F1 recomputed. A case that appears in
more than one report is an error. The gate thresholds apply to the merged
totals and exit with code 2 when exceeded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			inputs := make([]m.Path, 0, len(args))
			for _, arg := range args {
				inputs = append(inputs, m.Path(arg))
			}

			err := workflow.Merge(cmdContext(cmd), domain.MergeArgs{
				Inputs: inputs,
				Output: m.Path(mergeOutputFlag),
				Gate: domain.GateConfig{
					FNRate: mergeGateFNRateFlag,
					FPRate: mergeGateFPRateFlag,
				},
			})
			if errors.Is(err, domain.ErrGateFailed) {
				return &ExitError{Code: exitGateFailed, Err: err}
			}

			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&mergeOutputFlag, outputFlagName, "o", defaultMergeOutput, "merged report path (.json for JSON, YAML otherwise)")
	flags.Float64Var(&mergeGateFNRateFlag, gateFNRateFlagName, viper.GetFloat64(gateFNRateKey), "fail with exit code 2 above this false-negative rate (negative disables)")
	flags.Float64Var(&mergeGateFPRateFlag, gateFPRateFlagName, viper.GetFloat64(gateFPRateKey), "fail with exit code 2 above this false-positive rate (negative disables)")

	return cmd
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
