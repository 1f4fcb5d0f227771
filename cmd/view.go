package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"defectbench.dev/pkg/defectbench/internal/domain"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

var viewInputFlag string

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "View a previously written report",
		Long:  "Render the per-category statistics and findings of a saved YAML or JSON report.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			return workflow.View(cmdContext(cmd), domain.ViewArgs{Input: m.Path(viewInputFlag)})
		},
	}

	cmd.Flags().StringVarP(&viewInputFlag, "input", "i", viper.GetString(outputKey), "report to render")

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
