package cmd

import (
	"github.com/spf13/cobra"

	"defectbench.dev/pkg/defectbench/internal/domain"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

const defaultImportOutput = "metadata.yaml"

var (
	importFromFlag   string
	importOutputFlag string
)

// importCmd represents the import command.
var importCmd = newImportCmd()

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Derive metadata from a legacy TCnn/SOLnn corpus",
		Long: `Scan a legacy corpus of TCnn_*.cpp fault files and SOLnn_*.cpp fix files,
read the "// Category:" header of each, and write explicit metadata pairing
TCnn with SOLnn. Files without a counterpart or a category are listed and
left out; nothing is paired by guesswork.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			return workflow.Import(cmdContext(cmd), domain.ImportArgs{
				From:   m.Path(importFromFlag),
				Output: m.Path(importOutputFlag),
			})
		},
	}

	cmd.Flags().StringVar(&importFromFlag, "from", ".", "legacy corpus directory")
	cmd.Flags().StringVarP(&importOutputFlag, outputFlagName, "o", defaultImportOutput, "metadata file to write")

	return cmd
}

func init() {
	rootCmd.AddCommand(importCmd)
}
