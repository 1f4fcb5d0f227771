package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"defectbench.dev/pkg/defectbench/internal/domain"
	m "defectbench.dev/pkg/defectbench/internal/model"
)

var (
	validateCorpusDirFlag string
	validateCategoryFlag  string
)

// validateCmd represents the validate command.
var validateCmd = newValidateCmd()

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate corpus metadata",
		Long: `Load every metadata file under the corpus directory, check ids, sources,
fault/fix coverage and sibling links, and print a per-category summary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			category, err := parseCategoryFlag(validateCategoryFlag)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true

			return workflow.Validate(cmdContext(cmd), domain.ValidateArgs{
				CorpusDir: m.Path(validateCorpusDirFlag),
				Category:  category,
			})
		},
	}

	cmd.Flags().StringVarP(&validateCorpusDirFlag, corpusDirFlagName, "c", viper.GetString(corpusDirKey), "corpus directory holding metadata files")
	cmd.Flags().StringVar(&validateCategoryFlag, categoryFlagName, viper.GetString(categoryKey), "only summarize this category")

	return cmd
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
