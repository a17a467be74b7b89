package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recurlhq/recurl/packages/reqfile"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Validate collection files without executing them",
	Long: `Validate YAML collection files for syntax and structural errors
without sending any requests.

Examples:
  recurl validate api.yaml
  recurl validate ./collections/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return fileError(err)
	}
	if len(files) == 0 {
		return fileError(fmt.Errorf("no .yaml or .yml files found"))
	}

	hasErrors := false
	for _, file := range files {
		if _, err := reqfile.Load(file); err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return fileError(fmt.Errorf("validation failed"))
	}
	return nil
}
