package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recurlhq/recurl/packages/reqfile"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List the requests defined in collections",
	Long: `List the requests defined in YAML collection files.

Examples:
  recurl list api.yaml
  recurl list ./collections/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return fileError(err)
	}
	if len(files) == 0 {
		return fileError(fmt.Errorf("no .yaml or .yml files found"))
	}

	for _, file := range files {
		f, err := reqfile.Load(file)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		title := file
		if f.Name != "" {
			title = f.Name + " (" + file + ")"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", title)

		for _, req := range f.Requests {
			method := strings.ToUpper(req.Method)
			if method == "" {
				method = "GET"
			}
			line := fmt.Sprintf("  - %s (%s %s)", req.Name, method, req.URL)
			if req.Skip {
				line += " [skip]"
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	}

	return nil
}
