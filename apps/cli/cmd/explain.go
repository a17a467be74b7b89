package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recurlhq/recurl/packages/client"
)

var explainCmd = &cobra.Command{
	Use:   "explain <method> <url>",
	Short: "Print the command a request would run",
	Long: `Print the exact argument list the client would hand to the external
tool, without executing anything. Paths of payloads that would be
spooled are illustrative: every real call writes fresh temp files.

Examples:
  recurl explain get https://api.example.com/users
  recurl explain post https://api.example.com/users -d '{"name":"ana"}'
  recurl explain get https://api.example.com/report --type stream`,
	Args: cobra.ExactArgs(2),
	RunE: explainCommand,
}

func init() {
	addRequestFlags(explainCmd)
}

func explainCommand(cmd *cobra.Command, args []string) error {
	opts, err := buildCallOptions(strings.ToUpper(args[0]), args[1])
	if err != nil {
		return err
	}

	argv, err := newClient().Command(opts)
	if err != nil {
		return internalError(err)
	}

	binary := curlFlag
	if binary == "" {
		binary = client.DefaultBinary
	}
	fmt.Fprintln(cmd.OutOrStdout(), shellJoin(append([]string{binary}, argv...)))
	return nil
}

// shellJoin renders argv for display, quoting arguments that a shell would
// split or expand. Display only, not escaping-correct.
func shellJoin(argv []string) string {
	parts := make([]string, len(argv))
	for i, arg := range argv {
		if arg == "" || strings.ContainsAny(arg, " \t\n\"'{}&|;<>*?$()") {
			parts[i] = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
			continue
		}
		parts[i] = arg
	}
	return strings.Join(parts, " ")
}
