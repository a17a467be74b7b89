package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initForceFlag bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example collection",
	Long: `Create recurl.yaml in the current directory as a starting point.

Examples:
  recurl init
  recurl init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&initForceFlag, "force", "f", false, "Overwrite an existing file")
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return internalError(err)
	}

	path := filepath.Join(cwd, "recurl.yaml")
	if !initForceFlag {
		if _, err := os.Stat(path); err == nil {
			return fileError(fmt.Errorf("file already exists: %s (use --force to overwrite)", path))
		}
	}

	if err := os.WriteFile(path, []byte(exampleCollection), 0644); err != nil {
		return fileError(fmt.Errorf("creating collection: %w", err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", path)
	fmt.Fprintf(cmd.OutOrStdout(), "\nRun 'recurl run recurl.yaml' to execute it.\n")
	return nil
}

const exampleCollection = `name: Example API

vars:
  baseUrl: https://jsonplaceholder.typicode.com

defaults:
  headers:
    Accept: application/json
  timeout: 10000

requests:
  - name: list posts
    url: "{{baseUrl}}/posts"
    expect:
      - path: "0.id"
        exists: true

  - name: create post
    method: POST
    url: "{{baseUrl}}/posts"
    headers:
      Content-Type: application/json
    body:
      title: Hello from recurl
      body: "created at {{now()}}"
      userId: 1
    capture:
      postId: id
    expect:
      - path: title
        equals: Hello from recurl

  - name: fetch created post
    url: "{{baseUrl}}/posts/{{postId}}"
    expect:
      - path: id
        exists: true
    bench:
      skip: true
`
