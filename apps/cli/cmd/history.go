package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/recurlhq/recurl/packages/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded requests",
	Long: `Inspect requests recorded with --save. History lives in a local SQLite
database, ~/.recurl/history.db by default (override with RECURL_HISTORY).

Examples:
  recurl history list
  recurl history list --limit 50
  recurl history show a1b2c3d4
  recurl history clear`,
}

var historyLimitFlag int

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent requests, newest first",
	Args:  cobra.NoArgs,
	RunE:  historyListCommand,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one request (an ID prefix is enough)",
	Args:  cobra.ExactArgs(1),
	RunE:  historyShowCommand,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded requests",
	Args:  cobra.NoArgs,
	RunE:  historyClearCommand,
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimitFlag, "limit", "l", 20, "Most recent entries to show (0 for all)")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
}

// openHistory opens the store at RECURL_HISTORY or the per-user default.
func openHistory() (*history.Store, error) {
	path := os.Getenv("RECURL_HISTORY")
	if path == "" {
		var err error
		path, err = history.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return history.Open(path)
}

func historyListCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return fileError(err)
	}
	defer store.Close()

	entries, err := store.List(cmd.Context(), historyLimitFlag)
	if err != nil {
		return internalError(err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No history recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tMETHOD\tURL\tSTATUS\tDURATION")
	for _, e := range entries {
		status := fmt.Sprintf("%d", e.Status)
		if e.Error != "" {
			status = "error"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%dms\n",
			shortID(e.ID), e.Time.Format(time.DateTime), e.Method, e.URL, status, e.DurationMs)
	}
	return w.Flush()
}

func historyShowCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return fileError(err)
	}
	defer store.Close()

	e, err := store.Get(cmd.Context(), args[0])
	if errors.Is(err, history.ErrNotFound) {
		return fileError(err)
	}
	if err != nil {
		return internalError(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:        %s\n", e.ID)
	fmt.Fprintf(out, "Time:      %s\n", e.Time.Format(time.RFC3339))
	fmt.Fprintf(out, "Method:    %s\n", e.Method)
	fmt.Fprintf(out, "URL:       %s\n", e.URL)
	if e.FinalURL != "" && e.FinalURL != e.URL {
		fmt.Fprintf(out, "Final URL: %s\n", e.FinalURL)
	}
	fmt.Fprintf(out, "Status:    %d\n", e.Status)
	fmt.Fprintf(out, "Duration:  %dms\n", e.DurationMs)
	if e.Retries > 0 {
		fmt.Fprintf(out, "Retries:   %d\n", e.Retries)
	}
	if e.Redirects > 0 {
		fmt.Fprintf(out, "Redirects: %d\n", e.Redirects)
	}
	if e.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", e.Error)
	}
	return nil
}

func historyClearCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return fileError(err)
	}
	defer store.Close()

	n, err := store.Clear(cmd.Context())
	if err != nil {
		return internalError(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries.\n", n)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
