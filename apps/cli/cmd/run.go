package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/recurlhq/recurl/packages/output"
	"github.com/recurlhq/recurl/packages/runner"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run request collections",
	Long: `Run the requests of YAML collection files, in file order. Captured
values from earlier responses feed later requests; expectations decide
the exit code.

Examples:
  recurl run api.yaml
  recurl run ./collections/
  recurl run api.yaml --name "create*"
  recurl run api.yaml --var host=staging.example.com
  recurl run api.yaml --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	runNameFlag       string
	runBailFlag       bool
	runVarsFlag       []string
	runOutputFlag     string
	runOutputFileFlag string
	runWatchFlag      bool
)

func init() {
	runCmd.Flags().StringVarP(&runNameFlag, "name", "n", "", "Run only requests matching this name (leading/trailing * wildcard)")
	runCmd.Flags().BoolVar(&runBailFlag, "bail", getEnvBool("RECURL_BAIL", false), "Stop on first failure (env: RECURL_BAIL)")
	runCmd.Flags().StringArrayVar(&runVarsFlag, "var", nil, "Set a collection variable (name=value, repeatable)")
	runCmd.Flags().StringVarP(&runOutputFlag, "output", "o", getEnvString("RECURL_OUTPUT", "console"), "Output format: console, json, junit, tap (env: RECURL_OUTPUT)")
	runCmd.Flags().StringVar(&runOutputFileFlag, "output-file", getEnvString("RECURL_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: RECURL_OUTPUT_FILE)")
	runCmd.Flags().BoolVarP(&runWatchFlag, "watch", "w", false, "Watch files for changes and re-run")
}

func runCommand(cmd *cobra.Command, args []string) error {
	var outWriter io.Writer
	if runOutputFileFlag != "" {
		f, err := os.Create(runOutputFileFlag)
		if err != nil {
			return fileError(fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		outWriter = f
	}

	formatter, err := newRunFormatter(outWriter)
	if err != nil {
		return err
	}

	files, err := collectFiles(args)
	if err != nil {
		return fileError(err)
	}
	if len(files) == 0 {
		return fileError(fmt.Errorf("no .yaml or .yml files found"))
	}

	vars, err := parseVars(runVarsFlag)
	if err != nil {
		return err
	}

	r := runner.New(newClient(), &runner.Config{
		Bail:       runBailFlag,
		NameFilter: runNameFlag,
		Vars:       vars,
		Logger:     newLogger(),
	})

	runAll := func(ctx context.Context, formatter output.Formatter) (failed int, duration time.Duration) {
		start := time.Now()
		for _, file := range files {
			result, err := r.RunFile(ctx, file)
			if err != nil {
				formatter.FormatError(err)
				failed++
				if runBailFlag {
					break
				}
				continue
			}

			formatter.FormatRun(result)
			failed += result.Failed

			if runBailFlag && result.Failed > 0 {
				break
			}
		}
		return failed, time.Since(start)
	}

	failed, total := runAll(cmd.Context(), formatter)

	if flusher, ok := formatter.(output.Flusher); ok {
		if err := flusher.Flush(total); err != nil {
			return internalError(fmt.Errorf("writing output: %w", err))
		}
	}

	if !runWatchFlag {
		if failed > 0 {
			return requestError(fmt.Errorf("%d request(s) failed", failed))
		}
		return nil
	}

	return watchAndRerun(cmd, files, args, runAll)
}

// watchAndRerun re-runs the collections whenever one of their files is
// written, debounced so editors that write repeatedly trigger one run.
func watchAndRerun(cmd *cobra.Command, files, args []string, runAll func(context.Context, output.Formatter) (int, time.Duration)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return internalError(fmt.Errorf("creating file watcher: %w", err))
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				fmt.Fprintf(os.Stderr, "warning: cannot watch %s: %v\n", dir, err)
			}
			watchedDirs[dir] = true
		}
	}

	// Directories given as args are watched recursively so new files count.
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && !watchedDirs[path] {
					_ = watcher.Add(path)
					watchedDirs[path] = true
				}
				return nil
			})
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Write) && isCollectionFile(event.Name) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running...\n\n", event.Name)

					// Buffering formatters need fresh state per run.
					formatter, err := newRunFormatter(nil)
					if err != nil {
						formatter = output.NewConsoleFormatter(
							output.WithVerbose(verboseFlag),
							output.WithNoColor(noColorFlag),
						)
					}

					_, duration := runAll(cmd.Context(), formatter)

					if flusher, ok := formatter.(output.Flusher); ok {
						_ = flusher.Flush(duration)
					}

					fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "warning: watcher error: %v\n", err)
		}
	}
}

// newRunFormatter builds the formatter selected by --output. A nil writer
// keeps each formatter's default destination.
func newRunFormatter(w io.Writer) (output.Formatter, error) {
	switch strings.ToLower(runOutputFlag) {
	case "json":
		var opts []output.JSONOption
		if w != nil {
			opts = append(opts, output.JSONWithWriter(w))
		}
		return output.NewJSONFormatter(opts...), nil
	case "junit":
		var opts []output.JUnitOption
		if w != nil {
			opts = append(opts, output.JUnitWithWriter(w))
		}
		return output.NewJUnitFormatter(opts...), nil
	case "tap":
		var opts []output.TAPOption
		if w != nil {
			opts = append(opts, output.TAPWithWriter(w))
		}
		return output.NewTAPFormatter(opts...), nil
	case "console", "":
		opts := []output.ConsoleOption{
			output.WithVerbose(verboseFlag),
			output.WithNoColor(noColorFlag),
		}
		if w != nil {
			opts = append(opts, output.WithWriter(w))
		}
		return output.NewConsoleFormatter(opts...), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want console, json, junit or tap)", runOutputFlag)
	}
}

func parseVars(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid variable %q (want name=value)", pair)
		}
		vars[name] = value
	}
	return vars, nil
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isCollectionFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else {
			if isCollectionFile(arg) {
				files = append(files, arg)
			}
		}
	}

	return files, nil
}

func isCollectionFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}
