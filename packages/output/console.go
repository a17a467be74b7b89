package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"

	"github.com/recurlhq/recurl/packages/client"
	"github.com/recurlhq/recurl/packages/runner"
)

// ConsoleFormatter writes human-readable results to a terminal.
type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// FormatRun prints one collection run: a line per request, failed check
// details, and a summary with counts and total time.
func (f *ConsoleFormatter) FormatRun(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	title := result.File
	if result.Name != "" {
		title = result.Name + " (" + result.File + ")"
	}
	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Running: "+title))

	for _, r := range result.Results {
		if r.Skipped {
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), r.Name)
			if r.SkipReason != "" && r.SkipReason != "filtered out" {
				fmt.Fprintf(f.writer, " (%s)", r.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		}

		if r.Error != nil {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), r.Name, red(fmt.Sprintf("(%v)", r.Error)))
			continue
		}

		symbol := green("✓")
		if !r.Passed {
			symbol = red("✗")
		}
		fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))

		if !r.Passed {
			for _, c := range r.Checks {
				if c.Passed {
					continue
				}
				fmt.Fprintf(f.writer, "    %s %s\n", red("→"), c.Desc)
				if c.Message != "" {
					fmt.Fprintf(f.writer, "      %s\n", c.Message)
				}
			}
		}

		if f.verbose && r.Response != nil {
			f.printCallDetails(r.Response)
		}

		if f.verbose && len(r.Captures) > 0 {
			fmt.Fprintf(f.writer, "    Captures:\n")
			for _, name := range sortedCaptureNames(r.Captures) {
				fmt.Fprintf(f.writer, "      %s = %s\n", name, formatValue(r.Captures[name], 100))
			}
		}
	}

	fmt.Fprintf(f.writer, "\nRequests: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	total := result.Passed + result.Failed + result.Skipped
	fmt.Fprintf(f.writer, "%d total\n", total)
	fmt.Fprintf(f.writer, "Time:     %dms\n\n", result.Duration.Milliseconds())
}

// FormatResponse prints one ad-hoc response: a summary line, verbose call
// details, then the body. Parsed JSON bodies are re-indented; streamed
// bodies report their file path instead.
func (f *ConsoleFormatter) FormatResponse(resp *client.Response) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintf(f.writer, "%s %s", green(fmt.Sprintf("%d %s", resp.Status, resp.StatusText)),
		cyan(fmt.Sprintf("(%dms)", resp.DurationMs())))
	if resp.Meta != nil && resp.Meta.Retries > 0 {
		fmt.Fprintf(f.writer, " %s", yellow(fmt.Sprintf("after %d retries", resp.Meta.Retries)))
	}
	fmt.Fprintf(f.writer, "\n")

	if f.verbose {
		f.printCallDetails(resp)
	}

	if stream, ok := resp.Stream(); ok {
		fmt.Fprintf(f.writer, "%s\n", cyan("[body streamed to "+stream.Path()+"]"))
		return
	}

	body := resp.Text()
	switch resp.Data.(type) {
	case string, []byte, nil:
	default:
		if pretty, err := json.MarshalIndent(resp.Data, "", "  "); err == nil {
			body = string(pretty)
		}
	}
	if body != "" {
		fmt.Fprintf(f.writer, "%s\n", body)
	}
}

func (f *ConsoleFormatter) printCallDetails(resp *client.Response) {
	meta := resp.Meta
	if meta == nil {
		return
	}

	if meta.FinalURL != "" {
		fmt.Fprintf(f.writer, "    Final URL: %s\n", meta.FinalURL)
	}
	if meta.Redirects > 0 {
		fmt.Fprintf(f.writer, "    Redirects: %d\n", meta.Redirects)
	}
	fmt.Fprintf(f.writer, "    Timings:   dns %.1fms, connect %.1fms, first byte %.1fms, total %.1fms\n",
		meta.Timings.DNS*1000, meta.Timings.Connect*1000,
		meta.Timings.FirstByte*1000, meta.Timings.Total*1000)
}

// FormatError prints a run-level error.
func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func sortedCaptureNames(captures map[string]any) []string {
	names := make([]string, 0, len(captures))
	for name := range captures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
