package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/recurlhq/recurl/packages/runner"
)

// TAPFormatter accumulates run results and writes Test Anything Protocol
// output on Flush.
type TAPFormatter struct {
	writer io.Writer
	count  int
	lines  []tapLine
}

type tapLine struct {
	number     int
	name       string
	passed     bool
	skipped    bool
	skipReason string
	err        string
	failures   []string
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer: os.Stdout,
		lines:  make([]tapLine, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatRun(result *runner.RunResult) {
	for _, r := range result.Results {
		f.count++
		line := tapLine{
			number:     f.count,
			name:       r.Name,
			passed:     r.Passed,
			skipped:    r.Skipped,
			skipReason: r.SkipReason,
		}

		if r.Error != nil {
			line.err = r.Error.Error()
		}
		for _, c := range r.Checks {
			if !c.Passed {
				line.failures = append(line.failures, c.Desc+": "+c.Message)
			}
		}

		f.lines = append(f.lines, line)
	}
}

// FormatError is a no-op: errors already live in the per-request lines.
func (f *TAPFormatter) FormatError(err error) {}

// Flush writes the accumulated TAP document.
func (f *TAPFormatter) Flush(total time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", f.count)

	for _, line := range f.lines {
		switch {
		case line.skipped:
			reason := line.skipReason
			if reason == "" {
				reason = "skipped"
			}
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP %s\n", line.number, line.name, reason)

		case line.err != "":
			fmt.Fprintf(f.writer, "not ok %d - %s\n", line.number, line.name)
			fmt.Fprintf(f.writer, "  ---\n")
			fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(line.err))
			fmt.Fprintf(f.writer, "  severity: error\n")
			fmt.Fprintf(f.writer, "  ...\n")

		case line.passed:
			fmt.Fprintf(f.writer, "ok %d - %s\n", line.number, line.name)

		default:
			fmt.Fprintf(f.writer, "not ok %d - %s\n", line.number, line.name)
			if len(line.failures) > 0 {
				fmt.Fprintf(f.writer, "  ---\n")
				fmt.Fprintf(f.writer, "  failures:\n")
				for _, failure := range line.failures {
					fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(failure))
				}
				fmt.Fprintf(f.writer, "  ...\n")
			}
		}
	}

	fmt.Fprintln(f.writer)
	return nil
}

func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		return "\"" + s + "\""
	}
	return s
}
