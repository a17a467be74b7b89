package bench

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Reporter prints what happens while a run is live: the header, setup
// and teardown notices, and a self-overwriting progress line. Final
// reports are rendered by the output package.
type Reporter struct {
	writer     io.Writer
	noColor    bool
	noProgress bool

	bold   func(a ...any) string
	red    func(a ...any) string
	cyan   func(a ...any) string
	yellow func(a ...any) string
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithWriter directs output somewhere other than stdout.
func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) { r.writer = w }
}

// WithNoColor disables ANSI colors.
func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) { r.noColor = noColor }
}

// WithNoProgress disables the in-place progress line. Useful when output
// is piped.
func WithNoProgress(noProgress bool) ReporterOption {
	return func(r *Reporter) { r.noProgress = noProgress }
}

// NewReporter creates a reporter writing to stdout.
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{writer: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}

	if r.noColor {
		color.NoColor = true
	}
	r.bold = color.New(color.Bold).SprintFunc()
	r.red = color.New(color.FgRed).SprintFunc()
	r.cyan = color.New(color.FgCyan).SprintFunc()
	r.yellow = color.New(color.FgYellow).SprintFunc()

	return r
}

// Header announces the run and its shape.
func (r *Reporter) Header(source string, config *Config) {
	fmt.Fprintln(r.writer)
	fmt.Fprintf(r.writer, "%s %s\n", r.bold("Benchmarking:"), source)

	parts := make([]string, 0, 4)
	if config.Mode == VUMode {
		parts = append(parts, fmt.Sprintf("%d VUs", config.VUs))
	} else {
		parts = append(parts, fmt.Sprintf("%.0f req/s", config.Rate))
	}
	parts = append(parts, "duration "+formatDuration(config.Duration))
	if config.Warmup > 0 {
		parts = append(parts, "warmup "+formatDuration(config.Warmup))
	}
	if config.RampUp > 0 {
		parts = append(parts, "ramp-up "+formatDuration(config.RampUp))
	}
	fmt.Fprintln(r.writer, strings.Join(parts, " | "))
	fmt.Fprintln(r.writer)
}

// Progress refreshes a one-line status. It overwrites itself in place,
// so nothing else should write to the terminal between updates.
func (r *Reporter) Progress(stats LiveStats, elapsed, total time.Duration) {
	if r.noProgress {
		return
	}

	frac := float64(elapsed) / float64(total)
	if frac > 1 {
		frac = 1
	}
	const width = 20
	filled := int(frac * width)
	bar := strings.Repeat("━", filled) + strings.Repeat("─", width-filled)

	errs := formatCount(stats.Failed)
	if stats.Failed > 0 {
		errs = r.red(errs)
	}
	note := ""
	if !stats.Measuring {
		note = " " + r.yellow("(warmup)")
	}

	fmt.Fprint(r.writer, "\r\033[K")
	fmt.Fprintf(r.writer, "%s %s / %s | %s reqs | %s errs | %s req/s | p95 %s | in flight %d%s",
		bar,
		formatDuration(elapsed), formatDuration(total),
		r.bold(formatCount(stats.Total)),
		errs,
		r.cyan(fmt.Sprintf("%.1f", stats.RPS)),
		formatLatency(stats.P95),
		stats.Inflight,
		note)
}

// ClearProgress wipes the progress line before final output.
func (r *Reporter) ClearProgress() {
	if r.noProgress {
		return
	}
	fmt.Fprint(r.writer, "\r\033[K")
}

// Info prints a line of plain status text.
func (r *Reporter) Info(format string, args ...any) {
	fmt.Fprintf(r.writer, format+"\n", args...)
}

// Error prints an error line.
func (r *Reporter) Error(format string, args ...any) {
	fmt.Fprintf(r.writer, "%s %s\n", r.red("Error:"), fmt.Sprintf(format, args...))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if s == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func formatLatency(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func formatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	if n < 1000 {
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
