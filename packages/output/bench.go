package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/recurlhq/recurl/packages/bench"
)

// FormatBench prints the final report of a load run: totals and
// throughput, the latency distribution, the per-target breakdown when
// verbose, and threshold grades.
func (f *ConsoleFormatter) FormatBench(result *bench.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	rep := result.Report

	fmt.Fprintln(f.writer)
	fmt.Fprintln(f.writer, bold("BENCHMARK SUMMARY"))
	fmt.Fprintln(f.writer, strings.Repeat("─", 40))

	fmt.Fprintf(f.writer, "Duration:   %s\n", rep.Duration.Round(time.Millisecond))
	fmt.Fprintf(f.writer, "Total:      %s requests (%.1f req/s)\n", bold(rep.Total), rep.RPS)
	fmt.Fprintf(f.writer, "Success:    %s (%.1f%%)\n", green(rep.Succeeded()), (1-rep.ErrorRate)*100)

	failed := fmt.Sprintf("%d", rep.Failed)
	if rep.Failed > 0 {
		failed = red(failed)
	}
	fmt.Fprintf(f.writer, "Failed:     %s (%.1f%%)\n", failed, rep.ErrorRate*100)
	if rep.Timeouts > 0 {
		fmt.Fprintf(f.writer, "Timeouts:   %s\n", yellow(rep.Timeouts))
	}

	fmt.Fprintln(f.writer)
	fmt.Fprintln(f.writer, bold("LATENCY"))
	fmt.Fprintf(f.writer, "  p50: %-8s | p90: %-8s | p95: %-8s | p99: %s\n",
		latencyMs(rep.P50), latencyMs(rep.P90), latencyMs(rep.P95), latencyMs(rep.P99))
	fmt.Fprintf(f.writer, "  min: %-8s | mean: %-7s | max: %-8s | stddev: %s\n",
		latencyMs(rep.Min), latencyMs(rep.Mean), latencyMs(rep.Max), latencyMs(rep.StdDev))

	if f.verbose && len(rep.Targets) > 0 {
		fmt.Fprintln(f.writer)
		fmt.Fprintln(f.writer, bold("PER-REQUEST BREAKDOWN"))
		for _, name := range sortedTargetNames(rep.Targets) {
			tr := rep.Targets[name]
			fmt.Fprintf(f.writer, "  %s:\n", name)
			fmt.Fprintf(f.writer, "    total %d | failed %d\n", tr.Total, tr.Failed)
			fmt.Fprintf(f.writer, "    p50 %s | p95 %s | p99 %s | mean %s\n",
				latencyMs(tr.P50), latencyMs(tr.P95), latencyMs(tr.P99), latencyMs(tr.Mean))
		}
	}

	if len(result.Thresholds) > 0 {
		fmt.Fprintln(f.writer)
		fmt.Fprintln(f.writer, bold("THRESHOLDS"))
		for _, tr := range result.Thresholds {
			mark := green("✓")
			if !tr.Passed {
				mark = red("✗")
			}
			fmt.Fprintf(f.writer, "  %s %s %s    (actual: %s)\n", mark, tr.Name, tr.Expected, tr.Actual)
		}

		fmt.Fprintln(f.writer)
		if result.Passed {
			fmt.Fprintln(f.writer, green("All thresholds passed."))
		} else {
			fmt.Fprintln(f.writer, red("Some thresholds failed."))
		}
	}

	fmt.Fprintln(f.writer)
}

// BenchEnvelope is the machine-readable form of a load run report.
type BenchEnvelope struct {
	DurationMs float64                `json:"durationMs"`
	Requests   BenchCounts            `json:"requests"`
	RPS        float64                `json:"rps"`
	ErrorRate  float64                `json:"errorRate"`
	LatencyMs  BenchLatency           `json:"latencyMs"`
	Targets    map[string]BenchTarget `json:"targets,omitempty"`
	Thresholds []BenchThreshold       `json:"thresholds,omitempty"`
	Passed     bool                   `json:"passed"`
}

type BenchCounts struct {
	Total    int64 `json:"total"`
	Success  int64 `json:"success"`
	Failed   int64 `json:"failed"`
	Timeouts int64 `json:"timeouts"`
}

type BenchLatency struct {
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

type BenchTarget struct {
	Total  int64   `json:"total"`
	Failed int64   `json:"failed"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Mean   float64 `json:"mean"`
}

type BenchThreshold struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// WriteBenchJSON renders a load run result as indented JSON.
func WriteBenchJSON(w io.Writer, result *bench.Result) error {
	rep := result.Report

	envelope := BenchEnvelope{
		DurationMs: float64(rep.Duration.Milliseconds()),
		Requests: BenchCounts{
			Total:    rep.Total,
			Success:  rep.Succeeded(),
			Failed:   rep.Failed,
			Timeouts: rep.Timeouts,
		},
		RPS:       rep.RPS,
		ErrorRate: rep.ErrorRate,
		LatencyMs: BenchLatency{
			P50:    toMs(rep.P50),
			P90:    toMs(rep.P90),
			P95:    toMs(rep.P95),
			P99:    toMs(rep.P99),
			Min:    toMs(rep.Min),
			Max:    toMs(rep.Max),
			Mean:   toMs(rep.Mean),
			StdDev: toMs(rep.StdDev),
		},
		Passed: result.Passed,
	}

	if len(rep.Targets) > 0 {
		envelope.Targets = make(map[string]BenchTarget, len(rep.Targets))
		for name, tr := range rep.Targets {
			envelope.Targets[name] = BenchTarget{
				Total:  tr.Total,
				Failed: tr.Failed,
				P50:    toMs(tr.P50),
				P95:    toMs(tr.P95),
				P99:    toMs(tr.P99),
				Mean:   toMs(tr.Mean),
			}
		}
	}

	for _, tr := range result.Thresholds {
		envelope.Thresholds = append(envelope.Thresholds, BenchThreshold{
			Name:     tr.Name,
			Passed:   tr.Passed,
			Expected: tr.Expected,
			Actual:   tr.Actual,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(envelope)
}

func latencyMs(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func toMs(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

func sortedTargetNames(targets map[string]*bench.TargetReport) []string {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
