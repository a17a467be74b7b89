package bench

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Latencies are recorded in microseconds; one minute is the ceiling.
const maxLatencyMicros = 60_000_000

func newHistogram() *hdrhistogram.Histogram {
	// 1us to 60s, three significant digits.
	return hdrhistogram.New(1, maxLatencyMicros, 3)
}

// Collector aggregates results while a run is in flight. It discards
// samples until Start opens the measured window, which keeps warmup
// traffic out of the report. An attached Exporter sees every request,
// warmup included.
type Collector struct {
	mu sync.RWMutex

	total    atomic.Int64
	failed   atomic.Int64
	timeouts atomic.Int64
	inflight atomic.Int32

	recording atomic.Bool

	hist      *hdrhistogram.Histogram
	perTarget map[string]*targetHist

	exporter *Exporter

	started time.Time
	stopped time.Time
}

type targetHist struct {
	total  atomic.Int64
	failed atomic.Int64

	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

// NewCollector creates an idle collector.
func NewCollector() *Collector {
	return &Collector{
		hist:      newHistogram(),
		perTarget: make(map[string]*targetHist),
	}
}

// SetExporter attaches live Prometheus metrics. Call before Start.
func (c *Collector) SetExporter(e *Exporter) {
	c.exporter = e
}

// Start opens the measured window.
func (c *Collector) Start() {
	c.mu.Lock()
	c.started = time.Now()
	c.mu.Unlock()
	c.recording.Store(true)
}

// Stop closes the measured window. Samples recorded between Stop and the
// last worker draining still count; they were measured inside the window.
func (c *Collector) Stop() {
	c.mu.Lock()
	c.stopped = time.Now()
	c.mu.Unlock()
}

// Record folds one completed request into the histograms.
func (c *Collector) Record(target string, d time.Duration, err error) {
	if c.exporter != nil {
		c.exporter.Observe(d, err)
	}
	if !c.recording.Load() {
		return
	}

	c.total.Add(1)
	if err != nil {
		c.failed.Add(1)
	}

	us := clampMicros(d)
	c.mu.Lock()
	_ = c.hist.RecordValue(us)
	c.mu.Unlock()

	if target == "" {
		return
	}
	th := c.forTarget(target)
	th.total.Add(1)
	if err != nil {
		th.failed.Add(1)
	}
	th.mu.Lock()
	_ = th.hist.RecordValue(us)
	th.mu.Unlock()
}

// RecordTimeout counts a request that never produced a usable latency.
func (c *Collector) RecordTimeout(target string) {
	if c.exporter != nil {
		c.exporter.ObserveTimeout()
	}
	if !c.recording.Load() {
		return
	}

	c.total.Add(1)
	c.failed.Add(1)
	c.timeouts.Add(1)

	if target == "" {
		return
	}
	th := c.forTarget(target)
	th.total.Add(1)
	th.failed.Add(1)
}

// RequestStarted marks a request in flight.
func (c *Collector) RequestStarted() {
	c.inflight.Add(1)
	if c.exporter != nil {
		c.exporter.IncInflight()
	}
}

// RequestDone unmarks it.
func (c *Collector) RequestDone() {
	c.inflight.Add(-1)
	if c.exporter != nil {
		c.exporter.DecInflight()
	}
}

func (c *Collector) forTarget(name string) *targetHist {
	c.mu.Lock()
	defer c.mu.Unlock()

	th, ok := c.perTarget[name]
	if !ok {
		th = &targetHist{hist: newHistogram()}
		c.perTarget[name] = th
	}
	return th
}

func clampMicros(d time.Duration) int64 {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	if us > maxLatencyMicros {
		us = maxLatencyMicros
	}
	return us
}

func microsToDuration(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}

// Report is the aggregate outcome of a run.
type Report struct {
	Duration time.Duration

	Total    int64
	Failed   int64
	Timeouts int64

	RPS       float64
	ErrorRate float64 // 0..1

	P50    time.Duration
	P90    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	Targets map[string]*TargetReport
}

// Succeeded is the number of requests that completed without error.
func (r *Report) Succeeded() int64 {
	return r.Total - r.Failed
}

// TargetReport breaks the run down per named request.
type TargetReport struct {
	Name   string
	Total  int64
	Failed int64
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Mean   time.Duration
}

// Report snapshots the aggregates. Call after Stop for final numbers.
func (c *Collector) Report() *Report {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var duration time.Duration
	switch {
	case c.started.IsZero():
	case c.stopped.IsZero():
		duration = time.Since(c.started)
	default:
		duration = c.stopped.Sub(c.started)
	}

	total := c.total.Load()
	failed := c.failed.Load()

	var rps, errorRate float64
	if duration > 0 {
		rps = float64(total) / duration.Seconds()
	}
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	rep := &Report{
		Duration:  duration,
		Total:     total,
		Failed:    failed,
		Timeouts:  c.timeouts.Load(),
		RPS:       rps,
		ErrorRate: errorRate,
		P50:       microsToDuration(c.hist.ValueAtQuantile(50)),
		P90:       microsToDuration(c.hist.ValueAtQuantile(90)),
		P95:       microsToDuration(c.hist.ValueAtQuantile(95)),
		P99:       microsToDuration(c.hist.ValueAtQuantile(99)),
		Min:       microsToDuration(c.hist.Min()),
		Max:       microsToDuration(c.hist.Max()),
		Mean:      time.Duration(c.hist.Mean()) * time.Microsecond,
		StdDev:    time.Duration(c.hist.StdDev()) * time.Microsecond,
		Targets:   make(map[string]*TargetReport, len(c.perTarget)),
	}

	for name, th := range c.perTarget {
		th.mu.Lock()
		rep.Targets[name] = &TargetReport{
			Name:   name,
			Total:  th.total.Load(),
			Failed: th.failed.Load(),
			P50:    microsToDuration(th.hist.ValueAtQuantile(50)),
			P95:    microsToDuration(th.hist.ValueAtQuantile(95)),
			P99:    microsToDuration(th.hist.ValueAtQuantile(99)),
			Mean:   time.Duration(th.hist.Mean()) * time.Microsecond,
		}
		th.mu.Unlock()
	}

	return rep
}

// LiveStats is a point-in-time view for the progress display.
type LiveStats struct {
	Measuring bool // false while warmup discards samples
	Total     int64
	Failed    int64
	Inflight  int32
	RPS       float64
	ErrorRate float64
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	Max       time.Duration
}

// Live snapshots the collector mid-run.
func (c *Collector) Live() LiveStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := LiveStats{
		Measuring: c.recording.Load(),
		Total:     c.total.Load(),
		Failed:    c.failed.Load(),
		Inflight:  c.inflight.Load(),
		P50:       microsToDuration(c.hist.ValueAtQuantile(50)),
		P95:       microsToDuration(c.hist.ValueAtQuantile(95)),
		P99:       microsToDuration(c.hist.ValueAtQuantile(99)),
		Max:       microsToDuration(c.hist.Max()),
	}

	if !c.started.IsZero() {
		if elapsed := time.Since(c.started); elapsed > 0 {
			stats.RPS = float64(stats.Total) / elapsed.Seconds()
		}
	}
	if stats.Total > 0 {
		stats.ErrorRate = float64(stats.Failed) / float64(stats.Total)
	}
	return stats
}

// EvaluateThresholds grades a report. Only set thresholds produce results.
func EvaluateThresholds(rep *Report, t Thresholds) []ThresholdResult {
	var results []ThresholdResult

	grade := func(name string, limit, actual time.Duration) {
		if limit <= 0 {
			return
		}
		results = append(results, ThresholdResult{
			Name:     name,
			Passed:   actual <= limit,
			Expected: "< " + limit.String(),
			Actual:   actual.String(),
		})
	}
	grade("p50", t.P50, rep.P50)
	grade("p90", t.P90, rep.P90)
	grade("p95", t.P95, rep.P95)
	grade("p99", t.P99, rep.P99)
	grade("max latency", t.MaxLatency, rep.Max)

	if t.ErrorRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "error rate",
			Passed:   rep.ErrorRate <= t.ErrorRate,
			Expected: "< " + formatPercent(t.ErrorRate),
			Actual:   formatPercent(rep.ErrorRate),
		})
	}
	if t.MinRPS > 0 {
		results = append(results, ThresholdResult{
			Name:     "rps",
			Passed:   rep.RPS >= t.MinRPS,
			Expected: "> " + formatFloat(t.MinRPS),
			Actual:   formatFloat(rep.RPS),
		})
	}
	return results
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
