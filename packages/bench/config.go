// Package bench generates load through the curl client. It schedules
// collection requests at a fixed rate or from a pool of virtual users,
// folds latencies into an HdrHistogram, and grades the run against
// user-supplied thresholds. A run can expose live Prometheus metrics
// while it is in flight.
package bench

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Mode selects how requests are scheduled.
type Mode int

const (
	// RateMode issues requests at a fixed rate, regardless of how long
	// each one takes.
	RateMode Mode = iota
	// VUMode runs a pool of virtual users that loop over the targets,
	// optionally pausing between iterations.
	VUMode
)

// Config shapes a load run.
type Config struct {
	Mode     Mode
	Duration time.Duration // measured window, excluding warmup

	Rate float64 // requests per second (RateMode)
	VUs  int     // virtual users (VUMode)

	MaxVUs    int           // cap on concurrent requests in either mode
	ThinkTime time.Duration // pause per virtual user between iterations
	RampUp    time.Duration // time to reach the full rate or VU count
	Warmup    time.Duration // lead-in excluded from the report

	Thresholds Thresholds

	// MetricsAddr serves Prometheus metrics on this address while the
	// run is live. Empty disables the endpoint.
	MetricsAddr string
}

// DefaultConfig sends ten requests per second for thirty seconds.
func DefaultConfig() *Config {
	return &Config{
		Mode:     RateMode,
		Duration: 30 * time.Second,
		Rate:     10,
		MaxVUs:   100,
	}
}

// Validate reports the first problem with the config.
func (c *Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if c.Mode == RateMode && c.Rate <= 0 {
		return fmt.Errorf("rate must be positive in rate mode")
	}
	if c.Mode == VUMode && c.VUs <= 0 {
		return fmt.Errorf("vus must be positive in vu mode")
	}
	if c.MaxVUs < 1 {
		return fmt.Errorf("max vus must be at least 1")
	}
	if c.Warmup < 0 {
		return fmt.Errorf("warmup cannot be negative")
	}
	if c.RampUp < 0 {
		return fmt.Errorf("ramp-up cannot be negative")
	}
	if c.RampUp > c.Duration {
		return fmt.Errorf("ramp-up cannot exceed duration")
	}
	return nil
}

// Thresholds are pass/fail criteria evaluated against the final report.
// Zero fields are not checked.
type Thresholds struct {
	P50        time.Duration
	P90        time.Duration
	P95        time.Duration
	P99        time.Duration
	MaxLatency time.Duration
	ErrorRate  float64 // 0..1
	MinRPS     float64
}

// HasAny reports whether at least one threshold is set.
func (t *Thresholds) HasAny() bool {
	return t.P50 > 0 || t.P90 > 0 || t.P95 > 0 || t.P99 > 0 ||
		t.MaxLatency > 0 || t.ErrorRate > 0 || t.MinRPS > 0
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a spec like "p95<200ms,errors<1%,rps>50".
// Latency metrics (p50, p90, p95, p99, max) take Go durations and must
// use < or <=; errors takes a ratio or a percentage; rps must use > or
// >=.
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := parseThreshold(part, &t); err != nil {
			return Thresholds{}, err
		}
	}
	return t, nil
}

func parseThreshold(part string, t *Thresholds) error {
	m := thresholdPattern.FindStringSubmatch(part)
	if m == nil {
		return fmt.Errorf("invalid threshold %q", part)
	}
	metric, op, value := strings.ToLower(m[1]), m[2], m[3]

	latency := map[string]*time.Duration{
		"p50": &t.P50,
		"p90": &t.P90,
		"p95": &t.P95,
		"p99": &t.P99,
		"max": &t.MaxLatency,
	}
	if field, ok := latency[metric]; ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %q", metric, value)
		}
		if op != "<" && op != "<=" {
			return fmt.Errorf("%s threshold must use < or <=", metric)
		}
		*field = d
		return nil
	}

	switch metric {
	case "errors", "errorrate":
		f, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil {
			return fmt.Errorf("invalid error rate: %q", value)
		}
		if strings.HasSuffix(value, "%") {
			f /= 100
		}
		if op != "<" && op != "<=" {
			return fmt.Errorf("error rate threshold must use < or <=")
		}
		t.ErrorRate = f
	case "rps":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid rps: %q", value)
		}
		if op != ">" && op != ">=" {
			return fmt.Errorf("rps threshold must use > or >=")
		}
		t.MinRPS = f
	default:
		return fmt.Errorf("unknown threshold metric %q", metric)
	}
	return nil
}

// ThresholdResult is the outcome of one threshold check.
type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}
