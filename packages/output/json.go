package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/recurlhq/recurl/packages/check"
	"github.com/recurlhq/recurl/packages/client"
	"github.com/recurlhq/recurl/packages/runner"
)

// Envelope is the root of the JSON report.
type Envelope struct {
	Summary    Summary         `json:"summary"`
	Requests   []RequestReport `json:"requests"`
	DurationMs float64         `json:"durationMs"`
	Time       string          `json:"time"`
}

type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// RequestReport is one request outcome in the JSON report.
type RequestReport struct {
	Name       string         `json:"name"`
	File       string         `json:"file"`
	Method     string         `json:"method,omitempty"`
	URL        string         `json:"url,omitempty"`
	Passed     bool           `json:"passed"`
	Skipped    bool           `json:"skipped,omitempty"`
	SkipReason string         `json:"skipReason,omitempty"`
	DurationMs float64        `json:"durationMs"`
	Error      string         `json:"error,omitempty"`
	Retries    int            `json:"retries,omitempty"`
	FinalURL   string         `json:"finalUrl,omitempty"`
	Checks     []check.Result `json:"checks,omitempty"`
	Captures   map[string]any `json:"captures,omitempty"`
}

// JSONFormatter accumulates run results and writes one envelope on Flush.
type JSONFormatter struct {
	writer   io.Writer
	requests []RequestReport
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:   os.Stdout,
		requests: make([]RequestReport, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatRun(result *runner.RunResult) {
	for _, r := range result.Results {
		report := RequestReport{
			Name:       r.Name,
			File:       result.File,
			Method:     r.Method,
			URL:        r.URL,
			Passed:     r.Passed,
			Skipped:    r.Skipped,
			SkipReason: r.SkipReason,
			DurationMs: float64(r.Duration.Milliseconds()),
		}

		if r.Error != nil {
			report.Error = r.Error.Error()
		}
		if r.Response != nil && r.Response.Meta != nil {
			report.Retries = r.Response.Meta.Retries
			report.FinalURL = r.Response.Meta.FinalURL
		}
		if len(r.Checks) > 0 {
			report.Checks = r.Checks
		}
		if len(r.Captures) > 0 {
			report.Captures = r.Captures
		}

		f.requests = append(f.requests, report)
	}
}

// FormatError is a no-op: errors already live in the per-request reports.
func (f *JSONFormatter) FormatError(err error) {}

// Flush writes the accumulated envelope.
func (f *JSONFormatter) Flush(total time.Duration) error {
	var summary Summary
	summary.Total = len(f.requests)
	for _, r := range f.requests {
		switch {
		case r.Skipped:
			summary.Skipped++
		case r.Passed:
			summary.Passed++
		default:
			summary.Failed++
		}
	}

	envelope := Envelope{
		Summary:    summary,
		Requests:   f.requests,
		DurationMs: float64(total.Milliseconds()),
		Time:       time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(envelope)
}

// WriteResponseJSON renders a single ad-hoc response as indented JSON.
// Streamed bodies are represented by their file path.
func WriteResponseJSON(w io.Writer, resp *client.Response) error {
	data := resp.Data
	if stream, ok := resp.Stream(); ok {
		data = map[string]string{"streamedTo": stream.Path()}
	}

	view := struct {
		Data       any              `json:"data"`
		Status     int              `json:"status"`
		StatusText string           `json:"statusText"`
		Meta       *client.Metadata `json:"meta"`
	}{
		Data:       data,
		Status:     resp.Status,
		StatusText: resp.StatusText,
		Meta:       resp.Meta,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(view)
}
