package client

import (
	"time"
)

const (
	// DefaultTimeout is the deadline handed to the external tool unless a
	// call overrides it.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries is the number of retries after a failed attempt.
	DefaultMaxRetries = 0
)

// ResponseType selects the shape of Response.Data.
type ResponseType string

const (
	// ResponseText returns the body as a string.
	ResponseText ResponseType = "text"
	// ResponseJSON parses the body as JSON, falling back to the raw text
	// when the body is not valid JSON.
	ResponseJSON ResponseType = "json"
	// ResponseBuffer returns the body as a byte slice.
	ResponseBuffer ResponseType = "buffer"
	// ResponseStream redirects the body to a temporary file and returns a
	// *Stream reading from it.
	ResponseStream ResponseType = "stream"
)

// Config holds the client-level defaults applied to every call. A merged
// copy is attached to each Response; the original is never mutated by calls.
type Config struct {
	Timeout      time.Duration     `json:"timeout,omitempty"`
	MaxRetries   int               `json:"maxRetries,omitempty"`
	ResponseType ResponseType      `json:"responseType,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// DefaultConfig returns the configuration a bare NewClient starts from.
func DefaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		MaxRetries:   DefaultMaxRetries,
		ResponseType: ResponseText,
		Headers:      make(map[string]string),
	}
}

// Options describe a single call. Zero-valued fields inherit the client
// default; MaxRetries is a pointer so an explicit 0 can override a non-zero
// default.
type Options struct {
	Method       string
	URL          string
	Data         any
	Headers      map[string]string
	ResponseType ResponseType
	Timeout      time.Duration
	MaxRetries   *int
}

// Retries wraps n for Options.MaxRetries.
func Retries(n int) *int {
	return &n
}

// merge applies per-call options over the client defaults. Headers merge
// key-wise with the per-call value winning on collision (header name case is
// preserved); scalars are replaced outright when set. No validation happens
// here — malformed values surface as execution failures.
func (c Config) merge(o Options) Config {
	merged := Config{
		Timeout:      c.Timeout,
		MaxRetries:   c.MaxRetries,
		ResponseType: c.ResponseType,
		Headers:      make(map[string]string, len(c.Headers)+len(o.Headers)),
	}

	for k, v := range c.Headers {
		merged.Headers[k] = v
	}
	for k, v := range o.Headers {
		merged.Headers[k] = v
	}

	if o.Timeout > 0 {
		merged.Timeout = o.Timeout
	}
	if o.MaxRetries != nil {
		merged.MaxRetries = *o.MaxRetries
	}
	if o.ResponseType != "" {
		merged.ResponseType = o.ResponseType
	}

	return merged
}
