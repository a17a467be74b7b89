package client

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// The write-out trailer carries timing and redirect data only, so the real
// status line and response headers never reach this side of the subprocess.
// Responses report unconditional success, matching the library this package
// replaces. See the package documentation.
const (
	statusAlwaysOK     = 200
	statusTextAlwaysOK = "OK"
)

// Timings are the request phase durations in seconds, verbatim as the
// external tool reported them.
type Timings struct {
	DNS       float64 `json:"dns"`
	Connect   float64 `json:"connect"`
	FirstByte float64 `json:"firstByte"`
	Total     float64 `json:"total"`
}

// Metadata is the bookkeeping record of a single call. A fresh one is
// created per call and attached to the Response.
type Metadata struct {
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	Duration  time.Duration `json:"duration"`
	Retries   int           `json:"retries"`
	Redirects int           `json:"redirects"`
	FinalURL  string        `json:"finalUrl"`
	Timings   Timings       `json:"timings"`
	TempFiles []string      `json:"tempFiles,omitempty"`
}

func newMetadata() *Metadata {
	return &Metadata{Start: time.Now()}
}

// Response is the result of a completed call. Data holds a string, parsed
// JSON, a []byte or a *Stream depending on the merged response type; Config
// echoes the effective configuration the call ran with.
type Response struct {
	Data       any               `json:"data"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Config     Config            `json:"config"`
	Meta       *Metadata         `json:"meta"`
}

// Text renders Data as a string. Parsed JSON re-serializes; streams have no
// captured text.
func (r *Response) Text() string {
	switch v := r.Data.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case *Stream:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Bytes renders Data as a byte slice.
func (r *Response) Bytes() []byte {
	if b, ok := r.Data.([]byte); ok {
		return b
	}
	return []byte(r.Text())
}

// JSON exposes the body for path queries regardless of the response type the
// call ran with.
func (r *Response) JSON() gjson.Result {
	return gjson.Parse(r.Text())
}

// Stream returns the live reader of a stream-typed response.
func (r *Response) Stream() (*Stream, bool) {
	s, ok := r.Data.(*Stream)
	return s, ok
}

// DurationMs is the wall-clock duration of the call in milliseconds.
func (r *Response) DurationMs() int64 {
	if r.Meta == nil {
		return 0
	}
	return r.Meta.Duration.Milliseconds()
}
