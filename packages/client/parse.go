package client

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// trailerFields is the number of leading tokens the write-out block
// contributes to captured stdout.
const trailerFields = 6

type trailer struct {
	timings   Timings
	redirects int
	finalURL  string
}

// parseOutput splits captured stdout into the six-field trailer and the body
// text. The remaining tokens are rejoined with single spaces, so the body's
// internal whitespace is normalized; an empty body is valid, a short or
// non-numeric trailer is not. The tool is trusted to emit the write-out block
// ahead of the body — a body whose leading bytes themselves look like trailer
// tokens would misparse, a known limitation of the output contract.
func parseOutput(out string) (trailer, string, error) {
	fields := strings.Fields(out)
	if len(fields) < trailerFields {
		return trailer{}, "", fmt.Errorf("malformed output: want %d trailer fields, got %d", trailerFields, len(fields))
	}

	var tr trailer
	names := [4]string{"dns", "connect", "first-byte", "total"}
	dests := [4]*float64{&tr.timings.DNS, &tr.timings.Connect, &tr.timings.FirstByte, &tr.timings.Total}
	for i, dest := range dests {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return trailer{}, "", fmt.Errorf("malformed %s time %q: %w", names[i], fields[i], err)
		}
		*dest = v
	}

	redirects, err := strconv.Atoi(fields[4])
	if err != nil {
		return trailer{}, "", fmt.Errorf("malformed redirect count %q: %w", fields[4], err)
	}
	tr.redirects = redirects
	tr.finalURL = fields[5]

	return tr, strings.Join(fields[trailerFields:], " "), nil
}

// shape turns a successful run into a Response: record trailer data and
// completion times in the metadata, then interpret the body per the merged
// response type. Stream responses ignore the captured body text and take
// ownership of the tool's output file.
func (c *Client) shape(cfg Config, meta *Metadata, out, outPath string, tmp *tempSet) (*Response, error) {
	tr, body, err := parseOutput(out)
	if err != nil {
		return nil, err
	}

	meta.Timings = tr.timings
	meta.Redirects = tr.redirects
	meta.FinalURL = tr.finalURL
	meta.End = time.Now()
	meta.Duration = meta.End.Sub(meta.Start)
	meta.TempFiles = append([]string(nil), tmp.created...)

	resp := &Response{
		Status:     statusAlwaysOK,
		StatusText: statusTextAlwaysOK,
		Headers:    make(map[string]string),
		Config:     cfg,
		Meta:       meta,
	}

	switch cfg.ResponseType {
	case ResponseJSON:
		var v any
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			resp.Data = body // not valid JSON, keep the raw text
		} else {
			resp.Data = v
		}
	case ResponseBuffer:
		resp.Data = []byte(body)
	case ResponseStream:
		resp.Data = c.openStream(outPath, tmp)
	default:
		resp.Data = body
	}

	return resp, nil
}
