package client

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// inlineBodyLimit is the longest serialized body embedded directly in the
// argument list. Anything longer is spooled to a temp file and passed by
// reference, keeping invocations clear of command-line length limits.
const inlineBodyLimit = 1000

// trailerFormat asks the tool to report, space-separated: DNS time, connect
// time, time to first byte, total time, redirect count and effective URL.
// parse.go consumes these six fields in exactly this order.
const trailerFormat = "%{time_namelookup} %{time_connect} %{time_starttransfer} %{time_total} %{num_redirects} %{url_effective} "

// FormField is one part of a multipart request body. Value is passed inline;
// Bytes, when set, takes precedence and is spooled to a temporary file
// referenced by path.
type FormField struct {
	Name  string
	Value string
	Bytes []byte
}

// Form is an ordered multipart body. Field order is preserved in the built
// command.
type Form []FormField

// buildArgs translates one merged call into the tool's argument list.
// Headers are emitted in sorted key order so identical calls build identical
// commands; the URL is always the final argument. outPath is the registered
// output file in stream mode, "" otherwise. Spooled payloads are registered
// in tmp.
func buildArgs(cfg Config, opts Options, tmp *tempSet) (args []string, outPath string, err error) {
	args = []string{"-sS", "-X", strings.ToUpper(opts.Method), "-w", trailerFormat, "-L"}

	for _, k := range sortedKeys(cfg.Headers) {
		args = append(args, "-H", k+": "+cfg.Headers[k])
	}

	if cfg.Timeout > 0 {
		args = append(args, "-m", strconv.FormatFloat(cfg.Timeout.Seconds(), 'f', -1, 64))
	}

	if cfg.ResponseType == ResponseStream {
		outPath = tmp.allocate("out")
		args = append(args, "-o", outPath)
	}

	bodyArgs, err := buildBodyArgs(opts.Data, tmp)
	if err != nil {
		return nil, "", err
	}
	args = append(args, bodyArgs...)

	return append(args, opts.URL), outPath, nil
}

func buildBodyArgs(data any, tmp *tempSet) ([]string, error) {
	if data == nil {
		return nil, nil
	}

	if form, ok := data.(Form); ok {
		return buildFormArgs(form, tmp)
	}

	payload, err := encodeBody(data)
	if err != nil {
		return nil, err
	}

	if len(payload) > inlineBodyLimit {
		path, err := tmp.spool("body", []byte(payload))
		if err != nil {
			return nil, err
		}
		return []string{"-d", "@" + path}, nil
	}

	return []string{"-d", payload}, nil
}

func buildFormArgs(form Form, tmp *tempSet) ([]string, error) {
	var args []string
	for _, field := range form {
		if field.Bytes != nil {
			path, err := tmp.spool("form", field.Bytes)
			if err != nil {
				return nil, err
			}
			args = append(args, "-F", field.Name+"=@"+path)
			continue
		}
		args = append(args, "-F", field.Name+"="+field.Value)
	}
	return args, nil
}

// encodeBody renders a freeform body: strings and byte slices pass through
// untouched, everything else is JSON-marshaled.
func encodeBody(data any) (string, error) {
	switch v := data.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encoding request body: %w", err)
		}
		return string(b), nil
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
