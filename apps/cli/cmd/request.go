package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/recurlhq/recurl/packages/client"
	"github.com/recurlhq/recurl/packages/history"
	"github.com/recurlhq/recurl/packages/output"
)

var (
	reqHeadersFlag  []string
	reqDataFlag     string
	reqFormFlag     []string
	reqTypeFlag     string
	reqTimeoutFlag  time.Duration
	reqRetriesFlag  int
	reqExtractFlag  string
	reqOutputFlag   string
	reqStreamToFlag string
	reqSaveFlag     bool
)

func init() {
	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		rootCmd.AddCommand(newVerbCommand(method))
	}
}

// newVerbCommand builds one of the five request commands. They share flag
// variables; only one of them runs per invocation.
func newVerbCommand(method string) *cobra.Command {
	verb := strings.ToLower(method)
	cmd := &cobra.Command{
		Use:   verb + " <url>",
		Short: "Send a " + method + " request",
		Long: fmt.Sprintf(`Send a single %s request and print the response.

Examples:
  recurl %s https://api.example.com/users
  recurl %s https://api.example.com/users -H "Authorization: Bearer t0k3n"
  recurl %s https://api.example.com/users --extract "0.name"
  recurl %s https://api.example.com/report --stream-to report.csv`, method, verb, verb, verb, verb),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd.Context(), method, args[0])
		},
	}

	addRequestFlags(cmd)
	flags := cmd.Flags()
	flags.StringVar(&reqExtractFlag, "extract", "", "Print only this JSON path from the body")
	flags.StringVarP(&reqOutputFlag, "output", "o", "text", "Output format: text, json")
	flags.StringVar(&reqStreamToFlag, "stream-to", "", "Stream the body to this file (implies --type stream)")
	flags.BoolVar(&reqSaveFlag, "save", getEnvBool("RECURL_SAVE", false), "Record the request in history (env: RECURL_SAVE)")

	return cmd
}

// addRequestFlags registers the flags that shape the call itself. The
// explain command reuses them to build the same options without executing.
func addRequestFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArrayVarP(&reqHeadersFlag, "header", "H", nil, `Request header ("Name: value", repeatable)`)
	flags.StringVarP(&reqDataFlag, "data", "d", "", "Request body (inline, or @file to read from disk)")
	flags.StringArrayVarP(&reqFormFlag, "form", "F", nil, "Multipart field (name=value or name=@file, repeatable)")
	flags.StringVar(&reqTypeFlag, "type", getEnvString("RECURL_TYPE", ""), "Response type: text, json, buffer, stream (env: RECURL_TYPE)")
	flags.DurationVar(&reqTimeoutFlag, "timeout", 0, "Request timeout (e.g. 30s, 1m)")
	flags.IntVar(&reqRetriesFlag, "retries", getEnvInt("RECURL_RETRIES", 0), "Retries after a failed attempt (env: RECURL_RETRIES)")
}

func runRequest(ctx context.Context, method, url string) error {
	opts, err := buildCallOptions(method, url)
	if err != nil {
		return err
	}

	resp, err := newClient().Do(ctx, opts)
	if reqSaveFlag {
		// The request context may already be done; history is recorded
		// regardless of the call's outcome.
		saveHistory(context.Background(), method, url, resp, err)
	}
	if err != nil {
		return requestError(err)
	}

	return writeResponse(resp)
}

// buildCallOptions translates the request flags into call options. Flag
// format problems return plain errors (usage); unreadable files return
// file errors.
func buildCallOptions(method, url string) (client.Options, error) {
	opts := client.Options{Method: method, URL: url}

	if len(reqHeadersFlag) > 0 {
		opts.Headers = make(map[string]string, len(reqHeadersFlag))
		for _, h := range reqHeadersFlag {
			name, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(name) == "" {
				return client.Options{}, fmt.Errorf(`invalid header %q (want "Name: value")`, h)
			}
			opts.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}

	if reqDataFlag != "" && len(reqFormFlag) > 0 {
		return client.Options{}, fmt.Errorf("--data and --form are mutually exclusive")
	}

	if reqDataFlag != "" {
		if path, isFile := strings.CutPrefix(reqDataFlag, "@"); isFile {
			data, err := os.ReadFile(path)
			if err != nil {
				return client.Options{}, fileError(fmt.Errorf("reading body file: %w", err))
			}
			opts.Data = data
		} else {
			opts.Data = reqDataFlag
		}
	}

	if len(reqFormFlag) > 0 {
		form := make(client.Form, 0, len(reqFormFlag))
		for _, field := range reqFormFlag {
			name, value, ok := strings.Cut(field, "=")
			if !ok || name == "" {
				return client.Options{}, fmt.Errorf("invalid form field %q (want name=value or name=@file)", field)
			}
			if path, isFile := strings.CutPrefix(value, "@"); isFile {
				data, err := os.ReadFile(path)
				if err != nil {
					return client.Options{}, fileError(fmt.Errorf("reading form file: %w", err))
				}
				form = append(form, client.FormField{Name: name, Bytes: data})
				continue
			}
			form = append(form, client.FormField{Name: name, Value: value})
		}
		opts.Data = form
	}

	switch {
	case reqStreamToFlag != "":
		opts.ResponseType = client.ResponseStream
	case reqTypeFlag != "":
		switch client.ResponseType(reqTypeFlag) {
		case client.ResponseText, client.ResponseJSON, client.ResponseBuffer, client.ResponseStream:
			opts.ResponseType = client.ResponseType(reqTypeFlag)
		default:
			return client.Options{}, fmt.Errorf("unknown response type %q (want text, json, buffer or stream)", reqTypeFlag)
		}
	}

	opts.Timeout = reqTimeoutFlag
	if reqRetriesFlag > 0 {
		opts.MaxRetries = client.Retries(reqRetriesFlag)
	}

	return opts, nil
}

// writeResponse prints one ad-hoc response. Streams drain first since their
// backing file disappears on Close; --extract and --output json cover the
// buffered shapes.
func writeResponse(resp *client.Response) error {
	if stream, ok := resp.Stream(); ok {
		return drainStream(stream)
	}

	if reqExtractFlag != "" {
		value := resp.JSON().Get(reqExtractFlag)
		if !value.Exists() {
			return requestError(fmt.Errorf("path %q not found in response body", reqExtractFlag))
		}
		fmt.Fprintln(os.Stdout, value.String())
		return nil
	}

	switch strings.ToLower(reqOutputFlag) {
	case "json":
		if err := output.WriteResponseJSON(os.Stdout, resp); err != nil {
			return internalError(err)
		}
	case "text", "":
		formatter := output.NewConsoleFormatter(
			output.WithVerbose(verboseFlag),
			output.WithNoColor(noColorFlag),
		)
		formatter.FormatResponse(resp)
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", reqOutputFlag)
	}
	return nil
}

// drainStream copies the body to --stream-to or stdout before Close removes
// the backing file.
func drainStream(stream *client.Stream) error {
	defer stream.Close()

	dst := io.Writer(os.Stdout)
	if reqStreamToFlag != "" {
		f, err := os.Create(reqStreamToFlag)
		if err != nil {
			return fileError(fmt.Errorf("creating stream target: %w", err))
		}
		defer f.Close()
		dst = f
	}

	n, err := io.Copy(dst, stream)
	if err != nil {
		return internalError(fmt.Errorf("draining stream: %w", err))
	}
	if reqStreamToFlag != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d bytes to %s\n", n, reqStreamToFlag)
	}
	return nil
}

// saveHistory records the call, warning rather than failing when the
// history database is unavailable.
func saveHistory(ctx context.Context, method, url string, resp *client.Response, callErr error) {
	store, err := openHistory()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: history unavailable: %v\n", err)
		return
	}
	defer store.Close()

	entry := history.Entry{Method: method, URL: url}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	if resp != nil {
		entry.Status = resp.Status
		entry.DurationMs = resp.DurationMs()
		if resp.Meta != nil {
			entry.FinalURL = resp.Meta.FinalURL
			entry.Retries = resp.Meta.Retries
			entry.Redirects = resp.Meta.Redirects
		}
	}

	if _, err := store.Record(ctx, entry); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to record history: %v\n", err)
	}
}
