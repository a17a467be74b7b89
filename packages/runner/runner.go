// Package runner executes request collections. Requests run sequentially in
// file order so captured values from earlier responses can feed later
// requests through the resolver.
package runner

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/recurlhq/recurl/packages/check"
	"github.com/recurlhq/recurl/packages/client"
	"github.com/recurlhq/recurl/packages/reqfile"
)

// Config controls a run. The zero value runs everything and keeps going
// after failures.
type Config struct {
	// Bail stops the run at the first failed request.
	Bail bool
	// NameFilter limits the run to matching request names. A leading or
	// trailing "*" matches a suffix or prefix.
	NameFilter string
	// Vars are merged over the collection's own vars.
	Vars map[string]any
	// Logger receives unresolved-placeholder and capture warnings.
	Logger *zap.Logger
}

// Runner drives one client through collections.
type Runner struct {
	client *client.Client
	config *Config
	logger *zap.Logger
}

func New(c *client.Client, cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{client: c, config: cfg, logger: logger}
}

// RunResult aggregates one collection run.
type RunResult struct {
	File     string
	Name     string
	Results  []*RequestResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
}

// OK reports whether nothing failed.
func (r *RunResult) OK() bool {
	return r.Failed == 0
}

// RequestResult is the outcome of a single request in a run.
type RequestResult struct {
	Name       string
	Method     string
	URL        string
	Passed     bool
	Skipped    bool
	SkipReason string
	Duration   time.Duration
	Response   *client.Response
	Checks     []check.Result
	Captures   map[string]any
	Error      error
}

// RunFile loads, validates and runs a collection file.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	file, err := reqfile.Load(path)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, file)
}

// Run executes every request in the file. Request failures are recorded in
// the result, not returned as an error; the error covers run-level problems
// only. Cancelling ctx marks the remaining requests as skipped.
func (r *Runner) Run(ctx context.Context, file *reqfile.File) (*RunResult, error) {
	resolver := r.newResolver(file)

	start := time.Now()
	result := &RunResult{File: file.Path, Name: file.Name}
	bailed := false

	for _, req := range file.Requests {
		switch {
		case ctx.Err() != nil:
			result.skip(req.Name, "cancelled")
		case bailed:
			result.skip(req.Name, "previous request failed")
		case req.Skip:
			result.skip(req.Name, "skipped in file")
		case !matchesFilter(req.Name, r.config.NameFilter):
			result.skip(req.Name, "filtered out")
		default:
			reqResult := r.runRequest(ctx, file, req, resolver)
			result.Results = append(result.Results, reqResult)
			if reqResult.Passed {
				result.Passed++
			} else {
				result.Failed++
				if r.config.Bail {
					bailed = true
				}
			}
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// RunOne executes a single named request from the file. Captures from other
// requests are unavailable, so chained placeholders stay unresolved.
func (r *Runner) RunOne(ctx context.Context, file *reqfile.File, name string) (*RequestResult, error) {
	req, ok := file.Lookup(name)
	if !ok {
		return nil, &UnknownRequestError{File: file.Path, Name: name}
	}

	resolver := r.newResolver(file)
	return r.runRequest(ctx, file, req, resolver), nil
}

func (r *Runner) newResolver(file *reqfile.File) *reqfile.Resolver {
	resolver := reqfile.NewResolver()
	resolver.SetWarnFunc(r.logger.Sugar().Warnf)
	resolver.SetVars(file.Vars)
	resolver.SetVars(r.config.Vars)
	return resolver
}

func (r *Runner) runRequest(ctx context.Context, file *reqfile.File, req reqfile.Request, resolver *reqfile.Resolver) *RequestResult {
	result := &RequestResult{
		Name:     req.Name,
		Captures: make(map[string]any),
	}

	opts, err := BuildOptions(file, req, resolver)
	if err != nil {
		result.Error = err
		return result
	}
	result.Method = methodOf(opts)
	result.URL = opts.URL

	start := time.Now()
	resp, err := r.client.Do(ctx, opts)
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = err
		return result
	}
	result.Response = resp

	body := resp.Text()
	result.Passed = true
	if len(req.Expect) > 0 {
		result.Checks = check.EvaluateAll(body, file.Dir(), req.Expect)
		for _, c := range result.Checks {
			if !c.Passed {
				result.Passed = false
				break
			}
		}
	}

	for _, name := range sortedKeys(req.Capture) {
		path := req.Capture[name]
		value := resp.JSON().Get(path)
		if !value.Exists() {
			r.logger.Warn("capture path not found",
				zap.String("request", req.Name),
				zap.String("capture", name),
				zap.String("path", path))
			continue
		}
		result.Captures[name] = value.Value()
		resolver.SetCapture(req.Name, name, value.Value())
	}

	return result
}

func (r *RunResult) skip(name, reason string) {
	r.Results = append(r.Results, &RequestResult{
		Name:       name,
		Skipped:    true,
		SkipReason: reason,
	})
	r.Skipped++
}

// UnknownRequestError reports a request name absent from a collection.
type UnknownRequestError struct {
	File string
	Name string
}

func (e *UnknownRequestError) Error() string {
	return e.File + ": no request named " + e.Name
}

func methodOf(opts client.Options) string {
	if opts.Method == "" {
		return "GET"
	}
	return strings.ToUpper(opts.Method)
}

func matchesFilter(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	starPrefix := strings.HasPrefix(pattern, "*")
	starSuffix := strings.HasSuffix(pattern, "*")
	trimmed := strings.Trim(pattern, "*")

	switch {
	case starPrefix && starSuffix:
		return strings.Contains(name, trimmed)
	case starPrefix:
		return strings.HasSuffix(name, trimmed)
	case starSuffix:
		return strings.HasPrefix(name, trimmed)
	default:
		return name == pattern
	}
}
