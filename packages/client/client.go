package client

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Client issues HTTP requests by delegating transport to an external
// curl-compatible tool. Construct with NewClient; the zero value has no
// runner. Independent calls on one client may run concurrently — each call
// works on a merged copy of the configuration and its own temp-file set.
type Client struct {
	config    Config
	runner    Runner
	logger    *zap.Logger
	retryBase time.Duration
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		config:    DefaultConfig(),
		logger:    zap.NewNop(),
		retryBase: defaultRetryBase,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.runner == nil {
		c.runner = NewBinaryRunner(DefaultBinary)
	}

	return c
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.config.Timeout = d
	}
}

func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.config.MaxRetries = n
	}
}

func WithResponseType(t ResponseType) ClientOption {
	return func(c *Client) {
		c.config.ResponseType = t
	}
}

func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.config.Headers[key] = value
	}
}

// WithHeaders sets multiple default headers applied to every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.config.Headers[k] = v
		}
	}
}

// WithBinary points the default runner at a specific tool binary.
func WithBinary(path string) ClientOption {
	return func(c *Client) {
		c.runner = NewBinaryRunner(path)
	}
}

// WithRunner substitutes the subprocess capability, mainly for tests.
func WithRunner(r Runner) ClientOption {
	return func(c *Client) {
		c.runner = r
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetryBaseDelay rescales the exponential backoff between attempts. The
// default is one second; tests shrink it to keep retry paths fast.
func WithRetryBaseDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryBase = d
	}
}

// Do runs one request through the full pipeline: merge the call options over
// the client defaults, build the command, execute it with retries, parse the
// trailer and shape the response. Temp files spooled for the call are
// removed before Do returns whatever the outcome — except a stream's output
// file, whose ownership passes to the returned Stream.
func (c *Client) Do(ctx context.Context, opts Options) (*Response, error) {
	if opts.Method == "" {
		opts.Method = "GET"
	}

	cfg := c.config.merge(opts)
	meta := newMetadata()
	tmp := newTempSet(c.logger)
	defer tmp.cleanup()

	args, outPath, err := buildArgs(cfg, opts, tmp)
	if err != nil {
		return nil, err
	}

	out, err := c.runWithRetry(ctx, args, cfg.MaxRetries, meta)
	if err != nil {
		return nil, err
	}

	return c.shape(cfg, meta, out, outPath, tmp)
}

func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, Options{Method: "GET", URL: url})
}

func (c *Client) Post(ctx context.Context, url string, data any) (*Response, error) {
	return c.Do(ctx, Options{Method: "POST", URL: url, Data: data})
}

func (c *Client) Put(ctx context.Context, url string, data any) (*Response, error) {
	return c.Do(ctx, Options{Method: "PUT", URL: url, Data: data})
}

func (c *Client) Patch(ctx context.Context, url string, data any) (*Response, error) {
	return c.Do(ctx, Options{Method: "PATCH", URL: url, Data: data})
}

func (c *Client) Delete(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, Options{Method: "DELETE", URL: url})
}

// Command reports the argument list Do would execute for opts without
// running anything. Payloads that would be spooled are written and removed
// again before returning, so any temp paths in the result are illustrative.
func (c *Client) Command(opts Options) ([]string, error) {
	if opts.Method == "" {
		opts.Method = "GET"
	}

	cfg := c.config.merge(opts)
	tmp := newTempSet(c.logger)
	defer tmp.cleanup()

	args, _, err := buildArgs(cfg, opts, tmp)
	if err != nil {
		return nil, err
	}
	return args, nil
}
