package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// MaxOutputBytes caps how much subprocess stdout a single attempt will
	// buffer. Overflow fails the attempt.
	MaxOutputBytes = 10 << 20 // 10 MiB

	// DefaultBinary is the external tool invoked when no Runner is injected.
	DefaultBinary = "curl"

	// defaultRetryBase scales the exponential backoff between attempts.
	defaultRetryBase = time.Second
)

// Runner executes the external tool once. Implementations write the tool's
// standard output into stdout and return an error for a non-zero exit or any
// I/O fault, including a failed stdout write. Substituting a Runner lets
// tests drive the whole pipeline without spawning processes.
type Runner interface {
	Run(ctx context.Context, args []string, stdout io.Writer) error
}

// BinaryRunner invokes a tool binary through os/exec, capturing stderr for
// error reporting.
type BinaryRunner struct {
	Path string
}

// NewBinaryRunner returns a runner for the given binary, defaulting to
// DefaultBinary when path is empty. The binary is resolved via PATH.
func NewBinaryRunner(path string) *BinaryRunner {
	if path == "" {
		path = DefaultBinary
	}
	return &BinaryRunner{Path: path}
}

func (r *BinaryRunner) Run(ctx context.Context, args []string, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Stdout = stdout

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %s: %w", r.Path, msg, err)
		}
		return fmt.Errorf("%s: %w", r.Path, err)
	}
	return nil
}

// limitWriter fails the write that would push the captured total past max.
type limitWriter struct {
	buf *bytes.Buffer
	n   int64
	max int64
}

func (w *limitWriter) Write(p []byte) (int, error) {
	if w.n+int64(len(p)) > w.max {
		allowed := w.max - w.n
		if allowed > 0 {
			w.buf.Write(p[:allowed])
			w.n = w.max
		}
		return int(allowed), ErrOutputLimit
	}
	w.buf.Write(p)
	w.n += int64(len(p))
	return len(p), nil
}

// runWithRetry executes args until an attempt succeeds or maxRetries is
// exhausted. Attempt 0 runs immediately; attempt n first waits 2^n times the
// retry base, bumps meta.Retries, then re-runs the identical command. Every
// failure before the last attempt is swallowed; the final failure wraps the
// retry count and last error in a *RetryError. Context cancellation aborts
// the backoff wait.
func (c *Client) runWithRetry(ctx context.Context, args []string, maxRetries int, meta *Metadata) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt)) * c.retryBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			meta.Retries++
		}

		var buf bytes.Buffer
		err := c.runner.Run(ctx, args, &limitWriter{buf: &buf, max: MaxOutputBytes})
		if err == nil {
			return buf.String(), nil
		}
		lastErr = err

		c.logger.Debug("attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("maxRetries", maxRetries),
			zap.Error(err))
	}

	return "", &RetryError{Retries: meta.Retries, Err: lastErr}
}
