package client

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runnerFunc adapts a function to the Runner interface so tests can script
// the external tool without spawning processes.
type runnerFunc func(ctx context.Context, args []string, stdout io.Writer) error

func (f runnerFunc) Run(ctx context.Context, args []string, stdout io.Writer) error {
	return f(ctx, args, stdout)
}

// okTrailer is a minimal well-formed write-out block (note the trailing
// space separating it from the body).
const okTrailer = "0.001 0.002 0.003 0.004 0 https://example.com/ "

func respondWith(body string) runnerFunc {
	return func(_ context.Context, _ []string, stdout io.Writer) error {
		_, err := io.WriteString(stdout, okTrailer+body)
		return err
	}
}

func TestClient_Get(t *testing.T) {
	var gotArgs []string
	c := NewClient(WithRunner(runnerFunc(func(_ context.Context, args []string, stdout io.Writer) error {
		gotArgs = args
		_, err := io.WriteString(stdout, okTrailer+"hello")
		return err
	})))

	resp, err := c.Get(context.Background(), "https://example.com/test")

	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Data)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "OK", resp.StatusText)
	assert.Empty(t, resp.Headers)
	assert.Equal(t, "GET", argValue(gotArgs, "-X"))
	assert.Equal(t, "https://example.com/test", gotArgs[len(gotArgs)-1])
}

func TestClient_Post(t *testing.T) {
	var gotArgs []string
	c := NewClient(WithRunner(runnerFunc(func(_ context.Context, args []string, stdout io.Writer) error {
		gotArgs = args
		_, err := io.WriteString(stdout, okTrailer+`{"id":123}`)
		return err
	})))

	resp, err := c.Post(context.Background(), "https://example.com/users", `{"name":"test"}`)

	require.NoError(t, err)
	assert.Equal(t, "POST", argValue(gotArgs, "-X"))
	assert.Equal(t, `{"name":"test"}`, argValue(gotArgs, "-d"))
	assert.Contains(t, resp.Text(), "123")
}

func TestClient_VerbHelpers(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Client) (*Response, error)
		want string
	}{
		{"put", func(c *Client) (*Response, error) { return c.Put(context.Background(), "https://x/", "v") }, "PUT"},
		{"patch", func(c *Client) (*Response, error) { return c.Patch(context.Background(), "https://x/", "v") }, "PATCH"},
		{"delete", func(c *Client) (*Response, error) { return c.Delete(context.Background(), "https://x/") }, "DELETE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotArgs []string
			c := NewClient(WithRunner(runnerFunc(func(_ context.Context, args []string, stdout io.Writer) error {
				gotArgs = args
				_, err := io.WriteString(stdout, okTrailer)
				return err
			})))

			_, err := tt.call(c)

			require.NoError(t, err)
			assert.Equal(t, tt.want, argValue(gotArgs, "-X"))
		})
	}
}

func TestClient_Do_DefaultsToGet(t *testing.T) {
	var gotArgs []string
	c := NewClient(WithRunner(runnerFunc(func(_ context.Context, args []string, stdout io.Writer) error {
		gotArgs = args
		_, err := io.WriteString(stdout, okTrailer)
		return err
	})))

	_, err := c.Do(context.Background(), Options{URL: "https://example.com/"})

	require.NoError(t, err)
	assert.Equal(t, "GET", argValue(gotArgs, "-X"))
}

func TestClient_Do_JSONRoundTrip(t *testing.T) {
	c := NewClient(WithRunner(respondWith(`{"a":1}`)))

	resp, err := c.Do(context.Background(), Options{URL: "https://x/", ResponseType: ResponseJSON})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, resp.Data)

	resp, err = c.Do(context.Background(), Options{URL: "https://x/", ResponseType: ResponseText})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Data)
}

func TestClient_Do_JSONFallback(t *testing.T) {
	c := NewClient(WithRunner(respondWith("not json at all")))

	resp, err := c.Do(context.Background(), Options{URL: "https://x/", ResponseType: ResponseJSON})

	require.NoError(t, err)
	assert.Equal(t, "not json at all", resp.Data)
}

func TestClient_Do_Buffer(t *testing.T) {
	c := NewClient(WithRunner(respondWith("raw bytes")))

	resp, err := c.Do(context.Background(), Options{URL: "https://x/", ResponseType: ResponseBuffer})

	require.NoError(t, err)
	assert.Equal(t, []byte("raw bytes"), resp.Data)
}

func TestClient_Do_Metadata(t *testing.T) {
	c := NewClient(WithRunner(runnerFunc(func(_ context.Context, _ []string, stdout io.Writer) error {
		_, err := io.WriteString(stdout, "0.1 0.2 0.3 0.4 2 https://x/final hello world")
		return err
	})))

	resp, err := c.Get(context.Background(), "https://x/start")

	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Data)
	assert.Equal(t, Timings{DNS: 0.1, Connect: 0.2, FirstByte: 0.3, Total: 0.4}, resp.Meta.Timings)
	assert.Equal(t, 2, resp.Meta.Redirects)
	assert.Equal(t, "https://x/final", resp.Meta.FinalURL)
	assert.Equal(t, 0, resp.Meta.Retries)
	assert.False(t, resp.Meta.End.Before(resp.Meta.Start))
	assert.GreaterOrEqual(t, resp.Meta.Duration, time.Duration(0))
}

func TestClient_Do_EchoesMergedConfig(t *testing.T) {
	c := NewClient(
		WithRunner(respondWith("ok")),
		WithHeader("X-Base", "1"),
		WithTimeout(10*time.Second),
	)

	resp, err := c.Do(context.Background(), Options{
		URL:     "https://x/",
		Headers: map[string]string{"X-Call": "2"},
		Timeout: 3 * time.Second,
	})

	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, resp.Config.Timeout)
	assert.Equal(t, map[string]string{"X-Base": "1", "X-Call": "2"}, resp.Config.Headers)
}

func TestClient_Retry_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	c := NewClient(
		WithRetryBaseDelay(time.Millisecond),
		WithRunner(runnerFunc(func(_ context.Context, _ []string, stdout io.Writer) error {
			attempts++
			if attempts <= 2 {
				return errors.New("transient failure")
			}
			_, err := io.WriteString(stdout, okTrailer+"finally")
			return err
		})),
	)

	resp, err := c.Do(context.Background(), Options{URL: "https://x/", MaxRetries: Retries(2)})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, resp.Meta.Retries)
	assert.Equal(t, "finally", resp.Data)
}

func TestClient_Retry_Exhausted(t *testing.T) {
	attempts := 0
	c := NewClient(
		WithRetryBaseDelay(time.Millisecond),
		WithRunner(runnerFunc(func(_ context.Context, _ []string, _ io.Writer) error {
			attempts++
			return errors.New("always down")
		})),
	)

	resp, err := c.Do(context.Background(), Options{URL: "https://x/", MaxRetries: Retries(2)})

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, 3, attempts)

	var re *RetryError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 2, re.Retries)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Contains(t, err.Error(), "always down")
}

func TestClient_Retry_CleansTempFiles(t *testing.T) {
	big := strings.Repeat("x", inlineBodyLimit+1)

	var spooled string
	c := NewClient(
		WithRetryBaseDelay(time.Millisecond),
		WithRunner(runnerFunc(func(_ context.Context, args []string, _ io.Writer) error {
			d := argValue(args, "-d")
			require.True(t, strings.HasPrefix(d, "@"))
			spooled = strings.TrimPrefix(d, "@")
			_, err := os.Stat(spooled)
			require.NoError(t, err, "spooled body must exist while the tool runs")
			return errors.New("boom")
		})),
	)

	_, err := c.Do(context.Background(), Options{
		Method:     "POST",
		URL:        "https://x/",
		Data:       big,
		MaxRetries: Retries(1),
	})

	var re *RetryError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, re.Retries)

	_, statErr := os.Stat(spooled)
	assert.True(t, os.IsNotExist(statErr), "spooled body must be deleted after the call fails")
}

func TestClient_Retry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	c := NewClient(
		// A huge base proves the wait is abandoned, not slept through.
		WithRetryBaseDelay(time.Hour),
		WithRunner(runnerFunc(func(_ context.Context, _ []string, _ io.Writer) error {
			attempts++
			return errors.New("down")
		})),
	)

	_, err := c.Do(ctx, Options{URL: "https://x/", MaxRetries: Retries(3)})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts, "attempt 0 runs immediately, the backoff wait aborts")
}

func TestClient_Command(t *testing.T) {
	c := NewClient(
		WithRunner(runnerFunc(func(_ context.Context, _ []string, _ io.Writer) error {
			t.Fatal("Command must not execute anything")
			return nil
		})),
		WithHeader("Accept", "application/json"),
	)

	args, err := c.Command(Options{Method: "post", URL: "https://x/items", Data: `{"a":1}`})

	require.NoError(t, err)
	assert.Equal(t, "POST", argValue(args, "-X"))
	assert.Equal(t, "Accept: application/json", argValue(args, "-H"))
	assert.Equal(t, "https://x/items", args[len(args)-1])
}
