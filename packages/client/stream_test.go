package client

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Do_Stream(t *testing.T) {
	content := "streamed response bytes"
	c := NewClient(
		WithResponseType(ResponseStream),
		WithRunner(runnerFunc(func(_ context.Context, args []string, stdout io.Writer) error {
			out := argValue(args, "-o")
			require.NotEmpty(t, out, "stream mode must redirect output to a file")
			require.NoError(t, os.WriteFile(out, []byte(content), 0o600))
			_, err := io.WriteString(stdout, okTrailer)
			return err
		})),
	)

	resp, err := c.Get(context.Background(), "https://example.com/download")
	require.NoError(t, err)

	s, ok := resp.Stream()
	require.True(t, ok)
	require.NotEmpty(t, s.Path())

	_, statErr := os.Stat(s.Path())
	require.NoError(t, statErr, "the output file survives the call's cleanup pass")

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))

	require.NoError(t, s.Close())
	_, statErr = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr), "Close deletes the backing file")

	assert.NoError(t, s.Close(), "Close is idempotent")
}

func TestClient_Do_StreamOpenFailure(t *testing.T) {
	// The scripted tool "succeeds" without ever writing the output file, so
	// the stream hand-off cannot open it. The call still resolves; the error
	// surfaces on the stream's reads.
	c := NewClient(
		WithResponseType(ResponseStream),
		WithRunner(runnerFunc(func(_ context.Context, _ []string, stdout io.Writer) error {
			_, err := io.WriteString(stdout, okTrailer)
			return err
		})),
	)

	resp, err := c.Get(context.Background(), "https://example.com/download")
	require.NoError(t, err)

	s, ok := resp.Stream()
	require.True(t, ok)

	_, readErr := io.ReadAll(s)
	assert.Error(t, readErr)
	assert.Contains(t, readErr.Error(), "streamed output")
	assert.NoError(t, s.Close())
}

func TestStream_DrainWithCopy(t *testing.T) {
	content := "0123456789"
	c := NewClient(
		WithResponseType(ResponseStream),
		WithRunner(runnerFunc(func(_ context.Context, args []string, stdout io.Writer) error {
			require.NoError(t, os.WriteFile(argValue(args, "-o"), []byte(content), 0o600))
			_, err := io.WriteString(stdout, okTrailer)
			return err
		})),
	)

	resp, err := c.Get(context.Background(), "https://example.com/file")
	require.NoError(t, err)

	s, _ := resp.Stream()
	defer s.Close()

	var sink bytes.Buffer
	n, err := io.Copy(&sink, s)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n, "total bytes equal what the tool wrote")
}
