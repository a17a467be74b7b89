package client

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"
)

// Stream is the data of a stream-typed response: a sequential reader over
// the file the external tool wrote the body into. The backing file outlives
// the call's cleanup pass, so callers must Close the stream once drained or
// abandoned — Close is what deletes the file.
type Stream struct {
	f      *os.File
	path   string
	err    error
	logger *zap.Logger

	once sync.Once
}

var _ io.ReadCloser = (*Stream)(nil)

// openStream transfers ownership of path from the cleanup set to the
// returned Stream. An open failure is logged and surfaces on the stream's
// reads rather than failing the call that produced it; the unreadable file
// stays in the set and is removed by cleanup.
func (c *Client) openStream(path string, tmp *tempSet) *Stream {
	f, err := os.Open(path)
	if err != nil {
		c.logger.Warn("failed to open streamed output",
			zap.String("path", path),
			zap.Error(err))
		return &Stream{err: fmt.Errorf("opening streamed output: %w", err), logger: c.logger}
	}
	tmp.release(path)
	return &Stream{f: f, path: path, logger: c.logger}
}

func (s *Stream) Read(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.f.Read(p)
}

// Close closes the reader and deletes the backing file. It is idempotent; a
// file already gone is not an error.
func (s *Stream) Close() error {
	var closeErr error
	s.once.Do(func() {
		if s.f != nil {
			closeErr = s.f.Close()
		}
		if s.path == "" {
			return
		}
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			if s.logger != nil {
				s.logger.Warn("failed to remove streamed output",
					zap.String("path", s.path),
					zap.Error(err))
			}
			if closeErr == nil {
				closeErr = err
			}
		}
	})
	return closeErr
}

// Path reports the backing file location, mainly for diagnostics.
func (s *Stream) Path() string {
	return s.path
}
