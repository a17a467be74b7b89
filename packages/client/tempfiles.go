package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// tempSet tracks the temporary files created while serving a single call.
// Each call owns its own set so concurrent calls on one client never delete
// each other's files.
type tempSet struct {
	logger  *zap.Logger
	paths   []string
	created []string
}

func newTempSet(logger *zap.Logger) *tempSet {
	return &tempSet{logger: logger}
}

// allocate reserves a unique path under the platform temp directory and
// registers it for cleanup. The file itself is not created; in stream mode
// the external tool writes it.
func (t *tempSet) allocate(kind string) string {
	path := filepath.Join(os.TempDir(), "recurl-"+kind+"-"+uuid.NewString())
	t.paths = append(t.paths, path)
	t.created = append(t.created, path)
	return path
}

// spool writes data to a fresh temp file and registers it for cleanup.
func (t *tempSet) spool(kind string, data []byte) (string, error) {
	path := t.allocate(kind)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("spooling %s to temp file: %w", kind, err)
	}
	return path, nil
}

// release drops path from the cleanup set without deleting the file. Used
// when ownership moves to a Stream that outlives the call.
func (t *tempSet) release(path string) {
	for i, p := range t.paths {
		if p == path {
			t.paths = append(t.paths[:i], t.paths[i+1:]...)
			return
		}
	}
}

// cleanup deletes every tracked file and clears the set. Deletions are
// independent and best-effort: a missing file is fine, any other failure is
// logged and skipped. Calling cleanup again, or on an empty set, is a no-op.
func (t *tempSet) cleanup() {
	for _, path := range t.paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			t.logger.Warn("failed to remove temp file",
				zap.String("path", path),
				zap.Error(err))
		}
	}
	t.paths = t.paths[:0]
}
