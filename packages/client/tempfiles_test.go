package client

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTempSet_SpoolAndCleanup(t *testing.T) {
	tmp := newTempSet(zap.NewNop())

	a, err := tmp.spool("body", []byte("first"))
	require.NoError(t, err)
	b, err := tmp.spool("form", []byte("second"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "spooled paths are unique")

	content, err := os.ReadFile(a)
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))

	tmp.cleanup()

	_, errA := os.Stat(a)
	_, errB := os.Stat(b)
	assert.True(t, os.IsNotExist(errA))
	assert.True(t, os.IsNotExist(errB))
}

func TestTempSet_CleanupIdempotent(t *testing.T) {
	tmp := newTempSet(zap.NewNop())

	_, err := tmp.spool("body", []byte("x"))
	require.NoError(t, err)

	tmp.cleanup()
	tmp.cleanup() // second pass over an emptied set

	empty := newTempSet(zap.NewNop())
	empty.cleanup() // never-used set
}

func TestTempSet_CleanupToleratesMissingFiles(t *testing.T) {
	tmp := newTempSet(zap.NewNop())

	path, err := tmp.spool("body", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	tmp.cleanup() // must not panic or error on the already-deleted file
}

func TestTempSet_Release(t *testing.T) {
	tmp := newTempSet(zap.NewNop())

	path, err := tmp.spool("out", []byte("keep me"))
	require.NoError(t, err)
	tmp.release(path)

	tmp.cleanup()

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "released paths are no longer owned by the set")
	assert.Contains(t, tmp.created, path, "created history still records the path")

	require.NoError(t, os.Remove(path))
}

func TestTempSet_AllocateDoesNotCreate(t *testing.T) {
	tmp := newTempSet(zap.NewNop())
	defer tmp.cleanup()

	path := tmp.allocate("out")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "allocate only reserves the name")
}
