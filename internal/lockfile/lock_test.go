package lockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLockFile(t *testing.T) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestFlockExclusiveNonBlockingThenUnlockRoundTrips(t *testing.T) {
	f := openTestLockFile(t)
	require.NoError(t, FlockExclusiveNonBlocking(f))
	assert.NoError(t, FlockUnlock(f))
}

func TestFlockExclusiveBlockingAcquiresFreeLock(t *testing.T) {
	f := openTestLockFile(t)
	require.NoError(t, FlockExclusiveBlocking(f))
	assert.NoError(t, FlockUnlock(f))
}

func TestIsLockedRecognizesErrLocked(t *testing.T) {
	assert.True(t, IsLocked(ErrLocked))
	assert.False(t, IsLocked(nil))
}
