package pidfile_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandiworks/tradecore-go/internal/infrastructure/pidfile"
)

func TestPIDFile_AcquireWritesOwnPidAndReleaseRemoves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.pid")
	pf := pidfile.New(path)

	require.NoError(t, pf.Acquire())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid())+"\n", string(data))

	require.NoError(t, pf.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Releasing an already-removed file is fine
	require.NoError(t, pf.Release())
}

func TestPIDFile_RefusesFileOwnedByLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644))

	err := pidfile.New(path).Acquire()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestPIDFile_SweepsStaleAndCorruptFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.pid")

	require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0o644))
	require.NoError(t, pidfile.New(path).Acquire())

	// A pid outside the valid range reads as a dead owner
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0o644))
	require.NoError(t, pidfile.New(path).Acquire())
}
