package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateFile_WriteAndRead(t *testing.T) {
	f := NewStateFile(filepath.Join(t.TempDir(), "serve.state"))

	require.NoError(t, f.Write(ServerState{PID: 12345, Addr: ":8080", DBPath: "/tmp/x.db", Version: "1.0.0"}))

	st, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, st.PID)
	assert.Equal(t, ":8080", st.Addr)
	assert.Equal(t, "/tmp/x.db", st.DBPath)
	assert.False(t, st.StartedAt.IsZero())
}

func TestStateFile_Write_DefaultsToCurrentPID(t *testing.T) {
	f := NewStateFile(filepath.Join(t.TempDir(), "serve.state"))
	require.NoError(t, f.Write(ServerState{Addr: ":9000"}))

	st, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), st.PID)
}

func TestStateFile_Read_Missing(t *testing.T) {
	f := NewStateFile(filepath.Join(t.TempDir(), "none.state"))
	_, err := f.Read()
	assert.Error(t, err)
}

func TestStateFile_Read_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.state")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":80\"\n"), 0o644))

	_, err := NewStateFile(path).Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing pid")

	require.NoError(t, os.WriteFile(path, []byte("pid: [oops\n"), 0o644))
	_, err = NewStateFile(path).Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server state file")
}

func TestStateFile_Remove(t *testing.T) {
	f := NewStateFile(filepath.Join(t.TempDir(), "serve.state"))
	require.NoError(t, f.Write(ServerState{PID: 1}))
	require.NoError(t, f.Remove())

	_, err := os.Stat(f.Path)
	assert.True(t, os.IsNotExist(err))
	assert.Error(t, f.Remove())
}

func TestStateFile_Running(t *testing.T) {
	f := NewStateFile(filepath.Join(t.TempDir(), "serve.state"))

	_, running := f.Running()
	assert.False(t, running, "no file")

	require.NoError(t, f.Write(ServerState{Addr: ":8080"}))
	st, running := f.Running()
	assert.True(t, running)
	assert.Equal(t, ":8080", st.Addr)

	require.NoError(t, f.Write(ServerState{PID: 999999}))
	_, running = f.Running()
	assert.False(t, running)
}

func TestStateFile_TerminateAndKill_NoFile(t *testing.T) {
	f := NewStateFile(filepath.Join(t.TempDir(), "none.state"))
	err := f.Terminate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read server state")

	require.Error(t, f.Kill())
}

func TestShutdownSignals(t *testing.T) {
	assert.NotEmpty(t, ShutdownSignals())
}
