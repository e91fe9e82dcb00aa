//go:build windows

package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Detach is a no-op; Windows has no session to leave.
func Detach(_ *exec.Cmd) {}

// ShutdownSignals are the signals a foreground server stops on.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Terminate stops the recorded server. Windows cannot deliver SIGTERM, so this kills it.
func (f *StateFile) Terminate() error { return f.Kill() }

// Kill stops the recorded server immediately.
func (f *StateFile) Kill() error {
	st, err := f.Read()
	if err != nil {
		return fmt.Errorf("read server state: %w", err)
	}
	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return fmt.Errorf("find process %d: %w", st.PID, err)
	}
	return proc.Kill()
}
