//go:build !windows

package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Detach starts child in its own session so it outlives the CLI.
func Detach(child *exec.Cmd) {
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// ShutdownSignals are the signals a foreground server stops on.
func ShutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

func processAlive(pid int) bool {
	// Signal 0 probes for existence.
	return syscall.Kill(pid, 0) == nil
}

// Terminate asks the recorded server to shut down gracefully.
func (f *StateFile) Terminate() error { return f.signal(syscall.SIGTERM) }

// Kill stops the recorded server immediately.
func (f *StateFile) Kill() error { return f.signal(syscall.SIGKILL) }

func (f *StateFile) signal(sig syscall.Signal) error {
	st, err := f.Read()
	if err != nil {
		return fmt.Errorf("read server state: %w", err)
	}
	return syscall.Kill(st.PID, sig)
}
