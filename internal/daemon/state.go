// Package daemon tracks a detached API server through a small state file
// holding its PID and listen address.
package daemon

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerState describes a running API server.
type ServerState struct {
	PID       int       `yaml:"pid"`
	Addr      string    `yaml:"addr"`
	DBPath    string    `yaml:"db_path"`
	Version   string    `yaml:"version,omitempty"`
	StartedAt time.Time `yaml:"started_at"`
}

// StateFile reads and writes a ServerState at Path.
type StateFile struct {
	Path string
}

// NewStateFile creates a StateFile for the given path.
func NewStateFile(path string) *StateFile {
	return &StateFile{Path: path}
}

// Write records st. A zero PID is replaced with the current process id.
func (f *StateFile) Write(st ServerState) error {
	if st.PID == 0 {
		st.PID = os.Getpid()
	}
	if st.StartedAt.IsZero() {
		st.StartedAt = time.Now().UTC()
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode server state: %w", err)
	}
	return os.WriteFile(f.Path, data, 0o644)
}

// Read loads the recorded state.
func (f *StateFile) Read() (*ServerState, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	var st ServerState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("invalid server state file: %w", err)
	}
	if st.PID <= 0 {
		return nil, fmt.Errorf("invalid server state file: missing pid")
	}
	return &st, nil
}

// Remove deletes the state file.
func (f *StateFile) Remove() error {
	return os.Remove(f.Path)
}

// Running returns the recorded state when the process it names is alive.
func (f *StateFile) Running() (*ServerState, bool) {
	st, err := f.Read()
	if err != nil {
		return nil, false
	}
	return st, processAlive(st.PID)
}
