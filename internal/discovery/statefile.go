package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// DaemonInfo is the durable descriptor of a live daemon, persisted as the
// single well-known state file. At most one valid (live-process) DaemonInfo
// may exist per home directory at a time.
type DaemonInfo struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	VaultPath string    `json:"vaultPath"`
	StartedAt time.Time `json:"startedAt"`
	Version   string    `json:"version"`
}

// DefaultStateDir returns the daemon's state directory, ~/.inkwell.
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".inkwell"), nil
}

// StateFilePath returns the state file path inside dir.
func StateFilePath(dir string) string {
	return filepath.Join(dir, "daemon.json")
}

// WriteStateFile persists info to path, creating parent directories as
// needed. The file is replaced wholesale, never patched.
func WriteStateFile(path string, info DaemonInfo) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal daemon info: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write state file %s: %w", path, err)
	}
	return nil
}

// ReadStateFile reads and parses the state file. Returns os.ErrNotExist
// (wrapped) when the file is absent.
func ReadStateFile(path string) (*DaemonInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state file %s: %w", path, err)
	}
	var info DaemonInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	return &info, nil
}

// RemoveStateFile deletes the state file. Idempotent: a missing file is not
// an error.
func RemoveStateFile(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state file %s: %w", path, err)
	}
	return nil
}

// IsProcessAlive checks whether a process with the given PID exists. Signal 0
// sends no signal; it only probes for existence.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
