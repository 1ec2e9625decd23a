// Package pidfile keeps a single scan daemon running per PID file.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning is returned by Acquire when the file names a live process
var ErrAlreadyRunning = errors.New("daemon is already running")

// PIDFile manages a process ID file for daemon single-instance enforcement
type PIDFile struct {
	path  string
	alive func(pid int) bool
}

// New creates a new PIDFile manager
func New(path string) *PIDFile {
	return &PIDFile{path: path, alive: processAlive}
}

// Path returns the file location
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire writes the current PID. Stale or unreadable files are replaced.
func (p *PIDFile) Acquire() error {
	if pid, ok := p.owner(); ok && pid != os.Getpid() && p.alive(pid) {
		return fmt.Errorf("%w (PID %d, %s)", ErrAlreadyRunning, pid, p.path)
	}

	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create PID file directory: %w", err)
		}
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Release removes the file if this process still owns it
func (p *PIDFile) Release() error {
	if pid, ok := p.owner(); ok && pid != os.Getpid() {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

func (p *PIDFile) owner() (int, bool) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// processAlive probes pid with signal 0. EPERM means it exists under another user.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
