// Package pidfile manages the single-line PID files that mark a running adapter.
package pidfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrRunning is returned by Acquire when a live process owns the file
var ErrRunning = errors.New("process already running")

// ErrNotOwner is returned by Release when the file holds another PID
var ErrNotOwner = errors.New("pid file owned by another process")

// RunningError names the process that owns a PID file
type RunningError struct {
	Path string
	PID  int
}

func (e *RunningError) Error() string {
	return fmt.Sprintf("%s: process %d already running", e.Path, e.PID)
}

// Is makes errors.Is(err, ErrRunning) hold
func (e *RunningError) Is(target error) bool {
	return target == ErrRunning
}

// Read returns the PID stored in path
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s: %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Alive reports whether a process with the given PID exists
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Running returns the live PID recorded in path, or 0 when the file is
// missing, unreadable or stale
func Running(path string) int {
	pid, err := Read(path)
	if err != nil || !Alive(pid) {
		return 0
	}
	return pid
}

// Acquire writes the current PID to path. A file left by a dead process is replaced.
func Acquire(path string) error {
	return acquire(path, os.Getpid())
}

func acquire(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}

	for i := 0; i < 2; i++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", pid)
			cerr := f.Close()
			if werr != nil {
				return fmt.Errorf("failed to write pid file: %w", werr)
			}
			if cerr != nil {
				return fmt.Errorf("failed to write pid file: %w", cerr)
			}
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("failed to create pid file: %w", err)
		}

		if owner := Running(path); owner != 0 && owner != pid {
			return &RunningError{Path: path, PID: owner}
		}
		// Stale or ours from an earlier run
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove stale pid file: %w", err)
		}
	}
	return &RunningError{Path: path, PID: Running(path)}
}

// Release removes path if it still holds the current PID
func Release(path string) error {
	return release(path, os.Getpid())
}

func release(path string, pid int) error {
	owner, err := Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if owner != pid {
		return ErrNotOwner
	}
	return os.Remove(path)
}
