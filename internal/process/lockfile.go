//go:build !windows

package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"poolmon/internal/logger"
)

// ErrAlreadyRunning is returned by Acquire while another controller holds the lock
var ErrAlreadyRunning = errors.New("another poolmon instance is already running")

// LockFile represents an exclusive lock on a PID file
type LockFile struct {
	path string
	fd   int
}

// getPIDFilePath returns the PID file path for the OS.
// Variable (not function) to allow override in tests
var getPIDFilePath = func() string {
	if runtime.GOOS == "linux" {
		if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
			return filepath.Join(runtimeDir, "poolmon.pid")
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".local", "run", "poolmon.pid")
		}
		return fmt.Sprintf("/tmp/poolmon-%d.pid", os.Getuid())
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Library", "Application Support", "poolmon", "poolmon.pid")
	}
	return "/tmp/poolmon.pid"
}

// PIDFilePath returns where the controller records its PID
func PIDFilePath() string {
	return getPIDFilePath()
}

// Acquire creates and locks the PID file.
// Returns ErrAlreadyRunning if another controller holds it.
func Acquire() (*LockFile, error) {
	pidFile := getPIDFilePath()

	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create PID directory: %w", err)
	}

	// Don't truncate before holding the lock
	fd, err := unix.Open(pidFile, unix.O_RDWR|unix.O_CREAT|unix.O_CLOEXEC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open PID file: %w", err)
	}

	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		return nil, ErrAlreadyRunning
	}

	if err := unix.Ftruncate(fd, 0); err != nil {
		unlock(fd)
		return nil, fmt.Errorf("failed to truncate PID file: %w", err)
	}
	if _, err := unix.Write(fd, []byte(strconv.Itoa(os.Getpid())+"\n")); err != nil {
		unlock(fd)
		return nil, fmt.Errorf("failed to write PID: %w", err)
	}

	logger.Debug("Acquired PID file lock: %s (PID: %d)", pidFile, os.Getpid())

	// fd stays open to hold the lock
	return &LockFile{path: pidFile, fd: fd}, nil
}

func unlock(fd int) {
	unix.Flock(fd, unix.LOCK_UN)
	unix.Close(fd)
}

// Release releases the lock and removes the PID file
func (lf *LockFile) Release() error {
	if lf.fd <= 0 {
		return nil
	}
	logger.Debug("Releasing PID file lock: %s", lf.path)

	os.Remove(lf.path)
	unlock(lf.fd)
	lf.fd = 0
	return nil
}

// Check reports whether a controller holds the lock and its PID
func Check() (bool, int, error) {
	fd, err := unix.Open(getPIDFilePath(), unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("failed to open PID file: %w", err)
	}
	defer unix.Close(fd)

	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return true, readPIDFromFd(fd), nil
	}

	// Lockable means nobody holds it
	unix.Flock(fd, unix.LOCK_UN)
	return false, 0, nil
}

func readPIDFromFd(fd int) int {
	buf := make([]byte, 32)
	n, err := unix.Pread(fd, buf, 0)
	if err != nil || n == 0 {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}

// CleanupStale removes a PID file nobody holds a lock on
func CleanupStale() error {
	running, pid, err := Check()
	if err != nil {
		return err
	}
	if !running {
		os.Remove(getPIDFilePath())
		return nil
	}
	if !IsControllerProcess(pid) {
		logger.Info("PID file contains PID of another program (%d), cleaning up", pid)
		os.Remove(getPIDFilePath())
		return nil
	}
	return fmt.Errorf("poolmon is running (PID %d)", pid)
}
