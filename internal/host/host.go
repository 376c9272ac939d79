package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"
)

// ErrLocked is returned when another process holds the lock file.
var ErrLocked = errors.New("lock file held by another process")

// LockFileHost holds an exclusive lock on a file while the engine runs and
// writes the owning PID into it.
type LockFileHost struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	file  *os.File
	state string
}

// NewLockFileHost creates a host for the lock file at path.
func NewLockFileHost(path string, logger *slog.Logger) *LockFileHost {
	return &LockFileHost{
		path:   path,
		logger: logger.With("component", "lock_file_host", "path", path),
	}
}

// AcquireResource takes the lock. Acquiring a lock already held by this
// host is a no-op.
func (h *LockFileHost) AcquireResource(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(h.path), 0o700); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("%w: %v", ErrLocked, err)
	}

	if err := writePID(f); err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck
		f.Close()                                   //nolint:errcheck
		return err
	}

	h.file = f
	h.logger.Debug("lock acquired")
	return nil
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("write PID to lock file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync lock file: %w", err)
	}
	return nil
}

// ReleaseResource drops the lock and removes the file.
func (h *LockFileHost) ReleaseResource(_ context.Context) error {
	h.mu.Lock()
	f := h.file
	h.file = nil
	h.mu.Unlock()
	if f == nil {
		return nil
	}

	// Remove before unlocking; a process that locks afterwards creates a fresh file.
	os.Remove(h.path) //nolint:errcheck
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("release lock: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}
	h.logger.Debug("lock released")
	return nil
}

// NotifyStateChanged records the engine state.
func (h *LockFileHost) NotifyStateChanged(_ context.Context, state string) {
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
	h.logger.Debug("engine state", "state", state)
}

// State returns the last state reported to the host.
func (h *LockFileHost) State() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Held reports whether the lock is currently held.
func (h *LockFileHost) Held() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.file != nil
}

// Nop is a host without a resource.
type Nop struct{}

func (Nop) AcquireResource(context.Context) error      { return nil }
func (Nop) ReleaseResource(context.Context) error      { return nil }
func (Nop) NotifyStateChanged(context.Context, string) {}
