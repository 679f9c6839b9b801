package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// DefaultLockTimeout bounds how long a process waits for another process's
// refresh before going ahead without the lock.
const DefaultLockTimeout = 5 * time.Second

// ProcessLock serializes session refreshes across slotbook processes.
type ProcessLock struct {
	path    string
	timeout time.Duration
}

// NewProcessLock creates a lock backed by the file at path.
func NewProcessLock(path string, timeout time.Duration) *ProcessLock {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &ProcessLock{path: path, timeout: timeout}
}

// Path returns the lock file path.
func (l *ProcessLock) Path() string {
	return l.path
}

// Lock acquires the file lock.
//
// Fail-open: when the lock is not obtained within the timeout, Lock returns
// held=false with a nil error and a no-op unlock. A cancelled parent context
// is returned as an error.
func (l *ProcessLock) Lock(ctx context.Context) (unlock func(), held bool, err error) {
	noop := func() {}

	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return noop, false, err
	}

	fl := flock.New(l.path)

	lockCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	// TryLockContext retries every 10ms until the context expires
	locked, err := fl.TryLockContext(lockCtx, 10*time.Millisecond)
	if err != nil {
		if ctx.Err() != nil {
			return noop, false, ctx.Err()
		}
		if errors.Is(lockCtx.Err(), context.DeadlineExceeded) {
			return noop, false, nil
		}
		return noop, false, err
	}
	if !locked {
		return noop, false, nil
	}

	return func() { _ = fl.Unlock() }, true, nil
}
