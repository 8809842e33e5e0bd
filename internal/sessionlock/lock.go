// Package sessionlock keeps a second flux process from starting an operation
// while another one is in flight against the same state directory.
package sessionlock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"fluxmedia/internal/services"
)

// Lock is a held session lock.
type Lock struct {
	path string
	lock *flock.Flock
}

// TryAcquire takes the lock at path without blocking. It returns an error
// matching services.ErrBusy when another process holds it.
func TryAcquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrBusy, "sessionlock", "acquire",
			"another flux operation is already running (lock "+path+")", nil)
	}
	return &Lock{path: path, lock: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. It is safe to call on a nil lock and more than once.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
