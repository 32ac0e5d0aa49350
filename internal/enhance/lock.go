package enhance

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// lockName is the lock file created in a destination directory.
const lockName = ".tgenhance.lock"

// Lock is an exclusive, advisory lock on a destination directory.
type Lock struct {
	lock *flock.Flock
}

// LockDestination creates dir if needed and locks it. It fails fast with
// ErrDestinationLocked when another process holds the lock.
func LockDestination(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}
	l := flock.New(filepath.Join(dir, lockName))
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDestinationLocked, dir)
	}
	return &Lock{lock: l}, nil
}

// Unlock releases the lock. The lock file is left in place.
func (l *Lock) Unlock() error {
	return l.lock.Unlock()
}
