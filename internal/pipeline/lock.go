package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"majdl/internal/services"
)

// LockFile is the run lock kept in the output directory.
const LockFile = ".majdl.lock"

// ErrLocked reports that another run holds the output directory.
var ErrLocked = errors.New("another majdl run is using this output directory")

// RunLock is an exclusive advisory lock on an output directory.
type RunLock struct {
	path string
	lock *flock.Flock
}

// AcquireLock takes the run lock for dir without waiting.
func AcquireLock(dir string) (*RunLock, error) {
	path := filepath.Join(dir, LockFile)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "lock", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &RunLock{path: path, lock: lock}, nil
}

// Path returns the lock file path.
func (l *RunLock) Path() string { return l.path }

// Release unlocks. The lock file itself is left in place.
func (l *RunLock) Release() error {
	return l.lock.Unlock()
}
