package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// ErrMergeInProgress is returned when another merge holds the dataset lock.
var ErrMergeInProgress = errors.New("another merge is in progress")

// LockPath returns the lock file guarding datasetPath.
func LockPath(datasetPath string) string { return datasetPath + ".lock" }

// acquireLock obtains the exclusive dataset lock, polling until timeout.
func acquireLock(ctx context.Context, datasetPath string, timeout time.Duration) (func(), error) {
	lockPath := LockPath(datasetPath)
	l := flock.New(lockPath)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return func() {}, fmt.Errorf("cannot acquire dataset lock: %w", err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return func() {}, fmt.Errorf("%w (lock: %s)", ErrMergeInProgress, lockPath)
		}
		select {
		case <-ctx.Done():
			return func() {}, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
