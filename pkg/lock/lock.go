// Package lock provides the best-effort advisory lock taken around one
// ingestion run. Failure to acquire is reported, not fatal: the dedup key
// model keeps concurrent runs from duplicating rows, the lock only avoids
// wasted work.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// retryDelay is how often acquisition is retried within the wait budget.
const retryDelay = 250 * time.Millisecond

// Acquire tries to take the file lock at path, waiting at most wait. It
// returns a release function on success and ok=false when the lock is held
// elsewhere for the whole wait.
func Acquire(ctx context.Context, path string, wait time.Duration) (release func(), ok bool, err error) {
	f := flock.New(path)

	lockCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	locked, err := f.TryLockContext(lockCtx, retryDelay)
	if err != nil && lockCtx.Err() == nil {
		return nil, false, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !locked {
		return nil, false, nil
	}
	return func() { _ = f.Unlock() }, true, nil
}
