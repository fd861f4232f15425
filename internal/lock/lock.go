// Package lock serializes read-modify-write cycles on one user's session.
package lock

import (
	"context"
	"time"
)

// Release gives the lock back. Calling it more than once is a no-op.
type Release func()

type Locker interface {
	// Acquire blocks until key is held, the wait bound elapses or ctx is done.
	Acquire(ctx context.Context, key string) (Release, error)
}

const defaultRetryInterval = 50 * time.Millisecond
