package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by DistributedLocker.Lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes mode changes to one session across processes
// that share a store. The session manager takes the lock around every
// load-check-save cycle, after its in-process lock.
type DistributedLocker interface {
	// Lock acquires the lock named key, usually a session ID, holding it for
	// at most ttl. It returns once the lock is held or ctx is done.
	// The returned UnlockFunc must be called exactly once.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
