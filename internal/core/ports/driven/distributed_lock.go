package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates maintenance work across worker instances so
// that only one scheduler enqueues recovery and purge tasks per cycle.
type DistributedLock interface {
	// Acquire tries to take the named lock for ttl.
	// Returns false without error when another instance holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release gives the lock back. Best-effort and safe to call when not held.
	Release(ctx context.Context, name string) error

	// Extend pushes out the TTL of a held lock. Advisory-lock backends
	// have no TTL and treat this as a held-check.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
