package secondary

import (
	"context"
	"time"
)

// MergeLock defines the interface for the repository-wide distributed
// merge lock. Exactly one process may hold it across every machine
// sharing the remote.
type MergeLock interface {
	// Acquire attempts to take the lock for a stream operation.
	// Contention within the retry budget is reported in the result,
	// not as an error.
	Acquire(ctx context.Context, streamID, operation string) (*LockAcquisition, error)

	// Release removes this process's lock token. Idempotent: a
	// missing token is success.
	Release(ctx context.Context) error

	// ForceRelease removes the lock token regardless of owner.
	ForceRelease(ctx context.Context) error

	// Status inspects the lock without modifying it.
	Status(ctx context.Context) (*MergeLockStatus, error)
}

// LockAcquisition reports the outcome of an acquire attempt.
type LockAcquisition struct {
	Acquired bool

	// Holder is the current owner when Acquired is false.
	Holder *LockHolder
}

// LockHolder mirrors the owner payload stored in a lock token.
// Duplicated from core/lock to keep ports free of core imports.
type LockHolder struct {
	StreamID   string
	PID        int
	Hostname   string
	Operation  string
	AcquiredAt time.Time
}

// MergeLockStatus is a read-only view of the lock.
type MergeLockStatus struct {
	Exists bool
	Stale  bool
	Age    time.Duration

	// Holder is nil when no lock exists or the token is unreadable.
	Holder *LockHolder
}
