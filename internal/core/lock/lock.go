// Package lock implements the shared acquisition protocol for
// timestamped exclusive tokens. Both the registry's filesystem mutex
// and the distributed merge lock store a token naming its owner and
// acquisition time; this package owns the retry loop, the staleness
// policy, and the contention error shape, parameterized by the storage
// backend.
package lock

import (
	"context"
	"fmt"
	"time"
)

// Holder identifies who owns a lock token. Hostname is empty for
// local filesystem tokens.
type Holder struct {
	StreamID   string
	PID        int
	Hostname   string
	Operation  string
	AcquiredAt time.Time
}

func (h *Holder) String() string {
	who := fmt.Sprintf("pid %d", h.PID)
	if h.Hostname != "" {
		who = fmt.Sprintf("%s on %s", who, h.Hostname)
	}
	if h.StreamID != "" {
		who = fmt.Sprintf("stream %s (%s)", h.StreamID, who)
	}
	if h.Operation != "" {
		who = fmt.Sprintf("%s during %s", who, h.Operation)
	}
	return who
}

// ContentionError reports that a lock could not be acquired within the
// retry budget. It carries the last observed holder so callers can
// surface who is in the way.
type ContentionError struct {
	Resource string
	Attempts int
	Waited   time.Duration
	Holder   *Holder
}

func (e *ContentionError) Error() string {
	msg := fmt.Sprintf("could not acquire %s after %d attempts (%s)", e.Resource, e.Attempts, e.Waited.Round(time.Millisecond))
	if e.Holder != nil {
		msg = fmt.Sprintf("%s - held by %s", msg, e.Holder)
	}
	return msg
}

// Policy controls acquisition behavior shared by all lock backends.
type Policy struct {
	// StaleAfter is the age past which a held token is presumed
	// abandoned and may be forcibly reclaimed.
	StaleAfter time.Duration

	// MaxAttempts bounds the acquisition loop.
	MaxAttempts int

	// RetryInterval is the sleep between attempts against a live
	// holder. Stale reclaims retry without sleeping.
	RetryInterval time.Duration
}

// DefaultPolicy matches the documented defaults: five minute
// staleness, one second between attempts.
func DefaultPolicy() Policy {
	return Policy{
		StaleAfter:    5 * time.Minute,
		MaxAttempts:   30,
		RetryInterval: time.Second,
	}
}

// IsStale reports whether a token acquired at the given time has
// outlived the staleness threshold.
func (p Policy) IsStale(acquiredAt, now time.Time) bool {
	return now.Sub(acquiredAt) > p.StaleAfter
}

// Backend is one storage medium for an exclusive token. Creation must
// be atomic: exactly one of several concurrent TryCreate calls may
// return created=true.
type Backend interface {
	// TryCreate atomically creates the token naming this process as
	// owner. Returns created=false if the token already exists (or the
	// creation race was lost). Any other failure is fatal.
	TryCreate(ctx context.Context) (created bool, err error)

	// ReadHolder returns the current token's owner. A nil holder with
	// nil error means the token vanished between observations; an
	// error means the token exists but cannot be parsed.
	ReadHolder(ctx context.Context) (*Holder, error)

	// ForceRemove deletes the token regardless of owner, reclaiming a
	// stale or corrupt lock.
	ForceRemove(ctx context.Context) error
}

// Acquire runs the shared acquisition loop against a backend:
// create if absent; reclaim immediately if the existing token is stale
// or unreadable; otherwise wait out the retry interval. Returns a
// ContentionError carrying the last live holder when the budget is
// exhausted.
func Acquire(ctx context.Context, resource string, b Backend, p Policy) error {
	start := time.Now()
	var lastHolder *Holder

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		created, err := b.TryCreate(ctx)
		if err != nil {
			return fmt.Errorf("acquiring %s: %w", resource, err)
		}
		if created {
			return nil
		}

		holder, err := b.ReadHolder(ctx)
		if err != nil {
			// Unreadable token: treat as stale and reclaim now.
			if rmErr := b.ForceRemove(ctx); rmErr != nil {
				return fmt.Errorf("reclaiming corrupt %s token: %w", resource, rmErr)
			}
			continue
		}
		if holder == nil {
			// Token vanished under us - retry immediately.
			continue
		}
		if p.IsStale(holder.AcquiredAt, time.Now()) {
			if rmErr := b.ForceRemove(ctx); rmErr != nil {
				return fmt.Errorf("reclaiming stale %s token: %w", resource, rmErr)
			}
			continue
		}

		lastHolder = holder
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.RetryInterval):
		}
	}

	return &ContentionError{
		Resource: resource,
		Attempts: p.MaxAttempts,
		Waited:   time.Since(start),
		Holder:   lastHolder,
	}
}
