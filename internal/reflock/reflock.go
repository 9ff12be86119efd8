// Package reflock implements the distributed merge lock: a remote git
// ref whose single parentless commit carries the owner's identity as
// its message. Arbitration rides on git itself - the remote accepts
// exactly one non-forced push of a new ref, so a rejected push means
// the race was lost. No side channel, no extra server.
package reflock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/sluice/internal/agent"
	"github.com/example/sluice/internal/config"
	"github.com/example/sluice/internal/core/lock"
	"github.com/example/sluice/internal/ports/secondary"
)

// ownerPayload is the JSON commit message naming the lock holder.
type ownerPayload struct {
	StreamID   string    `json:"streamId"`
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquiredAt"`
	Operation  string    `json:"operation"`
}

// RefLock coordinates merge completion across every machine sharing a
// remote.
type RefLock struct {
	repoPath string
	remote   string
	branch   string
	git      secondary.GitRunner
	policy   lock.Policy
	log      *slog.Logger
}

// New creates a merge lock for the repository's primary checkout.
func New(repoPath string, cfg *config.Config, gitRunner secondary.GitRunner, logger *slog.Logger) *RefLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefLock{
		repoPath: repoPath,
		remote:   cfg.Remote,
		branch:   cfg.MergeLockBranch,
		git:      gitRunner,
		policy: lock.Policy{
			StaleAfter:    cfg.StaleAfter(),
			MaxAttempts:   cfg.MaxRetries(),
			RetryInterval: cfg.RetryInterval(),
		},
		log: logger,
	}
}

// Acquire attempts to take the merge lock for a stream operation.
// Exhausting the retry budget against a live holder is a result, not
// an error; infrastructure failures are errors.
func (l *RefLock) Acquire(ctx context.Context, streamID, operation string) (*secondary.LockAcquisition, error) {
	backend := &refBackend{
		lock:      l,
		streamID:  streamID,
		operation: operation,
	}

	err := lock.Acquire(ctx, fmt.Sprintf("merge lock %s", l.branch), backend, l.policy)
	if err != nil {
		var contention *lock.ContentionError
		if errors.As(err, &contention) {
			return &secondary.LockAcquisition{
				Acquired: false,
				Holder:   toPortHolder(contention.Holder),
			}, nil
		}
		return nil, err
	}
	return &secondary.LockAcquisition{Acquired: true}, nil
}

// Release removes the lock ref on the remote and the local copy.
// Idempotent: a ref already gone is success.
func (l *RefLock) Release(ctx context.Context) error {
	if err := l.git.DeleteRemoteBranch(ctx, l.repoPath, l.remote, l.branch); err != nil && !isMissingRemoteRef(err) {
		return fmt.Errorf("failed to release merge lock: %w", err)
	}
	l.deleteLocalBranch(ctx)
	return nil
}

// ForceRelease removes the lock regardless of owner. Operator escape
// hatch; the token's commit has no parent, so nothing of value can be
// lost.
func (l *RefLock) ForceRelease(ctx context.Context) error {
	return l.Release(ctx)
}

// Status inspects the lock without modifying it.
func (l *RefLock) Status(ctx context.Context) (*secondary.MergeLockStatus, error) {
	exists, err := l.git.FetchRef(ctx, l.repoPath, l.remote, l.branch)
	if err != nil {
		return nil, fmt.Errorf("failed to check merge lock: %w", err)
	}
	if !exists {
		return &secondary.MergeLockStatus{Exists: false}, nil
	}

	msg, err := l.git.LastCommitMessage(ctx, l.repoPath, "FETCH_HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to read merge lock token: %w", err)
	}
	var payload ownerPayload
	if err := json.Unmarshal([]byte(msg), &payload); err != nil {
		// An unreadable token counts as stale: the next acquirer will
		// reclaim it.
		return &secondary.MergeLockStatus{Exists: true, Stale: true}, nil
	}

	age := time.Since(payload.AcquiredAt)
	return &secondary.MergeLockStatus{
		Exists: true,
		Stale:  l.policy.IsStale(payload.AcquiredAt, time.Now()),
		Age:    age,
		Holder: payloadToHolder(payload),
	}, nil
}

func (l *RefLock) deleteLocalBranch(ctx context.Context) {
	exists, err := l.git.BranchExists(ctx, l.repoPath, l.branch)
	if err != nil || !exists {
		return
	}
	if err := l.git.DeleteBranch(ctx, l.repoPath, l.branch); err != nil {
		l.log.Warn("failed to delete local merge lock branch", "branch", l.branch, "error", err)
	}
}

// refBackend adapts the remote ref to the shared acquisition loop.
type refBackend struct {
	lock      *RefLock
	streamID  string
	operation string
}

func (b *refBackend) TryCreate(ctx context.Context) (bool, error) {
	l := b.lock

	exists, err := l.git.FetchRef(ctx, l.repoPath, l.remote, l.branch)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	identity := agent.Current()
	payload := ownerPayload{
		StreamID:   b.streamID,
		PID:        identity.PID,
		Hostname:   identity.Hostname,
		AcquiredAt: time.Now().UTC(),
		Operation:  b.operation,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal lock token: %w", err)
	}

	sha, err := l.git.EmptyCommit(ctx, l.repoPath, string(data))
	if err != nil {
		return false, fmt.Errorf("failed to create lock commit: %w", err)
	}
	if err := l.git.SetBranch(ctx, l.repoPath, l.branch, sha); err != nil {
		return false, fmt.Errorf("failed to point lock branch: %w", err)
	}

	if err := l.git.Push(ctx, l.repoPath, l.remote, l.branch); err != nil {
		// Rejected push: someone pushed the ref between our fetch and
		// now. That is the arbitration working, not a failure.
		l.log.Debug("lost merge lock race", "branch", l.branch, "error", err)
		return false, nil
	}
	return true, nil
}

func (b *refBackend) ReadHolder(ctx context.Context) (*lock.Holder, error) {
	l := b.lock

	exists, err := l.git.FetchRef(ctx, l.repoPath, l.remote, l.branch)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	msg, err := l.git.LastCommitMessage(ctx, l.repoPath, "FETCH_HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to read lock token: %w", err)
	}
	var payload ownerPayload
	if err := json.Unmarshal([]byte(msg), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse lock token: %w", err)
	}
	return &lock.Holder{
		StreamID:   payload.StreamID,
		PID:        payload.PID,
		Hostname:   payload.Hostname,
		Operation:  payload.Operation,
		AcquiredAt: payload.AcquiredAt,
	}, nil
}

func (b *refBackend) ForceRemove(ctx context.Context) error {
	l := b.lock
	l.log.Warn("reclaiming merge lock", "branch", l.branch)
	if err := l.git.DeleteRemoteBranch(ctx, l.repoPath, l.remote, l.branch); err != nil && !isMissingRemoteRef(err) {
		return err
	}
	return nil
}

// isMissingRemoteRef matches git's errors for deleting a ref that is
// already gone.
func isMissingRemoteRef(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "remote ref does not exist") ||
		strings.Contains(msg, "couldn't find remote ref")
}

func toPortHolder(h *lock.Holder) *secondary.LockHolder {
	if h == nil {
		return nil
	}
	return &secondary.LockHolder{
		StreamID:   h.StreamID,
		PID:        h.PID,
		Hostname:   h.Hostname,
		Operation:  h.Operation,
		AcquiredAt: h.AcquiredAt,
	}
}

func payloadToHolder(p ownerPayload) *secondary.LockHolder {
	return &secondary.LockHolder{
		StreamID:   p.StreamID,
		PID:        p.PID,
		Hostname:   p.Hostname,
		Operation:  p.Operation,
		AcquiredAt: p.AcquiredAt,
	}
}

// Ensure RefLock implements the port
var _ secondary.MergeLock = (*RefLock)(nil)
