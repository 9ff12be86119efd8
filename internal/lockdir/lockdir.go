// Package lockdir implements the local filesystem mutex guarding the
// stream registry. The lock is a directory created atomically next to
// the protected file; a token file inside names the owning process.
// Directory creation is the only filesystem primitive that is
// exclusive on every platform sluice runs on, which is why this is a
// directory and not a file.
package lockdir

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/example/sluice/internal/core/lock"
)

const tokenFileName = "owner.json"

// ownerToken is the on-disk payload inside the lock directory.
type ownerToken struct {
	OwnerPID   int       `json:"ownerPid"`
	AcquiredAt time.Time `json:"acquiredAt"`
	Operation  string    `json:"operation"`
}

// Mutex is an exclusive lock over one file, held via a sibling
// <file>.lock directory.
type Mutex struct {
	dir    string
	policy lock.Policy
	log    *slog.Logger
	held   bool
}

// New returns a mutex protecting the given file. The lock directory
// sits next to it with a .lock suffix.
func New(protectedPath string, policy lock.Policy, logger *slog.Logger) *Mutex {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutex{
		dir:    protectedPath + ".lock",
		policy: policy,
		log:    logger,
	}
}

// Dir returns the lock directory path.
func (m *Mutex) Dir() string {
	return m.dir
}

// Acquire takes the mutex, reclaiming stale or unreadable tokens and
// waiting out live holders per the policy.
func (m *Mutex) Acquire(ctx context.Context, operation string) error {
	backend := &dirBackend{dir: m.dir, operation: operation, log: m.log}
	if err := lock.Acquire(ctx, filepath.Base(m.dir), backend, m.policy); err != nil {
		return err
	}
	m.held = true
	return nil
}

// Release drops the mutex. Idempotent and infallible: failures are
// logged so a caller's cleanup path never has to handle them. A stale
// leftover is reclaimed by the next acquirer anyway.
func (m *Mutex) Release() {
	if !m.held {
		return
	}
	m.held = false
	if err := os.RemoveAll(m.dir); err != nil {
		m.log.Warn("failed to release registry lock", "dir", m.dir, "error", err)
	}
}

// WithLock runs fn while holding the mutex.
func (m *Mutex) WithLock(ctx context.Context, operation string, fn func() error) error {
	if err := m.Acquire(ctx, operation); err != nil {
		return err
	}
	defer m.Release()
	return fn()
}

// dirBackend adapts the lock directory to the shared acquisition loop.
type dirBackend struct {
	dir       string
	operation string
	log       *slog.Logger
}

func (b *dirBackend) TryCreate(ctx context.Context) (bool, error) {
	if err := os.Mkdir(b.dir, 0755); err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}

	token := ownerToken{
		OwnerPID:   os.Getpid(),
		AcquiredAt: time.Now().UTC(),
		Operation:  b.operation,
	}
	data, err := json.Marshal(token)
	if err == nil {
		err = os.WriteFile(filepath.Join(b.dir, tokenFileName), data, 0644)
	}
	if err != nil {
		// Holding a tokenless lock would look abandoned to everyone
		// else, so give it back.
		os.RemoveAll(b.dir)
		return false, fmt.Errorf("failed to write lock token: %w", err)
	}
	return true, nil
}

func (b *dirBackend) ReadHolder(ctx context.Context) (*lock.Holder, error) {
	data, err := os.ReadFile(filepath.Join(b.dir, tokenFileName))
	if err != nil {
		if os.IsNotExist(err) {
			if _, statErr := os.Stat(b.dir); os.IsNotExist(statErr) {
				// Lock released between observations.
				return nil, nil
			}
			// Directory without a token: a crashed acquirer.
			return nil, fmt.Errorf("lock directory %s has no token", b.dir)
		}
		return nil, err
	}

	var token ownerToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse lock token: %w", err)
	}
	return &lock.Holder{
		PID:        token.OwnerPID,
		Operation:  token.Operation,
		AcquiredAt: token.AcquiredAt,
	}, nil
}

func (b *dirBackend) ForceRemove(ctx context.Context) error {
	b.log.Warn("reclaiming registry lock", "dir", b.dir)
	return os.RemoveAll(b.dir)
}
