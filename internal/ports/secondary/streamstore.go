package secondary

import (
	"context"

	"github.com/example/sluice/internal/models"
)

// StreamStore defines the interface for stream registry persistence.
// The registry is a single atomically replaced document; implementations
// must serialize mutations behind an exclusive lock and keep reads
// lock-free.
type StreamStore interface {
	// Load returns the current registry document. A missing registry
	// yields a fresh document; a corrupt one is quarantined first.
	Load(ctx context.Context) (*models.RegistryDocument, error)

	// Save atomically replaces the registry document on disk.
	Save(ctx context.Context, doc *models.RegistryDocument) error

	// WithLock runs fn with exclusive ownership of the registry,
	// persisting the document afterward if fn succeeds. The operation
	// name is recorded in the lock token for diagnostics.
	WithLock(ctx context.Context, operation string, fn func(doc *models.RegistryDocument) error) error

	// Allocate reserves the next stream id under the registry lock.
	// Identifiers are never reused.
	Allocate(ctx context.Context, req AllocationRequest) (*StreamAllocation, error)

	// Register adds a new stream record. Fails if the id is taken.
	Register(ctx context.Context, rec *models.StreamRecord) error

	// Update applies a partial update to a record and returns the
	// result.
	Update(ctx context.Context, streamID string, patch StreamPatch) (*models.StreamRecord, error)

	// Remove drops a record and its active context.
	Remove(ctx context.Context, streamID string) error

	// Touch records where a stream is being worked on right now.
	Touch(ctx context.Context, streamID, worktreePath string) error

	// Get retrieves a single record by id.
	Get(ctx context.Context, streamID string) (*models.StreamRecord, error)

	// List retrieves records matching the filter, ordered by id.
	List(ctx context.Context, filter StreamFilter) ([]*models.StreamRecord, error)
}

// AllocationRequest asks for the next stream id.
type AllocationRequest struct {
	Title string

	// Empty string means a main stream in the current epoch
	ParentStreamID string
}

// StreamAllocation is a reserved identifier.
type StreamAllocation struct {
	StreamID string

	// Number is the numeric prefix including any suffix letter
	Number string

	Slug string
}

// StreamPatch is a partial record update. Zero values mean unchanged.
type StreamPatch struct {
	Title    string
	Category models.StreamCategory
	Priority models.StreamPriority
	Status   models.StreamStatus

	// MergeCommit records the main commit that landed this stream
	MergeCommit string
}

// StreamFilter narrows List results. Zero values match everything.
type StreamFilter struct {
	Status         models.StreamStatus
	Category       models.StreamCategory
	ParentStreamID string
}
