package primary

import "context"

// StreamService defines the primary port for stream lifecycle operations.
type StreamService interface {
	// AllocateStream reserves the next stream id without creating any
	// git state. The id is never reused, even if the stream is never
	// registered.
	AllocateStream(ctx context.Context, req AllocateStreamRequest) (*AllocateStreamResponse, error)

	// CreateStream allocates an id, materializes the worktree and
	// branch, and registers the stream as active.
	CreateStream(ctx context.Context, req CreateStreamRequest) (*Stream, error)

	// RegisterStream records an externally created stream in the
	// registry.
	RegisterStream(ctx context.Context, req RegisterStreamRequest) (*Stream, error)

	// UpdateStream applies a partial update to a stream record.
	UpdateStream(ctx context.Context, req UpdateStreamRequest) (*Stream, error)

	// RemoveStream drops a stream record from the registry. Streams
	// with work in flight require force.
	RemoveStream(ctx context.Context, streamID string, force bool) error

	// GetStream retrieves a single stream by id.
	GetStream(ctx context.Context, streamID string) (*Stream, error)

	// ListStreams retrieves streams matching the given filters.
	ListStreams(ctx context.Context, filters StreamFilters) ([]*Stream, error)

	// LocateStream reports where a stream was last worked on.
	LocateStream(ctx context.Context, streamID string) (*LocateStreamResponse, error)
}

// Stream represents a stream at the port boundary.
type Stream struct {
	StreamID     string
	Title        string
	Category     string
	Priority     string
	Status       string
	WorktreePath string
	Branch       string
	CreatedAt    string
	UpdatedAt    string

	// Empty string means this is a main stream, not a sub-stream
	ParentStreamID string

	// Sub-stream letters this stream has granted
	IssuedSubStreams []string

	// Empty string means not merged yet
	MergeCommit string
}

// AllocateStreamRequest contains the data needed to reserve a stream id.
type AllocateStreamRequest struct {
	Title string

	// ParentStreamID requests a sub-stream of an existing main stream.
	// Empty allocates a main stream in the current epoch.
	ParentStreamID string
}

// AllocateStreamResponse reports the reserved identifier.
type AllocateStreamResponse struct {
	StreamID string

	// Number is the numeric prefix including any suffix letter,
	// e.g. "1500" or "1500a".
	Number string

	Slug string
}

// CreateStreamRequest contains the data needed to create a stream
// end to end.
type CreateStreamRequest struct {
	Title    string
	Category string
	Priority string

	// Empty string means a main stream
	ParentStreamID string
}

// RegisterStreamRequest records a stream whose git state already
// exists.
type RegisterStreamRequest struct {
	StreamID     string
	Title        string
	Category     string
	Priority     string
	WorktreePath string
	Branch       string

	// Empty string means a main stream
	ParentStreamID string
}

// UpdateStreamRequest applies a partial update. Empty fields are left
// unchanged.
type UpdateStreamRequest struct {
	StreamID string
	Title    string
	Category string
	Priority string
	Status   string
}

// StreamFilters contains filter options for querying streams.
type StreamFilters struct {
	Status         string
	Category       string
	ParentStreamID string
}

// LocateStreamResponse reports a stream's last known working location.
type LocateStreamResponse struct {
	StreamID     string
	WorktreePath string

	// Empty string means the stream was never touched; WorktreePath
	// then falls back to the registered location.
	LastAccessedAt string
}
