package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/example/sluice/internal/ports/primary"
)

// StreamAdapter is a thin adapter that translates CLI operations to
// StreamService calls. It depends only on the StreamService interface,
// enabling easy testing with mocks.
type StreamAdapter struct {
	service primary.StreamService
	out     io.Writer
}

// NewStreamAdapter creates a new StreamAdapter with the given service.
func NewStreamAdapter(service primary.StreamService, out io.Writer) *StreamAdapter {
	return &StreamAdapter{
		service: service,
		out:     out,
	}
}

// Create creates a stream end to end: id, branch, worktree, registry record.
func (a *StreamAdapter) Create(ctx context.Context, req primary.CreateStreamRequest) (*primary.Stream, error) {
	stream, err := a.service.CreateStream(ctx, req)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "✓ Created stream %s: %s\n", stream.StreamID, stream.Title)
	fmt.Fprintf(a.out, "  Branch:   %s\n", stream.Branch)
	fmt.Fprintf(a.out, "  Worktree: %s\n", stream.WorktreePath)
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "Start working: cd %s\n", stream.WorktreePath)

	return stream, nil
}

// Allocate reserves a stream id without creating git state.
func (a *StreamAdapter) Allocate(ctx context.Context, req primary.AllocateStreamRequest) (*primary.AllocateStreamResponse, error) {
	alloc, err := a.service.AllocateStream(ctx, req)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "✓ Allocated stream id %s\n", alloc.StreamID)
	fmt.Fprintf(a.out, "  Number: %s\n", alloc.Number)
	fmt.Fprintf(a.out, "  Slug:   %s\n", alloc.Slug)

	return alloc, nil
}

// Register records an externally created stream in the registry.
func (a *StreamAdapter) Register(ctx context.Context, req primary.RegisterStreamRequest) (*primary.Stream, error) {
	stream, err := a.service.RegisterStream(ctx, req)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "✓ Registered stream %s: %s\n", stream.StreamID, stream.Title)
	fmt.Fprintf(a.out, "  Branch:   %s\n", stream.Branch)
	fmt.Fprintf(a.out, "  Worktree: %s\n", stream.WorktreePath)

	return stream, nil
}

// List lists streams with optional status and category filters.
func (a *StreamAdapter) List(ctx context.Context, filters primary.StreamFilters) ([]*primary.Stream, error) {
	streams, err := a.service.ListStreams(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}

	if len(streams) == 0 {
		fmt.Fprintln(a.out, "No streams found.")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Create your first stream:")
		fmt.Fprintln(a.out, "  sluice stream create \"Add authentication\" --category backend")
		return streams, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tPRIORITY\tSTATUS")
	fmt.Fprintln(w, "--\t-----\t--------\t--------\t------")

	for _, stream := range streams {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			stream.StreamID,
			stream.Title,
			stream.Category,
			stream.Priority,
			stream.Status,
		)
	}

	w.Flush()
	return streams, nil
}

// Show displays details for a single stream.
func (a *StreamAdapter) Show(ctx context.Context, streamID string) (*primary.Stream, error) {
	stream, err := a.service.GetStream(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}

	fmt.Fprintf(a.out, "\nStream: %s\n", stream.StreamID)
	fmt.Fprintf(a.out, "Title:    %s\n", stream.Title)
	fmt.Fprintf(a.out, "Category: %s\n", stream.Category)
	fmt.Fprintf(a.out, "Priority: %s\n", stream.Priority)
	fmt.Fprintf(a.out, "Status:   %s\n", stream.Status)
	fmt.Fprintf(a.out, "Branch:   %s\n", stream.Branch)
	fmt.Fprintf(a.out, "Worktree: %s\n", stream.WorktreePath)
	if stream.ParentStreamID != "" {
		fmt.Fprintf(a.out, "Parent:   %s\n", stream.ParentStreamID)
	}
	if len(stream.IssuedSubStreams) > 0 {
		fmt.Fprintf(a.out, "Subs:     %v\n", stream.IssuedSubStreams)
	}
	if stream.MergeCommit != "" {
		fmt.Fprintf(a.out, "Merged:   %s\n", stream.MergeCommit)
	}
	fmt.Fprintf(a.out, "Created:  %s\n", stream.CreatedAt)
	fmt.Fprintln(a.out)

	return stream, nil
}

// Update applies a partial update to a stream record.
func (a *StreamAdapter) Update(ctx context.Context, req primary.UpdateStreamRequest) (*primary.Stream, error) {
	stream, err := a.service.UpdateStream(ctx, req)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "✓ Updated stream %s\n", stream.StreamID)
	fmt.Fprintf(a.out, "  Status: %s  Priority: %s\n", stream.Status, stream.Priority)

	return stream, nil
}

// Remove drops a stream record from the registry.
func (a *StreamAdapter) Remove(ctx context.Context, streamID string, force bool) error {
	if err := a.service.RemoveStream(ctx, streamID, force); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Removed stream %s\n", streamID)
	return nil
}

// Locate prints the stream's working location, path only, so shell
// wrappers can cd into it.
func (a *StreamAdapter) Locate(ctx context.Context, streamID string) (*primary.LocateStreamResponse, error) {
	loc, err := a.service.LocateStream(ctx, streamID)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(a.out, loc.WorktreePath)
	return loc, nil
}
