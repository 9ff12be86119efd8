package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/sluice/internal/config"
	corestream "github.com/example/sluice/internal/core/stream"
	"github.com/example/sluice/internal/core/streamid"
	"github.com/example/sluice/internal/models"
	"github.com/example/sluice/internal/ports/primary"
	"github.com/example/sluice/internal/ports/secondary"
)

// StreamServiceImpl implements the StreamService interface.
type StreamServiceImpl struct {
	store     secondary.StreamStore
	workspace secondary.WorkspaceAdapter
	journal   secondary.JournalRepository
	cfg       *config.Config
	log       *slog.Logger
}

// NewStreamService creates a new StreamService with injected dependencies.
func NewStreamService(
	store secondary.StreamStore,
	workspace secondary.WorkspaceAdapter,
	journal secondary.JournalRepository,
	cfg *config.Config,
	logger *slog.Logger,
) *StreamServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamServiceImpl{
		store:     store,
		workspace: workspace,
		journal:   journal,
		cfg:       cfg,
		log:       logger,
	}
}

// AllocateStream reserves the next stream id without creating any git
// state. Identifiers are never reused, even when the caller walks away.
func (s *StreamServiceImpl) AllocateStream(ctx context.Context, req primary.AllocateStreamRequest) (*primary.AllocateStreamResponse, error) {
	// 1. Validate input
	if req.Title == "" {
		return nil, fmt.Errorf("stream title is required")
	}

	// 2. Reserve the id under the registry lock
	allocation, err := s.store.Allocate(ctx, secondary.AllocationRequest{
		Title:          req.Title,
		ParentStreamID: req.ParentStreamID,
	})
	if err != nil {
		return nil, err
	}

	appendJournal(ctx, s.journal, s.log, allocation.StreamID, "allocate", "allocated", req.Title)

	return &primary.AllocateStreamResponse{
		StreamID: allocation.StreamID,
		Number:   allocation.Number,
		Slug:     allocation.Slug,
	}, nil
}

// CreateStream allocates an id, materializes the worktree and branch,
// and registers the stream as active.
func (s *StreamServiceImpl) CreateStream(ctx context.Context, req primary.CreateStreamRequest) (*primary.Stream, error) {
	// 1. Validate input
	if req.Title == "" {
		return nil, fmt.Errorf("stream title is required")
	}
	category, err := categoryOrDefault(req.Category)
	if err != nil {
		return nil, err
	}
	priority, err := priorityOrDefault(req.Priority)
	if err != nil {
		return nil, err
	}

	// 2. Reserve the id
	allocation, err := s.store.Allocate(ctx, secondary.AllocationRequest{
		Title:          req.Title,
		ParentStreamID: req.ParentStreamID,
	})
	if err != nil {
		return nil, err
	}
	streamID := allocation.StreamID

	// 3. Register as initializing before touching git, so a crash
	// mid-create leaves a visible record instead of an orphan worktree
	record := &models.StreamRecord{
		StreamID:       streamID,
		Title:          req.Title,
		Category:       category,
		Priority:       priority,
		Status:         models.StreamStatusInitializing,
		WorktreePath:   s.workspace.StreamWorktreePath(streamID),
		Branch:         streamid.BranchName(streamID),
		ParentStreamID: req.ParentStreamID,
	}
	if err := s.store.Register(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to register stream: %w", err)
	}

	// 4. Materialize the worktree on a fresh branch off main
	if err := s.workspace.CreateWorktree(ctx, record.Branch, s.cfg.MainBranch, record.WorktreePath); err != nil {
		appendJournal(ctx, s.journal, s.log, streamID, "create-stream", "worktree-failed", err.Error())
		return nil, fmt.Errorf("stream %s registered but worktree creation failed: %w", streamID, err)
	}

	// 5. Activate
	updated, err := s.store.Update(ctx, streamID, secondary.StreamPatch{
		Status: models.StreamStatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to activate stream: %w", err)
	}
	if err := s.store.Touch(ctx, streamID, record.WorktreePath); err != nil {
		s.log.Warn("failed to record active context", "stream", streamID, "error", err)
	}

	appendJournal(ctx, s.journal, s.log, streamID, "create-stream", "created", record.WorktreePath)

	return recordToStream(updated), nil
}

// RegisterStream records an externally created stream in the registry.
func (s *StreamServiceImpl) RegisterStream(ctx context.Context, req primary.RegisterStreamRequest) (*primary.Stream, error) {
	// 1. Validate input
	if req.StreamID == "" {
		return nil, fmt.Errorf("stream id is required")
	}
	if _, err := streamid.Parse(req.StreamID); err != nil {
		return nil, fmt.Errorf("invalid stream id: %w", err)
	}
	if req.Title == "" {
		return nil, fmt.Errorf("stream title is required")
	}
	category, err := categoryOrDefault(req.Category)
	if err != nil {
		return nil, err
	}
	priority, err := priorityOrDefault(req.Priority)
	if err != nil {
		return nil, err
	}

	// 2. Fill defaults for paths the caller did not pin down
	worktreePath := req.WorktreePath
	if worktreePath == "" {
		worktreePath = s.workspace.StreamWorktreePath(req.StreamID)
	}
	branch := req.Branch
	if branch == "" {
		branch = streamid.BranchName(req.StreamID)
	}

	// 3. Register as active
	record := &models.StreamRecord{
		StreamID:       req.StreamID,
		Title:          req.Title,
		Category:       category,
		Priority:       priority,
		Status:         models.StreamStatusActive,
		WorktreePath:   worktreePath,
		Branch:         branch,
		ParentStreamID: req.ParentStreamID,
	}
	if err := s.store.Register(ctx, record); err != nil {
		return nil, err
	}

	appendJournal(ctx, s.journal, s.log, req.StreamID, "register", "registered", req.Title)

	return recordToStream(record), nil
}

// UpdateStream applies a partial update to a stream record. Status
// changes here are the operator escape hatch; the merge protocol moves
// statuses itself.
func (s *StreamServiceImpl) UpdateStream(ctx context.Context, req primary.UpdateStreamRequest) (*primary.Stream, error) {
	// 1. Validate the fields that are actually changing
	if req.StreamID == "" {
		return nil, fmt.Errorf("stream id is required")
	}
	patch := secondary.StreamPatch{Title: req.Title}
	if req.Category != "" {
		category := models.StreamCategory(req.Category)
		if !category.Valid() {
			return nil, fmt.Errorf("invalid category %q", req.Category)
		}
		patch.Category = category
	}
	if req.Priority != "" {
		priority := models.StreamPriority(req.Priority)
		if !priority.Valid() {
			return nil, fmt.Errorf("invalid priority %q", req.Priority)
		}
		patch.Priority = priority
	}
	if req.Status != "" {
		status := models.StreamStatus(req.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("invalid status %q", req.Status)
		}
		patch.Status = status
	}

	// 2. Apply
	updated, err := s.store.Update(ctx, req.StreamID, patch)
	if err != nil {
		return nil, err
	}

	appendJournal(ctx, s.journal, s.log, req.StreamID, "update", "updated", "")

	return recordToStream(updated), nil
}

// RemoveStream drops a stream record from the registry.
func (s *StreamServiceImpl) RemoveStream(ctx context.Context, streamID string, force bool) error {
	// 1. Fetch the record
	record, err := s.store.Get(ctx, streamID)
	if err != nil {
		return err
	}

	// 2. Guard check
	if result := corestream.CanRemove(streamID, record.Status, force); !result.Allowed {
		return result.Error()
	}

	// 3. Remove
	if err := s.store.Remove(ctx, streamID); err != nil {
		return fmt.Errorf("failed to remove stream: %w", err)
	}

	appendJournal(ctx, s.journal, s.log, streamID, "remove", "removed", string(record.Status))

	return nil
}

// GetStream retrieves a single stream by id.
func (s *StreamServiceImpl) GetStream(ctx context.Context, streamID string) (*primary.Stream, error) {
	record, err := s.store.Get(ctx, streamID)
	if err != nil {
		return nil, err
	}
	return recordToStream(record), nil
}

// ListStreams retrieves streams matching the given filters.
func (s *StreamServiceImpl) ListStreams(ctx context.Context, filters primary.StreamFilters) ([]*primary.Stream, error) {
	records, err := s.store.List(ctx, secondary.StreamFilter{
		Status:         models.StreamStatus(filters.Status),
		Category:       models.StreamCategory(filters.Category),
		ParentStreamID: filters.ParentStreamID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}

	streams := make([]*primary.Stream, len(records))
	for i, r := range records {
		streams[i] = recordToStream(r)
	}
	return streams, nil
}

// LocateStream reports where a stream was last worked on, falling back
// to the registered worktree when no active context exists.
func (s *StreamServiceImpl) LocateStream(ctx context.Context, streamID string) (*primary.LocateStreamResponse, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	record, ok := doc.Streams[streamID]
	if !ok {
		return nil, fmt.Errorf("stream %s not found", streamID)
	}

	if ac, ok := doc.ActiveContexts[streamID]; ok {
		return &primary.LocateStreamResponse{
			StreamID:       streamID,
			WorktreePath:   ac.WorktreePath,
			LastAccessedAt: ac.LastAccessedAt.Format(time.RFC3339),
		}, nil
	}

	return &primary.LocateStreamResponse{
		StreamID:     streamID,
		WorktreePath: record.WorktreePath,
	}, nil
}

// Helper methods

func categoryOrDefault(raw string) (models.StreamCategory, error) {
	if raw == "" {
		return models.CategoryBackend, nil
	}
	category := models.StreamCategory(raw)
	if !category.Valid() {
		return "", fmt.Errorf("invalid category %q", raw)
	}
	return category, nil
}

func priorityOrDefault(raw string) (models.StreamPriority, error) {
	if raw == "" {
		return models.PriorityMedium, nil
	}
	priority := models.StreamPriority(raw)
	if !priority.Valid() {
		return "", fmt.Errorf("invalid priority %q", raw)
	}
	return priority, nil
}

func recordToStream(r *models.StreamRecord) *primary.Stream {
	stream := &primary.Stream{
		StreamID:       r.StreamID,
		Title:          r.Title,
		Category:       string(r.Category),
		Priority:       string(r.Priority),
		Status:         string(r.Status),
		WorktreePath:   r.WorktreePath,
		Branch:         r.Branch,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      r.UpdatedAt.Format(time.RFC3339),
		ParentStreamID: r.ParentStreamID,
		MergeCommit:    r.MergeCommit,
	}
	if len(r.IssuedSubStreams) > 0 {
		stream.IssuedSubStreams = append([]string(nil), r.IssuedSubStreams...)
	}
	return stream
}

// Ensure StreamServiceImpl implements the interface
var _ primary.StreamService = (*StreamServiceImpl)(nil)
