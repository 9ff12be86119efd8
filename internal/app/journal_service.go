package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/sluice/internal/agent"
	"github.com/example/sluice/internal/ports/primary"
	"github.com/example/sluice/internal/ports/secondary"
)

// JournalServiceImpl implements the JournalService interface.
type JournalServiceImpl struct {
	journalRepo secondary.JournalRepository
}

// NewJournalService creates a new JournalService with injected dependencies.
func NewJournalService(journalRepo secondary.JournalRepository) *JournalServiceImpl {
	return &JournalServiceImpl{
		journalRepo: journalRepo,
	}
}

// ListEntries retrieves journal entries matching the given filters.
func (s *JournalServiceImpl) ListEntries(ctx context.Context, filters primary.JournalFilters) ([]*primary.JournalEntry, error) {
	records, err := s.journalRepo.List(ctx, secondary.JournalFilters{
		StreamID:  filters.StreamID,
		Operation: filters.Operation,
		Outcome:   filters.Outcome,
		Limit:     filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}

	entries := make([]*primary.JournalEntry, len(records))
	for i, r := range records {
		entries[i] = s.recordToEntry(r)
	}
	return entries, nil
}

// PruneEntries deletes journal entries older than the specified number of days.
func (s *JournalServiceImpl) PruneEntries(ctx context.Context, olderThanDays int) (int, error) {
	return s.journalRepo.PruneOlderThan(ctx, olderThanDays)
}

// Helper methods

func (s *JournalServiceImpl) recordToEntry(r *secondary.JournalEntry) *primary.JournalEntry {
	return &primary.JournalEntry{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		StreamID:  r.StreamID,
		Operation: r.Operation,
		Outcome:   r.Outcome,
		Detail:    r.Detail,
		Actor:     r.Actor,
	}
}

// appendJournal records an operation outcome without letting journal
// trouble disturb the operation itself. A nil repository disables the
// journal entirely.
func appendJournal(ctx context.Context, repo secondary.JournalRepository, log *slog.Logger, streamID, operation, outcome, detail string) {
	if repo == nil {
		return
	}
	entry := &secondary.JournalEntry{
		StreamID:  streamID,
		Operation: operation,
		Outcome:   outcome,
		Detail:    detail,
		Actor:     agent.Current().Actor,
	}
	if err := repo.Append(ctx, entry); err != nil && log != nil {
		log.Warn("failed to record journal entry",
			"operation", operation,
			"stream", streamID,
			"error", err)
	}
}

// Ensure JournalServiceImpl implements the interface
var _ primary.JournalService = (*JournalServiceImpl)(nil)
