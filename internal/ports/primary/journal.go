package primary

import "context"

// JournalService defines the primary port for the operation journal.
type JournalService interface {
	// ListEntries retrieves journal entries matching the given filters.
	ListEntries(ctx context.Context, filters JournalFilters) ([]*JournalEntry, error)

	// PruneEntries deletes journal entries older than the specified
	// number of days.
	PruneEntries(ctx context.Context, olderThanDays int) (int, error)
}

// JournalEntry represents one recorded operation at the port boundary.
type JournalEntry struct {
	ID        int64
	Timestamp string
	StreamID  string
	Operation string
	Outcome   string
	Detail    string
	Actor     string
}

// JournalFilters contains filter options for querying the journal.
type JournalFilters struct {
	StreamID  string
	Operation string
	Outcome   string
	Limit     int
}
