package secondary

import "context"

// JournalRepository defines the interface for operation journal
// persistence. The journal is advisory history; writes must never
// block or fail a lifecycle operation.
type JournalRepository interface {
	// Append records one operation outcome.
	Append(ctx context.Context, entry *JournalEntry) error

	// List retrieves entries matching the filters, newest first.
	List(ctx context.Context, filters JournalFilters) ([]*JournalEntry, error)

	// PruneOlderThan deletes entries older than the given number of
	// days, returning how many were removed.
	PruneOlderThan(ctx context.Context, days int) (int, error)
}

// JournalEntry represents one recorded operation.
type JournalEntry struct {
	ID int64

	// Timestamp is set by the database on insert
	Timestamp string

	// Empty string means the operation was not stream-scoped
	StreamID string

	Operation string
	Outcome   string

	// Empty string means no extra detail
	Detail string

	Actor string
}

// JournalFilters contains filter options for querying the journal.
type JournalFilters struct {
	StreamID  string
	Operation string
	Outcome   string
	Limit     int
}
