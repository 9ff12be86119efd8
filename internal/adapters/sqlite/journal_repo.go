// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/sluice/internal/ports/secondary"
)

// JournalRepository implements secondary.JournalRepository with SQLite.
type JournalRepository struct {
	db *sql.DB
}

// NewJournalRepository creates a new SQLite journal repository.
func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// Append records one operation outcome. The timestamp is assigned by
// the database.
func (r *JournalRepository) Append(ctx context.Context, entry *secondary.JournalEntry) error {
	var detail, actor sql.NullString

	if entry.Detail != "" {
		detail = sql.NullString{String: entry.Detail, Valid: true}
	}
	if entry.Actor != "" {
		actor = sql.NullString{String: entry.Actor, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO journal (stream_id, operation, outcome, detail, actor) VALUES (?, ?, ?, ?, ?)`,
		entry.StreamID,
		entry.Operation,
		entry.Outcome,
		detail,
		actor,
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}

	return nil
}

// List retrieves journal entries matching the given filters, newest
// first.
func (r *JournalRepository) List(ctx context.Context, filters secondary.JournalFilters) ([]*secondary.JournalEntry, error) {
	query := `SELECT id, timestamp, stream_id, operation, outcome, detail, actor FROM journal WHERE 1=1`
	args := []any{}

	if filters.StreamID != "" {
		query += " AND stream_id = ?"
		args = append(args, filters.StreamID)
	}

	if filters.Operation != "" {
		query += " AND operation = ?"
		args = append(args, filters.Operation)
	}

	if filters.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, filters.Outcome)
	}

	// The id tiebreak keeps same-second entries in insert order.
	query += " ORDER BY timestamp DESC, id DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []*secondary.JournalEntry
	for rows.Next() {
		var (
			timestamp time.Time
			detail    sql.NullString
			actor     sql.NullString
		)

		entry := &secondary.JournalEntry{}
		err := rows.Scan(&entry.ID,
			&timestamp,
			&entry.StreamID,
			&entry.Operation,
			&entry.Outcome,
			&detail,
			&actor)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}

		entry.Timestamp = timestamp.Format(time.RFC3339)
		entry.Detail = detail.String
		entry.Actor = actor.String

		entries = append(entries, entry)
	}

	return entries, nil
}

// PruneOlderThan deletes entries older than the given number of days
// and returns how many were removed.
func (r *JournalRepository) PruneOlderThan(ctx context.Context, days int) (int, error) {
	if days < 0 {
		return 0, fmt.Errorf("prune window must not be negative, got %d", days)
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM journal WHERE timestamp < datetime('now', ?)`,
		fmt.Sprintf("-%d days", days),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned entries: %w", err)
	}

	return int(affected), nil
}

// Ensure JournalRepository implements the interface
var _ secondary.JournalRepository = (*JournalRepository)(nil)
