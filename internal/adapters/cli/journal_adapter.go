package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/example/sluice/internal/ports/primary"
)

// JournalAdapter translates CLI operations to JournalService calls.
type JournalAdapter struct {
	service primary.JournalService
	out     io.Writer
}

// NewJournalAdapter creates a new JournalAdapter with the given service.
func NewJournalAdapter(service primary.JournalService, out io.Writer) *JournalAdapter {
	return &JournalAdapter{
		service: service,
		out:     out,
	}
}

// List lists journal entries, newest first.
func (a *JournalAdapter) List(ctx context.Context, filters primary.JournalFilters) ([]*primary.JournalEntry, error) {
	entries, err := a.service.ListEntries(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No journal entries found.")
		return entries, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "WHEN\tSTREAM\tOPERATION\tOUTCOME\tDETAIL")
	fmt.Fprintln(w, "----\t------\t---------\t-------\t------")

	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			entry.Timestamp,
			entry.StreamID,
			entry.Operation,
			entry.Outcome,
			entry.Detail,
		)
	}

	w.Flush()
	return entries, nil
}

// Prune deletes journal entries older than the given number of days.
func (a *JournalAdapter) Prune(ctx context.Context, olderThanDays int) (int, error) {
	removed, err := a.service.PruneEntries(ctx, olderThanDays)
	if err != nil {
		return 0, err
	}

	fmt.Fprintf(a.out, "✓ Pruned %d journal entries older than %d days\n", removed, olderThanDays)
	return removed, nil
}
