package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/sluice/internal/ports/primary"
	"github.com/example/sluice/internal/wire"
)

// JournalCmd returns the journal command
func JournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the operations journal",
		Long: `Every stream operation is recorded in a local journal: who did
what, when, and how it ended. The journal is a local cache and is
never shared through git.`,
	}

	cmd.AddCommand(journalListCmd())
	cmd.AddCommand(journalPruneCmd())

	return cmd
}

func journalListCmd() *cobra.Command {
	var streamID string
	var operation string
	var outcome string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries, newest first",
		Long: `List recorded operations.

Examples:
  sluice journal list
  sluice journal list --stream 1500-add-auth
  sluice journal list --operation complete-merge --outcome merged`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, err := wire.JournalAdapter().List(ctx, primary.JournalFilters{
				StreamID:  streamID,
				Operation: operation,
				Outcome:   outcome,
				Limit:     limit,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&streamID, "stream", "", "Filter by stream id")
	cmd.Flags().StringVar(&operation, "operation", "", "Filter by operation")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Filter by outcome")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")

	return cmd
}

func journalPruneCmd() *cobra.Command {
	var olderThan int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old journal entries",
		Long: `Delete journal entries older than the given number of days.

Examples:
  sluice journal prune
  sluice journal prune --older-than 90`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, err := wire.JournalAdapter().Prune(ctx, olderThan)
			return err
		},
	}

	cmd.Flags().IntVar(&olderThan, "older-than", 30, "Age threshold in days")

	return cmd
}
