package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/sluice/internal/wire"
)

// LockCmd returns the lock command
func LockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect or release the distributed merge lock",
		Long: `The merge lock serializes merges to main across all machines
sharing the repository. It lives as a git ref on the remote, so
holders are visible to everyone.`,
	}

	cmd.AddCommand(lockStatusCmd())
	cmd.AddCommand(lockReleaseCmd())

	return cmd
}

func lockStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who holds the merge lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, err := wire.MergeAdapter().LockStatus(ctx)
			return err
		},
	}
}

func lockReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release",
		Short: "Force-release the merge lock",
		Long: `Remove the merge lock regardless of who holds it.

Operator escape hatch for tokens left behind by dead processes. A
live merge whose lock is released this way will fail its final push,
so prefer waiting for staleness reclaim.

Examples:
  sluice lock release`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			return wire.MergeAdapter().ReleaseLock(ctx)
		},
	}
}
