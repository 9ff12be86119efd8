package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/sluice/internal/ports/primary"
	"github.com/example/sluice/internal/wire"
)

// MergeCmd returns the merge command
func MergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Run the merge protocol for a stream",
		Long: `Land a stream's work on main through the three-step merge protocol:

1. prepare  - merge main into the stream branch in its own worktree,
              run validators, push the result
2. complete - fast-forward main to the prepared branch under the
              distributed merge lock
3. finish   - archive the stream and clean up its worktree and branch`,
	}

	cmd.AddCommand(mergePrepareCmd())
	cmd.AddCommand(mergeCompleteCmd())
	cmd.AddCommand(mergeFinishCmd())

	return cmd
}

func mergePrepareCmd() *cobra.Command {
	var skipValidators bool

	cmd := &cobra.Command{
		Use:   "prepare [stream-id]",
		Short: "Prepare a stream for merge in its own worktree",
		Long: `Bring the stream branch up to date with main and push it.

All git work happens inside the stream's worktree; main is never
touched. Conflicts pause the stream and print both sides of every
conflicted file. Configured validators run after a clean merge and
keep the result local when they fail.

Examples:
  sluice merge prepare 1500-add-auth
  sluice merge prepare 1500-add-auth --skip-validators`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, err := wire.MergeAdapter().Prepare(ctx, primary.PrepareMergeRequest{
				StreamID:       args[0],
				SkipValidators: skipValidators,
			})
			return err
		},
	}

	cmd.Flags().BoolVar(&skipValidators, "skip-validators", false, "Skip configured validation commands")

	return cmd
}

func mergeCompleteCmd() *cobra.Command {
	var keepRemoteBranch bool

	cmd := &cobra.Command{
		Use:   "complete [stream-id]",
		Short: "Fast-forward main to the prepared stream branch",
		Long: `Land a prepared stream on main.

Takes the distributed merge lock, fast-forwards main to the pushed
stream branch, and publishes the result. Fails without touching main
if another merge holds the lock or if main has advanced past the
prepared branch.

Examples:
  sluice merge complete 1500-add-auth
  sluice merge complete 1500-add-auth --keep-remote-branch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, err := wire.MergeAdapter().Complete(ctx, primary.CompleteMergeRequest{
				StreamID:         args[0],
				KeepRemoteBranch: keepRemoteBranch,
			})
			return err
		},
	}

	cmd.Flags().BoolVar(&keepRemoteBranch, "keep-remote-branch", false, "Keep the remote stream branch after merging")

	return cmd
}

func mergeFinishCmd() *cobra.Command {
	var summary string

	cmd := &cobra.Command{
		Use:   "finish [stream-id]",
		Short: "Archive a merged stream and clean up",
		Long: `Retire a merged stream.

Writes the stream's record to the history directory, commits and
pushes the archive, removes the worktree and local branch, and drops
the stream from the registry. The tmux window, if any, is closed.

Examples:
  sluice merge finish 1500-add-auth
  sluice merge finish 1500-add-auth --summary "Shipped token-based auth"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			streamID := args[0]

			_, err := wire.MergeAdapter().Finish(ctx, primary.CompleteStreamRequest{
				StreamID: streamID,
				Summary:  summary,
			})
			if err != nil {
				return err
			}

			// Best effort: the stream's tmux window has nothing left to show
			if adapter, terr := wire.TmuxAdapter(); terr == nil {
				if kerr := adapter.KillStreamWindow(streamID); kerr != nil {
					fmt.Printf("  ⚠️  Warning: Could not close tmux window: %v\n", kerr)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&summary, "summary", "m", "", "Summary line for the archive record")

	return cmd
}
