package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/sluice/internal/ports/primary"
	"github.com/example/sluice/internal/wire"
)

// StreamCmd returns the stream command
func StreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Manage streams (isolated worktrees for parallel work)",
		Long:  `Create and manage streams - isolated git worktrees where agents work in parallel without touching each other's state.`,
	}

	cmd.AddCommand(streamCreateCmd())
	cmd.AddCommand(streamAllocateCmd())
	cmd.AddCommand(streamRegisterCmd())
	cmd.AddCommand(streamListCmd())
	cmd.AddCommand(streamShowCmd())
	cmd.AddCommand(streamUpdateCmd())
	cmd.AddCommand(streamRemoveCmd())
	cmd.AddCommand(streamLocateCmd())

	return cmd
}

func streamCreateCmd() *cobra.Command {
	var category string
	var priority string
	var parent string

	cmd := &cobra.Command{
		Use:   "create [title]",
		Short: "Create a new stream with branch and worktree",
		Long: `Create a new stream end to end.

This command:
1. Reserves the next stream id in the current epoch
2. Creates the stream branch and an isolated worktree
3. Registers the stream as active

Examples:
  sluice stream create "Add authentication" --category backend
  sluice stream create "Fix signup flow" --category frontend --priority high
  sluice stream create "Split token handling" --parent 1500-add-auth`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, err := wire.StreamAdapter().Create(ctx, primary.CreateStreamRequest{
				Title:          args[0],
				Category:       category,
				Priority:       priority,
				ParentStreamID: parent,
			})
			return err
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Stream category (backend, frontend, infra, docs)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Stream priority (low, medium, high, critical)")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent stream id for a sub-stream")

	return cmd
}

func streamAllocateCmd() *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "allocate [title]",
		Short: "Reserve a stream id without creating git state",
		Long: `Reserve the next stream id for the given title.

The id is burned even if never used; ids are not reused.

Examples:
  sluice stream allocate "Add authentication"
  sluice stream allocate "Split token handling" --parent 1500-add-auth`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, err := wire.StreamAdapter().Allocate(ctx, primary.AllocateStreamRequest{
				Title:          args[0],
				ParentStreamID: parent,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "Parent stream id for a sub-stream")

	return cmd
}

func streamRegisterCmd() *cobra.Command {
	var title string
	var category string
	var priority string
	var worktree string
	var branch string
	var parent string

	cmd := &cobra.Command{
		Use:   "register [stream-id]",
		Short: "Register an externally created stream",
		Long: `Record a stream in the registry whose git state already exists.

Use this after allocating an id and materializing the branch and
worktree by hand.

Examples:
  sluice stream register 1500-add-auth --title "Add authentication"
  sluice stream register 1501-fix-signup --title "Fix signup" --worktree /tmp/wt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if title == "" {
				return fmt.Errorf("--title flag is required")
			}

			_, err := wire.StreamAdapter().Register(ctx, primary.RegisterStreamRequest{
				StreamID:       args[0],
				Title:          title,
				Category:       category,
				Priority:       priority,
				WorktreePath:   worktree,
				Branch:         branch,
				ParentStreamID: parent,
			})
			return err
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Stream title (required)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Stream category")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Stream priority")
	cmd.Flags().StringVar(&worktree, "worktree", "", "Worktree path (defaults to the standard location)")
	cmd.Flags().StringVar(&branch, "branch", "", "Branch name (defaults to stream/<id>)")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent stream id for a sub-stream")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func streamListCmd() *cobra.Command {
	var status string
	var category string
	var parent string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List streams",
		Long:  `List streams with their current status.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, err := wire.StreamAdapter().List(ctx, primary.StreamFilters{
				Status:         status,
				Category:       category,
				ParentStreamID: parent,
			})
			return err
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Filter by category")
	cmd.Flags().StringVar(&parent, "parent", "", "Filter by parent stream id")

	return cmd
}

func streamShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [stream-id]",
		Short: "Show stream details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, err := wire.StreamAdapter().Show(ctx, args[0])
			return err
		},
	}
}

func streamUpdateCmd() *cobra.Command {
	var title string
	var category string
	var priority string
	var status string

	cmd := &cobra.Command{
		Use:   "update [stream-id]",
		Short: "Update stream fields",
		Long: `Apply a partial update to a stream record. Unset flags leave
fields unchanged.

Examples:
  sluice stream update 1500-add-auth --priority critical
  sluice stream update 1500-add-auth --status blocked`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, err := wire.StreamAdapter().Update(ctx, primary.UpdateStreamRequest{
				StreamID: args[0],
				Title:    title,
				Category: category,
				Priority: priority,
				Status:   status,
			})
			return err
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVarP(&category, "category", "c", "", "New category")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "New priority")
	cmd.Flags().StringVarP(&status, "status", "s", "", "New status")

	return cmd
}

func streamRemoveCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "remove [stream-id]",
		Short: "Remove a stream record from the registry",
		Long: `Drop a stream record. Streams with work in flight require --force.

This only removes the registry record; the worktree and branch are
left alone. Use 'sluice merge finish' for full cleanup of merged
streams.

Examples:
  sluice stream remove 1500-add-auth
  sluice stream remove 1501-fix-signup --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			return wire.StreamAdapter().Remove(ctx, args[0], force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Remove even if work is in flight")

	return cmd
}

func streamLocateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locate [stream-id]",
		Short: "Print a stream's working directory",
		Long: `Print the stream's worktree path, nothing else, so shells can
cd into it:

  cd $(sluice stream locate 1500-add-auth)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, err := wire.StreamAdapter().Locate(ctx, args[0])
			return err
		},
	}
}
