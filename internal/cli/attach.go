package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/sluice/internal/tmux"
	"github.com/example/sluice/internal/wire"
)

// AttachCmd returns the attach command
func AttachCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach <stream-id>",
		Short: "Open the stream's worktree in tmux",
		Long: `Open the stream's worktree as a window in the shared tmux session.

Creates the "sluice" session on first use; every stream gets one window
named after its id, rooted at its worktree. Inside tmux this switches
the current client; outside it replaces the process with tmux attach.

Examples:
  sluice attach 1500-add-auth`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			streamID := args[0]
			ctx := context.Background()

			loc, err := wire.StreamService().LocateStream(ctx, streamID)
			if err != nil {
				return err
			}

			if _, statErr := os.Stat(loc.WorktreePath); os.IsNotExist(statErr) {
				return fmt.Errorf("worktree for %s missing at %s (removed by merge finish? re-create the stream or remove it)", streamID, loc.WorktreePath)
			}

			adapter, err := wire.TmuxAdapter()
			if err != nil {
				return err
			}

			result, err := adapter.OpenStreamWindow(streamID, loc.WorktreePath)
			if err != nil {
				return fmt.Errorf("failed to open tmux window: %w", err)
			}

			if result.CreatedSession {
				fmt.Printf("✓ Created session %s with window %s\n", result.SessionName, result.WindowName)
			} else if result.CreatedWindow {
				fmt.Printf("✓ Created window %s in session %s\n", result.WindowName, result.SessionName)
			} else {
				fmt.Printf("✓ Window %s already open in session %s\n", result.WindowName, result.SessionName)
			}

			// Already inside tmux: switch the client instead of nesting sessions
			if tmux.InsideTmux() {
				return adapter.SwitchClient(streamID)
			}

			tmuxPath, err := exec.LookPath("tmux")
			if err != nil {
				return fmt.Errorf("tmux not found in PATH: %w", err)
			}

			// Replace current process with tmux attach
			// This makes the transition seamless - user just runs 'sluice attach' and ends up in tmux
			execArgs := []string{"tmux", "attach", "-t", tmux.WindowTarget(result.SessionName, result.WindowName)}
			if err := syscall.Exec(tmuxPath, execArgs, os.Environ()); err != nil {
				return fmt.Errorf("failed to exec tmux attach: %w", err)
			}

			// This line never executes if exec succeeds
			return nil
		},
	}

	return cmd
}
