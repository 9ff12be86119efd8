package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/sluice/internal/ports/primary"
	"github.com/example/sluice/internal/wire"
)

// statusOrder fixes the display order for the counts line
var statusOrder = []string{
	"active",
	"ready-for-merge",
	"paused",
	"blocked",
	"initializing",
	"completed",
	"archived",
}

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	var showAll bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show streams and the merge lock at a glance",
		Long: `Display an overview of the repository:
- Stream counts by status
- In-flight streams with their titles
- Merge lock state

Completed and archived streams are hidden unless --all is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			streams, err := wire.StreamService().ListStreams(ctx, primary.StreamFilters{})
			if err != nil {
				return fmt.Errorf("failed to list streams: %w", err)
			}

			fmt.Println("Sluice Status")
			fmt.Println()

			if len(streams) == 0 {
				fmt.Println("No streams yet.")
				fmt.Println()
				fmt.Println("Run `sluice stream create \"Add authentication\" --category backend` to start one.")
			} else {
				printStreamCounts(streams)
				fmt.Println()
				printStreamLines(streams, showAll)
			}

			fmt.Println()
			printLockLine(ctx)

			return nil
		},
	}

	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "Include completed and archived streams")

	return cmd
}

func printStreamCounts(streams []*primary.Stream) {
	counts := make(map[string]int)
	for _, s := range streams {
		counts[s.Status]++
	}

	parts := make([]string, 0, len(statusOrder))
	for _, status := range statusOrder {
		if counts[status] == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d %s", counts[status], status))
	}

	fmt.Printf("Streams: %d total (%s)\n", len(streams), strings.Join(parts, ", "))
}

func printStreamLines(streams []*primary.Stream, showAll bool) {
	hidden := 0
	for _, s := range streams {
		if !showAll && (s.Status == "completed" || s.Status == "archived") {
			hidden++
			continue
		}
		fmt.Printf("  %s  %s %s\n", s.StreamID, s.Title, colorizeStreamStatus(s.Status))
	}
	if hidden > 0 {
		fmt.Printf("  (%d completed/archived hidden; use --all to show)\n", hidden)
	}
}

func printLockLine(ctx context.Context) {
	lock, err := wire.MergeService().MergeLockStatus(ctx)
	if err != nil {
		fmt.Printf("Merge lock: (error: %v)\n", err)
		return
	}

	if !lock.Exists {
		fmt.Printf("Merge lock: %s\n", color.New(color.FgHiGreen).Sprint("free"))
		return
	}

	state := color.New(color.FgYellow).Sprint("held")
	if lock.Stale {
		state = color.New(color.FgRed).Sprint("stale")
	}

	if lock.Holder != nil {
		fmt.Printf("Merge lock: %s by %s (pid %d on %s, age %dms)\n",
			state, lock.Holder.StreamID, lock.Holder.PID, lock.Holder.Hostname, lock.AgeMs)
	} else {
		fmt.Printf("Merge lock: %s (age %dms)\n", state, lock.AgeMs)
	}
}

// colorizeStreamStatus formats stream status badge with semantic color
func colorizeStreamStatus(status string) string {
	switch status {
	case "initializing":
		return color.New(color.FgHiBlack).Sprint("[initializing]")
	case "active":
		return color.New(color.FgHiBlue).Sprint("[active]")
	case "paused":
		return color.New(color.FgYellow).Sprint("[paused]")
	case "blocked":
		return color.New(color.FgRed).Sprint("[blocked]")
	case "ready-for-merge":
		return color.New(color.FgHiMagenta).Sprint("[ready-for-merge]")
	case "completed":
		return color.New(color.FgHiGreen).Sprint("[completed]")
	case "archived":
		return color.New(color.FgHiBlack).Sprint("[archived]")
	default:
		return fmt.Sprintf("[%s]", status)
	}
}
