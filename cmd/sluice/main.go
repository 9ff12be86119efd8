package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/sluice/internal/cli"
	"github.com/example/sluice/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "sluice",
		Short:   "Sluice - stream lifecycle coordination for parallel agents",
		Version: version.String(),
		Long: `Sluice manages streams: isolated git worktrees where agents work in
parallel without stepping on each other. It allocates stream ids, tracks
stream state in a shared registry, and serializes merges to main through
a three-step protocol guarded by a distributed lock.`,
	}

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.DoctorCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.StreamCmd())
	rootCmd.AddCommand(cli.MergeCmd())
	rootCmd.AddCommand(cli.LockCmd())
	rootCmd.AddCommand(cli.JournalCmd())
	rootCmd.AddCommand(cli.AttachCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
