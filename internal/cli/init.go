package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/sluice/internal/config"
	"github.com/example/sluice/internal/db"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var projectVersion string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize sluice in the current repository",
		Long: `Set up the .sluice state directory with a default config, the
journal database, and the worktree and history directories.

The project version's major component selects the allocation epoch
for stream ids: version 15.2.0 allocates 1500, 1501, and so on.

Examples:
  sluice init
  sluice init --project-version 15.2.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := repoRoot()
			if err != nil {
				return err
			}

			// Respect an existing config; init is not for editing
			configPath := filepath.Join(root, config.DirName, "config.json")
			if _, err := os.Stat(configPath); err == nil {
				fmt.Printf("Already initialized at %s\n", configPath)
				fmt.Println("Edit the file directly to change settings.")
				return nil
			}

			cfg := config.DefaultConfig()
			if projectVersion != "" {
				cfg.Version = projectVersion
			}

			fmt.Printf("Initializing sluice in %s\n", root)

			if err := config.SaveConfig(root, cfg); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Printf("✓ Config written to %s\n", configPath)

			database, err := db.Open(db.JournalPath(root, config.DirName))
			if err != nil {
				return fmt.Errorf("failed to initialize journal: %w", err)
			}
			database.Close()
			fmt.Println("✓ Journal database initialized")

			for _, dir := range []string{cfg.WorktreeBase(root), cfg.HistoryBase(root)} {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create %s: %w", dir, err)
				}
			}
			fmt.Println("✓ Worktree and history directories created")

			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  sluice stream create \"My first stream\" --category backend")
			fmt.Println("  sluice status")

			return nil
		},
	}

	cmd.Flags().StringVar(&projectVersion, "project-version", "", "Project version selecting the id epoch (default 1.0.0)")

	return cmd
}

// repoRoot resolves the enclosing git repository.
func repoRoot() (string, error) {
	out, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", fmt.Errorf("not inside a git repository (git rev-parse failed: %w)", err)
	}
	root := strings.TrimSpace(string(out))
	if root == "" {
		return "", fmt.Errorf("not inside a git repository")
	}
	return root, nil
}
