package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/sluice/internal/config"
	"github.com/example/sluice/internal/db"
	"github.com/example/sluice/internal/git"
	"github.com/example/sluice/internal/reflock"
	"github.com/example/sluice/internal/version"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for environment validation
func DoctorCmd() *cobra.Command {
	var quiet bool
	var fix bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the sluice environment",
		Long: `Comprehensive environment health check for sluice.

Validates:
- Git availability and repository state
- Remote configuration (the merge lock and pushes need one)
- Config, registry, and journal files under .sluice/
- Worktree directory
- Registry lock and distributed merge lock staleness
- tmux and binary installation

Examples:
  sluice doctor              # Run full health check
  sluice doctor --fix        # Also reclaim stale locks
  sluice doctor --quiet      # Exit code only (0=healthy, 1=issues)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			results := []CheckResult{}
			hasErrors := false

			root := detectRepoRoot()
			cfg := loadConfigOrDefault(root)
			remoteURL := detectRemoteURL(root, cfg)

			// Run all checks
			results = append(results, checkGitBinary())
			results = append(results, checkRepository(root))
			results = append(results, checkRemote(root, cfg, remoteURL))
			results = append(results, checkConfigFile(root))
			results = append(results, checkRegistryFile(root))
			results = append(results, checkJournalFile(root))
			results = append(results, checkWorktreeDir(root, cfg))
			results = append(results, checkLocalLock(root, cfg, fix))
			results = append(results, checkMergeLock(ctx, root, cfg, remoteURL != "", fix))
			results = append(results, checkTmux())
			results = append(results, checkBinary())

			// Check for errors
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
					break
				}
			}

			if !quiet {
				// Print compact table
				fmt.Println()
				fmt.Println("Check              Status")
				fmt.Println("─────────────────────────")
				for _, r := range results {
					fmt.Printf("%-18s %s\n", r.Name, r.Status)
				}
				fmt.Println()

				// Print details for non-passing checks
				hasDetails := false
				for _, r := range results {
					if r.Status != "✓" && r.Details != "" {
						if !hasDetails {
							fmt.Println("Details:")
							hasDetails = true
						}
						fmt.Printf("\n%s:\n%s\n", r.Name, r.Details)
					}
				}

				if hasErrors {
					fmt.Println("\n⚠ Issues found. Run 'sluice init' inside a git repository to set up.")
				} else {
					fmt.Println("All checks passed.")
				}
			}

			if hasErrors {
				return fmt.Errorf("environment validation failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - exit code only")
	cmd.Flags().BoolVar(&fix, "fix", false, "Reclaim stale locks")

	return cmd
}

// detectRepoRoot resolves the repository root, or "" when outside a repo.
// Doctor keeps going either way; downstream checks degrade to warnings.
func detectRepoRoot() string {
	root, err := repoRoot()
	if err != nil {
		return ""
	}
	return root
}

func loadConfigOrDefault(root string) *config.Config {
	if root == "" {
		return config.DefaultConfig()
	}
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return config.DefaultConfig()
	}
	return cfg
}

// checkGitBinary validates git is installed
func checkGitBinary() CheckResult {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return CheckResult{
			Name:    "Git",
			Status:  "✗",
			Details: "  'git' not found in PATH\n  Every sluice operation shells out to git",
		}
	}
	return CheckResult{Name: "Git", Status: "✓", Details: "  " + gitPath}
}

// checkRepository validates we are inside a git repository
func checkRepository(root string) CheckResult {
	if root == "" {
		return CheckResult{
			Name:    "Repository",
			Status:  "✗",
			Details: "  Not inside a git repository\n  cd into the repository you want to manage",
		}
	}
	return CheckResult{Name: "Repository", Status: "✓", Details: "  " + root}
}

// detectRemoteURL resolves the configured remote's URL, or "" when the
// remote is absent.
func detectRemoteURL(root string, cfg *config.Config) string {
	if root == "" {
		return ""
	}
	output, err := exec.Command("git", "-C", root, "remote", "get-url", cfg.Remote).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

// checkRemote validates the configured remote exists
func checkRemote(root string, cfg *config.Config, remoteURL string) CheckResult {
	if root == "" {
		return CheckResult{Name: "Remote", Status: "⚠", Details: "  Skipped (no repository)"}
	}

	if remoteURL == "" {
		return CheckResult{
			Name:    "Remote",
			Status:  "⚠",
			Details: fmt.Sprintf("  Remote %q is not configured\n  The merge lock and branch pushes need it; local-only work is fine", cfg.Remote),
		}
	}

	return CheckResult{Name: "Remote", Status: "✓", Details: "  " + remoteURL}
}

// checkConfigFile validates .sluice/config.json parses
func checkConfigFile(root string) CheckResult {
	if root == "" {
		return CheckResult{Name: "Config", Status: "⚠", Details: "  Skipped (no repository)"}
	}

	path := filepath.Join(root, config.DirName, "config.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return CheckResult{
			Name:    "Config",
			Status:  "⚠",
			Details: "  No .sluice/config.json; defaults apply\n  Run: sluice init",
		}
	}
	if err != nil {
		return CheckResult{Name: "Config", Status: "✗", Details: "  " + err.Error()}
	}

	var parsed config.Config
	if err := json.Unmarshal(data, &parsed); err != nil {
		return CheckResult{Name: "Config", Status: "✗", Details: "  Invalid JSON in .sluice/config.json"}
	}

	return CheckResult{Name: "Config", Status: "✓"}
}

// checkRegistryFile validates .sluice/streams.json parses, flagging the
// pre-epoch schema that migrates on the next write
func checkRegistryFile(root string) CheckResult {
	if root == "" {
		return CheckResult{Name: "Registry", Status: "⚠", Details: "  Skipped (no repository)"}
	}

	path := filepath.Join(root, config.DirName, "streams.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// Created on first allocation
		return CheckResult{Name: "Registry", Status: "✓"}
	}
	if err != nil {
		return CheckResult{Name: "Registry", Status: "✗", Details: "  " + err.Error()}
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return CheckResult{Name: "Registry", Status: "✗", Details: "  Invalid JSON in .sluice/streams.json"}
	}

	if _, hasEpochs := doc["epochCounters"]; !hasEpochs {
		if _, hasCounter := doc["streamCounter"]; hasCounter {
			return CheckResult{
				Name:    "Registry",
				Status:  "⚠",
				Details: "  Legacy single-counter schema; migrates automatically on next write",
			}
		}
	}

	return CheckResult{Name: "Registry", Status: "✓"}
}

// checkJournalFile validates the journal database exists
func checkJournalFile(root string) CheckResult {
	if root == "" {
		return CheckResult{Name: "Journal", Status: "⚠", Details: "  Skipped (no repository)"}
	}

	path := db.JournalPath(root, config.DirName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CheckResult{
			Name:    "Journal",
			Status:  "⚠",
			Details: "  No journal database yet\n  Run: sluice init",
		}
	}

	return CheckResult{Name: "Journal", Status: "✓"}
}

// checkWorktreeDir validates the worktree base directory
func checkWorktreeDir(root string, cfg *config.Config) CheckResult {
	if root == "" {
		return CheckResult{Name: "Worktrees", Status: "⚠", Details: "  Skipped (no repository)"}
	}

	base := cfg.WorktreeBase(root)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return CheckResult{
			Name:    "Worktrees",
			Status:  "⚠",
			Details: "  " + base + " missing\n  Created on demand by stream create, or run: sluice init",
		}
	}

	return CheckResult{Name: "Worktrees", Status: "✓"}
}

// checkLocalLock inspects the registry file mutex for leftover holders
func checkLocalLock(root string, cfg *config.Config, fix bool) CheckResult {
	if root == "" {
		return CheckResult{Name: "Local lock", Status: "⚠", Details: "  Skipped (no repository)"}
	}

	lockDir := filepath.Join(root, config.DirName, "streams.json") + ".lock"
	if _, err := os.Stat(lockDir); os.IsNotExist(err) {
		return CheckResult{Name: "Local lock", Status: "✓"}
	}

	var token struct {
		OwnerPID   int       `json:"ownerPid"`
		AcquiredAt time.Time `json:"acquiredAt"`
		Operation  string    `json:"operation"`
	}
	data, err := os.ReadFile(filepath.Join(lockDir, "owner.json"))
	readable := err == nil && json.Unmarshal(data, &token) == nil

	if !readable || time.Since(token.AcquiredAt) > cfg.StaleAfter() {
		if fix {
			if err := os.RemoveAll(lockDir); err != nil {
				return CheckResult{
					Name:    "Local lock",
					Status:  "✗",
					Details: "  Failed to reclaim " + lockDir + "\n  " + err.Error(),
				}
			}
			return CheckResult{Name: "Local lock", Status: "⚠", Details: "  Reclaimed stale lock at " + lockDir}
		}
		return CheckResult{
			Name:    "Local lock",
			Status:  "⚠",
			Details: "  Stale registry lock at " + lockDir + "\n  Run: sluice doctor --fix",
		}
	}

	return CheckResult{
		Name:   "Local lock",
		Status: "⚠",
		Details: fmt.Sprintf("  Held by pid %d (%s, age %s)\n  Another sluice process may be running",
			token.OwnerPID, token.Operation, time.Since(token.AcquiredAt).Round(time.Second)),
	}
}

// checkMergeLock inspects the distributed merge lock ref
func checkMergeLock(ctx context.Context, root string, cfg *config.Config, hasRemote, fix bool) CheckResult {
	if root == "" {
		return CheckResult{Name: "Merge lock", Status: "⚠", Details: "  Skipped (no repository)"}
	}
	if !hasRemote {
		return CheckResult{
			Name:    "Merge lock",
			Status:  "⚠",
			Details: fmt.Sprintf("  Skipped (remote %q not configured)", cfg.Remote),
		}
	}

	lk := reflock.New(root, cfg, git.NewRunner(), nil)
	status, err := lk.Status(ctx)
	if err != nil {
		return CheckResult{Name: "Merge lock", Status: "⚠", Details: "  Could not read merge lock\n  " + err.Error()}
	}
	if !status.Exists {
		return CheckResult{Name: "Merge lock", Status: "✓"}
	}

	if status.Stale {
		if fix {
			if err := lk.ForceRelease(ctx); err != nil {
				return CheckResult{
					Name:    "Merge lock",
					Status:  "✗",
					Details: "  Failed to release stale merge lock\n  " + err.Error(),
				}
			}
			return CheckResult{Name: "Merge lock", Status: "⚠", Details: "  Released stale merge lock on " + cfg.MergeLockBranch}
		}
		return CheckResult{
			Name:    "Merge lock",
			Status:  "⚠",
			Details: fmt.Sprintf("  Stale merge lock on %s (age %s)\n  Run: sluice doctor --fix", cfg.MergeLockBranch, status.Age.Round(time.Second)),
		}
	}

	detail := fmt.Sprintf("  Held (age %s)", status.Age.Round(time.Second))
	if h := status.Holder; h != nil {
		detail = fmt.Sprintf("  Held by %s (pid %d on %s, age %s)",
			h.StreamID, h.PID, h.Hostname, status.Age.Round(time.Second))
	}
	return CheckResult{
		Name:    "Merge lock",
		Status:  "⚠",
		Details: detail + "\n  Someone may be mid complete-merge; re-check shortly",
	}
}

// checkTmux validates tmux availability
func checkTmux() CheckResult {
	tmuxPath, err := exec.LookPath("tmux")
	if err != nil {
		return CheckResult{
			Name:    "Tmux",
			Status:  "⚠",
			Details: "  'tmux' not found in PATH\n  Only 'sluice attach' needs it",
		}
	}
	return CheckResult{Name: "Tmux", Status: "✓", Details: "  " + tmuxPath}
}

// checkBinary validates sluice binary installation
func checkBinary() CheckResult {
	sluicePath, err := exec.LookPath("sluice")
	if err != nil {
		return CheckResult{
			Name:    "Binary",
			Status:  "⚠",
			Details: "  'sluice' not found in PATH\n  Run: make install",
		}
	}

	return CheckResult{Name: "Binary", Status: "✓", Details: fmt.Sprintf("  %s (%s)", sluicePath, version.String())}
}
