// Package filesystem contains filesystem-based adapter implementations.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/example/sluice/internal/ports/secondary"
)

// WorkspaceAdapter implements secondary.WorkspaceAdapter for filesystem operations.
type WorkspaceAdapter struct {
	repoPath          string
	worktreesBasePath string
}

// NewWorkspaceAdapter creates a new filesystem workspace adapter rooted
// at the primary checkout.
func NewWorkspaceAdapter(repoPath, worktreesBasePath string) *WorkspaceAdapter {
	return &WorkspaceAdapter{
		repoPath:          repoPath,
		worktreesBasePath: worktreesBasePath,
	}
}

// CreateWorktree creates a git worktree on a new branch starting at
// base.
func (a *WorkspaceAdapter) CreateWorktree(ctx context.Context, branch, base, targetPath string) error {
	// Check the primary checkout exists
	if _, err := os.Stat(a.repoPath); os.IsNotExist(err) {
		return fmt.Errorf("repository not found at %s", a.repoPath)
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return fmt.Errorf("failed to create worktree base directory: %w", err)
	}

	// Create worktree with new branch
	cmd := exec.CommandContext(ctx, "git", "worktree", "add", targetPath, "-b", branch, base)
	cmd.Dir = a.repoPath

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git worktree add failed: %w: %s", err, string(output))
	}

	return nil
}

// RemoveWorktree removes a git worktree.
func (a *WorkspaceAdapter) RemoveWorktree(ctx context.Context, path string) error {
	// Try git worktree remove first
	cmd := exec.CommandContext(ctx, "git", "worktree", "remove", path, "--force")
	cmd.Dir = a.repoPath
	if err := cmd.Run(); err != nil {
		// Fall back to direct directory removal
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove worktree directory: %w", err)
		}
	}

	return nil
}

// WorktreeExists checks if a worktree exists at the given path.
func (a *WorkspaceAdapter) WorktreeExists(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check worktree: %w", err)
	}
	return info.IsDir(), nil
}

// CreateDirectory creates a directory with all parent directories.
func (a *WorkspaceAdapter) CreateDirectory(ctx context.Context, path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// RemoveDirectory removes a directory and all contents.
func (a *WorkspaceAdapter) RemoveDirectory(ctx context.Context, path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove directory: %w", err)
	}
	return nil
}

// DirectoryExists checks if a directory exists.
func (a *WorkspaceAdapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check directory: %w", err)
	}
	return info.IsDir(), nil
}

// WriteFile persists a file, creating parent directories as needed.
func (a *WorkspaceAdapter) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// WorktreeBasePath returns the base path under which stream worktrees live.
func (a *WorkspaceAdapter) WorktreeBasePath() string {
	return a.worktreesBasePath
}

// StreamWorktreePath returns the worktree path for a stream.
func (a *WorkspaceAdapter) StreamWorktreePath(streamID string) string {
	return filepath.Join(a.worktreesBasePath, streamID)
}

// Ensure WorkspaceAdapter implements the interface
var _ secondary.WorkspaceAdapter = (*WorkspaceAdapter)(nil)
