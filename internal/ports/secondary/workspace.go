// Package secondary defines the secondary ports (driven adapters) for the application.
package secondary

import "context"

// WorkspaceAdapter defines the secondary port for filesystem and git worktree operations.
type WorkspaceAdapter interface {
	// Worktree operations
	CreateWorktree(ctx context.Context, branch, base, targetPath string) error
	RemoveWorktree(ctx context.Context, path string) error
	WorktreeExists(ctx context.Context, path string) (bool, error)

	// Directory operations
	CreateDirectory(ctx context.Context, path string) error
	RemoveDirectory(ctx context.Context, path string) error
	DirectoryExists(ctx context.Context, path string) (bool, error)

	// WriteFile persists a file, creating parent directories as needed.
	WriteFile(ctx context.Context, path string, data []byte) error

	// Path resolution
	WorktreeBasePath() string
	StreamWorktreePath(streamID string) string
}
