package secondary

import "context"

// GitRunner defines the interface for git operations against a
// repository checkout. Every method takes the checkout path explicitly
// because the merge protocol targets stream worktrees and the primary
// checkout in the same flow.
type GitRunner interface {
	// CurrentBranch returns the branch the checkout is on.
	CurrentBranch(ctx context.Context, repoPath string) (string, error)

	// BranchExists checks whether a local branch exists.
	BranchExists(ctx context.Context, repoPath, branch string) (bool, error)

	// DirtyPaths lists uncommitted paths, empty when clean.
	DirtyPaths(ctx context.Context, repoPath string) ([]string, error)

	// Fetch updates remote tracking state for a ref.
	Fetch(ctx context.Context, repoPath, remote, ref string) error

	// FetchRef fetches a single remote ref, reporting whether it
	// exists on the remote. FETCH_HEAD points at it afterward.
	FetchRef(ctx context.Context, repoPath, remote, ref string) (exists bool, err error)

	// Merge merges ref into the current branch. Clean merges commit
	// themselves; conflicted merges return an error and leave the
	// merge in progress.
	Merge(ctx context.Context, repoPath, ref string) error

	// MergeInProgress reports whether the checkout has an unfinished
	// merge.
	MergeInProgress(ctx context.Context, repoPath string) (bool, error)

	// ConflictedFiles lists paths with unresolved conflicts.
	ConflictedFiles(ctx context.Context, repoPath string) ([]string, error)

	// CommitMerge concludes an in-progress merge with the default
	// merge message.
	CommitMerge(ctx context.Context, repoPath string) error

	// Add stages the given paths.
	Add(ctx context.Context, repoPath string, paths ...string) error

	// Commit records staged changes.
	Commit(ctx context.Context, repoPath, message string) error

	// Checkout switches the checkout to a branch.
	Checkout(ctx context.Context, repoPath, branch string) error

	// Pull brings the current branch up to date with its remote
	// counterpart.
	Pull(ctx context.Context, repoPath, remote, branch string) error

	// IsAncestor reports whether ancestor is reachable from descendant.
	IsAncestor(ctx context.Context, repoPath, ancestor, descendant string) (bool, error)

	// MergeFFOnly fast-forwards the current branch to ref, failing if
	// a real merge would be required.
	MergeFFOnly(ctx context.Context, repoPath, ref string) error

	// Push sends a refspec to the remote without force.
	Push(ctx context.Context, repoPath, remote, refspec string) error

	// DeleteRemoteBranch removes a branch on the remote.
	DeleteRemoteBranch(ctx context.Context, repoPath, remote, branch string) error

	// DeleteBranch removes a local branch.
	DeleteBranch(ctx context.Context, repoPath, branch string) error

	// RevParse resolves a revision to a full commit hash.
	RevParse(ctx context.Context, repoPath, rev string) (string, error)

	// LastCommitMessage returns the full message of the commit a ref
	// points at.
	LastCommitMessage(ctx context.Context, repoPath, ref string) (string, error)

	// EmptyCommit creates a parentless commit with an empty tree and
	// the given message, without moving HEAD. Returns the commit hash.
	EmptyCommit(ctx context.Context, repoPath, message string) (string, error)

	// SetBranch points a local branch at a commit, creating it if
	// needed.
	SetBranch(ctx context.Context, repoPath, branch, sha string) error
}

// ConflictInspector defines the read side of conflict reporting:
// extracting file content and history from specific commits without
// touching the working tree.
type ConflictInspector interface {
	// FileAtRev returns a file's content at a commit. Returns empty
	// content without error when the file does not exist on that side.
	FileAtRev(ctx context.Context, repoPath, rev, path string) (string, error)

	// RecentCommits returns up to limit commits touching path,
	// starting from rev, newest first.
	RecentCommits(ctx context.Context, repoPath, rev, path string, limit int) ([]CommitSummary, error)
}

// CommitSummary is one commit in a history listing.
type CommitSummary struct {
	Hash    string
	Author  string
	When    string
	Summary string
}
