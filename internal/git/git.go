// Package git wraps the git CLI for the operations the stream
// lifecycle needs. Methods take the checkout path explicitly: the
// merge protocol works on stream worktrees and the primary checkout
// within a single flow.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/example/sluice/internal/ports/secondary"
)

// Runner executes git commands.
type Runner struct{}

// NewRunner creates a git runner.
func NewRunner() *Runner {
	return &Runner{}
}

// run executes a git command in the given repo, capturing stderr for
// error context.
func (r *Runner) run(ctx context.Context, repoPath string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoPath
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// output executes a git command and returns trimmed stdout.
func (r *Runner) output(ctx context.Context, repoPath string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoPath
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// CurrentBranch returns the branch the checkout is on.
func (r *Runner) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	return r.output(ctx, repoPath, "rev-parse", "--abbrev-ref", "HEAD")
}

// BranchExists checks whether a local branch exists.
func (r *Runner) BranchExists(ctx context.Context, repoPath, branch string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	cmd.Dir = repoPath
	if err := cmd.Run(); err != nil {
		return false, nil
	}
	return true, nil
}

// DirtyPaths lists uncommitted paths, empty when the tree is clean.
func (r *Runner) DirtyPaths(ctx context.Context, repoPath string) ([]string, error) {
	out, err := r.output(ctx, repoPath, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parsePorcelainPaths(out), nil
}

// parsePorcelainPaths extracts paths from `git status --porcelain`
// output. Renames report their destination.
func parsePorcelainPaths(out string) []string {
	if out == "" {
		return nil
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := line[3:]
		if _, dest, ok := strings.Cut(path, " -> "); ok {
			path = dest
		}
		paths = append(paths, strings.Trim(path, `"`))
	}
	return paths
}

// Fetch updates remote tracking state for a ref.
func (r *Runner) Fetch(ctx context.Context, repoPath, remote, ref string) error {
	return r.run(ctx, repoPath, "fetch", remote, ref)
}

// FetchRef fetches a single remote ref, reporting whether it exists.
// FETCH_HEAD points at the ref afterward.
func (r *Runner) FetchRef(ctx context.Context, repoPath, remote, ref string) (bool, error) {
	err := r.run(ctx, repoPath, "fetch", remote, ref)
	if err != nil {
		if strings.Contains(err.Error(), "couldn't find remote ref") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Merge merges ref into the current branch. Clean merges commit
// themselves; conflicts surface as an error with the merge left in
// progress for the caller to inspect.
func (r *Runner) Merge(ctx context.Context, repoPath, ref string) error {
	return r.run(ctx, repoPath, "merge", ref)
}

// MergeInProgress reports whether the checkout has an unfinished merge.
func (r *Runner) MergeInProgress(ctx context.Context, repoPath string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--verify", "--quiet", "MERGE_HEAD")
	cmd.Dir = repoPath
	if err := cmd.Run(); err != nil {
		return false, nil
	}
	return true, nil
}

// ConflictedFiles lists paths with unresolved conflicts.
func (r *Runner) ConflictedFiles(ctx context.Context, repoPath string) ([]string, error) {
	out, err := r.output(ctx, repoPath, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// CommitMerge concludes an in-progress merge with the default message.
func (r *Runner) CommitMerge(ctx context.Context, repoPath string) error {
	return r.run(ctx, repoPath, "commit", "--no-edit")
}

// Add stages the given paths.
func (r *Runner) Add(ctx context.Context, repoPath string, paths ...string) error {
	args := append([]string{"add", "--"}, paths...)
	return r.run(ctx, repoPath, args...)
}

// Commit records staged changes.
func (r *Runner) Commit(ctx context.Context, repoPath, message string) error {
	return r.run(ctx, repoPath, "commit", "-m", message)
}

// Checkout switches the checkout to a branch.
func (r *Runner) Checkout(ctx context.Context, repoPath, branch string) error {
	return r.run(ctx, repoPath, "checkout", branch)
}

// Pull brings the current branch up to date with its remote
// counterpart.
func (r *Runner) Pull(ctx context.Context, repoPath, remote, branch string) error {
	return r.run(ctx, repoPath, "pull", remote, branch)
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (r *Runner) IsAncestor(ctx context.Context, repoPath, ancestor, descendant string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "merge-base", "--is-ancestor", ancestor, descendant)
	cmd.Dir = repoPath
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("git merge-base: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return true, nil
}

// MergeFFOnly fast-forwards the current branch to ref, failing rather
// than creating a merge commit.
func (r *Runner) MergeFFOnly(ctx context.Context, repoPath, ref string) error {
	return r.run(ctx, repoPath, "merge", "--ff-only", ref)
}

// Push sends a refspec to the remote. Never forces: a rejected push
// means someone else got there first, and callers rely on that signal.
func (r *Runner) Push(ctx context.Context, repoPath, remote, refspec string) error {
	return r.run(ctx, repoPath, "push", remote, refspec)
}

// DeleteRemoteBranch removes a branch on the remote.
func (r *Runner) DeleteRemoteBranch(ctx context.Context, repoPath, remote, branch string) error {
	return r.run(ctx, repoPath, "push", remote, "--delete", branch)
}

// DeleteBranch removes a local branch.
func (r *Runner) DeleteBranch(ctx context.Context, repoPath, branch string) error {
	return r.run(ctx, repoPath, "branch", "-D", branch)
}

// RevParse resolves a revision to a full commit hash.
func (r *Runner) RevParse(ctx context.Context, repoPath, rev string) (string, error) {
	return r.output(ctx, repoPath, "rev-parse", rev)
}

// LastCommitMessage returns the full message of the commit a ref
// points at.
func (r *Runner) LastCommitMessage(ctx context.Context, repoPath, ref string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "log", "-1", "--format=%B", ref)
	cmd.Dir = repoPath
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git log: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// EmptyCommit creates a parentless commit with an empty tree and the
// given message, without moving HEAD. This is how lock tokens become
// commits: the message is the payload, the tree carries nothing.
func (r *Runner) EmptyCommit(ctx context.Context, repoPath, message string) (string, error) {
	mktree := exec.CommandContext(ctx, "git", "mktree")
	mktree.Dir = repoPath
	mktree.Stdin = strings.NewReader("")
	var treeOut, stderr bytes.Buffer
	mktree.Stdout = &treeOut
	mktree.Stderr = &stderr
	if err := mktree.Run(); err != nil {
		return "", fmt.Errorf("git mktree: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	tree := strings.TrimSpace(treeOut.String())

	return r.output(ctx, repoPath, "commit-tree", tree, "-m", message)
}

// SetBranch points a local branch at a commit, creating it if needed.
func (r *Runner) SetBranch(ctx context.Context, repoPath, branch, sha string) error {
	return r.run(ctx, repoPath, "branch", "-f", branch, sha)
}

// Ensure Runner implements the port
var _ secondary.GitRunner = (*Runner)(nil)
