package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/example/sluice/internal/ports/secondary"
)

// Inspector reads file content and history from specific commits using
// go-git, without touching the working tree. Used to assemble conflict
// packages while a merge is in progress.
type Inspector struct{}

// NewInspector creates a repository inspector.
func NewInspector() *Inspector {
	return &Inspector{}
}

func openRepo(repoPath string) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(repoPath, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", repoPath, err)
	}
	return repo, nil
}

func resolveCommit(repo *gogit.Repository, rev string) (*object.Commit, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", rev, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", hash, err)
	}
	return commit, nil
}

// FileAtRev returns a file's content at a commit. A file missing on
// that side (added or deleted in the merge) yields empty content, not
// an error.
func (i *Inspector) FileAtRev(ctx context.Context, repoPath, rev, path string) (string, error) {
	repo, err := openRepo(repoPath)
	if err != nil {
		return "", err
	}
	commit, err := resolveCommit(repo, rev)
	if err != nil {
		return "", err
	}

	file, err := commit.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s at %s: %w", path, rev, err)
	}
	return file.Contents()
}

// RecentCommits returns up to limit commits touching path, starting
// from rev, newest first.
func (i *Inspector) RecentCommits(ctx context.Context, repoPath, rev, path string, limit int) ([]secondary.CommitSummary, error) {
	repo, err := openRepo(repoPath)
	if err != nil {
		return nil, err
	}
	commit, err := resolveCommit(repo, rev)
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&gogit.LogOptions{From: commit.Hash, FileName: &path})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history of %s: %w", path, err)
	}
	defer iter.Close()

	var commits []secondary.CommitSummary
	for len(commits) < limit {
		c, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to walk history of %s: %w", path, err)
		}
		summary, _, _ := strings.Cut(c.Message, "\n")
		commits = append(commits, secondary.CommitSummary{
			Hash:    c.Hash.String()[:8],
			Author:  c.Author.Name,
			When:    c.Author.When.UTC().Format(time.RFC3339),
			Summary: strings.TrimSpace(summary),
		})
	}
	return commits, nil
}

// Ensure Inspector implements the port
var _ secondary.ConflictInspector = (*Inspector)(nil)
