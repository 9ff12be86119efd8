package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/example/sluice/internal/ports/primary"
)

// MergeAdapter translates CLI operations to MergeService calls and
// renders the protocol outcomes.
type MergeAdapter struct {
	service primary.MergeService
	out     io.Writer
}

// NewMergeAdapter creates a new MergeAdapter with the given service.
func NewMergeAdapter(service primary.MergeService, out io.Writer) *MergeAdapter {
	return &MergeAdapter{
		service: service,
		out:     out,
	}
}

// Prepare runs merge preparation and renders the outcome.
func (a *MergeAdapter) Prepare(ctx context.Context, req primary.PrepareMergeRequest) (*primary.PrepareMergeResponse, error) {
	resp, err := a.service.PrepareMerge(ctx, req)
	if err != nil {
		return nil, err
	}

	switch resp.Outcome {
	case primary.PrepareOutcomeClean:
		fmt.Fprintf(a.out, "✓ Stream %s is ready for merge\n", resp.StreamID)
		fmt.Fprintln(a.out, "  Branch merged with main, validated, and pushed")
		fmt.Fprintln(a.out)
		fmt.Fprintf(a.out, "Land it: sluice merge complete %s\n", resp.StreamID)

	case primary.PrepareOutcomeConflicts:
		a.renderConflicts(resp.Conflicts)

	case primary.PrepareOutcomeValidationFailed:
		fmt.Fprintf(a.out, "✗ Validation failed for stream %s\n", resp.StreamID)
		for _, failure := range resp.ValidationErrors {
			fmt.Fprintf(a.out, "  %s\n", failure)
		}
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "The merge commit stays local. Fix the failures and re-run prepare,")
		fmt.Fprintln(a.out, "or use --skip-validators to push anyway.")
	}

	return resp, nil
}

// renderConflicts prints the conflict package: both sides of every
// conflicted file plus recent history for context.
func (a *MergeAdapter) renderConflicts(pkg *primary.ConflictPackage) {
	if pkg == nil {
		return
	}

	fmt.Fprintf(a.out, "✗ Merge conflicts in stream %s (%d files)\n", pkg.StreamID, len(pkg.Files))
	fmt.Fprintf(a.out, "  ours:   %s\n", pkg.OursRev)
	fmt.Fprintf(a.out, "  theirs: %s\n", pkg.TheirsRev)
	fmt.Fprintln(a.out)

	for _, file := range pkg.Files {
		fmt.Fprintf(a.out, "── %s\n", file.Path)
		if len(file.OursHistory) > 0 {
			fmt.Fprintln(a.out, "  ours touched by:")
			for _, c := range file.OursHistory {
				fmt.Fprintf(a.out, "    %s %s %s\n", shortHash(c.Hash), c.Author, c.Summary)
			}
		}
		if len(file.TheirsHistory) > 0 {
			fmt.Fprintln(a.out, "  theirs touched by:")
			for _, c := range file.TheirsHistory {
				fmt.Fprintf(a.out, "    %s %s %s\n", shortHash(c.Hash), c.Author, c.Summary)
			}
		}
	}

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Resolve the conflicts in the worktree, stage the files, then")
	fmt.Fprintln(a.out, "re-run prepare to conclude the merge.")
}

// Complete runs merge completion and renders the outcome.
func (a *MergeAdapter) Complete(ctx context.Context, req primary.CompleteMergeRequest) (*primary.CompleteMergeResponse, error) {
	resp, err := a.service.CompleteMerge(ctx, req)
	if err != nil {
		return nil, err
	}

	switch resp.Outcome {
	case primary.CompleteOutcomeMerged:
		fmt.Fprintf(a.out, "✓ Stream %s merged to main\n", resp.StreamID)
		fmt.Fprintf(a.out, "  Main is now at %s\n", resp.MainCommit)
		fmt.Fprintln(a.out)
		fmt.Fprintf(a.out, "Finish up: sluice merge finish %s\n", resp.StreamID)

	case primary.CompleteOutcomeLockUnavailable:
		fmt.Fprintln(a.out, "✗ Merge lock is held by another stream")
		if resp.Holder != nil {
			fmt.Fprintf(a.out, "  Stream:   %s\n", resp.Holder.StreamID)
			fmt.Fprintf(a.out, "  Process:  pid %d on %s\n", resp.Holder.PID, resp.Holder.Hostname)
			fmt.Fprintf(a.out, "  Since:    %s\n", resp.Holder.AcquiredAt)
		}
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Wait for it to finish, or inspect with: sluice lock status")

	case primary.CompleteOutcomeFastForwardFailed:
		fmt.Fprintf(a.out, "✗ Cannot fast-forward main to stream %s\n", resp.StreamID)
		fmt.Fprintf(a.out, "  %s\n", resp.Reason)

	}

	return resp, nil
}

// Finish archives a merged stream and renders the cleanup summary.
func (a *MergeAdapter) Finish(ctx context.Context, req primary.CompleteStreamRequest) (*primary.CompleteStreamResponse, error) {
	resp, err := a.service.CompleteStream(ctx, req)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "✓ Stream %s archived\n", resp.StreamID)
	fmt.Fprintf(a.out, "  History: %s\n", resp.ArchivedTo)
	if resp.WorktreeDeleted {
		fmt.Fprintln(a.out, "  ✓ Worktree removed")
	} else {
		fmt.Fprintln(a.out, "  ⚠️  Worktree left behind; remove it manually")
	}
	if resp.BranchDeleted {
		fmt.Fprintln(a.out, "  ✓ Local branch deleted")
	} else {
		fmt.Fprintln(a.out, "  ⚠️  Local branch left behind; delete it manually")
	}

	return resp, nil
}

// LockStatus inspects the distributed merge lock.
func (a *MergeAdapter) LockStatus(ctx context.Context) (*primary.MergeLockStatusResponse, error) {
	resp, err := a.service.MergeLockStatus(ctx)
	if err != nil {
		return nil, err
	}

	if !resp.Exists {
		fmt.Fprintln(a.out, "Merge lock is free.")
		return resp, nil
	}

	state := "live"
	if resp.Stale {
		state = "stale"
	}
	fmt.Fprintf(a.out, "Merge lock is held (%s, age %dms)\n", state, resp.AgeMs)
	if resp.Holder != nil {
		fmt.Fprintf(a.out, "  Stream:   %s\n", resp.Holder.StreamID)
		fmt.Fprintf(a.out, "  Process:  pid %d on %s\n", resp.Holder.PID, resp.Holder.Hostname)
		fmt.Fprintf(a.out, "  Since:    %s\n", resp.Holder.AcquiredAt)
	} else {
		fmt.Fprintln(a.out, "  Holder token is unreadable")
	}
	if resp.Stale {
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "A stale lock is reclaimed automatically by the next merge,")
		fmt.Fprintln(a.out, "or release it now with: sluice lock release")
	}

	return resp, nil
}

// ReleaseLock force-releases the distributed merge lock.
func (a *MergeAdapter) ReleaseLock(ctx context.Context) error {
	if err := a.service.ReleaseMergeLock(ctx); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "✓ Merge lock released")
	return nil
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
