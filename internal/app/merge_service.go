package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/sluice/internal/config"
	corestream "github.com/example/sluice/internal/core/stream"
	"github.com/example/sluice/internal/models"
	"github.com/example/sluice/internal/ports/primary"
	"github.com/example/sluice/internal/ports/secondary"
)

// conflictHistoryLimit caps how many commits per side are packed into
// a conflict report.
const conflictHistoryLimit = 5

// MergeServiceImpl implements the MergeService interface: prepare in
// the stream worktree, complete under the distributed lock, then
// archive.
type MergeServiceImpl struct {
	store      secondary.StreamStore
	git        secondary.GitRunner
	inspector  secondary.ConflictInspector
	mergeLock  secondary.MergeLock
	workspace  secondary.WorkspaceAdapter
	validators secondary.ValidatorRunner
	journal    secondary.JournalRepository
	cfg        *config.Config
	repoPath   string
	log        *slog.Logger
}

// NewMergeService creates a new MergeService with injected dependencies.
// repoPath is the primary checkout where main is merged and pushed.
func NewMergeService(
	store secondary.StreamStore,
	git secondary.GitRunner,
	inspector secondary.ConflictInspector,
	mergeLock secondary.MergeLock,
	workspace secondary.WorkspaceAdapter,
	validators secondary.ValidatorRunner,
	journal secondary.JournalRepository,
	cfg *config.Config,
	repoPath string,
	logger *slog.Logger,
) *MergeServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &MergeServiceImpl{
		store:      store,
		git:        git,
		inspector:  inspector,
		mergeLock:  mergeLock,
		workspace:  workspace,
		validators: validators,
		journal:    journal,
		cfg:        cfg,
		repoPath:   repoPath,
		log:        logger,
	}
}

// PrepareMerge merges upstream main into the stream branch inside the
// stream's own worktree, validates the result, and pushes it. Runs
// without the distributed lock; only complete-merge serializes.
func (s *MergeServiceImpl) PrepareMerge(ctx context.Context, req primary.PrepareMergeRequest) (*primary.PrepareMergeResponse, error) {
	// 1. Fetch the stream and guard the transition
	record, err := s.store.Get(ctx, req.StreamID)
	if err != nil {
		return nil, err
	}
	if result := corestream.CanPrepare(record.StreamID, record.Status); !result.Allowed {
		return nil, result.Error()
	}

	worktree := record.WorktreePath
	exists, err := s.workspace.WorktreeExists(ctx, worktree)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("worktree for stream %s missing at %s", record.StreamID, worktree)
	}

	// 2. Resume a conflicted merge or start a fresh one
	inProgress, err := s.git.MergeInProgress(ctx, worktree)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect worktree state: %w", err)
	}

	if inProgress {
		conflicted, err := s.git.ConflictedFiles(ctx, worktree)
		if err != nil {
			return nil, fmt.Errorf("failed to list conflicts: %w", err)
		}
		if len(conflicted) > 0 {
			// Still unresolved since the last invocation
			return s.conflictsResponse(ctx, record, worktree, conflicted)
		}
		// All conflicts staged; conclude the merge
		if err := s.git.CommitMerge(ctx, worktree); err != nil {
			return nil, fmt.Errorf("failed to commit resolved merge: %w", err)
		}
	} else {
		// 3. Refuse to merge over uncommitted work
		dirty, err := s.git.DirtyPaths(ctx, worktree)
		if err != nil {
			return nil, fmt.Errorf("failed to check worktree cleanliness: %w", err)
		}
		if len(dirty) > 0 {
			return nil, &corestream.ProtocolViolationError{
				Reason: fmt.Sprintf("worktree for stream %s has uncommitted changes: %s",
					record.StreamID, strings.Join(dirty, ", ")),
				Remediation: []string{
					"commit your work on the stream branch",
					"or stash it before preparing the merge",
				},
			}
		}

		// 4. Bring upstream main in and merge it
		if err := s.git.Fetch(ctx, worktree, s.cfg.Remote, s.cfg.MainBranch); err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", s.cfg.MainBranch, err)
		}
		upstream := fmt.Sprintf("%s/%s", s.cfg.Remote, s.cfg.MainBranch)
		if err := s.git.Merge(ctx, worktree, upstream); err != nil {
			conflicted, cerr := s.git.ConflictedFiles(ctx, worktree)
			if cerr != nil {
				return nil, fmt.Errorf("failed to list conflicts: %w", cerr)
			}
			if len(conflicted) == 0 {
				// Merge failed for some reason other than conflicts
				return nil, fmt.Errorf("failed to merge %s: %w", upstream, err)
			}
			return s.conflictsResponse(ctx, record, worktree, conflicted)
		}
	}

	// 5. Validate before anything leaves the machine
	if !req.SkipValidators && s.validators != nil {
		validation, err := s.validators.RunValidators(ctx, worktree)
		if err != nil {
			return nil, fmt.Errorf("failed to run validators: %w", err)
		}
		if !validation.Passed {
			appendJournal(ctx, s.journal, s.log, record.StreamID, "prepare-merge", primary.PrepareOutcomeValidationFailed,
				fmt.Sprintf("%d validator(s) failed", len(validation.Failures)))
			// The merge commit stays local; nothing was pushed
			return &primary.PrepareMergeResponse{
				StreamID:         record.StreamID,
				Outcome:          primary.PrepareOutcomeValidationFailed,
				ValidationErrors: validation.Failures,
			}, nil
		}
	}

	// 6. Push the prepared branch and mark it ready
	if err := s.git.Push(ctx, worktree, s.cfg.Remote, record.Branch); err != nil {
		return nil, fmt.Errorf("failed to push %s: %w", record.Branch, err)
	}
	if _, err := s.store.Update(ctx, record.StreamID, secondary.StreamPatch{
		Status: models.StreamStatusReadyForMerge,
	}); err != nil {
		return nil, fmt.Errorf("failed to mark stream ready for merge: %w", err)
	}
	if err := s.store.Touch(ctx, record.StreamID, worktree); err != nil {
		s.log.Warn("failed to record active context", "stream", record.StreamID, "error", err)
	}

	appendJournal(ctx, s.journal, s.log, record.StreamID, "prepare-merge", primary.PrepareOutcomeClean, record.Branch)

	return &primary.PrepareMergeResponse{
		StreamID: record.StreamID,
		Outcome:  primary.PrepareOutcomeClean,
		Pushed:   true,
	}, nil
}

// CompleteMerge fast-forwards main to the prepared stream branch. The
// distributed lock is held for the whole sequence and released on
// every exit path.
func (s *MergeServiceImpl) CompleteMerge(ctx context.Context, req primary.CompleteMergeRequest) (*primary.CompleteMergeResponse, error) {
	// 1. Fetch the stream and guard the transition
	record, err := s.store.Get(ctx, req.StreamID)
	if err != nil {
		return nil, err
	}
	if result := corestream.CanCompleteMerge(record.StreamID, record.Status); !result.Allowed {
		return nil, result.Error()
	}

	// 2. Take the repository-wide merge lock
	acquisition, err := s.mergeLock.Acquire(ctx, record.StreamID, "complete-merge")
	if err != nil {
		return nil, fmt.Errorf("failed to acquire merge lock: %w", err)
	}
	if !acquisition.Acquired {
		appendJournal(ctx, s.journal, s.log, record.StreamID, "complete-merge", primary.CompleteOutcomeLockUnavailable, holderDetail(acquisition.Holder))
		return &primary.CompleteMergeResponse{
			StreamID: record.StreamID,
			Outcome:  primary.CompleteOutcomeLockUnavailable,
			Holder:   toPrimaryLockHolder(acquisition.Holder),
		}, nil
	}
	defer func() {
		if err := s.mergeLock.Release(ctx); err != nil {
			s.log.Warn("failed to release merge lock", "stream", record.StreamID, "error", err)
		}
	}()

	// 3. The primary checkout must be clean before main moves
	dirty, err := s.git.DirtyPaths(ctx, s.repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to check primary checkout: %w", err)
	}
	if len(dirty) > 0 {
		return nil, &corestream.ProtocolViolationError{
			Reason: fmt.Sprintf("primary checkout has uncommitted changes: %s",
				strings.Join(dirty, ", ")),
			Remediation: []string{
				"commit or stash the changes in the primary checkout",
				"then re-run complete-merge",
			},
		}
	}

	// 4. Put main at the current upstream tip
	if err := s.git.Checkout(ctx, s.repoPath, s.cfg.MainBranch); err != nil {
		return nil, fmt.Errorf("failed to checkout %s: %w", s.cfg.MainBranch, err)
	}
	if err := s.git.Pull(ctx, s.repoPath, s.cfg.Remote, s.cfg.MainBranch); err != nil {
		return nil, fmt.Errorf("failed to pull %s: %w", s.cfg.MainBranch, err)
	}

	// 5. Fetch the prepared branch
	branchExists, err := s.git.FetchRef(ctx, s.repoPath, s.cfg.Remote, record.Branch)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", record.Branch, err)
	}
	if !branchExists {
		return s.fastForwardFailed(ctx, record, "stream branch was never pushed; run prepare first")
	}

	// 6. Fast-forward only: main must be an ancestor of the prepared
	// branch, otherwise the preparation is out of date
	ancestor, err := s.git.IsAncestor(ctx, s.repoPath, "HEAD", "FETCH_HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to compare histories: %w", err)
	}
	if !ancestor {
		return s.fastForwardFailed(ctx, record, "main has advanced past the prepared merge; redo prepare")
	}
	if err := s.git.MergeFFOnly(ctx, s.repoPath, "FETCH_HEAD"); err != nil {
		return nil, fmt.Errorf("failed to fast-forward %s: %w", s.cfg.MainBranch, err)
	}

	mainCommit, err := s.git.RevParse(ctx, s.repoPath, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve new main commit: %w", err)
	}

	// 7. Publish main
	if err := s.git.Push(ctx, s.repoPath, s.cfg.Remote, s.cfg.MainBranch); err != nil {
		return nil, fmt.Errorf("failed to push %s: %w", s.cfg.MainBranch, err)
	}

	// 8. Remote stream branch cleanup
	if s.cfg.DeleteRemoteBranch && !req.KeepRemoteBranch {
		if err := s.git.DeleteRemoteBranch(ctx, s.repoPath, s.cfg.Remote, record.Branch); err != nil {
			s.log.Warn("failed to delete remote stream branch", "branch", record.Branch, "error", err)
		}
	}

	// 9. Record the landing
	if _, err := s.store.Update(ctx, record.StreamID, secondary.StreamPatch{
		Status:      models.StreamStatusCompleted,
		MergeCommit: mainCommit,
	}); err != nil {
		return nil, fmt.Errorf("merge landed at %s but stream update failed: %w", mainCommit, err)
	}

	appendJournal(ctx, s.journal, s.log, record.StreamID, "complete-merge", primary.CompleteOutcomeMerged, mainCommit)

	return &primary.CompleteMergeResponse{
		StreamID:   record.StreamID,
		Outcome:    primary.CompleteOutcomeMerged,
		MainCommit: mainCommit,
	}, nil
}

// CompleteStream archives a merged stream into the history directory,
// publishes the archive, and cleans up the stream's git state.
func (s *MergeServiceImpl) CompleteStream(ctx context.Context, req primary.CompleteStreamRequest) (*primary.CompleteStreamResponse, error) {
	// 1. Fetch the stream and guard the transition
	record, err := s.store.Get(ctx, req.StreamID)
	if err != nil {
		return nil, err
	}
	if result := corestream.CanCompleteStream(record.StreamID, record.Status); !result.Allowed {
		return nil, result.Error()
	}

	// 2. The archive commit lands on main in the primary checkout, so
	// the checkout must be clean and current
	dirty, err := s.git.DirtyPaths(ctx, s.repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to check primary checkout: %w", err)
	}
	if len(dirty) > 0 {
		return nil, &corestream.ProtocolViolationError{
			Reason: fmt.Sprintf("primary checkout has uncommitted changes: %s",
				strings.Join(dirty, ", ")),
			Remediation: []string{
				"commit or stash the changes in the primary checkout",
				"then re-run complete-stream",
			},
		}
	}
	if err := s.git.Checkout(ctx, s.repoPath, s.cfg.MainBranch); err != nil {
		return nil, fmt.Errorf("failed to checkout %s: %w", s.cfg.MainBranch, err)
	}
	if err := s.git.Pull(ctx, s.repoPath, s.cfg.Remote, s.cfg.MainBranch); err != nil {
		return nil, fmt.Errorf("failed to pull %s: %w", s.cfg.MainBranch, err)
	}

	// 3. Write the immutable archive pair
	historyDir := s.cfg.HistoryBase(s.repoPath)
	archivePath := filepath.Join(historyDir, record.StreamID+".md")
	sidecarPath := filepath.Join(historyDir, record.StreamID+".json")

	archived := *record
	archived.Status = models.StreamStatusArchived
	archived.UpdatedAt = time.Now().UTC()

	if err := s.workspace.WriteFile(ctx, archivePath, archiveMarkdown(&archived, req.Summary)); err != nil {
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}
	sidecar, err := json.MarshalIndent(archiveSidecar{
		Stream:     &archived,
		Summary:    req.Summary,
		ArchivedAt: archived.UpdatedAt,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode archive record: %w", err)
	}
	if err := s.workspace.WriteFile(ctx, sidecarPath, sidecar); err != nil {
		return nil, fmt.Errorf("failed to write archive record: %w", err)
	}

	// 4. Commit and publish the archive. Failures here propagate; the
	// stream stays completed and the call can be retried.
	relArchive, err := filepath.Rel(s.repoPath, archivePath)
	if err != nil {
		return nil, fmt.Errorf("archive path escapes repository: %w", err)
	}
	relSidecar, err := filepath.Rel(s.repoPath, sidecarPath)
	if err != nil {
		return nil, fmt.Errorf("archive path escapes repository: %w", err)
	}
	if err := s.git.Add(ctx, s.repoPath, relArchive, relSidecar); err != nil {
		return nil, fmt.Errorf("failed to stage archive: %w", err)
	}
	if err := s.git.Commit(ctx, s.repoPath, fmt.Sprintf("sluice: archive stream %s", record.StreamID)); err != nil {
		return nil, fmt.Errorf("failed to commit archive: %w", err)
	}
	if err := s.git.Push(ctx, s.repoPath, s.cfg.Remote, s.cfg.MainBranch); err != nil {
		return nil, fmt.Errorf("failed to push archive: %w", err)
	}

	// 5. Best-effort cleanup of the stream's git state
	response := &primary.CompleteStreamResponse{
		StreamID:   record.StreamID,
		ArchivedTo: archivePath,
	}
	if err := s.workspace.RemoveWorktree(ctx, record.WorktreePath); err != nil {
		s.log.Warn("failed to remove worktree", "stream", record.StreamID, "path", record.WorktreePath, "error", err)
	} else {
		response.WorktreeDeleted = true
	}
	if err := s.git.DeleteBranch(ctx, s.repoPath, record.Branch); err != nil {
		s.log.Warn("failed to delete stream branch", "branch", record.Branch, "error", err)
	} else {
		response.BranchDeleted = true
	}

	// 6. The record leaves the registry
	if err := s.store.WithLock(ctx, "complete-stream", func(doc *models.RegistryDocument) error {
		if _, ok := doc.Streams[record.StreamID]; !ok {
			return fmt.Errorf("stream %s not found", record.StreamID)
		}
		delete(doc.Streams, record.StreamID)
		delete(doc.ActiveContexts, record.StreamID)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("archived to %s but registry cleanup failed: %w", archivePath, err)
	}

	appendJournal(ctx, s.journal, s.log, record.StreamID, "complete-stream", "archived", relArchive)

	return response, nil
}

// MergeLockStatus inspects the distributed merge lock without touching it.
func (s *MergeServiceImpl) MergeLockStatus(ctx context.Context) (*primary.MergeLockStatusResponse, error) {
	status, err := s.mergeLock.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read merge lock: %w", err)
	}
	return &primary.MergeLockStatusResponse{
		Exists: status.Exists,
		Stale:  status.Stale,
		AgeMs:  status.Age.Milliseconds(),
		Holder: toPrimaryLockHolder(status.Holder),
	}, nil
}

// ReleaseMergeLock force-releases the distributed merge lock.
func (s *MergeServiceImpl) ReleaseMergeLock(ctx context.Context) error {
	if err := s.mergeLock.ForceRelease(ctx); err != nil {
		return fmt.Errorf("failed to release merge lock: %w", err)
	}
	appendJournal(ctx, s.journal, s.log, "", "lock-release", "forced", "")
	return nil
}

// Helper methods

// conflictsResponse packages a conflicted merge for external
// resolution and pauses the stream.
func (s *MergeServiceImpl) conflictsResponse(ctx context.Context, record *models.StreamRecord, worktree string, conflicted []string) (*primary.PrepareMergeResponse, error) {
	pkg, err := s.buildConflictPackage(ctx, record.StreamID, worktree, conflicted)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Update(ctx, record.StreamID, secondary.StreamPatch{
		Status: models.StreamStatusPaused,
	}); err != nil {
		return nil, fmt.Errorf("failed to pause stream: %w", err)
	}

	appendJournal(ctx, s.journal, s.log, record.StreamID, "prepare-merge", primary.PrepareOutcomeConflicts,
		fmt.Sprintf("%d conflicted file(s)", len(conflicted)))

	return &primary.PrepareMergeResponse{
		StreamID:  record.StreamID,
		Outcome:   primary.PrepareOutcomeConflicts,
		Conflicts: pkg,
	}, nil
}

// buildConflictPackage gathers both sides' content and recent history
// for every conflicted path. The worktree is left mid-merge.
func (s *MergeServiceImpl) buildConflictPackage(ctx context.Context, streamID, worktree string, conflicted []string) (*primary.ConflictPackage, error) {
	// MERGE_HEAD only resolves while the merge is in progress, so pin
	// both sides to commit hashes first.
	oursRev, err := s.git.RevParse(ctx, worktree, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve our side: %w", err)
	}
	theirsRev, err := s.git.RevParse(ctx, worktree, "MERGE_HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve their side: %w", err)
	}

	pkg := &primary.ConflictPackage{
		StreamID:  streamID,
		OursRev:   oursRev,
		TheirsRev: theirsRev,
	}

	for _, path := range conflicted {
		file := primary.ConflictFile{Path: path}

		file.OursContent, err = s.inspector.FileAtRev(ctx, worktree, oursRev, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s at %s: %w", path, oursRev, err)
		}
		file.TheirsContent, err = s.inspector.FileAtRev(ctx, worktree, theirsRev, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s at %s: %w", path, theirsRev, err)
		}

		oursHistory, err := s.inspector.RecentCommits(ctx, worktree, oursRev, path, conflictHistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to read history of %s: %w", path, err)
		}
		theirsHistory, err := s.inspector.RecentCommits(ctx, worktree, theirsRev, path, conflictHistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to read history of %s: %w", path, err)
		}
		file.OursHistory = toPrimaryCommits(oursHistory)
		file.TheirsHistory = toPrimaryCommits(theirsHistory)

		pkg.Files = append(pkg.Files, file)
	}

	return pkg, nil
}

// fastForwardFailed reports a completion that must be re-prepared.
// Main has not been modified.
func (s *MergeServiceImpl) fastForwardFailed(ctx context.Context, record *models.StreamRecord, reason string) (*primary.CompleteMergeResponse, error) {
	appendJournal(ctx, s.journal, s.log, record.StreamID, "complete-merge", primary.CompleteOutcomeFastForwardFailed, reason)
	return &primary.CompleteMergeResponse{
		StreamID: record.StreamID,
		Outcome:  primary.CompleteOutcomeFastForwardFailed,
		Reason:   reason,
	}, nil
}

type archiveSidecar struct {
	Stream     *models.StreamRecord `json:"stream"`
	Summary    string               `json:"summary,omitempty"`
	ArchivedAt time.Time            `json:"archivedAt"`
}

// archiveMarkdown renders the human-readable half of an archive entry.
func archiveMarkdown(record *models.StreamRecord, summary string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: %s\n\n", record.StreamID, record.Title)
	fmt.Fprintf(&b, "- Category: %s\n", record.Category)
	fmt.Fprintf(&b, "- Priority: %s\n", record.Priority)
	fmt.Fprintf(&b, "- Branch: %s\n", record.Branch)
	if record.ParentStreamID != "" {
		fmt.Fprintf(&b, "- Parent: %s\n", record.ParentStreamID)
	}
	if record.MergeCommit != "" {
		fmt.Fprintf(&b, "- Merge commit: %s\n", record.MergeCommit)
	}
	fmt.Fprintf(&b, "- Created: %s\n", record.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Archived: %s\n", record.UpdatedAt.Format(time.RFC3339))
	if summary != "" {
		fmt.Fprintf(&b, "\n## Summary\n\n%s\n", summary)
	}
	return []byte(b.String())
}

func toPrimaryLockHolder(h *secondary.LockHolder) *primary.LockHolder {
	if h == nil {
		return nil
	}
	return &primary.LockHolder{
		StreamID:   h.StreamID,
		PID:        h.PID,
		Hostname:   h.Hostname,
		Operation:  h.Operation,
		AcquiredAt: h.AcquiredAt.Format(time.RFC3339),
	}
}

func toPrimaryCommits(commits []secondary.CommitSummary) []primary.CommitSummary {
	if len(commits) == 0 {
		return nil
	}
	out := make([]primary.CommitSummary, len(commits))
	for i, c := range commits {
		out[i] = primary.CommitSummary{
			Hash:    c.Hash,
			Author:  c.Author,
			When:    c.When,
			Summary: c.Summary,
		}
	}
	return out
}

func holderDetail(h *secondary.LockHolder) string {
	if h == nil {
		return "holder unknown"
	}
	return fmt.Sprintf("held by %s (pid %d on %s)", h.StreamID, h.PID, h.Hostname)
}

// Ensure MergeServiceImpl implements the interface
var _ primary.MergeService = (*MergeServiceImpl)(nil)
