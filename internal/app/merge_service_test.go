package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/sluice/internal/config"
	corestream "github.com/example/sluice/internal/core/stream"
	"github.com/example/sluice/internal/models"
	"github.com/example/sluice/internal/ports/primary"
	"github.com/example/sluice/internal/ports/secondary"
)

const testRepoPath = "/repo/primary"

// ============================================================================
// Test Helper
// ============================================================================

// mergeKit bundles the merge service with every mock it drives.
type mergeKit struct {
	service    *MergeServiceImpl
	store      *mockStreamStore
	git        *mockGitRunner
	inspector  *mockInspector
	lock       *mockMergeLock
	workspace  *mockWorkspaceAdapter
	validators *mockValidatorRunner
	journal    *mockJournal
	cfg        *config.Config
}

func newMergeKit() *mergeKit {
	kit := &mergeKit{
		store:      newMockStreamStore(),
		git:        newMockGitRunner(),
		inspector:  newMockInspector(),
		lock:       newMockMergeLock(),
		workspace:  newMockWorkspaceAdapter(),
		validators: newMockValidatorRunner(),
		journal:    newMockJournal(),
		cfg:        testConfig(),
	}
	kit.service = NewMergeService(
		kit.store,
		kit.git,
		kit.inspector,
		kit.lock,
		kit.workspace,
		kit.validators,
		kit.journal,
		kit.cfg,
		testRepoPath,
		nil,
	)
	return kit
}

// seedStream installs a stream record with a live worktree.
func (kit *mergeKit) seedStream(streamID string, status models.StreamStatus) *models.StreamRecord {
	worktree := kit.workspace.StreamWorktreePath(streamID)
	rec := kit.store.seed(&models.StreamRecord{
		StreamID:     streamID,
		Title:        "Test Stream",
		Category:     models.CategoryBackend,
		Priority:     models.PriorityMedium,
		Status:       status,
		WorktreePath: worktree,
		Branch:       "stream/" + streamID,
	})
	kit.workspace.worktrees[worktree] = true
	return rec
}

// ============================================================================
// PrepareMerge Tests
// ============================================================================

func TestPrepareMerge_CleanMerge(t *testing.T) {
	kit := newMergeKit()
	rec := kit.seedStream("1500-add-auth", models.StreamStatusActive)
	ctx := context.Background()

	resp, err := kit.service.PrepareMerge(ctx, primary.PrepareMergeRequest{StreamID: "1500-add-auth"})
	if err != nil {
		t.Fatalf("PrepareMerge failed: %v", err)
	}

	if resp.Outcome != primary.PrepareOutcomeClean {
		t.Fatalf("Outcome = %q, want %q", resp.Outcome, primary.PrepareOutcomeClean)
	}
	if !resp.Pushed {
		t.Error("Pushed = false after clean prepare")
	}

	// Upstream main was fetched and merged in
	if !kit.git.called("Fetch main") {
		t.Error("main was not fetched")
	}
	if !kit.git.called("Merge origin/main") {
		t.Error("origin/main was not merged")
	}

	// The stream branch reached the remote
	found := false
	for _, ref := range kit.git.pushedRefs {
		if ref == rec.Branch {
			found = true
		}
	}
	if !found {
		t.Errorf("branch %s not pushed, pushed: %v", rec.Branch, kit.git.pushedRefs)
	}

	// Status advanced
	got, _ := kit.store.Get(ctx, "1500-add-auth")
	if got.Status != models.StreamStatusReadyForMerge {
		t.Errorf("Status = %q, want %q", got.Status, models.StreamStatusReadyForMerge)
	}
}

func TestPrepareMerge_DirtyWorktreeRefused(t *testing.T) {
	kit := newMergeKit()
	rec := kit.seedStream("1500-add-auth", models.StreamStatusActive)
	kit.git.dirty[rec.WorktreePath] = []string{"main.go", "api/handler.go"}

	_, err := kit.service.PrepareMerge(context.Background(), primary.PrepareMergeRequest{StreamID: "1500-add-auth"})
	if err == nil {
		t.Fatal("expected error for dirty worktree, got nil")
	}

	var violation *corestream.ProtocolViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected *ProtocolViolationError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "main.go") {
		t.Errorf("error should list offending paths: %v", err)
	}

	// Nothing was merged or pushed
	if kit.git.called("Merge ") {
		t.Error("merge attempted over dirty worktree")
	}
	got, _ := kit.store.Get(context.Background(), "1500-add-auth")
	if got.Status != models.StreamStatusActive {
		t.Errorf("Status = %q, want unchanged active", got.Status)
	}
}

func TestPrepareMerge_ConflictsPackaged(t *testing.T) {
	kit := newMergeKit()
	rec := kit.seedStream("1500-add-auth", models.StreamStatusActive)
	wt := rec.WorktreePath

	kit.git.mergeErr = errors.New("merge conflict")
	kit.git.conflicted[wt] = []string{"api/handler.go"}
	kit.git.revParse["HEAD"] = "ours-sha"
	kit.git.revParse["MERGE_HEAD"] = "theirs-sha"
	kit.inspector.setContent("ours-sha", "api/handler.go", "func ours() {}")
	kit.inspector.setContent("theirs-sha", "api/handler.go", "func theirs() {}")
	kit.inspector.history["ours-sha"] = []secondary.CommitSummary{
		{Hash: "abc12345", Author: "alice", Summary: "add handler"},
	}
	kit.inspector.history["theirs-sha"] = []secondary.CommitSummary{
		{Hash: "def67890", Author: "bob", Summary: "rework handler"},
	}

	resp, err := kit.service.PrepareMerge(context.Background(), primary.PrepareMergeRequest{StreamID: "1500-add-auth"})
	if err != nil {
		t.Fatalf("PrepareMerge failed: %v", err)
	}

	if resp.Outcome != primary.PrepareOutcomeConflicts {
		t.Fatalf("Outcome = %q, want %q", resp.Outcome, primary.PrepareOutcomeConflicts)
	}
	pkg := resp.Conflicts
	if pkg == nil {
		t.Fatal("Conflicts package missing")
	}
	if pkg.OursRev != "ours-sha" || pkg.TheirsRev != "theirs-sha" {
		t.Errorf("revs = %q/%q", pkg.OursRev, pkg.TheirsRev)
	}
	if len(pkg.Files) != 1 {
		t.Fatalf("got %d conflict files, want 1", len(pkg.Files))
	}
	file := pkg.Files[0]
	if file.OursContent != "func ours() {}" {
		t.Errorf("OursContent = %q", file.OursContent)
	}
	if file.TheirsContent != "func theirs() {}" {
		t.Errorf("TheirsContent = %q", file.TheirsContent)
	}
	if len(file.OursHistory) != 1 || file.OursHistory[0].Author != "alice" {
		t.Errorf("OursHistory = %+v", file.OursHistory)
	}
	if len(file.TheirsHistory) != 1 || file.TheirsHistory[0].Author != "bob" {
		t.Errorf("TheirsHistory = %+v", file.TheirsHistory)
	}

	// Nothing pushed; stream paused for external resolution
	if len(kit.git.pushedRefs) != 0 {
		t.Errorf("pushed refs = %v, want none", kit.git.pushedRefs)
	}
	got, _ := kit.store.Get(context.Background(), "1500-add-auth")
	if got.Status != models.StreamStatusPaused {
		t.Errorf("Status = %q, want %q", got.Status, models.StreamStatusPaused)
	}
}

func TestPrepareMerge_ResumeStillConflicted(t *testing.T) {
	kit := newMergeKit()
	rec := kit.seedStream("1500-add-auth", models.StreamStatusPaused)
	wt := rec.WorktreePath

	kit.git.mergeInProgress[wt] = true
	kit.git.conflicted[wt] = []string{"api/handler.go"}
	kit.git.revParse["HEAD"] = "ours-sha"
	kit.git.revParse["MERGE_HEAD"] = "theirs-sha"

	resp, err := kit.service.PrepareMerge(context.Background(), primary.PrepareMergeRequest{StreamID: "1500-add-auth"})
	if err != nil {
		t.Fatalf("PrepareMerge failed: %v", err)
	}
	if resp.Outcome != primary.PrepareOutcomeConflicts {
		t.Fatalf("Outcome = %q, want %q", resp.Outcome, primary.PrepareOutcomeConflicts)
	}

	// No second merge was started over the in-progress one
	if kit.git.called("Merge ") {
		t.Error("started a new merge while one was in progress")
	}
	if kit.git.called("Fetch ") {
		t.Error("fetched during conflict resume")
	}
}

func TestPrepareMerge_ResumeResolvedConcludesMerge(t *testing.T) {
	kit := newMergeKit()
	rec := kit.seedStream("1500-add-auth", models.StreamStatusPaused)
	wt := rec.WorktreePath

	// Merge in progress, all conflicts staged
	kit.git.mergeInProgress[wt] = true

	resp, err := kit.service.PrepareMerge(context.Background(), primary.PrepareMergeRequest{StreamID: "1500-add-auth"})
	if err != nil {
		t.Fatalf("PrepareMerge failed: %v", err)
	}

	if resp.Outcome != primary.PrepareOutcomeClean {
		t.Fatalf("Outcome = %q, want %q", resp.Outcome, primary.PrepareOutcomeClean)
	}
	if !kit.git.called("CommitMerge") {
		t.Error("resolved merge was not committed")
	}
	got, _ := kit.store.Get(context.Background(), "1500-add-auth")
	if got.Status != models.StreamStatusReadyForMerge {
		t.Errorf("Status = %q, want %q", got.Status, models.StreamStatusReadyForMerge)
	}
}

func TestPrepareMerge_ValidationFailureStaysLocal(t *testing.T) {
	kit := newMergeKit()
	kit.seedStream("1500-add-auth", models.StreamStatusActive)
	kit.validators.result = &secondary.ValidationResult{
		Passed:   false,
		Failures: []string{"go test ./...: FAIL"},
	}

	resp, err := kit.service.PrepareMerge(context.Background(), primary.PrepareMergeRequest{StreamID: "1500-add-auth"})
	if err != nil {
		t.Fatalf("PrepareMerge failed: %v", err)
	}

	if resp.Outcome != primary.PrepareOutcomeValidationFailed {
		t.Fatalf("Outcome = %q, want %q", resp.Outcome, primary.PrepareOutcomeValidationFailed)
	}
	if len(resp.ValidationErrors) != 1 || !strings.Contains(resp.ValidationErrors[0], "FAIL") {
		t.Errorf("ValidationErrors = %v", resp.ValidationErrors)
	}
	if resp.Pushed {
		t.Error("Pushed = true after validation failure")
	}

	// The merge commit stays local and the stream does not advance
	if len(kit.git.pushedRefs) != 0 {
		t.Errorf("pushed refs = %v, want none", kit.git.pushedRefs)
	}
	got, _ := kit.store.Get(context.Background(), "1500-add-auth")
	if got.Status != models.StreamStatusActive {
		t.Errorf("Status = %q, want unchanged active", got.Status)
	}
}

func TestPrepareMerge_SkipValidators(t *testing.T) {
	kit := newMergeKit()
	kit.seedStream("1500-add-auth", models.StreamStatusActive)
	kit.validators.result = &secondary.ValidationResult{
		Passed:   false,
		Failures: []string{"would fail"},
	}

	resp, err := kit.service.PrepareMerge(context.Background(), primary.PrepareMergeRequest{
		StreamID:       "1500-add-auth",
		SkipValidators: true,
	})
	if err != nil {
		t.Fatalf("PrepareMerge failed: %v", err)
	}

	if resp.Outcome != primary.PrepareOutcomeClean {
		t.Errorf("Outcome = %q, want %q", resp.Outcome, primary.PrepareOutcomeClean)
	}
	if kit.validators.runs != 0 {
		t.Errorf("validators ran %d times, want 0", kit.validators.runs)
	}
}

func TestPrepareMerge_GuardRejectsCompleted(t *testing.T) {
	kit := newMergeKit()
	kit.seedStream("1500-add-auth", models.StreamStatusCompleted)

	_, err := kit.service.PrepareMerge(context.Background(), primary.PrepareMergeRequest{StreamID: "1500-add-auth"})
	if err == nil {
		t.Fatal("expected error preparing a completed stream, got nil")
	}
}

func TestPrepareMerge_MissingWorktree(t *testing.T) {
	kit := newMergeKit()
	rec := kit.seedStream("1500-add-auth", models.StreamStatusActive)
	delete(kit.workspace.worktrees, rec.WorktreePath)

	_, err := kit.service.PrepareMerge(context.Background(), primary.PrepareMergeRequest{StreamID: "1500-add-auth"})
	if err == nil {
		t.Fatal("expected error for missing worktree, got nil")
	}
	if !strings.Contains(err.Error(), rec.WorktreePath) {
		t.Errorf("error should name the missing path: %v", err)
	}
}

// ============================================================================
// CompleteMerge Tests
// ============================================================================

func TestCompleteMerge_Success(t *testing.T) {
	kit := newMergeKit()
	kit.cfg.DeleteRemoteBranch = true
	rec := kit.seedStream("1500-add-auth", models.StreamStatusReadyForMerge)
	kit.git.fetchRefExists[rec.Branch] = true
	kit.git.revParse["HEAD"] = "mainsha123"
	ctx := context.Background()

	resp, err := kit.service.CompleteMerge(ctx, primary.CompleteMergeRequest{StreamID: "1500-add-auth"})
	if err != nil {
		t.Fatalf("CompleteMerge failed: %v", err)
	}

	if resp.Outcome != primary.CompleteOutcomeMerged {
		t.Fatalf("Outcome = %q, want %q", resp.Outcome, primary.CompleteOutcomeMerged)
	}
	if resp.MainCommit != "mainsha123" {
		t.Errorf("MainCommit = %q, want %q", resp.MainCommit, "mainsha123")
	}

	// The whole sequence ran on main
	if !kit.git.called("Checkout main") {
		t.Error("main was not checked out")
	}
	if !kit.git.called("Pull main") {
		t.Error("main was not pulled")
	}
	if !kit.git.called("MergeFFOnly FETCH_HEAD") {
		t.Error("fast-forward merge missing")
	}
	pushedMain := false
	for _, ref := range kit.git.pushedRefs {
		if ref == "main" {
			pushedMain = true
		}
	}
	if !pushedMain {
		t.Errorf("main not pushed, pushed: %v", kit.git.pushedRefs)
	}

	// Remote stream branch cleaned up per config
	if len(kit.git.deletedRemote) != 1 || kit.git.deletedRemote[0] != rec.Branch {
		t.Errorf("deletedRemote = %v, want [%s]", kit.git.deletedRemote, rec.Branch)
	}

	// Stream record carries the landing
	got, _ := kit.store.Get(ctx, "1500-add-auth")
	if got.Status != models.StreamStatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, models.StreamStatusCompleted)
	}
	if got.MergeCommit != "mainsha123" {
		t.Errorf("MergeCommit = %q, want %q", got.MergeCommit, "mainsha123")
	}

	// Lock held once and released exactly once
	if kit.lock.acquires != 1 || kit.lock.releases != 1 {
		t.Errorf("acquires/releases = %d/%d, want 1/1", kit.lock.acquires, kit.lock.releases)
	}
}

func TestCompleteMerge_KeepRemoteBranch(t *testing.T) {
	kit := newMergeKit()
	kit.cfg.DeleteRemoteBranch = true
	rec := kit.seedStream("1500-add-auth", models.StreamStatusReadyForMerge)
	kit.git.fetchRefExists[rec.Branch] = true

	_, err := kit.service.CompleteMerge(context.Background(), primary.CompleteMergeRequest{
		StreamID:         "1500-add-auth",
		KeepRemoteBranch: true,
	})
	if err != nil {
		t.Fatalf("CompleteMerge failed: %v", err)
	}

	if len(kit.git.deletedRemote) != 0 {
		t.Errorf("deletedRemote = %v, want none", kit.git.deletedRemote)
	}
}

func TestCompleteMerge_LockUnavailable(t *testing.T) {
	kit := newMergeKit()
	kit.seedStream("1500-add-auth", models.StreamStatusReadyForMerge)
	kit.lock.acquisition = &secondary.LockAcquisition{
		Acquired: false,
		Holder: &secondary.LockHolder{
			StreamID:   "1499-other-work",
			PID:        777,
			Hostname:   "otherhost",
			Operation:  "complete-merge",
			AcquiredAt: time.Now().Add(-30 * time.Second),
		},
	}

	resp, err := kit.service.CompleteMerge(context.Background(), primary.CompleteMergeRequest{StreamID: "1500-add-auth"})
	if err != nil {
		t.Fatalf("CompleteMerge failed: %v", err)
	}

	if resp.Outcome != primary.CompleteOutcomeLockUnavailable {
		t.Fatalf("Outcome = %q, want %q", resp.Outcome, primary.CompleteOutcomeLockUnavailable)
	}
	if resp.Holder == nil || resp.Holder.StreamID != "1499-other-work" {
		t.Errorf("Holder = %+v", resp.Holder)
	}
	if resp.Holder.PID != 777 {
		t.Errorf("Holder.PID = %d, want 777", resp.Holder.PID)
	}

	// Main was never touched and there is nothing to release
	if kit.git.called("Checkout ") {
		t.Error("checkout ran without the lock")
	}
	if kit.lock.releases != 0 {
		t.Errorf("releases = %d, want 0", kit.lock.releases)
	}
}

func TestCompleteMerge_DirtyMainIsProtocolViolation(t *testing.T) {
	kit := newMergeKit()
	kit.seedStream("1500-add-auth", models.StreamStatusReadyForMerge)
	kit.git.dirty[testRepoPath] = []string{"README.md"}

	_, err := kit.service.CompleteMerge(context.Background(), primary.CompleteMergeRequest{StreamID: "1500-add-auth"})
	if err == nil {
		t.Fatal("expected error for dirty primary checkout, got nil")
	}

	var violation *corestream.ProtocolViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected *ProtocolViolationError, got %T: %v", err, err)
	}

	// The lock is not left behind on the error path
	if kit.lock.releases != 1 {
		t.Errorf("releases = %d, want 1", kit.lock.releases)
	}
}

func TestCompleteMerge_NeverPushedFailsFastForward(t *testing.T) {
	kit := newMergeKit()
	rec := kit.seedStream("1500-add-auth", models.StreamStatusActive)
	kit.git.fetchRefExists[rec.Branch] = false

	resp, err := kit.service.CompleteMerge(context.Background(), primary.CompleteMergeRequest{StreamID: "1500-add-auth"})
	if err != nil {
		t.Fatalf("CompleteMerge failed: %v", err)
	}

	if resp.Outcome != primary.CompleteOutcomeFastForwardFailed {
		t.Fatalf("Outcome = %q, want %q", resp.Outcome, primary.CompleteOutcomeFastForwardFailed)
	}
	if !strings.Contains(resp.Reason, "prepare") {
		t.Errorf("Reason should point at prepare: %q", resp.Reason)
	}
	if kit.lock.releases != 1 {
		t.Errorf("releases = %d, want 1", kit.lock.releases)
	}
}

func TestCompleteMerge_MainAdvancedFailsFastForward(t *testing.T) {
	kit := newMergeKit()
	rec := kit.seedStream("1500-add-auth", models.StreamStatusReadyForMerge)
	kit.git.fetchRefExists[rec.Branch] = true
	kit.git.isAncestor = false
	ctx := context.Background()

	resp, err := kit.service.CompleteMerge(ctx, primary.CompleteMergeRequest{StreamID: "1500-add-auth"})
	if err != nil {
		t.Fatalf("CompleteMerge failed: %v", err)
	}

	if resp.Outcome != primary.CompleteOutcomeFastForwardFailed {
		t.Fatalf("Outcome = %q, want %q", resp.Outcome, primary.CompleteOutcomeFastForwardFailed)
	}
	if !strings.Contains(resp.Reason, "redo prepare") {
		t.Errorf("Reason = %q, want redo prepare hint", resp.Reason)
	}

	// Main is unmutated: no merge, no push
	if kit.git.called("MergeFFOnly") {
		t.Error("fast-forward attempted after ancestry check failed")
	}
	if len(kit.git.pushedRefs) != 0 {
		t.Errorf("pushed refs = %v, want none", kit.git.pushedRefs)
	}

	// Status unchanged; no auto-retry happens
	got, _ := kit.store.Get(ctx, "1500-add-auth")
	if got.Status != models.StreamStatusReadyForMerge {
		t.Errorf("Status = %q, want unchanged ready-for-merge", got.Status)
	}
	if kit.lock.releases != 1 {
		t.Errorf("releases = %d, want 1", kit.lock.releases)
	}
}

func TestCompleteMerge_PullFailureReleasesLock(t *testing.T) {
	kit := newMergeKit()
	kit.seedStream("1500-add-auth", models.StreamStatusReadyForMerge)
	kit.git.pullErr = errors.New("network down")

	_, err := kit.service.CompleteMerge(context.Background(), primary.CompleteMergeRequest{StreamID: "1500-add-auth"})
	if err == nil {
		t.Fatal("expected error from failed pull, got nil")
	}
	if kit.lock.releases != 1 {
		t.Errorf("releases = %d, want 1", kit.lock.releases)
	}
}

func TestCompleteMerge_GuardRejectsPaused(t *testing.T) {
	kit := newMergeKit()
	kit.seedStream("1500-add-auth", models.StreamStatusPaused)

	_, err := kit.service.CompleteMerge(context.Background(), primary.CompleteMergeRequest{StreamID: "1500-add-auth"})
	if err == nil {
		t.Fatal("expected error completing a paused stream, got nil")
	}
	if !strings.Contains(err.Error(), "prepare") {
		t.Errorf("error should direct back to prepare: %v", err)
	}
	if kit.lock.acquires != 0 {
		t.Errorf("acquires = %d, want 0 for guard rejection", kit.lock.acquires)
	}
}

// ============================================================================
// CompleteStream Tests
// ============================================================================

func TestCompleteStream_ArchivesAndCleansUp(t *testing.T) {
	kit := newMergeKit()
	rec := kit.seedStream("1500-add-auth", models.StreamStatusCompleted)
	rec.MergeCommit = "mainsha123"
	ctx := context.Background()

	resp, err := kit.service.CompleteStream(ctx, primary.CompleteStreamRequest{
		StreamID: "1500-add-auth",
		Summary:  "Shipped token-based auth.",
	})
	if err != nil {
		t.Fatalf("CompleteStream failed: %v", err)
	}

	// Archive pair written under the history directory
	if !strings.HasSuffix(resp.ArchivedTo, "1500-add-auth.md") {
		t.Errorf("ArchivedTo = %q", resp.ArchivedTo)
	}
	archive, ok := kit.workspace.files[resp.ArchivedTo]
	if !ok {
		t.Fatal("archive markdown not written")
	}
	if !strings.Contains(string(archive), "Test Stream") {
		t.Error("archive missing stream title")
	}
	if !strings.Contains(string(archive), "mainsha123") {
		t.Error("archive missing merge commit")
	}
	if !strings.Contains(string(archive), "Shipped token-based auth.") {
		t.Error("archive missing summary")
	}
	sidecarPath := strings.TrimSuffix(resp.ArchivedTo, ".md") + ".json"
	if _, ok := kit.workspace.files[sidecarPath]; !ok {
		t.Error("archive sidecar not written")
	}

	// Archive committed and pushed
	foundCommit := false
	for _, msg := range kit.git.committedMsgs {
		if msg == "sluice: archive stream 1500-add-auth" {
			foundCommit = true
		}
	}
	if !foundCommit {
		t.Errorf("archive commit missing, commits: %v", kit.git.committedMsgs)
	}
	pushedMain := false
	for _, ref := range kit.git.pushedRefs {
		if ref == "main" {
			pushedMain = true
		}
	}
	if !pushedMain {
		t.Error("archive commit not pushed to main")
	}

	// Git state cleaned up
	if !resp.WorktreeDeleted {
		t.Error("WorktreeDeleted = false")
	}
	if !resp.BranchDeleted {
		t.Error("BranchDeleted = false")
	}
	if len(kit.git.deletedBranches) != 1 || kit.git.deletedBranches[0] != rec.Branch {
		t.Errorf("deletedBranches = %v", kit.git.deletedBranches)
	}

	// Record left the registry entirely
	if _, ok := kit.store.doc.Streams["1500-add-auth"]; ok {
		t.Error("record still in registry after archive")
	}
	if _, ok := kit.store.doc.ActiveContexts["1500-add-auth"]; ok {
		t.Error("active context still present after archive")
	}
}

func TestCompleteStream_CleanupFailuresAreBestEffort(t *testing.T) {
	kit := newMergeKit()
	kit.seedStream("1500-add-auth", models.StreamStatusCompleted)
	kit.workspace.removeWorktreeErr = errors.New("worktree busy")
	kit.git.deleteBranchErr = errors.New("branch checked out")

	resp, err := kit.service.CompleteStream(context.Background(), primary.CompleteStreamRequest{StreamID: "1500-add-auth"})
	if err != nil {
		t.Fatalf("CompleteStream failed: %v", err)
	}

	if resp.WorktreeDeleted {
		t.Error("WorktreeDeleted = true despite removal failure")
	}
	if resp.BranchDeleted {
		t.Error("BranchDeleted = true despite deletion failure")
	}

	// The archive still happened and the record still left the registry
	if _, ok := kit.store.doc.Streams["1500-add-auth"]; ok {
		t.Error("record still in registry")
	}
}

func TestCompleteStream_CommitFailureKeepsRecord(t *testing.T) {
	kit := newMergeKit()
	kit.seedStream("1500-add-auth", models.StreamStatusCompleted)
	kit.git.commitErr = errors.New("pre-commit hook rejected")

	_, err := kit.service.CompleteStream(context.Background(), primary.CompleteStreamRequest{StreamID: "1500-add-auth"})
	if err == nil {
		t.Fatal("expected error from failed archive commit, got nil")
	}

	// Retryable: the stream is still completed in the registry
	got, gerr := kit.store.Get(context.Background(), "1500-add-auth")
	if gerr != nil {
		t.Fatalf("record gone after failed archive: %v", gerr)
	}
	if got.Status != models.StreamStatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
}

func TestCompleteStream_GuardRejectsUnmerged(t *testing.T) {
	kit := newMergeKit()
	kit.seedStream("1500-add-auth", models.StreamStatusActive)

	_, err := kit.service.CompleteStream(context.Background(), primary.CompleteStreamRequest{StreamID: "1500-add-auth"})
	if err == nil {
		t.Fatal("expected error archiving an unmerged stream, got nil")
	}
}

// ============================================================================
// Lock Inspection Tests
// ============================================================================

func TestMergeLockStatus_MapsHolder(t *testing.T) {
	kit := newMergeKit()
	acquired := time.Now().Add(-90 * time.Second)
	kit.lock.status = &secondary.MergeLockStatus{
		Exists: true,
		Stale:  false,
		Age:    90 * time.Second,
		Holder: &secondary.LockHolder{
			StreamID:   "1500-add-auth",
			PID:        123,
			Hostname:   "box",
			Operation:  "complete-merge",
			AcquiredAt: acquired,
		},
	}

	resp, err := kit.service.MergeLockStatus(context.Background())
	if err != nil {
		t.Fatalf("MergeLockStatus failed: %v", err)
	}

	if !resp.Exists || resp.Stale {
		t.Errorf("Exists/Stale = %v/%v, want true/false", resp.Exists, resp.Stale)
	}
	if resp.AgeMs != 90000 {
		t.Errorf("AgeMs = %d, want 90000", resp.AgeMs)
	}
	if resp.Holder == nil || resp.Holder.StreamID != "1500-add-auth" {
		t.Errorf("Holder = %+v", resp.Holder)
	}
	if resp.Holder.AcquiredAt != acquired.Format(time.RFC3339) {
		t.Errorf("AcquiredAt = %q", resp.Holder.AcquiredAt)
	}
}

func TestReleaseMergeLock_Forces(t *testing.T) {
	kit := newMergeKit()

	if err := kit.service.ReleaseMergeLock(context.Background()); err != nil {
		t.Fatalf("ReleaseMergeLock failed: %v", err)
	}
	if kit.lock.forceReleases != 1 {
		t.Errorf("forceReleases = %d, want 1", kit.lock.forceReleases)
	}
}
