package primary

import "context"

// MergeService defines the primary port for the merge protocol: the
// three-step sequence that lands a stream's work on the shared main
// branch.
type MergeService interface {
	// PrepareMerge brings a stream branch up to date with main inside
	// the stream's own worktree and pushes the result. Conflicts and
	// validation failures are reported in the response, not as errors.
	PrepareMerge(ctx context.Context, req PrepareMergeRequest) (*PrepareMergeResponse, error)

	// CompleteMerge fast-forwards main to the prepared stream branch
	// under the distributed merge lock. Lock contention and
	// fast-forward failure are reported in the response.
	CompleteMerge(ctx context.Context, req CompleteMergeRequest) (*CompleteMergeResponse, error)

	// CompleteStream archives a merged stream and cleans up its
	// worktree and branches.
	CompleteStream(ctx context.Context, req CompleteStreamRequest) (*CompleteStreamResponse, error)

	// MergeLockStatus inspects the distributed merge lock without
	// touching it.
	MergeLockStatus(ctx context.Context) (*MergeLockStatusResponse, error)

	// ReleaseMergeLock force-releases the distributed merge lock.
	// Operator escape hatch for tokens left behind by dead processes.
	ReleaseMergeLock(ctx context.Context) error
}

// Merge preparation outcomes.
const (
	PrepareOutcomeClean            = "clean"
	PrepareOutcomeConflicts        = "conflicts"
	PrepareOutcomeValidationFailed = "validation-failed"
)

// PrepareMergeRequest names the stream to prepare.
type PrepareMergeRequest struct {
	StreamID string

	// SkipValidators bypasses configured validation commands.
	SkipValidators bool
}

// PrepareMergeResponse reports how preparation ended.
type PrepareMergeResponse struct {
	StreamID string
	Outcome  string

	// Conflicts is set when Outcome is "conflicts".
	Conflicts *ConflictPackage

	// ValidationErrors is set when Outcome is "validation-failed".
	// The merge commit stays local and unpushed.
	ValidationErrors []string

	// Pushed reports whether the prepared branch reached the remote.
	Pushed bool
}

// ConflictPackage carries everything an agent needs to resolve a
// conflicted merge without running git archaeology itself.
type ConflictPackage struct {
	StreamID string

	// OursRev and TheirsRev are the two commits being merged: the
	// stream branch head and the upstream main head.
	OursRev   string
	TheirsRev string

	Files []ConflictFile
}

// ConflictFile is one conflicted path with both sides' content and
// recent history.
type ConflictFile struct {
	Path string

	// Empty content means the file does not exist on that side
	OursContent   string
	TheirsContent string

	OursHistory   []CommitSummary
	TheirsHistory []CommitSummary
}

// CommitSummary is one line of history context.
type CommitSummary struct {
	Hash    string
	Author  string
	When    string
	Summary string
}

// Merge completion outcomes.
const (
	CompleteOutcomeMerged            = "merged"
	CompleteOutcomeLockUnavailable   = "lock-unavailable"
	CompleteOutcomeFastForwardFailed = "fast-forward-failed"
)

// CompleteMergeRequest names the stream to land on main.
type CompleteMergeRequest struct {
	StreamID string

	// KeepRemoteBranch overrides the configured remote branch cleanup.
	KeepRemoteBranch bool
}

// CompleteMergeResponse reports how completion ended.
type CompleteMergeResponse struct {
	StreamID string
	Outcome  string

	// MainCommit is the new head of main when Outcome is "merged".
	MainCommit string

	// Holder is set when Outcome is "lock-unavailable".
	Holder *LockHolder

	// Reason explains a fast-forward failure.
	Reason string
}

// CompleteStreamRequest names the merged stream to finalize.
type CompleteStreamRequest struct {
	StreamID string

	// Summary is free-form text recorded in the archive entry.
	Summary string
}

// CompleteStreamResponse reports what finalization accomplished.
type CompleteStreamResponse struct {
	StreamID   string
	ArchivedTo string

	// Cleanup is best-effort; failures are logged, not fatal.
	WorktreeDeleted bool
	BranchDeleted   bool
}

// LockHolder identifies who holds the distributed merge lock.
type LockHolder struct {
	StreamID   string
	PID        int
	Hostname   string
	Operation  string
	AcquiredAt string
}

// MergeLockStatusResponse is a read-only view of the merge lock.
type MergeLockStatusResponse struct {
	Exists bool
	Stale  bool

	// AgeMs is the token age in milliseconds; zero when no lock exists.
	AgeMs int64

	// Holder is nil when no lock exists or the token is unreadable.
	Holder *LockHolder
}
