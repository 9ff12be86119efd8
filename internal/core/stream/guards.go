// Package stream contains pure business logic for stream lifecycle
// decisions. No side effects - all I/O happens in the app layer.
package stream

import (
	"errors"
	"fmt"

	"github.com/example/sluice/internal/models"
)

// GuardResult represents the outcome of a guard check
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error returns an error if the guard check failed, nil otherwise
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return errors.New(r.Reason)
}

// CanPrepare checks if a stream may run merge preparation.
// Rules:
// - Active streams can prepare
// - Paused streams can re-prepare after resolving conflicts
// - Ready-for-merge streams can re-prepare when upstream moved
// - Everything else is rejected
func CanPrepare(streamID string, status models.StreamStatus) GuardResult {
	switch status {
	case models.StreamStatusActive, models.StreamStatusPaused, models.StreamStatusReadyForMerge:
		return GuardResult{Allowed: true}
	case models.StreamStatusInitializing:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("stream %s is still initializing - wait for its worktree to materialize", streamID),
		}
	case models.StreamStatusBlocked:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("stream %s is blocked - unblock it before preparing a merge", streamID),
		}
	case models.StreamStatusCompleted, models.StreamStatusArchived:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("stream %s is %s - nothing left to prepare", streamID, status),
		}
	}
	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("stream %s has unknown status %q", streamID, status),
	}
}

// CanCompleteMerge checks if a stream may attempt merge completion.
// Completion itself re-verifies fast-forwardability against main, so
// the guard only rejects states where completion is meaningless.
// Rules:
// - Ready-for-merge streams complete normally
// - Active and blocked streams may attempt (the fast-forward check decides)
// - Paused streams must resolve conflicts and re-prepare first
// - Initializing, completed and archived streams are rejected
func CanCompleteMerge(streamID string, status models.StreamStatus) GuardResult {
	switch status {
	case models.StreamStatusReadyForMerge, models.StreamStatusActive, models.StreamStatusBlocked:
		return GuardResult{Allowed: true}
	case models.StreamStatusPaused:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("stream %s has an unresolved merge - resolve conflicts and re-run prepare", streamID),
		}
	case models.StreamStatusInitializing:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("stream %s is still initializing", streamID),
		}
	case models.StreamStatusCompleted:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("stream %s is already merged", streamID),
		}
	case models.StreamStatusArchived:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("stream %s is archived", streamID),
		}
	}
	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("stream %s has unknown status %q", streamID, status),
	}
}

// CanCompleteStream checks if a stream may be archived and cleaned up.
// Rules:
// - Only completed streams can be finalized
func CanCompleteStream(streamID string, status models.StreamStatus) GuardResult {
	if status == models.StreamStatusCompleted {
		return GuardResult{Allowed: true}
	}
	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("stream %s is %s, not completed - run merge completion first", streamID, status),
	}
}

// CanRemove checks if a stream record may be dropped from the registry.
// Rules:
// - Completed and archived streams can always be removed
// - Streams with work in flight require force
func CanRemove(streamID string, status models.StreamStatus, force bool) GuardResult {
	switch status {
	case models.StreamStatusCompleted, models.StreamStatusArchived:
		return GuardResult{Allowed: true}
	}
	if force {
		return GuardResult{Allowed: true}
	}
	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("stream %s is %s. Use --force to remove anyway", streamID, status),
	}
}

// CanAllocateSub checks if a stream may grant a sub-stream.
// Sub-streams hang off main streams only - nesting is not allowed.
// Rules:
// - Parent must exist in the registry
// - Parent must itself be a main stream
// - Archived parents grant nothing
func CanAllocateSub(parentID string, parentExists, parentIsMain bool, parentStatus models.StreamStatus) GuardResult {
	if !parentExists {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("parent stream %s not found", parentID),
		}
	}
	if !parentIsMain {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("parent %s is itself a sub-stream - sub-streams cannot nest", parentID),
		}
	}
	if parentStatus == models.StreamStatusArchived {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("parent stream %s is archived", parentID),
		}
	}
	return GuardResult{Allowed: true}
}
