package models

import "time"

// StreamStatus represents the lifecycle state of a stream
type StreamStatus string

const (
	StreamStatusInitializing  StreamStatus = "initializing"
	StreamStatusActive        StreamStatus = "active"
	StreamStatusBlocked       StreamStatus = "blocked"
	StreamStatusReadyForMerge StreamStatus = "ready-for-merge"
	StreamStatusCompleted     StreamStatus = "completed"
	StreamStatusPaused        StreamStatus = "paused"
	StreamStatusArchived      StreamStatus = "archived"
)

// Valid reports whether s is one of the known stream statuses.
func (s StreamStatus) Valid() bool {
	switch s {
	case StreamStatusInitializing, StreamStatusActive, StreamStatusBlocked,
		StreamStatusReadyForMerge, StreamStatusCompleted, StreamStatusPaused,
		StreamStatusArchived:
		return true
	}
	return false
}

// StreamCategory classifies the kind of work a stream carries
type StreamCategory string

const (
	CategoryBackend        StreamCategory = "backend"
	CategoryFrontend       StreamCategory = "frontend"
	CategoryInfrastructure StreamCategory = "infrastructure"
	CategoryTesting        StreamCategory = "testing"
	CategoryDocumentation  StreamCategory = "documentation"
	CategoryRefactoring    StreamCategory = "refactoring"
)

// Valid reports whether c is one of the known stream categories.
func (c StreamCategory) Valid() bool {
	switch c {
	case CategoryBackend, CategoryFrontend, CategoryInfrastructure,
		CategoryTesting, CategoryDocumentation, CategoryRefactoring:
		return true
	}
	return false
}

// StreamPriority ranks how urgently a stream should land
type StreamPriority string

const (
	PriorityCritical StreamPriority = "critical"
	PriorityHigh     StreamPriority = "high"
	PriorityMedium   StreamPriority = "medium"
	PriorityLow      StreamPriority = "low"
)

// Valid reports whether p is one of the known stream priorities.
func (p StreamPriority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// StreamRecord is the registry entry for a single stream: an isolated
// unit of work with its own git branch and worktree.
type StreamRecord struct {
	StreamID     string         `json:"streamId"`
	Title        string         `json:"title"`
	Category     StreamCategory `json:"category"`
	Priority     StreamPriority `json:"priority"`
	Status       StreamStatus   `json:"status"`
	WorktreePath string         `json:"worktreePath"`
	Branch       string         `json:"branch"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`

	// ParentStreamID is set only on sub-streams
	ParentStreamID string `json:"parentStreamId,omitempty"`

	// IssuedSubStreams records every sub-stream letter this stream has
	// ever granted, including ones whose streams are long gone. Letters
	// are never reissued.
	IssuedSubStreams []string `json:"issuedSubStreams,omitempty"`

	// MergeCommit is the commit on the shared main branch that landed
	// this stream's work. Set when the merge completes.
	MergeCommit string `json:"mergeCommit,omitempty"`
}

// ActiveContext is an advisory note of where a stream was last worked
// on. It helps a caller recover its working location and is never used
// for correctness decisions.
type ActiveContext struct {
	WorktreePath   string    `json:"worktreePath"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
}
