package models

import "time"

// RegistryDocument is the root object persisted to the stream registry
// file. It is the single source of truth for stream metadata and for
// the per-epoch allocation counters.
type RegistryDocument struct {
	// VersionEpoch is the epoch the registry is currently allocating in,
	// derived from the project's major version.
	VersionEpoch string `json:"versionEpoch"`

	// EpochCounters maps epoch -> next unallocated counter (0-99).
	// Counters never decrease, so stream numbers are never reused
	// within an epoch.
	EpochCounters map[string]int `json:"epochCounters"`

	// Streams maps streamId -> record.
	Streams map[string]*StreamRecord `json:"streams"`

	// ActiveContexts maps streamId -> last known working location.
	ActiveContexts map[string]*ActiveContext `json:"activeContexts"`

	LastSyncedAt time.Time `json:"lastSyncedAt"`
}

// NewRegistryDocument returns an empty document ready to allocate in
// the given epoch.
func NewRegistryDocument(epoch string) *RegistryDocument {
	return &RegistryDocument{
		VersionEpoch:   epoch,
		EpochCounters:  map[string]int{epoch: 0},
		Streams:        make(map[string]*StreamRecord),
		ActiveContexts: make(map[string]*ActiveContext),
	}
}

// EnsureMaps initializes any nil maps so callers can index without
// checking. Documents decoded from older files may omit sections.
func (d *RegistryDocument) EnsureMaps() {
	if d.EpochCounters == nil {
		d.EpochCounters = make(map[string]int)
	}
	if d.Streams == nil {
		d.Streams = make(map[string]*StreamRecord)
	}
	if d.ActiveContexts == nil {
		d.ActiveContexts = make(map[string]*ActiveContext)
	}
}
