// Package registry implements stream registry persistence: a single
// JSON document replaced atomically on every save, with mutations
// serialized behind the filesystem mutex. Reads never take the lock.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/example/sluice/internal/config"
	"github.com/example/sluice/internal/core/lock"
	"github.com/example/sluice/internal/core/stream"
	"github.com/example/sluice/internal/core/streamid"
	"github.com/example/sluice/internal/lockdir"
	"github.com/example/sluice/internal/models"
	"github.com/example/sluice/internal/ports/secondary"
)

const registryFileName = "streams.json"

// Store persists the stream registry under <root>/.sluice/streams.json.
type Store struct {
	path  string
	cfg   *config.Config
	mutex *lockdir.Mutex
	log   *slog.Logger
}

// NewStore creates a registry store rooted at the given repository.
func NewStore(root string, cfg *config.Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	path := filepath.Join(root, config.DirName, registryFileName)
	policy := lock.Policy{
		StaleAfter:    cfg.StaleAfter(),
		MaxAttempts:   cfg.MaxRetries(),
		RetryInterval: cfg.RetryInterval(),
	}
	return &Store{
		path:  path,
		cfg:   cfg,
		mutex: lockdir.New(path, policy, logger),
		log:   logger,
	}
}

// Path returns the registry file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the registry. A missing file yields a fresh document.
// An unparseable file is quarantined under a timestamped name and
// replaced with a fresh document, so one bad write never wedges every
// stream operation.
func (s *Store) Load(ctx context.Context) (*models.RegistryDocument, error) {
	epoch := s.cfg.Epoch()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewRegistryDocument(epoch), nil
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	doc, migrated, err := decodeDocument(data, epoch)
	if err != nil {
		quarantine := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().UTC().Format("20060102T150405"))
		if renameErr := os.Rename(s.path, quarantine); renameErr != nil {
			return nil, fmt.Errorf("failed to quarantine corrupt registry: %w", renameErr)
		}
		s.log.Error("stream registry is corrupt and has been quarantined",
			"registry", s.path,
			"quarantine", quarantine,
			"error", err)
		return models.NewRegistryDocument(epoch), nil
	}

	if migrated {
		s.log.Info("migrated legacy registry to epoch schema",
			"registry", s.path,
			"epoch", epoch,
			"streams", len(doc.Streams))
	}

	// Track the configured epoch; counters for old epochs stay behind
	// so their numbers are never reissued.
	doc.VersionEpoch = epoch
	return doc, nil
}

// Save atomically replaces the registry: full serialization to a
// uniquely named temp file in the same directory, then a rename over
// the canonical path. Readers see the old document or the new one,
// never a partial write.
func (s *Store) Save(ctx context.Context, doc *models.RegistryDocument) error {
	doc.LastSyncedAt = time.Now().UTC()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tmp := fmt.Sprintf("%s.tmp-%s", s.path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace registry: %w", err)
	}
	return nil
}

// WithLock serializes a registry mutation: acquire the mutex, load
// fresh state, run fn, and persist if fn succeeds.
func (s *Store) WithLock(ctx context.Context, operation string, fn func(doc *models.RegistryDocument) error) error {
	return s.mutex.WithLock(ctx, operation, func() error {
		doc, err := s.Load(ctx)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		return s.Save(ctx, doc)
	})
}

// Allocate reserves the next stream id. The counter read, the id
// derivation, and the counter persistence happen under one mutex hold,
// so concurrent allocators can never mint the same id.
func (s *Store) Allocate(ctx context.Context, req secondary.AllocationRequest) (*secondary.StreamAllocation, error) {
	var alloc *secondary.StreamAllocation
	err := s.WithLock(ctx, "allocate-stream", func(doc *models.RegistryDocument) error {
		slug := streamid.Slugify(req.Title)

		if req.ParentStreamID == "" {
			epoch := doc.VersionEpoch
			counter, err := streamid.NextCounter(epoch, doc.EpochCounters[epoch])
			if err != nil {
				return err
			}
			number := streamid.FormatNumber(epoch, counter)
			doc.EpochCounters[epoch] = counter + 1
			alloc = &secondary.StreamAllocation{
				StreamID: number + "-" + slug,
				Number:   number,
				Slug:     slug,
			}
			return nil
		}

		parent := doc.Streams[req.ParentStreamID]
		var parts *streamid.Parts
		isMain := false
		if parent != nil {
			var err error
			parts, err = streamid.Parse(req.ParentStreamID)
			if err != nil {
				return fmt.Errorf("parent stream %s predates epoch ids - allocate a new main stream instead", req.ParentStreamID)
			}
			isMain = parts.IsMain()
		}
		var parentStatus models.StreamStatus
		if parent != nil {
			parentStatus = parent.Status
		}
		if result := stream.CanAllocateSub(req.ParentStreamID, parent != nil, isMain, parentStatus); !result.Allowed {
			return result.Error()
		}

		suffix, err := streamid.NextSuffix(req.ParentStreamID, issuedSuffixes(doc, parent, parts))
		if err != nil {
			return err
		}
		number := parts.Number() + suffix
		parent.IssuedSubStreams = append(parent.IssuedSubStreams, suffix)
		parent.UpdatedAt = time.Now().UTC()
		alloc = &secondary.StreamAllocation{
			StreamID: number + "-" + slug,
			Number:   number,
			Slug:     slug,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alloc, nil
}

// issuedSuffixes unions the parent's grant history with letters
// observed on live records, so letters stay burned even if the grant
// list was lost to a legacy migration.
func issuedSuffixes(doc *models.RegistryDocument, parent *models.StreamRecord, parts *streamid.Parts) []string {
	used := append([]string(nil), parent.IssuedSubStreams...)
	for id := range doc.Streams {
		p, err := streamid.Parse(id)
		if err != nil || p.Suffix == "" {
			continue
		}
		if p.Epoch == parts.Epoch && p.Counter == parts.Counter {
			used = append(used, p.Suffix)
		}
	}
	return used
}

// Register adds a new stream record under the mutex.
func (s *Store) Register(ctx context.Context, rec *models.StreamRecord) error {
	if rec.StreamID == "" {
		return fmt.Errorf("stream record has no id")
	}
	return s.WithLock(ctx, "register-stream", func(doc *models.RegistryDocument) error {
		if _, exists := doc.Streams[rec.StreamID]; exists {
			return fmt.Errorf("stream %s is already registered", rec.StreamID)
		}
		now := time.Now().UTC()
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		doc.Streams[rec.StreamID] = rec
		return nil
	})
}

// Update applies a partial update under the mutex and returns the
// updated record.
func (s *Store) Update(ctx context.Context, streamID string, patch secondary.StreamPatch) (*models.StreamRecord, error) {
	var updated *models.StreamRecord
	err := s.WithLock(ctx, "update-stream", func(doc *models.RegistryDocument) error {
		rec, exists := doc.Streams[streamID]
		if !exists {
			return fmt.Errorf("stream %s not found", streamID)
		}
		if patch.Title != "" {
			rec.Title = patch.Title
		}
		if patch.Category != "" {
			rec.Category = patch.Category
		}
		if patch.Priority != "" {
			rec.Priority = patch.Priority
		}
		if patch.Status != "" {
			rec.Status = patch.Status
		}
		if patch.MergeCommit != "" {
			rec.MergeCommit = patch.MergeCommit
		}
		rec.UpdatedAt = time.Now().UTC()
		copied := *rec
		updated = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Remove drops a record and its active context under the mutex.
func (s *Store) Remove(ctx context.Context, streamID string) error {
	return s.WithLock(ctx, "remove-stream", func(doc *models.RegistryDocument) error {
		if _, exists := doc.Streams[streamID]; !exists {
			return fmt.Errorf("stream %s not found", streamID)
		}
		delete(doc.Streams, streamID)
		delete(doc.ActiveContexts, streamID)
		return nil
	})
}

// Touch records where a stream is being worked on.
func (s *Store) Touch(ctx context.Context, streamID, worktreePath string) error {
	return s.WithLock(ctx, "touch-stream", func(doc *models.RegistryDocument) error {
		if _, exists := doc.Streams[streamID]; !exists {
			return fmt.Errorf("stream %s not found", streamID)
		}
		doc.ActiveContexts[streamID] = &models.ActiveContext{
			WorktreePath:   worktreePath,
			LastAccessedAt: time.Now().UTC(),
		}
		return nil
	})
}

// Get retrieves one record. Lock-free: reads see the last completed
// save.
func (s *Store) Get(ctx context.Context, streamID string) (*models.StreamRecord, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	rec, exists := doc.Streams[streamID]
	if !exists {
		return nil, fmt.Errorf("stream %s not found", streamID)
	}
	return rec, nil
}

// List retrieves records matching the filter, ordered by id.
func (s *Store) List(ctx context.Context, filter secondary.StreamFilter) ([]*models.StreamRecord, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*models.StreamRecord, 0, len(doc.Streams))
	for _, rec := range doc.Streams {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.Category != "" && rec.Category != filter.Category {
			continue
		}
		if filter.ParentStreamID != "" && rec.ParentStreamID != filter.ParentStreamID {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StreamID < records[j].StreamID
	})
	return records, nil
}

// Ensure Store implements the port
var _ secondary.StreamStore = (*Store)(nil)
