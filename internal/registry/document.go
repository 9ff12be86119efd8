package registry

import (
	"encoding/json"
	"fmt"

	"github.com/example/sluice/internal/models"
)

// legacyDocument is the pre-epoch registry schema: a single global
// counter instead of per-epoch counters.
type legacyDocument struct {
	StreamCounter  int                              `json:"streamCounter"`
	Streams        map[string]*models.StreamRecord  `json:"streams"`
	ActiveContexts map[string]*models.ActiveContext `json:"activeContexts"`
}

// schemaProbe distinguishes registry schema generations by which
// counter field is present. Schemas are versioned by shape, not
// guessed field by field.
type schemaProbe struct {
	EpochCounters json.RawMessage `json:"epochCounters"`
	StreamCounter json.RawMessage `json:"streamCounter"`
}

func rawPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// decodeDocument parses registry bytes, migrating legacy documents to
// the epoch schema. Migration preserves every stream record unchanged
// and seeds the current epoch's counter at zero; existing streams are
// never renumbered.
func decodeDocument(data []byte, epoch string) (doc *models.RegistryDocument, migrated bool, err error) {
	var probe schemaProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, false, fmt.Errorf("failed to parse registry: %w", err)
	}

	if !rawPresent(probe.EpochCounters) && rawPresent(probe.StreamCounter) {
		var legacy legacyDocument
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, false, fmt.Errorf("failed to parse legacy registry: %w", err)
		}
		doc := models.NewRegistryDocument(epoch)
		if legacy.Streams != nil {
			doc.Streams = legacy.Streams
		}
		if legacy.ActiveContexts != nil {
			doc.ActiveContexts = legacy.ActiveContexts
		}
		return doc, true, nil
	}

	doc = &models.RegistryDocument{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, false, fmt.Errorf("failed to parse registry: %w", err)
	}
	doc.EnsureMaps()
	return doc, false, nil
}
