// File: internal/pattern/snapshot.go
// Description: Snapshot persistence for the pattern store. The export is a
// single JSON document with patterns in stable id order.
package pattern

import (
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remend/api/schemas"
)

var snapshotJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ExportSnapshot serializes the store's full learned state. Patterns are
// emitted sorted by id so repeated exports of the same state are
// byte-identical.
func (s *Store) ExportSnapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := schemas.Snapshot{
		Patterns: make([]schemas.SnapshotEntry, 0, len(s.patterns)),
		Config:   s.cfg,
		Metrics:  s.metrics,
	}
	for id, ep := range s.patterns {
		snap.Patterns = append(snap.Patterns, schemas.SnapshotEntry{ID: id, Pattern: *ep})
	}
	sort.Slice(snap.Patterns, func(i, j int) bool {
		return snap.Patterns[i].ID < snap.Patterns[j].ID
	})

	if len(s.recent) > 0 {
		snap.RecentOutcomes = append([]schemas.CorrectionOutcome(nil), s.recent...)
		if len(snap.RecentOutcomes) > recentOutcomeCap {
			snap.RecentOutcomes = snap.RecentOutcomes[len(snap.RecentOutcomes)-recentOutcomeCap:]
		}
	}

	data, err := snapshotJSON.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("marshaling pattern snapshot: %w", err)
	}
	return data, nil
}

// ImportSnapshot replaces the store's state with a previously exported
// snapshot. The embedded config wins over the constructor's so an imported
// store behaves like the one that exported it.
func (s *Store) ImportSnapshot(data []byte) error {
	var snap schemas.Snapshot
	if err := snapshotJSON.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshaling pattern snapshot: %w", err)
	}

	patterns := make(map[string]*schemas.ErrorPattern, len(snap.Patterns))
	for _, entry := range snap.Patterns {
		if entry.ID == "" {
			return fmt.Errorf("snapshot entry with empty pattern id")
		}
		ep := entry.Pattern
		if ep.ID == "" {
			ep.ID = entry.ID
		}
		if ep.ID != entry.ID {
			return fmt.Errorf("snapshot entry id %q does not match pattern id %q", entry.ID, ep.ID)
		}
		patterns[entry.ID] = &ep
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = patterns
	s.cfg = snap.Config
	s.metrics = snap.Metrics
	s.recent = append([]schemas.CorrectionOutcome(nil), snap.RecentOutcomes...)

	s.logger.Info("Imported pattern snapshot",
		zap.Int("patterns", len(s.patterns)),
		zap.Int("total_corrections", s.metrics.TotalCorrections))
	return nil
}
