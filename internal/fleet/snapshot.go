package fleet

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/GigaElk/schedfleet/internal/domain"
)

// Snapshot is a point-in-time export of every scheduler's health and
// metrics. Observability only: nothing is persisted across restarts, but
// operators can capture and diff fleet state, and tests round-trip it.
type Snapshot struct {
	TakenAt time.Time                 `json:"taken_at"`
	Health  []domain.SchedulerHealth  `json:"health"`
	Metrics []domain.SchedulerMetrics `json:"metrics"`
}

// ExportSnapshot captures the current fleet state.
func (f *Fleet) ExportSnapshot() Snapshot {
	return Snapshot{
		TakenAt: time.Now(),
		Health:  f.reg.AllHealth(),
		Metrics: f.reg.AllMetrics(),
	}
}

// ImportSnapshot overwrites health and metrics for schedulers present in
// the snapshot. Every name is validated before anything is applied, so a
// rejected import leaves the fleet untouched; registration is the only
// way to create a scheduler.
func (f *Fleet) ImportSnapshot(s Snapshot) error {
	for _, h := range s.Health {
		if _, err := f.reg.get(h.Name); err != nil {
			return fmt.Errorf("import health: %w", err)
		}
	}
	for _, m := range s.Metrics {
		if _, err := f.reg.get(m.Name); err != nil {
			return fmt.Errorf("import metrics: %w", err)
		}
	}

	for _, h := range s.Health {
		ent, err := f.reg.get(h.Name)
		if err != nil {
			continue
		}
		ent.mu.Lock()
		ent.health = h
		ent.mu.Unlock()
	}
	for _, m := range s.Metrics {
		ent, err := f.reg.get(m.Name)
		if err != nil {
			continue
		}
		ent.mu.Lock()
		ent.metrics = m
		ent.mu.Unlock()
	}
	return nil
}

// MarshalSnapshot serializes a snapshot for the admin surface.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// UnmarshalSnapshot parses a serialized snapshot.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	return s, nil
}
