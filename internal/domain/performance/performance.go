// Package performance aggregates per-employee completion statistics.
package performance

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/okian/matchmaker/internal/domain/model"
)

const hoursPerDay = 24

// Tracker is safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*model.PerformanceRecord
	weights map[model.Priority]float64
}

// New creates an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		records: make(map[string]*model.PerformanceRecord),
		weights: map[model.Priority]float64{
			model.High:   3,
			model.Medium: 2,
			model.Low:    1,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record adds one completed task to the employee's record and returns a copy
// of the updated record. A zero deadline counts as on time.
func (t *Tracker) Record(employeeID string, priority model.Priority, assignedAt, completedAt, deadline time.Time) model.PerformanceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[employeeID]
	if !ok {
		rec = &model.PerformanceRecord{
			EmployeeID:          employeeID,
			CompletedByPriority: make(map[model.Priority]int),
		}
		t.records[employeeID] = rec
	}

	rec.CompletedByPriority[priority]++
	rec.TotalCompleted++
	if !assignedAt.IsZero() {
		rec.TotalCompletionDays += completedAt.Sub(assignedAt).Hours() / hoursPerDay
	}
	rec.AvgCompletionDays = rec.TotalCompletionDays / float64(rec.TotalCompleted)

	if deadline.IsZero() || !completedAt.After(deadline) {
		rec.OnTime++
	} else {
		rec.Late++
	}
	rec.OnTimeRate = float64(rec.OnTime) / float64(rec.OnTime+rec.Late) * 100

	return rec.Clone()
}

// Get returns a copy of the employee's record.
func (t *Tracker) Get(employeeID string) (model.PerformanceRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[employeeID]
	if !ok {
		return model.PerformanceRecord{}, false
	}
	return rec.Clone(), true
}

// All returns copies of every record ordered by employee id.
func (t *Tracker) All() []model.PerformanceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.PerformanceRecord, 0, len(t.records))
	for _, id := range slices.Sorted(maps.Keys(t.records)) {
		out = append(out, t.records[id].Clone())
	}
	return out
}

// Score is the leaderboard value of a record: priority-weighted completions
// scaled by the on-time fraction.
func (t *Tracker) Score(rec model.PerformanceRecord) float64 {
	var weighted float64
	for p, n := range rec.CompletedByPriority {
		w, ok := t.weights[p]
		if !ok {
			w = 1
		}
		weighted += w * float64(n)
	}
	return weighted * rec.OnTimeRate / 100
}
