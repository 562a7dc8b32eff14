// Package learner derives per-employee skill affinities from task history.
package learner

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/okian/matchmaker/internal/domain/model"
	"github.com/okian/matchmaker/pkg/metrics"
)

// Learner owns the affinity table. Each Learn call replaces it wholesale.
type Learner struct {
	mu      sync.RWMutex
	table   map[string]map[string]model.SkillAffinity
	learned bool
}

// New returns a learner with an empty table.
func New() *Learner {
	return &Learner{table: make(map[string]map[string]model.SkillAffinity)}
}

// Learn rebuilds the affinity table from completed tasks in history. It
// returns false, leaving the previous table in place, when history is empty.
// A history without completed tasks yields an empty table.
func (l *Learner) Learn(ctx context.Context, history []model.Task) bool {
	if len(history) == 0 {
		metrics.RecordLearningPass(false, 0)
		return false
	}

	table := make(map[string]map[string]model.SkillAffinity)
	for i := range history {
		if ctx.Err() != nil {
			metrics.RecordLearningPass(false, 0)
			return false
		}
		t := &history[i]
		if t.Status != model.Completed {
			continue
		}
		hours, timed := 0.0, false
		if d, ok := t.Duration(); ok {
			hours, timed = d.Hours(), true
		}

		skills, ok := table[t.EmployeeID]
		if !ok {
			skills = make(map[string]model.SkillAffinity)
			table[t.EmployeeID] = skills
		}
		for _, s := range t.RequiredSkills {
			a := skills[s]
			a.Count++
			if timed {
				a.CompletionHours = append(a.CompletionHours, hours)
			}
			skills[s] = a
		}
	}

	n := 0
	for _, skills := range table {
		for s, a := range skills {
			if len(a.CompletionHours) > 0 {
				var sum float64
				for _, h := range a.CompletionHours {
					sum += h
				}
				a.AvgCompletionHours = sum / float64(len(a.CompletionHours))
				a.HasAvg = true
			}
			skills[s] = a
			n++
		}
	}

	l.mu.Lock()
	l.table = table
	l.learned = true
	l.mu.Unlock()

	metrics.RecordLearningPass(true, n)
	return true
}

// Learned reports whether at least one pass has succeeded.
func (l *Learner) Learned() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.learned
}

// Affinity returns the learned statistic for one employee and skill.
func (l *Learner) Affinity(employeeID, skill string) (model.SkillAffinity, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.table[employeeID][skill]
	if !ok {
		return model.SkillAffinity{}, false
	}
	a.CompletionHours = slices.Clone(a.CompletionHours)
	return a, true
}

// Snapshot returns a deep copy of the whole table.
func (l *Learner) Snapshot() map[string]map[string]model.SkillAffinity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]map[string]model.SkillAffinity, len(l.table))
	for emp, skills := range l.table {
		cp := maps.Clone(skills)
		for s, a := range cp {
			a.CompletionHours = slices.Clone(a.CompletionHours)
			cp[s] = a
		}
		out[emp] = cp
	}
	return out
}
