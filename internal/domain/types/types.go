// Package types contains read models shared by the service and the HTTP API.
package types

import (
	"github.com/okian/matchmaker/internal/domain/model"
	"github.com/okian/matchmaker/internal/domain/scoring"
)

// Entry represents a leaderboard entry.
type Entry struct {
	Rank       int     `json:"rank"`
	EmployeeID string  `json:"employee_id"`
	Score      float64 `json:"score"`
	Completed  int     `json:"completed"`
	OnTimeRate float64 `json:"on_time_completion_rate"`
}

// MatchResult is the answer to a match request: the proposed employee and
// the full ranking behind it.
type MatchResult struct {
	Found      bool            `json:"found"`
	Best       *scoring.Match  `json:"best,omitempty"`
	Candidates []scoring.Match `json:"candidates"`
	// Learned reports whether learned affinities were available to the scorer.
	Learned bool `json:"learned"`
}

// NewMatchResult builds a result from a ranking whose first element is the best match.
func NewMatchResult(ranked []scoring.Match, learned bool) MatchResult {
	r := MatchResult{Candidates: ranked, Learned: learned}
	if r.Candidates == nil {
		r.Candidates = []scoring.Match{}
	}
	if len(ranked) > 0 {
		best := ranked[0]
		r.Found = true
		r.Best = &best
	}
	return r
}

// TaskResult wraps a task after a transition. Warning is set when the change
// succeeded but could not be written to the dataset.
type TaskResult struct {
	Task    model.Task `json:"task"`
	Warning string     `json:"warning,omitempty"`
}

// NewTaskResult converts a task and an optional persistence warning.
func NewTaskResult(t model.Task, persistErr error) TaskResult {
	r := TaskResult{Task: t}
	if persistErr != nil {
		r.Warning = persistErr.Error()
	}
	return r
}
