package model

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority of a task.
type Priority string

// Priorities.
const (
	Low    Priority = "Low"
	Medium Priority = "Medium"
	High   Priority = "High"
)

// ParsePriority accepts Low, Medium or High (case-insensitive).
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return Low, nil
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	default:
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, s)
	}
}

// Status of a task or of one assignment of it.
type Status string

// Task statuses.
const (
	InProgress Status = "In Progress"
	Completed  Status = "Completed"
	Reassigned Status = "Reassigned"
)

// Assignment is one employee's tenure on a task. A task accumulates one per
// reassignment; only the last may be open.
type Assignment struct {
	ID         uuid.UUID  `json:"id"`
	EmployeeID string     `json:"employee_id"`
	AssignedAt time.Time  `json:"assigned_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Outcome    Status     `json:"outcome"`
}

// Task is a unit of work assigned to exactly one employee at a time.
type Task struct {
	ID             int          `json:"task_id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	RequiredSkills []string     `json:"required_skills"`
	Priority       Priority     `json:"priority"`
	Deadline       time.Time    `json:"deadline"`
	EmployeeID     string       `json:"assigned_employee_id"`
	Status         Status       `json:"status"`
	Progress       int          `json:"progress"`
	AssignedAt     time.Time    `json:"assigned_at"`
	CompletedAt    *time.Time   `json:"completion_time,omitempty"`
	Assignments    []Assignment `json:"assignments"`
}

// Open reports whether the task still holds its assignee.
func (t *Task) Open() bool {
	return t.Status == InProgress
}

// Duration returns completion minus assignment time when both are known.
func (t *Task) Duration() (time.Duration, bool) {
	if t.CompletedAt == nil || t.AssignedAt.IsZero() {
		return 0, false
	}
	return t.CompletedAt.Sub(t.AssignedAt), true
}

// OnTime reports whether a completed task finished no later than its deadline.
// Tasks without a deadline are always on time.
func (t *Task) OnTime() bool {
	if t.CompletedAt == nil {
		return false
	}
	return t.Deadline.IsZero() || !t.CompletedAt.After(t.Deadline)
}

// Clone returns a deep copy.
func (t Task) Clone() Task {
	t.RequiredSkills = slices.Clone(t.RequiredSkills)
	t.Assignments = slices.Clone(t.Assignments)
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		t.CompletedAt = &c
	}
	return t
}

// CompletionEvent is emitted when a task completes; it carries the
// performance snapshot taken right after the completion was recorded.
type CompletionEvent struct {
	TaskID      int
	EmployeeID  string
	Priority    Priority
	OnTime      bool
	Performance PerformanceRecord
	TS          time.Time
}
