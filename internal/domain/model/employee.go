// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"slices"
	"strings"
)

// Availability is the coarse workload tier of an employee. It is not a task counter.
type Availability string

// Availability tiers, least to most busy.
const (
	Free              Availability = "Free"
	PartiallyAssigned Availability = "Partially Assigned"
	FullyAssigned     Availability = "Fully Assigned"
)

// Availabilities lists the tiers in busyness order.
var Availabilities = []Availability{Free, PartiallyAssigned, FullyAssigned}

// ParseAvailability maps a stored value to a tier. Empty input defaults to Free.
func ParseAvailability(s string) (Availability, error) {
	switch a := Availability(strings.TrimSpace(s)); a {
	case "":
		return Free, nil
	case Free, PartiallyAssigned, FullyAssigned:
		return a, nil
	default:
		return "", fmt.Errorf("%w: unknown availability %q", ErrInvalidInput, s)
	}
}

// Busyness orders tiers: Free=0, Partially=1, Fully=2.
func (a Availability) Busyness() int {
	return slices.Index(Availabilities, a)
}

// Experience tiers known to the scorer. Other values are carried through as-is.
const (
	Junior   = "Junior"
	MidLevel = "Mid-Level"
	Senior   = "Senior"
	Expert   = "Expert"
)

// Employee is one roster row.
type Employee struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Role         string       `json:"role"`
	Position     string       `json:"position"`
	Experience   string       `json:"experience"`
	Skills       []string     `json:"skills"`
	Availability Availability `json:"availability"`
	CurrentTasks []string     `json:"current_tasks"`
}

// HasSkill reports whether the employee declares skill (case-sensitive).
func (e *Employee) HasSkill(skill string) bool {
	return slices.Contains(e.Skills, skill)
}

// HasAllSkills reports whether the employee's skills are a superset of required.
func (e *Employee) HasAllSkills(required []string) bool {
	for _, s := range required {
		if !e.HasSkill(s) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers cannot mutate roster state.
func (e Employee) Clone() Employee {
	e.Skills = slices.Clone(e.Skills)
	e.CurrentTasks = slices.Clone(e.CurrentTasks)
	return e
}

// ParseList splits a comma-joined field into trimmed, non-empty, de-duplicated
// tokens, keeping first-seen order.
func ParseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || slices.Contains(out, p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SplitList splits a comma-joined field into trimmed, non-empty tokens.
// Unlike ParseList it keeps duplicates.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeSkills trims and de-duplicates a skill list.
func NormalizeSkills(skills []string) []string {
	return ParseList(strings.Join(skills, ","))
}

// JoinList is the inverse of ParseList used for the tabular format.
func JoinList(items []string) string {
	return strings.Join(items, ", ")
}
