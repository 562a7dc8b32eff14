package simulate

import (
	"fmt"
	"math"
	"slices"
)

const scoreEpsilon = 1e-9

// snapshot is a read of the service state taken at roughly one instant.
type snapshot struct {
	employees   []employee
	tasks       []task
	performance []performanceRecord
	leaderboard []entry
}

// verify returns one message per broken invariant.
func verify(s snapshot) []string {
	var out []string
	out = append(out, verifyAssignments(s)...)
	out = append(out, verifyPerformance(s)...)
	out = append(out, verifyLeaderboard(s)...)
	return out
}

// verifyAssignments checks that every open task's assignee is marked busy and
// lists the task.
func verifyAssignments(s snapshot) []string {
	byID := make(map[string]employee, len(s.employees))
	for _, e := range s.employees {
		byID[e.ID] = e
	}
	var out []string
	for _, t := range s.tasks {
		if t.Status != "In Progress" {
			continue
		}
		e, ok := byID[t.EmployeeID]
		if !ok {
			out = append(out, fmt.Sprintf("task %d assigned to unknown employee %s", t.ID, t.EmployeeID))
			continue
		}
		if e.Availability == "Free" {
			out = append(out, fmt.Sprintf("employee %s is Free with open task %d", e.ID, t.ID))
		}
		if !slices.Contains(e.CurrentTasks, t.Name) {
			out = append(out, fmt.Sprintf("employee %s does not list open task %q", e.ID, t.Name))
		}
	}
	return out
}

// verifyPerformance checks that completions are counted exactly once.
func verifyPerformance(s snapshot) []string {
	completed := 0
	for _, t := range s.tasks {
		if t.Status == "Completed" {
			completed++
		}
	}
	recorded := 0
	for _, p := range s.performance {
		recorded += p.TotalCompleted
	}
	if completed != recorded {
		return []string{fmt.Sprintf("%d completed tasks but %d recorded completions", completed, recorded)}
	}
	return nil
}

// verifyLeaderboard checks ordering, shared ranks for ties and agreement with
// the performance records.
func verifyLeaderboard(s snapshot) []string {
	records := make(map[string]performanceRecord, len(s.performance))
	withCompletions := 0
	for _, p := range s.performance {
		records[p.EmployeeID] = p
		if p.TotalCompleted > 0 {
			withCompletions++
		}
	}

	var out []string
	if want := min(withCompletions, leaderboardLimit); len(s.leaderboard) != want {
		out = append(out, fmt.Sprintf("leaderboard has %d entries, want %d", len(s.leaderboard), want))
	}
	for i, e := range s.leaderboard {
		if i == 0 && e.Rank != 1 {
			out = append(out, fmt.Sprintf("leaderboard starts at rank %d", e.Rank))
		}
		if i > 0 {
			prev := s.leaderboard[i-1]
			switch {
			case e.Score > prev.Score+scoreEpsilon:
				out = append(out, fmt.Sprintf("leaderboard entry %d outscores entry %d", i, i-1))
			case math.Abs(e.Score-prev.Score) <= scoreEpsilon && e.Rank != prev.Rank:
				out = append(out, fmt.Sprintf("tied entries %s and %s have ranks %d and %d", prev.EmployeeID, e.EmployeeID, prev.Rank, e.Rank))
			case e.Score < prev.Score-scoreEpsilon && e.Rank <= prev.Rank:
				out = append(out, fmt.Sprintf("entry %s ranks %d after %s at %d", e.EmployeeID, e.Rank, prev.EmployeeID, prev.Rank))
			}
		}
		p, ok := records[e.EmployeeID]
		if !ok {
			out = append(out, fmt.Sprintf("leaderboard lists %s without a performance record", e.EmployeeID))
			continue
		}
		if p.TotalCompleted != e.Completed || math.Abs(p.OnTimeRate-e.OnTimeRate) > scoreEpsilon {
			out = append(out, fmt.Sprintf("leaderboard entry %s is stale: completed %d/%d", e.EmployeeID, e.Completed, p.TotalCompleted))
		}
	}
	return out
}
