// Package repository holds the employee leaderboard store.
package repository

import "context"

// Entry represents a leaderboard row.
type Entry struct {
	Rank       int
	EmployeeID string
	Score      float64
	Completed  int
	OnTimeRate float64
}

// Store provides read/write access to the leaderboard.
type Store interface {
	// Set replaces the employee's score and metadata. Scores may go down.
	// Snapshots older than the stored one (fewer completions) are ignored and
	// reported as false, so out-of-order delivery cannot roll the board back.
	Set(ctx context.Context, employeeID string, score float64, completed int, onTimeRate float64) (bool, error)

	// Rank returns the current rank and score for an employee.
	// Returns ErrNotFound if the employee has no completions yet.
	Rank(ctx context.Context, employeeID string) (Entry, error)

	// TopN returns the top-N entries ordered by score desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of employees on the board.
	Count(ctx context.Context) int
}
