package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
)

// floatEqual compares two float64 values with a small tolerance for fixed-point rounding.
func floatEqual(a, b float64) bool {
	const tolerance = 1e-6
	return math.Abs(a-b) < tolerance
}

func newTestStore(t *testing.T) *TreapStore {
	t.Helper()
	s := NewTreapStore(context.Background(), WithSeed(42))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTreapStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	updated, err := store.Set(ctx, "E1", 4.5, 2, 75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated {
		t.Error("expected first set to be applied")
	}
	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	entry, err := store.Rank(ctx, "E1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 1 {
		t.Errorf("expected rank 1, got %d", entry.Rank)
	}
	if !floatEqual(entry.Score, 4.5) {
		t.Errorf("expected score 4.5, got %f", entry.Score)
	}
	if entry.Completed != 2 || entry.OnTimeRate != 75 {
		t.Errorf("metadata not kept: %+v", entry)
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].EmployeeID != "E1" {
		t.Errorf("unexpected top entries: %+v", entries)
	}
}

func TestTreapStore_SetReplacesScore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, _ = store.Set(ctx, "E1", 10, 5, 100)
	_, _ = store.Set(ctx, "E2", 6, 3, 100)

	// a late completion can lower the score
	if _, err := store.Set(ctx, "E1", 3, 6, 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count := store.Count(ctx); count != 2 {
		t.Errorf("expected count 2 after replace, got %d", count)
	}

	top, _ := store.TopN(ctx, 2)
	if top[0].EmployeeID != "E2" || top[1].EmployeeID != "E1" {
		t.Errorf("expected E2 ahead of E1, got %+v", top)
	}
	if !floatEqual(top[1].Score, 3) {
		t.Errorf("expected replaced score 3, got %f", top[1].Score)
	}
}

func TestTreapStore_IgnoresStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, _ = store.Set(ctx, "E1", 8, 4, 100)
	updated, err := store.Set(ctx, "E1", 2, 3, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated {
		t.Error("expected older snapshot to be ignored")
	}

	e, _ := store.Rank(ctx, "E1")
	if !floatEqual(e.Score, 8) || e.Completed != 4 {
		t.Errorf("expected newest snapshot kept, got %+v", e)
	}
}

func TestTreapStore_TiesShareRank(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, _ = store.Set(ctx, "E3", 5, 1, 100)
	_, _ = store.Set(ctx, "E1", 5, 1, 100)
	_, _ = store.Set(ctx, "E2", 2, 1, 100)

	top, err := store.TopN(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs := []string{"E1", "E3", "E2"}
	wantRanks := []int{1, 1, 2}
	for i := range top {
		if top[i].EmployeeID != wantIDs[i] || top[i].Rank != wantRanks[i] {
			t.Errorf("position %d: got %s rank %d, want %s rank %d",
				i, top[i].EmployeeID, top[i].Rank, wantIDs[i], wantRanks[i])
		}
	}

	e, _ := store.Rank(ctx, "E3")
	if e.Rank != 1 {
		t.Errorf("expected tied rank 1 for E3, got %d", e.Rank)
	}
}

func TestTreapStore_Errors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Rank(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := store.Set(ctx, "", 1, 1, 100); !errors.Is(err, ErrInvalidID) {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}
}

func TestTreapStore_OrderAfterManyUpdates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	const n = 200
	for i := 0; i < n; i++ {
		_, _ = store.Set(ctx, fmt.Sprintf("E%03d", i), float64(i%17), i, 100)
	}
	for i := 0; i < n; i += 3 {
		_, _ = store.Set(ctx, fmt.Sprintf("E%03d", i), float64(i%5), i, 50)
	}

	all, _ := store.TopN(ctx, n)
	if len(all) != n {
		t.Fatalf("expected %d entries, got %d", n, len(all))
	}
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if prev.Score < cur.Score || (prev.Score == cur.Score && prev.EmployeeID > cur.EmployeeID) {
			t.Fatalf("order violated at %d: %+v then %+v", i, prev, cur)
		}
	}
}

func TestTreapStore_ConcurrentSet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = store.Set(ctx, fmt.Sprintf("E%d", i), float64(g*i), i, 100)
			}
		}(g)
	}
	wg.Wait()

	if count := store.Count(ctx); count != 50 {
		t.Errorf("expected 50 employees, got %d", count)
	}
}

func BenchmarkTreapStore_Set(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx, WithSeed(1))
	defer store.Close()

	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = fmt.Sprintf("E%d", i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Set(ctx, ids[i%len(ids)], float64(i%97), i, 100)
	}
}
