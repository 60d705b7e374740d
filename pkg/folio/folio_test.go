package folio

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates the atomic counter: every call bumps the value for
// its (prefix, year) key, like the UPSERT ... RETURNING does.
type mockQuerier struct {
	mu   sync.Mutex
	vals map[string]int64
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{vals: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%v_%v", args[0], args[1])
	m.vals[key]++
	return &mockRow{val: m.vals[key]}
}

func TestNext_SequentialPerPrefixAndYear(t *testing.T) {
	q := newMockQuerier()
	a := NewStatic(q)
	ctx := context.Background()
	period := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	got, err := a.Next(ctx, "E", period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "E-2024-0001" {
		t.Errorf("first folio = %q, want E-2024-0001", got)
	}

	got, err = a.Next(ctx, "E", period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "E-2024-0002" {
		t.Errorf("second folio = %q, want E-2024-0002", got)
	}

	// A different prefix has its own sequence.
	got, err = a.Next(ctx, "S", period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "S-2024-0001" {
		t.Errorf("exit folio = %q, want S-2024-0001", got)
	}

	// A different year restarts the sequence.
	got, err = a.Next(ctx, "E", period.AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "E-2025-0001" {
		t.Errorf("next-year folio = %q, want E-2025-0001", got)
	}
}

func TestNext_ConcurrentAllocationsDistinct(t *testing.T) {
	q := newMockQuerier()
	a := NewStatic(q)
	period := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	const n = 50
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := a.Next(context.Background(), "C", period)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results <- f
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool, n)
	for f := range results {
		if seen[f] {
			t.Fatalf("duplicate folio allocated: %s", f)
		}
		seen[f] = true
	}
	if len(seen) != n {
		t.Fatalf("allocated %d distinct folios, want %d", len(seen), n)
	}
}

func TestNext_EmptyPrefix(t *testing.T) {
	a := NewStatic(newMockQuerier())
	if _, err := a.Next(context.Background(), "", time.Now()); err == nil {
		t.Fatal("expected error for empty prefix")
	}
}

func TestFormat(t *testing.T) {
	if got := Format("S", 2024, 7); got != "S-2024-0007" {
		t.Errorf("Format = %q, want S-2024-0007", got)
	}
	if got := Format("C", 2025, 12345); got != "C-2025-12345" {
		t.Errorf("Format = %q, want C-2025-12345", got)
	}
}

func TestSequence(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"S-2024-0007", 7},
		{"C-2025-12345", 12345},
		{"garbage", -1},
		{"S-2024-", -1},
		{"S-2024-xyz", -1},
		{"", -1},
	}
	for _, tc := range cases {
		if got := Sequence(tc.in); got != tc.want {
			t.Errorf("Sequence(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSequenceRoundTripsFormat(t *testing.T) {
	if got := Sequence(Format("E", 2026, 42)); got != 42 {
		t.Errorf("Sequence(Format(...)) = %d, want 42", got)
	}
}
