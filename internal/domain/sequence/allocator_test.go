package sequence

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestDateKey(t *testing.T) {
	ts := time.Date(2025, 1, 1, 13, 45, 0, 0, time.UTC)
	if got := DateKey(ts); got != "20250101" {
		t.Errorf("DateKey = %q, want 20250101", got)
	}
}

func TestFormatNumber(t *testing.T) {
	cases := []struct {
		prefix  string
		dateKey string
		seq     int
		want    string
	}{
		{"CN", "20250101", 1, "CN20250101-0001"},
		{"BN", "20250101", 42, "BN20250101-0042"},
		{"FN", "20251231", 9999, "FN20251231-9999"},
		{"CN", "20250101", 10001, "CN20250101-10001"},
	}
	for _, c := range cases {
		if got := FormatNumber(c.prefix, c.dateKey, c.seq); got != c.want {
			t.Errorf("FormatNumber(%q, %q, %d) = %q, want %q", c.prefix, c.dateKey, c.seq, got, c.want)
		}
	}
}

func TestMemoryAllocator_Sequential(t *testing.T) {
	a := NewMemoryAllocator()
	for i := 1; i <= 5; i++ {
		got, err := a.Next(context.Background(), "20250101")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != i {
			t.Errorf("call %d returned %d", i, got)
		}
	}
}

func TestMemoryAllocator_IndependentKeys(t *testing.T) {
	a := NewMemoryAllocator()
	a.Next(context.Background(), "20250101")
	a.Next(context.Background(), "20250101")

	got, err := a.Next(context.Background(), "20250102")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Errorf("new date key should start at 1, got %d", got)
	}
}

// N concurrent calls for one date key must return N distinct values 1..N.
func TestMemoryAllocator_ConcurrentUnique(t *testing.T) {
	a := NewMemoryAllocator()
	const n = 100

	results := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := a.Next(context.Background(), "20250101")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	sort.Ints(results)
	for i, v := range results {
		if v != i+1 {
			t.Fatalf("expected dense sequence 1..%d, got %v at position %d", n, v, i)
		}
	}
}
