package sequence

import (
	"context"
	"errors"
	"sync"
)

var errAllocatorExhausted = errors.New("sequence allocator exhausted")

// MemoryAllocator is an in-memory Allocator for tests.
type MemoryAllocator struct {
	mu       sync.Mutex
	counters map[string]int
	calls    int
	// Fail forces every Next call to report allocation failure.
	Fail error
	// FailAfter, when positive, makes Next succeed that many times and
	// fail from then on.
	FailAfter int
}

func NewMemoryAllocator() *MemoryAllocator {
	return &MemoryAllocator{counters: make(map[string]int)}
}

func (a *MemoryAllocator) Next(_ context.Context, dateKey string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.Fail != nil {
		return 0, a.Fail
	}
	if a.FailAfter > 0 && a.calls > a.FailAfter {
		return 0, errAllocatorExhausted
	}
	a.counters[dateKey]++
	return a.counters[dateKey], nil
}
