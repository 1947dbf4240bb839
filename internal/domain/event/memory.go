package event

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used in tests across the
// domain packages.
type MemoryRepository struct {
	mu     sync.RWMutex
	events []*Event
	// Fail forces the next Append to return this error.
	Fail error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Append(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *MemoryRepository) ListByRequest(_ context.Context, requestID uuid.UUID, limit, offset int) ([]*Event, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Event
	for _, e := range m.events {
		if e.RequestID == requestID {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.Before(matched[j].OccurredAt)
	})

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// All returns every stored event in append order.
func (m *MemoryRepository) All() []*Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Event, len(m.events))
	copy(out, m.events)
	return out
}
