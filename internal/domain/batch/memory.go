package batch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/casetrack/casetrack/internal/platform/apperr"
)

// MemoryRepository is the in-memory Repository used by tests.
type MemoryRepository struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*Batch
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{batches: make(map[uuid.UUID]*Batch)}
}

func (m *MemoryRepository) Create(_ context.Context, b *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	cp := *b
	m.batches[b.ID] = &cp
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, apperr.NotFound("batch")
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Batch, error) {
	return m.GetByID(ctx, id)
}

func (m *MemoryRepository) Update(_ context.Context, b *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[b.ID]; !ok {
		return apperr.NotFound("batch")
	}
	b.UpdatedAt = time.Now().UTC()
	cp := *b
	m.batches[b.ID] = &cp
	return nil
}

func (m *MemoryRepository) List(_ context.Context, f Filter, limit, offset int) ([]*Batch, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*Batch
	for _, b := range m.batches {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.RequestedBy != nil && b.RequestedBy != *f.RequestedBy {
			continue
		}
		cp := *b
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}
