package request

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/casetrack/casetrack/internal/platform/apperr"
)

// MemoryRepository is an in-memory Repository shared by the domain
// packages' tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	store map[uuid.UUID]*Request
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: make(map[uuid.UUID]*Request)}
}

func (m *MemoryRepository) Create(_ context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *MemoryRepository) get(id uuid.UUID) (*Request, error) {
	r, ok := m.store[id]
	if !ok || r.DeletedAt != nil {
		return nil, apperr.NotFound("request")
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.get(id)
}

func (m *MemoryRepository) GetByNumber(_ context.Context, number string) (*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.store {
		if r.RequestNumber == number && r.DeletedAt == nil {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("request")
}

func (m *MemoryRepository) GetForUpdate(_ context.Context, id uuid.UUID) (*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.get(id)
}

func (m *MemoryRepository) Update(_ context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[r.ID]
	if !ok || cur.DeletedAt != nil {
		return apperr.NotFound("request")
	}
	cp := *r
	// Custody fields move only through UpdateCustody/ClearCustody.
	cp.CurrentPICUserID = cur.CurrentPICUserID
	cp.CurrentHandoverID = cur.CurrentHandoverID
	cp.HandoverStatus = cur.HandoverStatus
	cp.UpdatedAt = time.Now().UTC()
	m.store[r.ID] = &cp
	return nil
}

func (m *MemoryRepository) UpdateCustody(_ context.Context, id uuid.UUID, picUserID string, handoverID *uuid.UUID, handoverStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[id]
	if !ok || cur.DeletedAt != nil {
		return apperr.NotFound("request")
	}
	cur.CurrentPICUserID = picUserID
	cur.CurrentHandoverID = handoverID
	cur.HandoverStatus = handoverStatus
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepository) ClearCustody(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[id]
	if !ok || cur.DeletedAt != nil {
		return apperr.NotFound("request")
	}
	cur.CurrentPICUserID = ""
	cur.CurrentHandoverID = nil
	cur.HandoverStatus = HandoverNone
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepository) SoftDelete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[id]
	if !ok || cur.DeletedAt != nil {
		return apperr.NotFound("request")
	}
	now := time.Now().UTC()
	cur.DeletedAt = &now
	return nil
}

func (m *MemoryRepository) List(_ context.Context, f Filter, limit, offset int) ([]*Request, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Request
	for _, r := range m.store {
		if r.DeletedAt != nil {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.PatientID != nil && r.PatientID != *f.PatientID {
			continue
		}
		if f.DepartmentID != nil && r.DepartmentID != *f.DepartmentID {
			continue
		}
		if f.HolderUserID != "" && r.CurrentPICUserID != f.HolderUserID {
			continue
		}
		cp := *r
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
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

func (m *MemoryRepository) ListByBatch(_ context.Context, batchID uuid.UUID) ([]*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Request
	for _, r := range m.store {
		if r.DeletedAt == nil && r.BatchID != nil && *r.BatchID == batchID {
			cp := *r
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}
