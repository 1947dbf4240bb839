package handover

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
	mu        sync.Mutex
	handovers map[uuid.UUID]*Handover
	requests  map[uuid.UUID]*HandoverRequest
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		handovers: make(map[uuid.UUID]*Handover),
		requests:  make(map[uuid.UUID]*HandoverRequest),
	}
}

func (m *MemoryRepository) CreateHandover(_ context.Context, h *Handover) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now
	cp := *h
	m.handovers[h.ID] = &cp
	return nil
}

func (m *MemoryRepository) GetHandover(_ context.Context, id uuid.UUID) (*Handover, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handovers[id]
	if !ok {
		return nil, apperr.NotFound("handover")
	}
	cp := *h
	return &cp, nil
}

func (m *MemoryRepository) GetHandoverForUpdate(ctx context.Context, id uuid.UUID) (*Handover, error) {
	return m.GetHandover(ctx, id)
}

func (m *MemoryRepository) UpdateHandover(_ context.Context, h *Handover) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.handovers[h.ID]; !ok {
		return apperr.NotFound("handover")
	}
	h.UpdatedAt = time.Now().UTC()
	cp := *h
	m.handovers[h.ID] = &cp
	return nil
}

func (m *MemoryRepository) ListHandoversByRequest(_ context.Context, requestID uuid.UUID) ([]*Handover, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Handover
	for _, h := range m.handovers {
		if h.CaseNoteRequestID == requestID {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HandedOverAt.After(out[j].HandedOverAt) })
	return out, nil
}

func (m *MemoryRepository) ListOverdueCandidates(_ context.Context, cutoff time.Time, limit int) ([]*Handover, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Handover
	for _, h := range m.handovers {
		if h.Status == StatusPending && h.HandedOverAt.Before(cutoff) && h.EscalationSentAt == nil {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HandedOverAt.Before(out[j].HandedOverAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) CreateHandoverRequest(_ context.Context, hr *HandoverRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hr.ID == uuid.Nil {
		hr.ID = uuid.New()
	}
	now := time.Now().UTC()
	hr.CreatedAt = now
	hr.UpdatedAt = now
	cp := *hr
	m.requests[hr.ID] = &cp
	return nil
}

func (m *MemoryRepository) GetHandoverRequest(_ context.Context, id uuid.UUID) (*HandoverRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hr, ok := m.requests[id]
	if !ok {
		return nil, apperr.NotFound("handover request")
	}
	cp := *hr
	return &cp, nil
}

func (m *MemoryRepository) GetHandoverRequestForUpdate(ctx context.Context, id uuid.UUID) (*HandoverRequest, error) {
	return m.GetHandoverRequest(ctx, id)
}

func (m *MemoryRepository) UpdateHandoverRequest(_ context.Context, hr *HandoverRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[hr.ID]; !ok {
		return apperr.NotFound("handover request")
	}
	hr.UpdatedAt = time.Now().UTC()
	cp := *hr
	m.requests[hr.ID] = &cp
	return nil
}

func (m *MemoryRepository) ListHandoverRequests(_ context.Context, f RequestFilter, limit, offset int) ([]*HandoverRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*HandoverRequest
	for _, hr := range m.requests {
		if f.CaseNoteID != nil && hr.CaseNoteID != *f.CaseNoteID {
			continue
		}
		if f.Status != "" && hr.Status != f.Status {
			continue
		}
		if f.RequestedBy != nil && hr.RequestedBy != *f.RequestedBy {
			continue
		}
		if f.HolderID != nil && hr.CurrentHolderUserID != *f.HolderID {
			continue
		}
		cp := *hr
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].RequestedAt.After(matched[j].RequestedAt) })

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
