package refdata

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/casetrack/casetrack/internal/platform/apperr"
)

// MemoryChecker is an in-memory Checker for tests and development seeding.
type MemoryChecker struct {
	mu          sync.RWMutex
	departments map[uuid.UUID]bool
	locations   map[uuid.UUID]bool
	doctors     map[uuid.UUID]bool
}

func NewMemoryChecker() *MemoryChecker {
	return &MemoryChecker{
		departments: make(map[uuid.UUID]bool),
		locations:   make(map[uuid.UUID]bool),
		doctors:     make(map[uuid.UUID]bool),
	}
}

// AddDepartment registers a department; active controls the is_active flag.
func (m *MemoryChecker) AddDepartment(id uuid.UUID, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.departments[id] = active
}

func (m *MemoryChecker) AddLocation(id uuid.UUID, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[id] = active
}

func (m *MemoryChecker) AddDoctor(id uuid.UUID, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[id] = active
}

func (m *MemoryChecker) check(set map[uuid.UUID]bool, kind string, id uuid.UUID) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	active, ok := set[id]
	if !ok || !active {
		return apperr.ReferenceNotFound(kind, id.String())
	}
	return nil
}

func (m *MemoryChecker) DepartmentActive(_ context.Context, id uuid.UUID) error {
	return m.check(m.departments, "department", id)
}

func (m *MemoryChecker) LocationActive(_ context.Context, id uuid.UUID) error {
	return m.check(m.locations, "location", id)
}

func (m *MemoryChecker) DoctorActive(_ context.Context, id uuid.UUID) error {
	return m.check(m.doctors, "doctor", id)
}
