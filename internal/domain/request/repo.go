package request

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows List results.
type Filter struct {
	Status       string
	PatientID    *uuid.UUID
	DepartmentID *uuid.UUID
	HolderUserID string
}

// Repository persists Request aggregates. Soft-deleted rows are excluded
// from every read.
//
// Custody is deliberately split out: Update never touches
// current_pic_user_id / current_handover_id / handover_status. Those move
// only through UpdateCustody (called by the handover protocols' terminal
// steps) and ClearCustody (return verification close-out).
type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	GetByNumber(ctx context.Context, number string) (*Request, error)
	// GetForUpdate loads the row under a row-level lock so concurrent
	// transitions serialize.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Request, error)
	Update(ctx context.Context, r *Request) error
	UpdateCustody(ctx context.Context, id uuid.UUID, picUserID string, handoverID *uuid.UUID, handoverStatus string) error
	ClearCustody(ctx context.Context, id uuid.UUID) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Request, int, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*Request, error)
}
