package handover

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RequestFilter narrows handover-request listings.
type RequestFilter struct {
	CaseNoteID  *uuid.UUID
	Status      string
	RequestedBy *string
	HolderID    *string
}

// Repository persists both custody-transfer record types. Mutating service
// operations run inside a transaction carried on the context.
type Repository interface {
	CreateHandover(ctx context.Context, h *Handover) error
	GetHandover(ctx context.Context, id uuid.UUID) (*Handover, error)
	GetHandoverForUpdate(ctx context.Context, id uuid.UUID) (*Handover, error)
	UpdateHandover(ctx context.Context, h *Handover) error
	ListHandoversByRequest(ctx context.Context, requestID uuid.UUID) ([]*Handover, error)
	// ListOverdueCandidates returns pending handovers handed over before
	// cutoff whose escalation has not been sent yet.
	ListOverdueCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*Handover, error)

	CreateHandoverRequest(ctx context.Context, hr *HandoverRequest) error
	GetHandoverRequest(ctx context.Context, id uuid.UUID) (*HandoverRequest, error)
	GetHandoverRequestForUpdate(ctx context.Context, id uuid.UUID) (*HandoverRequest, error)
	UpdateHandoverRequest(ctx context.Context, hr *HandoverRequest) error
	ListHandoverRequests(ctx context.Context, f RequestFilter, limit, offset int) ([]*HandoverRequest, int, error)
}
