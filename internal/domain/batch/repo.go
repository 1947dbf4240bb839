package batch

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows batch listings.
type Filter struct {
	Status      string
	RequestedBy *string
}

type Repository interface {
	Create(ctx context.Context, b *Batch) error
	GetByID(ctx context.Context, id uuid.UUID) (*Batch, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Batch, error)
	Update(ctx context.Context, b *Batch) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Batch, int, error)
}
