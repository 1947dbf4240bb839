package event

import (
	"context"

	"github.com/google/uuid"
)

// Repository is append-and-read only. There is deliberately no update or
// delete method.
type Repository interface {
	Append(ctx context.Context, e *Event) error
	ListByRequest(ctx context.Context, requestID uuid.UUID, limit, offset int) ([]*Event, int, error)
}
