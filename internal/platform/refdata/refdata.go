// Package refdata exposes read-only reference data (departments, locations,
// doctors) as an existence/active check. Administration of these rows is
// owned by another system; the engine only validates ids against them.
package refdata

import (
	"context"

	"github.com/google/uuid"
)

// Checker validates that reference ids exist and are active. Implementations
// return apperr.ReferenceNotFound for unknown or inactive ids.
type Checker interface {
	DepartmentActive(ctx context.Context, id uuid.UUID) error
	LocationActive(ctx context.Context, id uuid.UUID) error
	DoctorActive(ctx context.Context, id uuid.UUID) error
}
