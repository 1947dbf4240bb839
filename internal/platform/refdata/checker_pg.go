package refdata

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casetrack/casetrack/internal/platform/apperr"
	"github.com/casetrack/casetrack/internal/platform/db"
)

type checkerPG struct{ pool *pgxpool.Pool }

// NewCheckerPG returns a Checker backed by the departments/locations/doctors
// tables.
func NewCheckerPG(pool *pgxpool.Pool) Checker {
	return &checkerPG{pool: pool}
}

func (r *checkerPG) active(ctx context.Context, table, kind string, id uuid.UUID) error {
	var active bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		fmt.Sprintf(`SELECT is_active FROM %s WHERE id = $1`, table), id).Scan(&active)
	if err != nil {
		if db.IsNoRows(err) {
			return apperr.ReferenceNotFound(kind, id.String())
		}
		return fmt.Errorf("check %s %s: %w", kind, id, err)
	}
	if !active {
		return apperr.ReferenceNotFound(kind, id.String())
	}
	return nil
}

func (r *checkerPG) DepartmentActive(ctx context.Context, id uuid.UUID) error {
	return r.active(ctx, "departments", "department", id)
}

func (r *checkerPG) LocationActive(ctx context.Context, id uuid.UUID) error {
	return r.active(ctx, "locations", "location", id)
}

func (r *checkerPG) DoctorActive(ctx context.Context, id uuid.UUID) error {
	return r.active(ctx, "doctors", "doctor", id)
}
