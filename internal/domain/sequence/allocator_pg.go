package sequence

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casetrack/casetrack/internal/platform/apperr"
	"github.com/casetrack/casetrack/internal/platform/db"
)

type allocatorPG struct{ pool *pgxpool.Pool }

// NewAllocatorPG returns an Allocator backed by the request_sequences table.
// The upsert increments atomically under row-level locking, so concurrent
// callers for the same date key serialize on the row.
func NewAllocatorPG(pool *pgxpool.Pool) Allocator {
	return &allocatorPG{pool: pool}
}

func (a *allocatorPG) Next(ctx context.Context, dateKey string) (int, error) {
	var seq int
	err := db.Conn(ctx, a.pool).QueryRow(ctx, `
		INSERT INTO request_sequences (date_key, current_sequence)
		VALUES ($1, 1)
		ON CONFLICT (date_key)
		DO UPDATE SET current_sequence = request_sequences.current_sequence + 1
		RETURNING current_sequence`, dateKey).Scan(&seq)
	if err != nil {
		return 0, apperr.SequenceUnavailable(err)
	}
	return seq, nil
}
