package event

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casetrack/casetrack/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const eventCols = `id, request_id, type, actor_user_id, to_location_id, to_person, reason, metadata, occurred_at`

func (r *repoPG) scan(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.RequestID, &e.Type, &e.ActorUserID,
		&e.ToLocationID, &e.ToPerson, &e.Reason, &e.Metadata, &e.OccurredAt)
	return &e, err
}

func (r *repoPG) Append(ctx context.Context, e *Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO request_events (id, request_id, type, actor_user_id,
			to_location_id, to_person, reason, metadata, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.RequestID, e.Type, e.ActorUserID,
		e.ToLocationID, e.ToPerson, e.Reason, e.Metadata, e.OccurredAt)
	return err
}

func (r *repoPG) ListByRequest(ctx context.Context, requestID uuid.UUID, limit, offset int) ([]*Event, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM request_events WHERE request_id = $1`, requestID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `SELECT `+eventCols+` FROM request_events
		WHERE request_id = $1 ORDER BY occurred_at ASC, id ASC LIMIT $2 OFFSET $3`,
		requestID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Event
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
