package batch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casetrack/casetrack/internal/platform/apperr"
	"github.com/casetrack/casetrack/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const batchCols = `id, batch_number, requested_by_user_id, department_id, location_id,
	priority, purpose, needed_by, status, approved_count, received_count, is_verified,
	created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.BatchNumber, &b.RequestedBy, &b.DepartmentID, &b.LocationID,
		&b.Priority, &b.Purpose, &b.NeededBy, &b.Status, &b.ApprovedCount, &b.ReceivedCount, &b.IsVerified,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("batch")
		}
		return nil, err
	}
	return &b, nil
}

func (r *repoPG) Create(ctx context.Context, b *Batch) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO batches (id, batch_number, requested_by_user_id, department_id, location_id,
			priority, purpose, needed_by, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		b.ID, b.BatchNumber, b.RequestedBy, b.DepartmentID, b.LocationID,
		b.Priority, b.Purpose, b.NeededBy, b.Status)
	if err != nil {
		return fmt.Errorf("insert batch %s: %w", b.BatchNumber, err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Batch, error) {
	return r.scan(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+batchCols+` FROM batches WHERE id = $1`, id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Batch, error) {
	return r.scan(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+batchCols+` FROM batches WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, b *Batch) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE batches SET
			status=$2, approved_count=$3, received_count=$4, is_verified=$5, updated_at=now()
		WHERE id=$1`,
		b.ID, b.Status, b.ApprovedCount, b.ReceivedCount, b.IsVerified)
	if err != nil {
		return fmt.Errorf("update batch %s: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("batch")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Batch, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.RequestedBy != nil {
		where += fmt.Sprintf(" AND requested_by_user_id = $%d", idx)
		args = append(args, *f.RequestedBy)
		idx++
	}

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM batches`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + batchCols + ` FROM batches` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Batch
	for rows.Next() {
		b, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}
