package request

import (
	"context"
	"fmt"
	"time"

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

const requestCols = `id, request_number, patient_id, department_id, doctor_id, location_id,
	priority, purpose, needed_by, status,
	approved_at, approved_by_user_id, approval_remarks,
	rejected_at, rejected_by_user_id, rejection_reason, completed_at,
	current_pic_user_id, current_handover_id, handover_status,
	is_received, received_at, received_by_user_id,
	is_returned, returned_at, returned_by_user_id, is_rejected_return,
	batch_id, filing_number, filing_status, sent_out_at,
	deleted_at, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.RequestNumber, &req.PatientID, &req.DepartmentID, &req.DoctorID, &req.LocationID,
		&req.Priority, &req.Purpose, &req.NeededBy, &req.Status,
		&req.ApprovedAt, &req.ApprovedBy, &req.ApprovalRemarks,
		&req.RejectedAt, &req.RejectedBy, &req.RejectionReason, &req.CompletedAt,
		&req.CurrentPICUserID, &req.CurrentHandoverID, &req.HandoverStatus,
		&req.IsReceived, &req.ReceivedAt, &req.ReceivedBy,
		&req.IsReturned, &req.ReturnedAt, &req.ReturnedBy, &req.IsRejectedReturn,
		&req.BatchID, &req.FilingNumber, &req.FilingStatus, &req.SentOutAt,
		&req.DeletedAt, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("request")
		}
		return nil, err
	}
	return &req, nil
}

func (r *repoPG) Create(ctx context.Context, req *Request) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO case_note_requests (id, request_number, patient_id, department_id, doctor_id, location_id,
			priority, purpose, needed_by, status, current_pic_user_id, handover_status, batch_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		req.ID, req.RequestNumber, req.PatientID, req.DepartmentID, req.DoctorID, req.LocationID,
		req.Priority, req.Purpose, req.NeededBy, req.Status, req.CurrentPICUserID, req.HandoverStatus, req.BatchID)
	if err != nil {
		return fmt.Errorf("insert request %s: %w", req.RequestNumber, err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return r.scan(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+requestCols+` FROM case_note_requests WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *repoPG) GetByNumber(ctx context.Context, number string) (*Request, error) {
	return r.scan(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+requestCols+` FROM case_note_requests WHERE request_number = $1 AND deleted_at IS NULL`, number))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Request, error) {
	return r.scan(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+requestCols+` FROM case_note_requests WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, req *Request) error {
	req.UpdatedAt = time.Now().UTC()
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE case_note_requests SET
			status=$2, approved_at=$3, approved_by_user_id=$4, approval_remarks=$5,
			rejected_at=$6, rejected_by_user_id=$7, rejection_reason=$8, completed_at=$9,
			is_received=$10, received_at=$11, received_by_user_id=$12,
			is_returned=$13, returned_at=$14, returned_by_user_id=$15, is_rejected_return=$16,
			filing_number=$17, filing_status=$18, sent_out_at=$19, updated_at=$20
		WHERE id = $1 AND deleted_at IS NULL`,
		req.ID, req.Status, req.ApprovedAt, req.ApprovedBy, req.ApprovalRemarks,
		req.RejectedAt, req.RejectedBy, req.RejectionReason, req.CompletedAt,
		req.IsReceived, req.ReceivedAt, req.ReceivedBy,
		req.IsReturned, req.ReturnedAt, req.ReturnedBy, req.IsRejectedReturn,
		req.FilingNumber, req.FilingStatus, req.SentOutAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update request %s: %w", req.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("request")
	}
	return nil
}

func (r *repoPG) UpdateCustody(ctx context.Context, id uuid.UUID, picUserID string, handoverID *uuid.UUID, handoverStatus string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE case_note_requests SET
			current_pic_user_id=$2, current_handover_id=$3, handover_status=$4, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, picUserID, handoverID, handoverStatus)
	if err != nil {
		return fmt.Errorf("update custody for request %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("request")
	}
	return nil
}

func (r *repoPG) ClearCustody(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE case_note_requests SET
			current_pic_user_id='', current_handover_id=NULL, handover_status=$2, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, HandoverNone)
	if err != nil {
		return fmt.Errorf("clear custody for request %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("request")
	}
	return nil
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE case_note_requests SET deleted_at=NOW(), updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete request %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("request")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Request, int, error) {
	where := "deleted_at IS NULL"
	args := []interface{}{}
	n := 0
	add := func(cond string, val interface{}) {
		n++
		args = append(args, val)
		where += fmt.Sprintf(" AND %s = $%d", cond, n)
	}
	if f.Status != "" {
		add("status", f.Status)
	}
	if f.PatientID != nil {
		add("patient_id", *f.PatientID)
	}
	if f.DepartmentID != nil {
		add("department_id", *f.DepartmentID)
	}
	if f.HolderUserID != "" {
		add("current_pic_user_id", f.HolderUserID)
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM case_note_requests WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM case_note_requests WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		requestCols, where, n+1, n+2)
	rows, err := conn.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Request
	for rows.Next() {
		req, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, req)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*Request, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+requestCols+` FROM case_note_requests WHERE batch_id = $1 AND deleted_at IS NULL ORDER BY created_at ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Request
	for rows.Next() {
		req, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, req)
	}
	return items, rows.Err()
}
