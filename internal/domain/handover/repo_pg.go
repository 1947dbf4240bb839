package handover

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

const handoverCols = `id, case_note_request_id, handed_over_by_user_id, handed_over_to_user_id,
	department_id, location_id, handover_doctor_id, status, notes,
	handed_over_at, verified_at, overdue_at, reminder_sent_at, escalation_sent_at,
	created_at, updated_at`

func (r *repoPG) scanHandover(row pgx.Row) (*Handover, error) {
	var h Handover
	err := row.Scan(&h.ID, &h.CaseNoteRequestID, &h.HandedOverBy, &h.HandedOverTo,
		&h.DepartmentID, &h.LocationID, &h.DoctorID, &h.Status, &h.Notes,
		&h.HandedOverAt, &h.VerifiedAt, &h.OverdueAt, &h.ReminderSentAt, &h.EscalationSentAt,
		&h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("handover")
		}
		return nil, err
	}
	return &h, nil
}

func (r *repoPG) CreateHandover(ctx context.Context, h *Handover) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO handovers (id, case_note_request_id, handed_over_by_user_id, handed_over_to_user_id,
			department_id, location_id, handover_doctor_id, status, notes, handed_over_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		h.ID, h.CaseNoteRequestID, h.HandedOverBy, h.HandedOverTo,
		h.DepartmentID, h.LocationID, h.DoctorID, h.Status, h.Notes, h.HandedOverAt)
	if err != nil {
		return fmt.Errorf("insert handover for request %s: %w", h.CaseNoteRequestID, err)
	}
	return nil
}

func (r *repoPG) GetHandover(ctx context.Context, id uuid.UUID) (*Handover, error) {
	return r.scanHandover(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+handoverCols+` FROM handovers WHERE id = $1`, id))
}

func (r *repoPG) GetHandoverForUpdate(ctx context.Context, id uuid.UUID) (*Handover, error) {
	return r.scanHandover(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+handoverCols+` FROM handovers WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) UpdateHandover(ctx context.Context, h *Handover) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE handovers SET
			department_id=$2, location_id=$3, handover_doctor_id=$4, status=$5, notes=$6,
			verified_at=$7, overdue_at=$8, reminder_sent_at=$9, escalation_sent_at=$10,
			updated_at=now()
		WHERE id=$1`,
		h.ID, h.DepartmentID, h.LocationID, h.DoctorID, h.Status, h.Notes,
		h.VerifiedAt, h.OverdueAt, h.ReminderSentAt, h.EscalationSentAt)
	if err != nil {
		return fmt.Errorf("update handover %s: %w", h.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("handover")
	}
	return nil
}

func (r *repoPG) ListHandoversByRequest(ctx context.Context, requestID uuid.UUID) ([]*Handover, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+handoverCols+` FROM handovers WHERE case_note_request_id = $1 ORDER BY handed_over_at DESC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Handover
	for rows.Next() {
		h, err := r.scanHandover(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *repoPG) ListOverdueCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*Handover, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+handoverCols+` FROM handovers
		 WHERE status = $1 AND handed_over_at < $2 AND escalation_sent_at IS NULL
		 ORDER BY handed_over_at ASC LIMIT $3`, StatusPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Handover
	for rows.Next() {
		h, err := r.scanHandover(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

const handoverRequestCols = `id, case_note_id, requested_by_user_id, current_holder_user_id,
	reason, priority, department_id, location_id, doctor_id, status, handover_id,
	requested_at, responded_at, response_notes,
	verified_at, verified_by_user_id, verification_notes,
	created_at, updated_at`

func (r *repoPG) scanHandoverRequest(row pgx.Row) (*HandoverRequest, error) {
	var hr HandoverRequest
	err := row.Scan(&hr.ID, &hr.CaseNoteID, &hr.RequestedBy, &hr.CurrentHolderUserID,
		&hr.Reason, &hr.Priority, &hr.DepartmentID, &hr.LocationID, &hr.DoctorID, &hr.Status, &hr.HandoverID,
		&hr.RequestedAt, &hr.RespondedAt, &hr.ResponseNotes,
		&hr.VerifiedAt, &hr.VerifiedBy, &hr.VerificationNotes,
		&hr.CreatedAt, &hr.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("handover request")
		}
		return nil, err
	}
	return &hr, nil
}

func (r *repoPG) CreateHandoverRequest(ctx context.Context, hr *HandoverRequest) error {
	if hr.ID == uuid.Nil {
		hr.ID = uuid.New()
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO handover_requests (id, case_note_id, requested_by_user_id, current_holder_user_id,
			reason, priority, department_id, location_id, doctor_id, status, requested_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		hr.ID, hr.CaseNoteID, hr.RequestedBy, hr.CurrentHolderUserID,
		hr.Reason, hr.Priority, hr.DepartmentID, hr.LocationID, hr.DoctorID, hr.Status, hr.RequestedAt)
	if err != nil {
		return fmt.Errorf("insert handover request for case note %s: %w", hr.CaseNoteID, err)
	}
	return nil
}

func (r *repoPG) GetHandoverRequest(ctx context.Context, id uuid.UUID) (*HandoverRequest, error) {
	return r.scanHandoverRequest(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+handoverRequestCols+` FROM handover_requests WHERE id = $1`, id))
}

func (r *repoPG) GetHandoverRequestForUpdate(ctx context.Context, id uuid.UUID) (*HandoverRequest, error) {
	return r.scanHandoverRequest(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+handoverRequestCols+` FROM handover_requests WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) UpdateHandoverRequest(ctx context.Context, hr *HandoverRequest) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE handover_requests SET
			status=$2, handover_id=$3, responded_at=$4, response_notes=$5,
			verified_at=$6, verified_by_user_id=$7, verification_notes=$8,
			updated_at=now()
		WHERE id=$1`,
		hr.ID, hr.Status, hr.HandoverID, hr.RespondedAt, hr.ResponseNotes,
		hr.VerifiedAt, hr.VerifiedBy, hr.VerificationNotes)
	if err != nil {
		return fmt.Errorf("update handover request %s: %w", hr.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("handover request")
	}
	return nil
}

func (r *repoPG) ListHandoverRequests(ctx context.Context, f RequestFilter, limit, offset int) ([]*HandoverRequest, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1
	if f.CaseNoteID != nil {
		where += fmt.Sprintf(" AND case_note_id = $%d", idx)
		args = append(args, *f.CaseNoteID)
		idx++
	}
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
	if f.HolderID != nil {
		where += fmt.Sprintf(" AND current_holder_user_id = $%d", idx)
		args = append(args, *f.HolderID)
		idx++
	}

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM handover_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + handoverRequestCols + ` FROM handover_requests` + where +
		fmt.Sprintf(" ORDER BY requested_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*HandoverRequest
	for rows.Next() {
		hr, err := r.scanHandoverRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, hr)
	}
	return out, total, rows.Err()
}
