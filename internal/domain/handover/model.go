// Package handover implements the two custody-transfer protocols: the
// direct handover (holder pushes custody forward, Medical Records
// acknowledges the paperwork, the new holder confirms physical receipt)
// and the mediated handover request (a non-holder asks the current holder
// to release the note; custody moves only at verification).
package handover

import (
	"time"

	"github.com/google/uuid"
)

// Direct handover statuses. acknowledged means MR staff confirmed the
// paperwork; completed means the new holder confirmed the physical note.
const (
	StatusPending      = "pending"
	StatusAcknowledged = "acknowledged"
	StatusCompleted    = "completed"
)

// Mediated handover-request statuses.
const (
	RequestPending               = "pending"
	RequestApprovedPendingVerify = "approved_pending_verification"
	RequestVerified              = "verified"
	RequestRejected              = "rejected"
)

// Handover is one custody transfer record. It is owned by the case-note
// request it targets; at most one handover per request is active, enforced
// through the request's current_handover_id pointer.
type Handover struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	CaseNoteRequestID uuid.UUID  `db:"case_note_request_id" json:"case_note_request_id"`
	HandedOverBy      string     `db:"handed_over_by_user_id" json:"handed_over_by_user_id"`
	HandedOverTo      string     `db:"handed_over_to_user_id" json:"handed_over_to_user_id"`
	DepartmentID      uuid.UUID  `db:"department_id" json:"department_id"`
	LocationID        *uuid.UUID `db:"location_id" json:"location_id,omitempty"`
	DoctorID          *uuid.UUID `db:"handover_doctor_id" json:"handover_doctor_id,omitempty"`
	Status            string     `db:"status" json:"status"`
	Notes             *string    `db:"notes" json:"notes,omitempty"`

	HandedOverAt time.Time  `db:"handed_over_at" json:"handed_over_at"`
	VerifiedAt   *time.Time `db:"verified_at" json:"verified_at,omitempty"`

	// SLA pipeline, stamped by the sweeper.
	OverdueAt        *time.Time `db:"overdue_at" json:"overdue_at,omitempty"`
	ReminderSentAt   *time.Time `db:"reminder_sent_at" json:"reminder_sent_at,omitempty"`
	EscalationSentAt *time.Time `db:"escalation_sent_at" json:"escalation_sent_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HandoverRequest is the mediated flow: a proposal by someone who does not
// hold the note. The target request is untouched until the holder responds;
// custody moves only at Verify.
type HandoverRequest struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	CaseNoteID          uuid.UUID  `db:"case_note_id" json:"case_note_id"`
	RequestedBy         string     `db:"requested_by_user_id" json:"requested_by_user_id"`
	CurrentHolderUserID string     `db:"current_holder_user_id" json:"current_holder_user_id"`
	Reason              string     `db:"reason" json:"reason"`
	Priority            string     `db:"priority" json:"priority"`
	DepartmentID        uuid.UUID  `db:"department_id" json:"department_id"`
	LocationID          *uuid.UUID `db:"location_id" json:"location_id,omitempty"`
	DoctorID            *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	Status              string     `db:"status" json:"status"`

	// HandoverID links the companion custody record created when the
	// holder approves, so the request's current_handover_id pointer
	// always resolves while a transfer is in flight.
	HandoverID *uuid.UUID `db:"handover_id" json:"handover_id,omitempty"`

	RequestedAt   time.Time  `db:"requested_at" json:"requested_at"`
	RespondedAt   *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	ResponseNotes *string    `db:"response_notes" json:"response_notes,omitempty"`

	VerifiedAt        *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	VerifiedBy        *string    `db:"verified_by_user_id" json:"verified_by_user_id,omitempty"`
	VerificationNotes *string    `db:"verification_notes" json:"verification_notes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
