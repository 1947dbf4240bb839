// Package request implements the case-note request aggregate: the approval
// state machine, the custody sub-state driven by the handover protocols,
// and the receipt/return/filing sub-states. All transitions are audited
// through internal/domain/event inside the transition's own transaction.
package request

import (
	"time"

	"github.com/google/uuid"

	"github.com/casetrack/casetrack/internal/platform/apperr"
)

// Approval statuses. Terminal states: completed, rejected — except that a
// completed request re-opens to pending_return_verification when the holder
// returns the physical note.
const (
	StatusPending                   = "pending"
	StatusApproved                  = "approved"
	StatusInProgress                = "in_progress"
	StatusCompleted                 = "completed"
	StatusRejected                  = "rejected"
	StatusPendingReturnVerification = "pending_return_verification"
)

// Custody (handover) statuses, the second state machine on the aggregate.
const (
	HandoverNone                  = "none"
	HandoverPending               = "pending"
	HandoverInProgress            = "in_progress"
	HandoverCompleted             = "completed"
	HandoverTransferred           = "transferred"
	HandoverApprovedPendingVerify = "approved_pending_verification"
	HandoverVerified              = "verified"
	HandoverRejected              = "rejected"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var validStatuses = map[string]bool{
	StatusPending:                   true,
	StatusApproved:                  true,
	StatusInProgress:                true,
	StatusCompleted:                 true,
	StatusRejected:                  true,
	StatusPendingReturnVerification: true,
}

var validHandoverStatuses = map[string]bool{
	HandoverNone:                  true,
	HandoverPending:               true,
	HandoverInProgress:            true,
	HandoverCompleted:             true,
	HandoverTransferred:           true,
	HandoverApprovedPendingVerify: true,
	HandoverVerified:              true,
	HandoverRejected:              true,
}

// handoverInFlight reports whether a custody transfer is still open:
// either direct protocol awaiting acknowledgement or a mediated approval
// awaiting verification.
func handoverInFlight(hs string) bool {
	return hs == HandoverPending || hs == HandoverInProgress || hs == HandoverApprovedPendingVerify
}

var validPriorities = map[string]bool{
	PriorityLow:    true,
	PriorityNormal: true,
	PriorityHigh:   true,
	PriorityUrgent: true,
}

// ValidPriority reports whether p is a known priority level.
func ValidPriority(p string) bool {
	return validPriorities[p]
}

// statusTransitions is the one-directional approval machine. The only
// backward edge is the explicit return-verification path.
var statusTransitions = map[string][]string{
	StatusPending:                   {StatusApproved, StatusRejected},
	StatusApproved:                  {StatusInProgress, StatusCompleted, StatusRejected, StatusPendingReturnVerification},
	StatusInProgress:                {StatusCompleted, StatusRejected, StatusPendingReturnVerification},
	StatusCompleted:                 {StatusPendingReturnVerification},
	StatusPendingReturnVerification: {StatusCompleted, StatusRejected},
}

// CanTransition reports whether the approval machine allows from -> to.
func CanTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Request is one physical case note's tracked lifecycle instance.
type Request struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	RequestNumber string     `db:"request_number" json:"request_number"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DepartmentID  uuid.UUID  `db:"department_id" json:"department_id"`
	DoctorID      *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	LocationID    uuid.UUID  `db:"location_id" json:"location_id"`
	Priority      string     `db:"priority" json:"priority"`
	Purpose       *string    `db:"purpose" json:"purpose,omitempty"`
	NeededBy      *time.Time `db:"needed_by" json:"needed_by,omitempty"`

	Status          string     `db:"status" json:"status"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	ApprovedBy      *string    `db:"approved_by_user_id" json:"approved_by_user_id,omitempty"`
	ApprovalRemarks *string    `db:"approval_remarks" json:"approval_remarks,omitempty"`
	RejectedAt      *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
	RejectedBy      *string    `db:"rejected_by_user_id" json:"rejected_by_user_id,omitempty"`
	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	// Custody. CurrentPICUserID is transferred only by the terminal steps
	// of the two handover protocols; see internal/domain/handover.
	CurrentPICUserID  string     `db:"current_pic_user_id" json:"current_pic_user_id"`
	CurrentHandoverID *uuid.UUID `db:"current_handover_id" json:"current_handover_id,omitempty"`
	HandoverStatus    string     `db:"handover_status" json:"handover_status"`

	IsReceived bool       `db:"is_received" json:"is_received"`
	ReceivedAt *time.Time `db:"received_at" json:"received_at,omitempty"`
	ReceivedBy *string    `db:"received_by_user_id" json:"received_by_user_id,omitempty"`

	IsReturned       bool       `db:"is_returned" json:"is_returned"`
	ReturnedAt       *time.Time `db:"returned_at" json:"returned_at,omitempty"`
	ReturnedBy       *string    `db:"returned_by_user_id" json:"returned_by_user_id,omitempty"`
	IsRejectedReturn bool       `db:"is_rejected_return" json:"is_rejected_return"`

	BatchID *uuid.UUID `db:"batch_id" json:"batch_id,omitempty"`

	FilingNumber *string    `db:"filing_number" json:"filing_number,omitempty"`
	FilingStatus *string    `db:"filing_status" json:"filing_status,omitempty"`
	SentOutAt    *time.Time `db:"sent_out_at" json:"sent_out_at,omitempty"`

	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Filing sub-statuses.
const (
	FilingPending  = "pending"
	FilingApproved = "approved"
	FilingRejected = "rejected"
)

// IsTerminal reports whether the approval machine has closed. A completed
// request may still re-open through the return-verification path.
func (r *Request) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusRejected
}

// CheckInvariants verifies the cross-machine consistency rules. It runs
// inside every mutating transaction before the write is committed.
func CheckInvariants(r *Request) error {
	if !validStatuses[r.Status] {
		return apperr.Validation("invalid status %q", r.Status)
	}
	if !validHandoverStatuses[r.HandoverStatus] {
		return apperr.Validation("invalid handover status %q", r.HandoverStatus)
	}
	if !validPriorities[r.Priority] {
		return apperr.Validation("invalid priority %q", r.Priority)
	}

	// handover_status != none <=> current_handover_id resolvable
	if r.HandoverStatus != HandoverNone && r.CurrentHandoverID == nil {
		return apperr.Validation("handover status %q without an active handover record", r.HandoverStatus)
	}
	if r.HandoverStatus == HandoverNone && r.CurrentHandoverID != nil {
		return apperr.Validation("dangling handover record on request with no handover in flight")
	}

	if r.IsReceived && (r.ReceivedAt == nil || r.ReceivedBy == nil) {
		return apperr.Validation("received flag set without receipt timestamp or receiver")
	}
	if !r.IsReceived && r.ReceivedAt != nil {
		return apperr.Validation("receipt timestamp set without received flag")
	}
	if r.IsReceived && r.Status == StatusPending {
		return apperr.Validation("pending request cannot be received")
	}
	if r.IsReturned && (r.ReturnedAt == nil || r.ReturnedBy == nil) {
		return apperr.Validation("returned flag set without return timestamp or returner")
	}
	if r.IsReturned && !r.IsReceived {
		return apperr.Validation("request returned but never received")
	}
	if r.IsRejectedReturn && r.Status != StatusRejected {
		return apperr.Validation("rejected return must leave the request rejected")
	}
	if r.Status == StatusRejected && r.RejectedAt == nil {
		return apperr.Validation("rejected status without rejection timestamp")
	}
	if r.Status == StatusPendingReturnVerification && !r.IsReturned {
		return apperr.Validation("pending return verification without a returned note")
	}
	return nil
}
