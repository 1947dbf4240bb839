// Package event is the append-only audit trail of the custody engine.
// Every state transition writes exactly one event inside the same
// transaction as the mutation; events are never updated or deleted.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is one immutable audit record for a case-note request.
type Event struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	RequestID    uuid.UUID         `db:"request_id" json:"request_id"`
	Type         string            `db:"type" json:"type"`
	ActorUserID  string            `db:"actor_user_id" json:"actor_user_id"`
	ToLocationID *uuid.UUID        `db:"to_location_id" json:"to_location_id,omitempty"`
	ToPerson     *string           `db:"to_person" json:"to_person,omitempty"`
	Reason       *string           `db:"reason" json:"reason,omitempty"`
	Metadata     map[string]string `db:"metadata" json:"metadata,omitempty"`
	OccurredAt   time.Time         `db:"occurred_at" json:"occurred_at"`
}

// Transition event types. The set is open: deployments register additional
// kinds with the Registry without a schema migration.
const (
	TypeCreated              = "created"
	TypeSubmitted            = "submitted"
	TypeApproved             = "approved"
	TypeRejected             = "rejected"
	TypeInProgress           = "in_progress"
	TypeHandedOver           = "handed_over"
	TypeReceived             = "received"
	TypeCompleted            = "completed"
	TypeReturned             = "returned"
	TypeHandoverRequested    = "handover_requested"
	TypeHandoverApproved     = "handover_approved"
	TypeHandoverRejected     = "handover_rejected"
	TypeRejectedNotReceived  = "rejected_not_received"
	TypeReturnedVerified     = "returned_verified"
	TypeReturnedRejected     = "returned_rejected"
	TypeHandoverDataFixed    = "handover_data_fixed"
	TypeHandoverVerified     = "handover_verified"
	TypeVerifiedReceived     = "verified_received"
	TypeFilingSubmitted      = "filing_submitted"
	TypeFilingApproved       = "filing_approved"
	TypeFilingRejected       = "filing_rejected"
	TypeSentOut              = "sent_out"
	TypeAcknowledgedReceived = "acknowledged_received"
)

func builtinTypes() []string {
	return []string{
		TypeCreated, TypeSubmitted, TypeApproved, TypeRejected, TypeInProgress,
		TypeHandedOver, TypeReceived, TypeCompleted, TypeReturned,
		TypeHandoverRequested, TypeHandoverApproved, TypeHandoverRejected,
		TypeRejectedNotReceived, TypeReturnedVerified, TypeReturnedRejected,
		TypeHandoverDataFixed, TypeHandoverVerified, TypeVerifiedReceived,
		TypeFilingSubmitted, TypeFilingApproved, TypeFilingRejected,
		TypeSentOut, TypeAcknowledgedReceived,
	}
}
