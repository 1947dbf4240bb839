// Package batch groups case-note requests submitted together in one
// purpose/priority context. Batch status is a derived view over the member
// requests; the stored column is a cache that reads always recompute.
package batch

import (
	"time"

	"github.com/google/uuid"

	"github.com/casetrack/casetrack/internal/domain/request"
)

const (
	StatusPending           = "pending"
	StatusApproved          = "approved"
	StatusRejected          = "rejected"
	StatusPartiallyApproved = "partially_approved"
)

// Batch is one grouped submission of case-note requests.
type Batch struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	BatchNumber   string     `db:"batch_number" json:"batch_number"`
	RequestedBy   string     `db:"requested_by_user_id" json:"requested_by_user_id"`
	DepartmentID  uuid.UUID  `db:"department_id" json:"department_id"`
	LocationID    uuid.UUID  `db:"location_id" json:"location_id"`
	Priority      string     `db:"priority" json:"priority"`
	Purpose       *string    `db:"purpose" json:"purpose,omitempty"`
	NeededBy      *time.Time `db:"needed_by" json:"needed_by,omitempty"`
	Status        string     `db:"status" json:"status"`
	ApprovedCount int        `db:"approved_count" json:"approved_count"`
	ReceivedCount int        `db:"received_count" json:"received_count"`
	IsVerified    bool       `db:"is_verified" json:"is_verified"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Counts is the member roll-up computed from current member states, never
// from cached snapshots.
type Counts struct {
	Pending  int `json:"pending_count"`
	Approved int `json:"approved_count"`
	Rejected int `json:"rejected_count"`
	Received int `json:"received_count"`
	Total    int `json:"total_count"`
}

// approvedLineage reports whether a member has passed approval, whatever
// it has moved on to since.
func approvedLineage(status string) bool {
	switch status {
	case request.StatusApproved, request.StatusInProgress, request.StatusCompleted, request.StatusPendingReturnVerification:
		return true
	}
	return false
}

// CountMembers rolls up the member requests.
func CountMembers(members []*request.Request) Counts {
	var c Counts
	c.Total = len(members)
	for _, m := range members {
		switch {
		case m.Status == request.StatusPending:
			c.Pending++
		case m.Status == request.StatusRejected:
			c.Rejected++
		case approvedLineage(m.Status):
			c.Approved++
		}
		if m.IsReceived {
			c.Received++
		}
	}
	return c
}

// DeriveStatus computes the batch status from the member roll-up:
// untouched batches stay pending, unanimous outcomes map directly, and
// any mix (including a partially processed batch) is partially_approved.
func DeriveStatus(c Counts) string {
	switch {
	case c.Total == 0 || c.Pending == c.Total:
		return StatusPending
	case c.Approved == c.Total:
		return StatusApproved
	case c.Rejected == c.Total:
		return StatusRejected
	default:
		return StatusPartiallyApproved
	}
}
