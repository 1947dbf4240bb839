package request

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusApproved, StatusInProgress, true},
		{StatusApproved, StatusCompleted, true},
		{StatusApproved, StatusRejected, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusPendingReturnVerification, true},
		{StatusPendingReturnVerification, StatusCompleted, true},
		{StatusPendingReturnVerification, StatusRejected, true},
		{StatusPending, StatusCompleted, false},
		{StatusCompleted, StatusPending, false},
		{StatusRejected, StatusApproved, false},
		{StatusCompleted, StatusInProgress, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func validRequest() *Request {
	return &Request{
		ID:               uuid.New(),
		RequestNumber:    "CN20260115-0001",
		PatientID:        uuid.New(),
		DepartmentID:     uuid.New(),
		LocationID:       uuid.New(),
		Priority:         PriorityNormal,
		Status:           StatusPending,
		CurrentPICUserID: "user-1",
		HandoverStatus:   HandoverNone,
	}
}

func TestCheckInvariantsValid(t *testing.T) {
	if err := CheckInvariants(validRequest()); err != nil {
		t.Fatalf("valid request failed invariant check: %v", err)
	}
}

func TestCheckInvariantsViolations(t *testing.T) {
	now := time.Now()
	hid := uuid.New()
	actor := "user-1"

	cases := []struct {
		name   string
		mutate func(r *Request)
	}{
		{"unknown status", func(r *Request) { r.Status = "limbo" }},
		{"unknown handover status", func(r *Request) { r.HandoverStatus = "lost" }},
		{"unknown priority", func(r *Request) { r.Priority = "asap" }},
		{"handover status without handover id", func(r *Request) {
			r.HandoverStatus = HandoverPending
		}},
		{"handover id without handover status", func(r *Request) {
			r.CurrentHandoverID = &hid
		}},
		{"received without timestamp", func(r *Request) { r.IsReceived = true }},
		{"timestamp without received flag", func(r *Request) { r.ReceivedAt = &now }},
		{"returned without received", func(r *Request) {
			r.IsReturned = true
			r.ReturnedAt = &now
			r.ReturnedBy = &actor
		}},
		{"rejected return without rejected status", func(r *Request) {
			r.Status = StatusCompleted
			r.IsReceived = true
			r.ReceivedAt = &now
			r.ReceivedBy = &actor
			r.IsReturned = true
			r.ReturnedAt = &now
			r.ReturnedBy = &actor
			r.IsRejectedReturn = true
		}},
		{"rejected without rejected-at", func(r *Request) { r.Status = StatusRejected }},
		{"pending return verification without return", func(r *Request) {
			r.Status = StatusPendingReturnVerification
			r.IsReceived = true
			r.ReceivedAt = &now
			r.ReceivedBy = &actor
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validRequest()
			tc.mutate(r)
			if err := CheckInvariants(r); err == nil {
				t.Fatalf("expected invariant violation, got nil")
			}
		})
	}
}
