package request

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/casetrack/casetrack/internal/domain/event"
	"github.com/casetrack/casetrack/internal/domain/sequence"
	"github.com/casetrack/casetrack/internal/platform/apperr"
	"github.com/casetrack/casetrack/internal/platform/db"
	"github.com/casetrack/casetrack/internal/platform/refdata"
)

// Service drives the approval state machine. Every mutating operation runs
// in a single transaction: lock the row, check the precondition, apply the
// mutation, check cross-machine invariants, append the audit event, commit.
type Service struct {
	runner db.TxRunner
	repo   Repository
	events *event.Recorder
	seq    sequence.Allocator
	refs   refdata.Checker

	notifier event.Notifier

	requestPrefix string
	filingPrefix  string
}

func NewService(runner db.TxRunner, repo Repository, events *event.Recorder, seq sequence.Allocator, refs refdata.Checker) *Service {
	return &Service{
		runner:        runner,
		repo:          repo,
		events:        events,
		seq:           seq,
		refs:          refs,
		notifier:      event.NopNotifier{},
		requestPrefix: "CN",
		filingPrefix:  "FN",
	}
}

// SetNotifier attaches the post-commit event notifier.
func (s *Service) SetNotifier(n event.Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// SetNumberPrefixes overrides the request and filing number prefixes.
func (s *Service) SetNumberPrefixes(request, filing string) {
	if request != "" {
		s.requestPrefix = request
	}
	if filing != "" {
		s.filingPrefix = filing
	}
}

// Repo exposes the repository to the sibling domain packages (handover
// protocols, batch aggregation) that share transactions with this service.
func (s *Service) Repo() Repository { return s.repo }

// Events exposes the audit recorder for transaction-sharing callers.
func (s *Service) Events() *event.Recorder { return s.events }

// CreateParams carries the classification of a new case-note request.
type CreateParams struct {
	PatientID    uuid.UUID
	DepartmentID uuid.UUID
	LocationID   uuid.UUID
	DoctorID     *uuid.UUID
	Priority     string
	Purpose      *string
	NeededBy     *time.Time
	BatchID      *uuid.UUID
	RequesterID  string
}

// Create allocates a request number and opens the lifecycle at pending,
// with the requester as initial holder-to-be. No request is created when
// number allocation fails.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Request, error) {
	if p.RequesterID == "" {
		return nil, apperr.Validation("requester id is required")
	}
	if p.Priority == "" {
		p.Priority = PriorityNormal
	}
	if !validPriorities[p.Priority] {
		return nil, apperr.Validation("invalid priority %q", p.Priority)
	}
	if err := s.refs.DepartmentActive(ctx, p.DepartmentID); err != nil {
		return nil, err
	}
	if err := s.refs.LocationActive(ctx, p.LocationID); err != nil {
		return nil, err
	}
	if p.DoctorID != nil {
		if err := s.refs.DoctorActive(ctx, *p.DoctorID); err != nil {
			return nil, err
		}
	}

	var out *Request
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		dateKey := sequence.DateKey(now)
		seq, err := s.seq.Next(ctx, dateKey)
		if err != nil {
			return err
		}

		r := &Request{
			ID:               uuid.New(),
			RequestNumber:    sequence.FormatNumber(s.requestPrefix, dateKey, seq),
			PatientID:        p.PatientID,
			DepartmentID:     p.DepartmentID,
			DoctorID:         p.DoctorID,
			LocationID:       p.LocationID,
			Priority:         p.Priority,
			Purpose:          p.Purpose,
			NeededBy:         p.NeededBy,
			Status:           StatusPending,
			CurrentPICUserID: p.RequesterID,
			HandoverStatus:   HandoverNone,
			BatchID:          p.BatchID,
		}
		if err := CheckInvariants(r); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, r); err != nil {
			return err
		}

		e := &event.Event{
			RequestID:   r.ID,
			Type:        event.TypeCreated,
			ActorUserID: p.RequesterID,
			Metadata:    map[string]string{"request_number": r.RequestNumber},
		}
		if err := s.events.Record(ctx, e); err != nil {
			return err
		}
		db.OnCommit(ctx, func() { s.notifier.Notify(e) })
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// transition wraps the lock/check/mutate/audit/commit cycle. fn mutates r
// in place and returns the audit event; returning a nil event makes the
// call an idempotent no-op.
func (s *Service) transition(ctx context.Context, id uuid.UUID, fn func(r *Request) (*event.Event, error)) (*Request, error) {
	var out *Request
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		e, err := fn(r)
		if err != nil {
			return err
		}
		if e == nil {
			out = r
			return nil
		}
		if err := CheckInvariants(r); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		e.RequestID = r.ID
		if err := s.events.Record(ctx, e); err != nil {
			return err
		}
		db.OnCommit(ctx, func() { s.notifier.Notify(e) })
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Approve moves a pending request to approved.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, approverID string, remarks *string) (*Request, error) {
	if approverID == "" {
		return nil, apperr.Validation("approver id is required")
	}
	return s.transition(ctx, id, func(r *Request) (*event.Event, error) {
		if r.Status != StatusPending {
			return nil, apperr.Precondition("cannot approve request in status %q", r.Status)
		}
		now := time.Now().UTC()
		r.Status = StatusApproved
		r.ApprovedAt = &now
		r.ApprovedBy = &approverID
		r.ApprovalRemarks = remarks
		return &event.Event{
			Type:        event.TypeApproved,
			ActorUserID: approverID,
			Metadata:    map[string]string{"holder": r.CurrentPICUserID, "request_number": r.RequestNumber},
		}, nil
	})
}

// Reject closes a pending request. The reason is mandatory.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, approverID, reason string) (*Request, error) {
	if approverID == "" {
		return nil, apperr.Validation("approver id is required")
	}
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}
	return s.transition(ctx, id, func(r *Request) (*event.Event, error) {
		if r.Status != StatusPending {
			return nil, apperr.Precondition("cannot reject request in status %q", r.Status)
		}
		now := time.Now().UTC()
		r.Status = StatusRejected
		r.RejectedAt = &now
		r.RejectedBy = &approverID
		r.RejectionReason = &reason
		return &event.Event{
			Type:        event.TypeRejected,
			ActorUserID: approverID,
			Reason:      &reason,
			Metadata:    map[string]string{"holder": r.CurrentPICUserID, "request_number": r.RequestNumber},
		}, nil
	})
}

// MarkReceived records physical receipt of an approved case note by the
// holder. Calling it again once received is an idempotent no-op.
func (s *Service) MarkReceived(ctx context.Context, id uuid.UUID, holderID string, notes *string) (*Request, error) {
	if holderID == "" {
		return nil, apperr.Validation("holder id is required")
	}
	return s.transition(ctx, id, func(r *Request) (*event.Event, error) {
		if r.IsReceived {
			return nil, nil
		}
		if r.Status != StatusApproved {
			return nil, apperr.Precondition("cannot receive request in status %q", r.Status)
		}
		now := time.Now().UTC()
		r.IsReceived = true
		r.ReceivedAt = &now
		r.ReceivedBy = &holderID
		e := &event.Event{Type: event.TypeReceived, ActorUserID: holderID}
		if notes != nil {
			e.Metadata = map[string]string{"notes": *notes}
		}
		return e, nil
	})
}

// MarkInProgress flags an approved, received request as actively used.
func (s *Service) MarkInProgress(ctx context.Context, id uuid.UUID, actorID string) (*Request, error) {
	if actorID == "" {
		return nil, apperr.Validation("actor id is required")
	}
	return s.transition(ctx, id, func(r *Request) (*event.Event, error) {
		if r.Status != StatusApproved {
			return nil, apperr.Precondition("cannot start request in status %q", r.Status)
		}
		if !r.IsReceived {
			return nil, apperr.Precondition("request has not been received")
		}
		r.Status = StatusInProgress
		return &event.Event{Type: event.TypeInProgress, ActorUserID: actorID}, nil
	})
}

// Complete closes the lifecycle. The note must have been received.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actorID string, notes *string) (*Request, error) {
	if actorID == "" {
		return nil, apperr.Validation("actor id is required")
	}
	return s.transition(ctx, id, func(r *Request) (*event.Event, error) {
		if r.Status != StatusApproved && r.Status != StatusInProgress {
			return nil, apperr.Precondition("cannot complete request in status %q", r.Status)
		}
		if !r.IsReceived {
			return nil, apperr.Precondition("cannot complete a request that was never received")
		}
		now := time.Now().UTC()
		r.Status = StatusCompleted
		r.CompletedAt = &now
		e := &event.Event{Type: event.TypeCompleted, ActorUserID: actorID}
		if notes != nil {
			e.Metadata = map[string]string{"notes": *notes}
		}
		return e, nil
	})
}

// MarkReturned records that the holder handed the physical note back and
// opens return verification. Already-returned requests no-op.
func (s *Service) MarkReturned(ctx context.Context, id uuid.UUID, holderID string, notes *string) (*Request, error) {
	if holderID == "" {
		return nil, apperr.Validation("holder id is required")
	}
	return s.transition(ctx, id, func(r *Request) (*event.Event, error) {
		if r.Status == StatusPendingReturnVerification {
			return nil, nil
		}
		if !r.IsReceived {
			return nil, apperr.Precondition("cannot return a request that was never received")
		}
		// A note mid-handover cannot simultaneously travel back to
		// Medical Records; the handover must settle first.
		if handoverInFlight(r.HandoverStatus) {
			return nil, apperr.Precondition("cannot return a case note while a handover is in flight")
		}
		if !CanTransition(r.Status, StatusPendingReturnVerification) {
			return nil, apperr.Precondition("cannot return request in status %q", r.Status)
		}
		now := time.Now().UTC()
		r.IsReturned = true
		r.ReturnedAt = &now
		r.ReturnedBy = &holderID
		r.Status = StatusPendingReturnVerification
		e := &event.Event{Type: event.TypeReturned, ActorUserID: holderID}
		if notes != nil {
			e.Metadata = map[string]string{"notes": *notes}
		}
		return e, nil
	})
}

// VerifyReturn is MR staff's confirmation of a returned case note. Accept
// closes the record and clears custody; reject marks a rejected return.
// Verifying an already-verified return is an idempotent no-op.
func (s *Service) VerifyReturn(ctx context.Context, id uuid.UUID, mrStaffID string, accept bool, notes *string) (*Request, error) {
	if mrStaffID == "" {
		return nil, apperr.Validation("verifier id is required")
	}

	var out *Request
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		// Terminal-state idempotence for retrying clients.
		if accept && r.Status == StatusCompleted && r.IsReturned && !r.IsRejectedReturn {
			out = r
			return nil
		}
		if !accept && r.Status == StatusRejected && r.IsRejectedReturn {
			out = r
			return nil
		}
		if r.Status != StatusPendingReturnVerification {
			return apperr.Precondition("cannot verify return of request in status %q", r.Status)
		}

		now := time.Now().UTC()
		var e *event.Event
		if accept {
			r.Status = StatusCompleted
			if r.CompletedAt == nil {
				r.CompletedAt = &now
			}
			e = &event.Event{
				Type:        event.TypeReturnedVerified,
				ActorUserID: mrStaffID,
				Metadata:    map[string]string{"request_number": r.RequestNumber},
			}
			if r.ReturnedBy != nil {
				e.Metadata["holder"] = *r.ReturnedBy
			}
		} else {
			r.Status = StatusRejected
			r.IsRejectedReturn = true
			r.RejectedAt = &now
			r.RejectedBy = &mrStaffID
			e = &event.Event{Type: event.TypeReturnedRejected, ActorUserID: mrStaffID}
		}
		if notes != nil {
			if e.Metadata == nil {
				e.Metadata = map[string]string{}
			}
			e.Metadata["notes"] = *notes
		}

		if err := CheckInvariants(r); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		if accept {
			// The note is back with Medical Records; nobody holds it.
			if err := s.repo.ClearCustody(ctx, r.ID); err != nil {
				return err
			}
			r.CurrentPICUserID = ""
			r.CurrentHandoverID = nil
			r.HandoverStatus = HandoverNone
		}
		e.RequestID = r.ID
		if err := s.events.Record(ctx, e); err != nil {
			return err
		}
		db.OnCommit(ctx, func() { s.notifier.Notify(e) })
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RejectNotReceived closes a request whose physical note was never actually
// transferred, with its own distinct audit trail entry.
func (s *Service) RejectNotReceived(ctx context.Context, id uuid.UUID, mrStaffID, reason string) (*Request, error) {
	if mrStaffID == "" {
		return nil, apperr.Validation("actor id is required")
	}
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}
	return s.transition(ctx, id, func(r *Request) (*event.Event, error) {
		if r.Status != StatusApproved && r.Status != StatusInProgress {
			return nil, apperr.Precondition("cannot reject-not-received request in status %q", r.Status)
		}
		if r.IsReceived {
			return nil, apperr.Precondition("request was already received")
		}
		now := time.Now().UTC()
		r.Status = StatusRejected
		r.RejectedAt = &now
		r.RejectedBy = &mrStaffID
		r.RejectionReason = &reason
		return &event.Event{
			Type:        event.TypeRejectedNotReceived,
			ActorUserID: mrStaffID,
			Reason:      &reason,
			Metadata:    map[string]string{"holder": r.CurrentPICUserID, "request_number": r.RequestNumber},
		}, nil
	})
}

// SubmitFiling opens the filing sub-flow on a completed request, assigning
// a filing number.
func (s *Service) SubmitFiling(ctx context.Context, id uuid.UUID, actorID string) (*Request, error) {
	if actorID == "" {
		return nil, apperr.Validation("actor id is required")
	}
	return s.transition(ctx, id, func(r *Request) (*event.Event, error) {
		if r.Status != StatusCompleted {
			return nil, apperr.Precondition("cannot file request in status %q", r.Status)
		}
		if r.FilingStatus != nil {
			return nil, apperr.Precondition("filing already %s", *r.FilingStatus)
		}
		now := time.Now().UTC()
		dateKey := sequence.DateKey(now)
		seq, err := s.seq.Next(ctx, dateKey)
		if err != nil {
			return nil, err
		}
		number := sequence.FormatNumber(s.filingPrefix, dateKey, seq)
		status := FilingPending
		r.FilingNumber = &number
		r.FilingStatus = &status
		return &event.Event{
			Type:        event.TypeFilingSubmitted,
			ActorUserID: actorID,
			Metadata:    map[string]string{"filing_number": number},
		}, nil
	})
}

// ResolveFiling approves or rejects a pending filing submission.
func (s *Service) ResolveFiling(ctx context.Context, id uuid.UUID, mrStaffID string, approve bool, notes *string) (*Request, error) {
	if mrStaffID == "" {
		return nil, apperr.Validation("actor id is required")
	}
	return s.transition(ctx, id, func(r *Request) (*event.Event, error) {
		if r.FilingStatus == nil || *r.FilingStatus != FilingPending {
			return nil, apperr.Precondition("no pending filing submission")
		}
		status := FilingRejected
		typ := event.TypeFilingRejected
		if approve {
			status = FilingApproved
			typ = event.TypeFilingApproved
		}
		r.FilingStatus = &status
		e := &event.Event{Type: typ, ActorUserID: mrStaffID}
		if notes != nil {
			e.Metadata = map[string]string{"notes": *notes}
		}
		return e, nil
	})
}

// MarkSentOut records the physical note leaving the facility.
func (s *Service) MarkSentOut(ctx context.Context, id uuid.UUID, actorID string, toPerson *string, toLocationID *uuid.UUID) (*Request, error) {
	if actorID == "" {
		return nil, apperr.Validation("actor id is required")
	}
	if toLocationID != nil {
		if err := s.refs.LocationActive(ctx, *toLocationID); err != nil {
			return nil, err
		}
	}
	return s.transition(ctx, id, func(r *Request) (*event.Event, error) {
		if !r.IsReceived {
			return nil, apperr.Precondition("cannot send out a request that was never received")
		}
		now := time.Now().UTC()
		r.SentOutAt = &now
		return &event.Event{
			Type:         event.TypeSentOut,
			ActorUserID:  actorID,
			ToPerson:     toPerson,
			ToLocationID: toLocationID,
		}, nil
	})
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByNumber returns a request by its human-readable number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Request, error) {
	return s.repo.GetByNumber(ctx, number)
}

// List returns requests matching the filter.
func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Request, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}
