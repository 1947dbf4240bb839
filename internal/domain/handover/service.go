package handover

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/casetrack/casetrack/internal/domain/event"
	"github.com/casetrack/casetrack/internal/domain/request"
	"github.com/casetrack/casetrack/internal/platform/apperr"
	"github.com/casetrack/casetrack/internal/platform/db"
	"github.com/casetrack/casetrack/internal/platform/refdata"
)

// Service drives the custody machine. Custody (current_pic_user_id) moves
// only in Acknowledge (direct protocol) and Verify (mediated protocol);
// every other step is paperwork around it.
type Service struct {
	runner   db.TxRunner
	repo     Repository
	requests request.Repository
	events   *event.Recorder
	refs     refdata.Checker
	notifier event.Notifier
}

func NewService(runner db.TxRunner, repo Repository, requests request.Repository, events *event.Recorder, refs refdata.Checker) *Service {
	return &Service{
		runner:   runner,
		repo:     repo,
		requests: requests,
		events:   events,
		refs:     refs,
		notifier: event.NopNotifier{},
	}
}

// SetNotifier attaches the post-commit event notifier.
func (s *Service) SetNotifier(n event.Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// InitiateParams describes a direct handover push by the current holder.
type InitiateParams struct {
	RequestID    uuid.UUID
	FromUserID   string
	ToUserID     string
	DepartmentID uuid.UUID
	LocationID   *uuid.UUID
	DoctorID     *uuid.UUID
	Notes        *string
}

// Initiate opens a direct handover: the holder pushes custody toward
// ToUserID. The request must be approved and physically received, with no
// other handover in flight.
func (s *Service) Initiate(ctx context.Context, p InitiateParams) (*Handover, error) {
	if p.FromUserID == "" || p.ToUserID == "" {
		return nil, apperr.Validation("both handover parties are required")
	}
	if p.FromUserID == p.ToUserID {
		return nil, apperr.Validation("cannot hand over a case note to its current holder")
	}
	if err := s.refs.DepartmentActive(ctx, p.DepartmentID); err != nil {
		return nil, err
	}
	if p.LocationID != nil {
		if err := s.refs.LocationActive(ctx, *p.LocationID); err != nil {
			return nil, err
		}
	}
	if p.DoctorID != nil {
		if err := s.refs.DoctorActive(ctx, *p.DoctorID); err != nil {
			return nil, err
		}
	}

	var out *Handover
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		r, err := s.requests.GetForUpdate(ctx, p.RequestID)
		if err != nil {
			return err
		}
		if r.Status != request.StatusApproved {
			return apperr.Precondition("cannot hand over request in status %q", r.Status)
		}
		if !r.IsReceived {
			return apperr.Precondition("cannot hand over a request that was never received")
		}
		if r.HandoverStatus == request.HandoverPending || r.HandoverStatus == request.HandoverInProgress {
			return apperr.Precondition("a handover is already in flight")
		}
		if r.CurrentPICUserID != p.FromUserID {
			return apperr.Precondition("only the current holder can initiate a handover")
		}

		h := &Handover{
			ID:                uuid.New(),
			CaseNoteRequestID: r.ID,
			HandedOverBy:      p.FromUserID,
			HandedOverTo:      p.ToUserID,
			DepartmentID:      p.DepartmentID,
			LocationID:        p.LocationID,
			DoctorID:          p.DoctorID,
			Status:            StatusPending,
			Notes:             p.Notes,
			HandedOverAt:      time.Now().UTC(),
		}
		if err := s.repo.CreateHandover(ctx, h); err != nil {
			return err
		}

		if err := s.pointRequestAt(ctx, r, h.ID, r.CurrentPICUserID, request.HandoverPending); err != nil {
			return err
		}

		e := &event.Event{
			RequestID:    r.ID,
			Type:         event.TypeHandedOver,
			ActorUserID:  p.FromUserID,
			ToLocationID: p.LocationID,
			Metadata:     map[string]string{"handover_id": h.ID.String(), "to_user_id": p.ToUserID},
		}
		if err := s.events.Record(ctx, e); err != nil {
			return err
		}
		db.OnCommit(ctx, func() { s.notifier.Notify(e) })
		out = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// pointRequestAt writes the custody triple through the narrow repository
// method, after re-checking the aggregate's cross-machine invariants.
func (s *Service) pointRequestAt(ctx context.Context, r *request.Request, handoverID uuid.UUID, picUserID, handoverStatus string) error {
	next := *r
	next.CurrentPICUserID = picUserID
	next.CurrentHandoverID = &handoverID
	next.HandoverStatus = handoverStatus
	if err := request.CheckInvariants(&next); err != nil {
		return err
	}
	if err := s.requests.UpdateCustody(ctx, r.ID, picUserID, &handoverID, handoverStatus); err != nil {
		return err
	}
	*r = next
	return nil
}

// Acknowledge is MR staff's paperwork confirmation of a pending direct
// handover. Custody moves to the receiving user here; the physical receipt
// is confirmed separately by ConfirmReceipt.
func (s *Service) Acknowledge(ctx context.Context, handoverID uuid.UUID, mrStaffID string, notes *string) (*Handover, error) {
	if mrStaffID == "" {
		return nil, apperr.Validation("acknowledging staff id is required")
	}

	var out *Handover
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		h, err := s.repo.GetHandoverForUpdate(ctx, handoverID)
		if err != nil {
			return err
		}
		if h.Status != StatusPending {
			return apperr.Precondition("cannot acknowledge handover in status %q", h.Status)
		}
		r, err := s.requests.GetForUpdate(ctx, h.CaseNoteRequestID)
		if err != nil {
			return err
		}
		if r.CurrentHandoverID == nil || *r.CurrentHandoverID != h.ID {
			return apperr.Conflict("handover %s has been superseded", h.ID)
		}

		now := time.Now().UTC()
		h.Status = StatusAcknowledged
		h.VerifiedAt = &now
		if err := s.repo.UpdateHandover(ctx, h); err != nil {
			return err
		}

		if err := s.pointRequestAt(ctx, r, h.ID, h.HandedOverTo, request.HandoverCompleted); err != nil {
			return err
		}

		e := &event.Event{
			RequestID:   r.ID,
			Type:        event.TypeHandoverVerified,
			ActorUserID: mrStaffID,
			Metadata:    map[string]string{"handover_id": h.ID.String(), "new_holder": h.HandedOverTo},
		}
		if notes != nil {
			e.Metadata["notes"] = *notes
		}
		if err := s.events.Record(ctx, e); err != nil {
			return err
		}
		db.OnCommit(ctx, func() { s.notifier.Notify(e) })
		out = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmReceipt is the new holder's confirmation that the physical note
// arrived, closing the direct handover. Confirming an already-completed
// handover is an idempotent no-op.
func (s *Service) ConfirmReceipt(ctx context.Context, handoverID uuid.UUID, holderID string, notes *string) (*Handover, error) {
	if holderID == "" {
		return nil, apperr.Validation("holder id is required")
	}

	var out *Handover
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		h, err := s.repo.GetHandoverForUpdate(ctx, handoverID)
		if err != nil {
			return err
		}
		if h.Status == StatusCompleted {
			out = h
			return nil
		}
		if h.Status != StatusAcknowledged {
			return apperr.Precondition("cannot confirm receipt of handover in status %q", h.Status)
		}
		if h.HandedOverTo != holderID {
			return apperr.Precondition("only the receiving holder can confirm receipt")
		}

		h.Status = StatusCompleted
		if err := s.repo.UpdateHandover(ctx, h); err != nil {
			return err
		}

		e := &event.Event{
			RequestID:   h.CaseNoteRequestID,
			Type:        event.TypeAcknowledgedReceived,
			ActorUserID: holderID,
			Metadata:    map[string]string{"handover_id": h.ID.String()},
		}
		if notes != nil {
			e.Metadata["notes"] = *notes
		}
		if err := s.events.Record(ctx, e); err != nil {
			return err
		}
		db.OnCommit(ctx, func() { s.notifier.Notify(e) })
		out = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AmendParams carries corrections to a pending handover's routing fields.
type AmendParams struct {
	DepartmentID *uuid.UUID
	LocationID   *uuid.UUID
	DoctorID     *uuid.UUID
}

// AmendDetails fixes the routing of a still-pending handover, leaving an
// audit trail entry for the correction.
func (s *Service) AmendDetails(ctx context.Context, handoverID uuid.UUID, actorID string, p AmendParams) (*Handover, error) {
	if actorID == "" {
		return nil, apperr.Validation("actor id is required")
	}
	if p.DepartmentID == nil && p.LocationID == nil && p.DoctorID == nil {
		return nil, apperr.Validation("nothing to amend")
	}
	if p.DepartmentID != nil {
		if err := s.refs.DepartmentActive(ctx, *p.DepartmentID); err != nil {
			return nil, err
		}
	}
	if p.LocationID != nil {
		if err := s.refs.LocationActive(ctx, *p.LocationID); err != nil {
			return nil, err
		}
	}
	if p.DoctorID != nil {
		if err := s.refs.DoctorActive(ctx, *p.DoctorID); err != nil {
			return nil, err
		}
	}

	var out *Handover
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		h, err := s.repo.GetHandoverForUpdate(ctx, handoverID)
		if err != nil {
			return err
		}
		if h.Status != StatusPending {
			return apperr.Precondition("cannot amend handover in status %q", h.Status)
		}

		meta := map[string]string{"handover_id": h.ID.String()}
		if p.DepartmentID != nil {
			h.DepartmentID = *p.DepartmentID
			meta["department_id"] = p.DepartmentID.String()
		}
		if p.LocationID != nil {
			h.LocationID = p.LocationID
			meta["location_id"] = p.LocationID.String()
		}
		if p.DoctorID != nil {
			h.DoctorID = p.DoctorID
			meta["doctor_id"] = p.DoctorID.String()
		}
		if err := s.repo.UpdateHandover(ctx, h); err != nil {
			return err
		}

		e := &event.Event{
			RequestID:   h.CaseNoteRequestID,
			Type:        event.TypeHandoverDataFixed,
			ActorUserID: actorID,
			Metadata:    meta,
		}
		if err := s.events.Record(ctx, e); err != nil {
			return err
		}
		db.OnCommit(ctx, func() { s.notifier.Notify(e) })
		out = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RequestParams describes a mediated pull request for custody.
type RequestParams struct {
	CaseNoteID   uuid.UUID
	RequesterID  string
	Reason       string
	Priority     string
	DepartmentID uuid.UUID
	LocationID   *uuid.UUID
	DoctorID     *uuid.UUID
}

// Request opens a mediated handover request: a proposal, not a commitment.
// The target case-note request is untouched until the holder responds.
func (s *Service) Request(ctx context.Context, p RequestParams) (*HandoverRequest, error) {
	if p.RequesterID == "" {
		return nil, apperr.Validation("requester id is required")
	}
	if p.Reason == "" {
		return nil, apperr.Validation("reason is required")
	}
	if p.Priority == "" {
		p.Priority = request.PriorityNormal
	}
	if !request.ValidPriority(p.Priority) {
		return nil, apperr.Validation("invalid priority %q", p.Priority)
	}
	if err := s.refs.DepartmentActive(ctx, p.DepartmentID); err != nil {
		return nil, err
	}
	if p.LocationID != nil {
		if err := s.refs.LocationActive(ctx, *p.LocationID); err != nil {
			return nil, err
		}
	}
	if p.DoctorID != nil {
		if err := s.refs.DoctorActive(ctx, *p.DoctorID); err != nil {
			return nil, err
		}
	}

	var out *HandoverRequest
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		// The holder snapshot and the proposal row commit together, so
		// the proposal can never name a holder the case note had already
		// left when it was written.
		r, err := s.requests.GetByID(ctx, p.CaseNoteID)
		if err != nil {
			return err
		}
		if r.CurrentPICUserID == "" {
			return apperr.Precondition("case note has no current holder")
		}
		if r.CurrentPICUserID == p.RequesterID {
			return apperr.Validation("requester already holds this case note")
		}

		hr := &HandoverRequest{
			ID:                  uuid.New(),
			CaseNoteID:          r.ID,
			RequestedBy:         p.RequesterID,
			CurrentHolderUserID: r.CurrentPICUserID,
			Reason:              p.Reason,
			Priority:            p.Priority,
			DepartmentID:        p.DepartmentID,
			LocationID:          p.LocationID,
			DoctorID:            p.DoctorID,
			Status:              RequestPending,
			RequestedAt:         time.Now().UTC(),
		}
		if err := s.repo.CreateHandoverRequest(ctx, hr); err != nil {
			return err
		}

		e := &event.Event{
			RequestID:   r.ID,
			Type:        event.TypeHandoverRequested,
			ActorUserID: p.RequesterID,
			Reason:      &p.Reason,
			Metadata: map[string]string{
				"handover_request_id": hr.ID.String(),
				"holder":              hr.CurrentHolderUserID,
				"requested_by":        hr.RequestedBy,
			},
		}
		if err := s.events.Record(ctx, e); err != nil {
			return err
		}
		db.OnCommit(ctx, func() { s.notifier.Notify(e) })
		out = hr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Respond is the current holder's answer to a mediated request. Rejection
// is terminal and leaves the case note untouched. Approval creates the
// companion custody record and parks both sides in
// approved_pending_verification; custody has not moved yet.
func (s *Service) Respond(ctx context.Context, handoverRequestID uuid.UUID, holderID string, approve bool, notes *string) (*HandoverRequest, error) {
	if holderID == "" {
		return nil, apperr.Validation("holder id is required")
	}

	var out *HandoverRequest
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		hr, err := s.repo.GetHandoverRequestForUpdate(ctx, handoverRequestID)
		if err != nil {
			return err
		}
		if hr.Status != RequestPending {
			return apperr.Precondition("cannot respond to handover request in status %q", hr.Status)
		}
		if hr.CurrentHolderUserID != holderID {
			return apperr.Precondition("only the current holder can respond to this request")
		}

		now := time.Now().UTC()
		hr.RespondedAt = &now
		hr.ResponseNotes = notes

		if !approve {
			hr.Status = RequestRejected
			if err := s.repo.UpdateHandoverRequest(ctx, hr); err != nil {
				return err
			}
			e := &event.Event{
				RequestID:   hr.CaseNoteID,
				Type:        event.TypeHandoverRejected,
				ActorUserID: holderID,
				Reason:      notes,
				Metadata:    map[string]string{"handover_request_id": hr.ID.String()},
			}
			if err := s.events.Record(ctx, e); err != nil {
				return err
			}
			db.OnCommit(ctx, func() { s.notifier.Notify(e) })
			out = hr
			return nil
		}

		r, err := s.requests.GetForUpdate(ctx, hr.CaseNoteID)
		if err != nil {
			return err
		}
		if r.CurrentPICUserID != holderID {
			return apperr.Conflict("custody of the case note moved since this request was made")
		}
		if r.HandoverStatus == request.HandoverPending || r.HandoverStatus == request.HandoverInProgress {
			return apperr.Precondition("a handover is already in flight")
		}

		// The companion custody record keeps current_handover_id
		// resolvable while the transfer awaits verification.
		h := &Handover{
			ID:                uuid.New(),
			CaseNoteRequestID: r.ID,
			HandedOverBy:      holderID,
			HandedOverTo:      hr.RequestedBy,
			DepartmentID:      hr.DepartmentID,
			LocationID:        hr.LocationID,
			DoctorID:          hr.DoctorID,
			Status:            StatusPending,
			HandedOverAt:      now,
		}
		if err := s.repo.CreateHandover(ctx, h); err != nil {
			return err
		}

		hr.Status = RequestApprovedPendingVerify
		hr.HandoverID = &h.ID
		if err := s.repo.UpdateHandoverRequest(ctx, hr); err != nil {
			return err
		}

		if err := s.pointRequestAt(ctx, r, h.ID, r.CurrentPICUserID, request.HandoverApprovedPendingVerify); err != nil {
			return err
		}

		e := &event.Event{
			RequestID:   r.ID,
			Type:        event.TypeHandoverApproved,
			ActorUserID: holderID,
			Metadata:    map[string]string{"handover_request_id": hr.ID.String(), "handover_id": h.ID.String()},
		}
		if err := s.events.Record(ctx, e); err != nil {
			return err
		}
		db.OnCommit(ctx, func() { s.notifier.Notify(e) })
		out = hr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Verify confirms the physical transfer of an approved mediated request.
// Only now does custody move to the original requester. Verifying an
// already-verified request is an idempotent no-op.
func (s *Service) Verify(ctx context.Context, handoverRequestID uuid.UUID, verifierID string, notes *string) (*HandoverRequest, error) {
	if verifierID == "" {
		return nil, apperr.Validation("verifier id is required")
	}

	var out *HandoverRequest
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		hr, err := s.repo.GetHandoverRequestForUpdate(ctx, handoverRequestID)
		if err != nil {
			return err
		}
		if hr.Status == RequestVerified {
			out = hr
			return nil
		}
		if hr.Status != RequestApprovedPendingVerify {
			return apperr.Precondition("cannot verify handover request in status %q", hr.Status)
		}
		r, err := s.requests.GetForUpdate(ctx, hr.CaseNoteID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		hr.Status = RequestVerified
		hr.VerifiedAt = &now
		hr.VerifiedBy = &verifierID
		hr.VerificationNotes = notes
		if err := s.repo.UpdateHandoverRequest(ctx, hr); err != nil {
			return err
		}

		if hr.HandoverID != nil {
			h, err := s.repo.GetHandoverForUpdate(ctx, *hr.HandoverID)
			if err != nil {
				return err
			}
			h.Status = StatusCompleted
			h.VerifiedAt = &now
			if err := s.repo.UpdateHandover(ctx, h); err != nil {
				return err
			}

			if err := s.pointRequestAt(ctx, r, h.ID, hr.RequestedBy, request.HandoverVerified); err != nil {
				return err
			}
		}

		e := &event.Event{
			RequestID:   r.ID,
			Type:        event.TypeHandoverVerified,
			ActorUserID: verifierID,
			Metadata:    map[string]string{"handover_request_id": hr.ID.String(), "new_holder": hr.RequestedBy},
		}
		if notes != nil {
			e.Metadata["notes"] = *notes
		}
		if err := s.events.Record(ctx, e); err != nil {
			return err
		}
		db.OnCommit(ctx, func() { s.notifier.Notify(e) })
		out = hr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetHandover returns one direct handover record.
func (s *Service) GetHandover(ctx context.Context, id uuid.UUID) (*Handover, error) {
	return s.repo.GetHandover(ctx, id)
}

// ListHandovers returns the custody history of one case-note request.
func (s *Service) ListHandovers(ctx context.Context, requestID uuid.UUID) ([]*Handover, error) {
	return s.repo.ListHandoversByRequest(ctx, requestID)
}

// GetHandoverRequest returns one mediated request.
func (s *Service) GetHandoverRequest(ctx context.Context, id uuid.UUID) (*HandoverRequest, error) {
	return s.repo.GetHandoverRequest(ctx, id)
}

// ListHandoverRequests returns mediated requests matching the filter.
func (s *Service) ListHandoverRequests(ctx context.Context, f RequestFilter, limit, offset int) ([]*HandoverRequest, int, error) {
	return s.repo.ListHandoverRequests(ctx, f, limit, offset)
}
