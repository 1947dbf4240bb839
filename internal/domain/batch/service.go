package batch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/casetrack/casetrack/internal/domain/request"
	"github.com/casetrack/casetrack/internal/domain/sequence"
	"github.com/casetrack/casetrack/internal/platform/apperr"
	"github.com/casetrack/casetrack/internal/platform/db"
	"github.com/casetrack/casetrack/internal/platform/refdata"
)

// Service aggregates case-note requests into batches. Member creation and
// receipt verification delegate to the request service inside the batch's
// own transaction, so a batch is all-or-nothing on create.
type Service struct {
	runner   db.TxRunner
	repo     Repository
	requests *request.Service
	seq      sequence.Allocator
	refs     refdata.Checker

	batchPrefix string
}

func NewService(runner db.TxRunner, repo Repository, requests *request.Service, seq sequence.Allocator, refs refdata.Checker) *Service {
	return &Service{
		runner:      runner,
		repo:        repo,
		requests:    requests,
		seq:         seq,
		refs:        refs,
		batchPrefix: "BN",
	}
}

// SetNumberPrefix overrides the batch number prefix.
func (s *Service) SetNumberPrefix(prefix string) {
	if prefix != "" {
		s.batchPrefix = prefix
	}
}

// View is a batch with its member roll-up. Status is always the derived
// value, never the stored cache.
type View struct {
	*Batch
	Counts  Counts             `json:"counts"`
	Members []*request.Request `json:"members,omitempty"`
}

// CreateParams describes a grouped submission. Every member shares the
// classification; each gets its own request number and created event.
type CreateParams struct {
	RequesterID  string
	PatientIDs   []uuid.UUID
	DepartmentID uuid.UUID
	LocationID   uuid.UUID
	Priority     string
	Purpose      *string
	NeededBy     *time.Time
}

// Create allocates a batch number and creates one request per patient in a
// single transaction.
func (s *Service) Create(ctx context.Context, p CreateParams) (*View, error) {
	if p.RequesterID == "" {
		return nil, apperr.Validation("requester id is required")
	}
	if len(p.PatientIDs) == 0 {
		return nil, apperr.Validation("a batch needs at least one patient")
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
	if err := s.refs.LocationActive(ctx, p.LocationID); err != nil {
		return nil, err
	}

	var out *View
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		dateKey := sequence.DateKey(now)
		seq, err := s.seq.Next(ctx, dateKey)
		if err != nil {
			return err
		}

		b := &Batch{
			ID:           uuid.New(),
			BatchNumber:  sequence.FormatNumber(s.batchPrefix, dateKey, seq),
			RequestedBy:  p.RequesterID,
			DepartmentID: p.DepartmentID,
			LocationID:   p.LocationID,
			Priority:     p.Priority,
			Purpose:      p.Purpose,
			NeededBy:     p.NeededBy,
			Status:       StatusPending,
		}
		if err := s.repo.Create(ctx, b); err != nil {
			return err
		}

		members := make([]*request.Request, 0, len(p.PatientIDs))
		for _, patientID := range p.PatientIDs {
			r, err := s.requests.Create(ctx, request.CreateParams{
				PatientID:    patientID,
				DepartmentID: p.DepartmentID,
				LocationID:   p.LocationID,
				Priority:     p.Priority,
				Purpose:      p.Purpose,
				NeededBy:     p.NeededBy,
				BatchID:      &b.ID,
				RequesterID:  p.RequesterID,
			})
			if err != nil {
				return err
			}
			members = append(members, r)
		}

		out = &View{Batch: b, Counts: CountMembers(members), Members: members}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a batch with counts and derived status recomputed from its
// members. The read never writes: the stored columns are a cache refreshed
// only by VerifyReceipt's transaction, so concurrent reads cannot race on
// the row.
func (s *Service) Get(ctx context.Context, id uuid.UUID, withMembers bool) (*View, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.requests.Repo().ListByBatch(ctx, id)
	if err != nil {
		return nil, err
	}

	counts := CountMembers(members)
	view := *b
	view.Status = DeriveStatus(counts)
	view.ApprovedCount = counts.Approved
	view.ReceivedCount = counts.Received
	view.IsVerified = counts.Approved > 0 && counts.Received >= counts.Approved

	v := &View{Batch: &view, Counts: counts}
	if withMembers {
		v.Members = members
	}
	return v, nil
}

// List returns batches matching the filter. Stored statuses may lag member
// transitions; Get is the authoritative read.
func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Batch, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// VerifyReceipt confirms physical receipt for a subset of a batch's
// approved members, in one transaction. Non-member ids and members that
// were never approved fail the whole call.
func (s *Service) VerifyReceipt(ctx context.Context, batchID uuid.UUID, caID string, receivedRequestIDs []uuid.UUID, notes *string) (*View, error) {
	if caID == "" {
		return nil, apperr.Validation("verifier id is required")
	}
	if len(receivedRequestIDs) == 0 {
		return nil, apperr.Validation("no request ids to verify")
	}

	var out *View
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		members, err := s.requests.Repo().ListByBatch(ctx, batchID)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*request.Request, len(members))
		for _, m := range members {
			byID[m.ID] = m
		}

		for _, id := range receivedRequestIDs {
			m, ok := byID[id]
			if !ok {
				return apperr.Precondition("request %s is not a member of batch %s", id, b.BatchNumber)
			}
			if !approvedLineage(m.Status) {
				return apperr.Precondition("request %s was never approved", m.RequestNumber)
			}
			if _, err := s.requests.MarkReceived(ctx, id, caID, notes); err != nil {
				return err
			}
		}

		members, err = s.requests.Repo().ListByBatch(ctx, batchID)
		if err != nil {
			return err
		}
		counts := CountMembers(members)
		b.Status = DeriveStatus(counts)
		b.ApprovedCount = counts.Approved
		b.ReceivedCount = counts.Received
		b.IsVerified = counts.Approved > 0 && counts.Received >= counts.Approved
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}

		out = &View{Batch: b, Counts: counts}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
