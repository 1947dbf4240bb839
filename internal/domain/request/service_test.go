package request

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/casetrack/casetrack/internal/domain/event"
	"github.com/casetrack/casetrack/internal/domain/sequence"
	"github.com/casetrack/casetrack/internal/platform/apperr"
	"github.com/casetrack/casetrack/internal/platform/db"
	"github.com/casetrack/casetrack/internal/platform/refdata"
)

type fixture struct {
	svc    *Service
	repo   *MemoryRepository
	events *event.MemoryRepository
	alloc  *sequence.MemoryAllocator

	deptID uuid.UUID
	locID  uuid.UUID
	docID  uuid.UUID
}

func newFixture() *fixture {
	repo := NewMemoryRepository()
	events := event.NewMemoryRepository()
	alloc := sequence.NewMemoryAllocator()

	refs := refdata.NewMemoryChecker()
	deptID, locID, docID := uuid.New(), uuid.New(), uuid.New()
	refs.AddDepartment(deptID, true)
	refs.AddLocation(locID, true)
	refs.AddDoctor(docID, true)

	recorder := event.NewRecorder(events, event.NewRegistry())
	svc := NewService(db.PassthroughRunner{}, repo, recorder, alloc, refs)
	return &fixture{svc: svc, repo: repo, events: events, alloc: alloc, deptID: deptID, locID: locID, docID: docID}
}

func (f *fixture) create(t *testing.T) *Request {
	t.Helper()
	r, err := f.svc.Create(context.Background(), CreateParams{
		PatientID:    uuid.New(),
		DepartmentID: f.deptID,
		LocationID:   f.locID,
		RequesterID:  "ca-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return r
}

func (f *fixture) approved(t *testing.T) *Request {
	t.Helper()
	r := f.create(t)
	r, err := f.svc.Approve(context.Background(), r.ID, "mr-1", nil)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return r
}

func (f *fixture) received(t *testing.T) *Request {
	t.Helper()
	r := f.approved(t)
	r, err := f.svc.MarkReceived(context.Background(), r.ID, "ca-1", nil)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	return r
}

func eventTypes(events []*event.Event, requestID uuid.UUID) []string {
	var types []string
	for _, e := range events {
		if e.RequestID == requestID {
			types = append(types, e.Type)
		}
	}
	return types
}

func TestCreateAllocatesSequentialNumbers(t *testing.T) {
	f := newFixture()
	r1 := f.create(t)
	r2 := f.create(t)

	if r1.RequestNumber == r2.RequestNumber {
		t.Fatalf("duplicate request numbers: %s", r1.RequestNumber)
	}
	if r1.Status != StatusPending || r1.HandoverStatus != HandoverNone {
		t.Errorf("new request in %s/%s, want pending/none", r1.Status, r1.HandoverStatus)
	}
	if r1.CurrentPICUserID != "ca-1" {
		t.Errorf("initial holder = %q, want requester", r1.CurrentPICUserID)
	}
}

func TestCreateInvalidPriority(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), CreateParams{
		PatientID:    uuid.New(),
		DepartmentID: f.deptID,
		LocationID:   f.locID,
		Priority:     "asap",
		RequesterID:  "ca-1",
	})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestCreateInactiveDepartment(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), CreateParams{
		PatientID:    uuid.New(),
		DepartmentID: uuid.New(),
		LocationID:   f.locID,
		RequesterID:  "ca-1",
	})
	if apperr.KindOf(err) != apperr.KindReference {
		t.Fatalf("err = %v, want reference error", err)
	}
}

func TestCreateSequenceFailureCreatesNothing(t *testing.T) {
	f := newFixture()
	f.alloc.Fail = apperr.SequenceUnavailable(context.DeadlineExceeded)

	_, err := f.svc.Create(context.Background(), CreateParams{
		PatientID:    uuid.New(),
		DepartmentID: f.deptID,
		LocationID:   f.locID,
		RequesterID:  "ca-1",
	})
	if apperr.KindOf(err) != apperr.KindSequence {
		t.Fatalf("err = %v, want sequence error", err)
	}
	if _, total, _ := f.repo.List(context.Background(), Filter{}, 10, 0); total != 0 {
		t.Errorf("request persisted despite allocation failure")
	}
	if len(f.events.All()) != 0 {
		t.Errorf("events recorded despite allocation failure")
	}
}

func TestApproveRecordsTrail(t *testing.T) {
	f := newFixture()
	r := f.create(t)
	remarks := "ok for clinic"
	r, err := f.svc.Approve(context.Background(), r.ID, "mr-1", &remarks)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if r.Status != StatusApproved || r.ApprovedAt == nil || *r.ApprovedBy != "mr-1" {
		t.Errorf("approved fields not set: %+v", r)
	}
	got := eventTypes(f.events.All(), r.ID)
	want := []string{event.TypeCreated, event.TypeApproved}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("event trail = %v, want %v", got, want)
	}
}

func TestApproveNonPending(t *testing.T) {
	f := newFixture()
	r := f.approved(t)
	_, err := f.svc.Approve(context.Background(), r.ID, "mr-2", nil)
	if apperr.KindOf(err) != apperr.KindPrecondition {
		t.Fatalf("err = %v, want precondition error", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture()
	r := f.create(t)
	if _, err := f.svc.Reject(context.Background(), r.ID, "mr-1", ""); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
	r, err := f.svc.Reject(context.Background(), r.ID, "mr-1", "duplicate request")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if r.Status != StatusRejected || r.RejectionReason == nil {
		t.Errorf("rejected fields not set: %+v", r)
	}
}

func TestMarkReceivedIdempotent(t *testing.T) {
	f := newFixture()
	r := f.received(t)
	before := len(f.events.All())

	again, err := f.svc.MarkReceived(context.Background(), r.ID, "ca-2", nil)
	if err != nil {
		t.Fatalf("second receive: %v", err)
	}
	if *again.ReceivedBy != "ca-1" {
		t.Errorf("second receive overwrote receiver: %q", *again.ReceivedBy)
	}
	if got := len(f.events.All()); got != before {
		t.Errorf("idempotent receive appended %d events", got-before)
	}
}

func TestMarkReceivedPending(t *testing.T) {
	f := newFixture()
	r := f.create(t)
	_, err := f.svc.MarkReceived(context.Background(), r.ID, "ca-1", nil)
	if apperr.KindOf(err) != apperr.KindPrecondition {
		t.Fatalf("err = %v, want precondition error", err)
	}
}

func TestCompleteRequiresReceipt(t *testing.T) {
	f := newFixture()
	r := f.approved(t)
	if _, err := f.svc.Complete(context.Background(), r.ID, "ca-1", nil); apperr.KindOf(err) != apperr.KindPrecondition {
		t.Fatalf("err = %v, want precondition error", err)
	}

	r = f.received(t)
	r, err := f.svc.Complete(context.Background(), r.ID, "ca-1", nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if r.Status != StatusCompleted || r.CompletedAt == nil {
		t.Errorf("completed fields not set: %+v", r)
	}
}

func TestReturnAndVerifyAccept(t *testing.T) {
	f := newFixture()
	r := f.received(t)

	r, err := f.svc.MarkReturned(context.Background(), r.ID, "ca-1", nil)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if r.Status != StatusPendingReturnVerification || !r.IsReturned {
		t.Fatalf("return left request in %s", r.Status)
	}

	r, err = f.svc.VerifyReturn(context.Background(), r.ID, "mr-1", true, nil)
	if err != nil {
		t.Fatalf("verify return: %v", err)
	}
	if r.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", r.Status)
	}
	if r.CurrentPICUserID != "" || r.HandoverStatus != HandoverNone || r.CurrentHandoverID != nil {
		t.Errorf("custody not cleared: holder=%q handover=%s", r.CurrentPICUserID, r.HandoverStatus)
	}

	// Retrying the verification must not change anything.
	before := len(f.events.All())
	if _, err := f.svc.VerifyReturn(context.Background(), r.ID, "mr-1", true, nil); err != nil {
		t.Fatalf("repeat verify: %v", err)
	}
	if got := len(f.events.All()); got != before {
		t.Errorf("idempotent verify appended %d events", got-before)
	}

	got := eventTypes(f.events.All(), r.ID)
	want := []string{event.TypeCreated, event.TypeApproved, event.TypeReceived, event.TypeReturned, event.TypeReturnedVerified}
	if len(got) != len(want) {
		t.Fatalf("event trail = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event trail = %v, want %v", got, want)
		}
	}
}

func TestVerifyReturnReject(t *testing.T) {
	f := newFixture()
	r := f.received(t)
	if _, err := f.svc.MarkReturned(context.Background(), r.ID, "ca-1", nil); err != nil {
		t.Fatalf("return: %v", err)
	}

	r, err := f.svc.VerifyReturn(context.Background(), r.ID, "mr-1", false, nil)
	if err != nil {
		t.Fatalf("verify return: %v", err)
	}
	if r.Status != StatusRejected || !r.IsRejectedReturn {
		t.Errorf("rejected return fields not set: %+v", r)
	}

	// Rejected verification is terminal and retry-safe too.
	if _, err := f.svc.VerifyReturn(context.Background(), r.ID, "mr-1", false, nil); err != nil {
		t.Fatalf("repeat reject verify: %v", err)
	}
}

func TestRejectNotReceived(t *testing.T) {
	f := newFixture()
	r := f.approved(t)
	r, err := f.svc.RejectNotReceived(context.Background(), r.ID, "mr-1", "note never arrived")
	if err != nil {
		t.Fatalf("reject not received: %v", err)
	}
	if r.Status != StatusRejected {
		t.Errorf("status = %s, want rejected", r.Status)
	}
	got := eventTypes(f.events.All(), r.ID)
	if got[len(got)-1] != event.TypeRejectedNotReceived {
		t.Errorf("last event = %s, want %s", got[len(got)-1], event.TypeRejectedNotReceived)
	}

	// Once the note has been received this path is closed.
	r2 := f.received(t)
	if _, err := f.svc.RejectNotReceived(context.Background(), r2.ID, "mr-1", "x"); apperr.KindOf(err) != apperr.KindPrecondition {
		t.Fatalf("err = %v, want precondition error", err)
	}
}

func TestFilingFlow(t *testing.T) {
	f := newFixture()
	r := f.received(t)
	r, err := f.svc.Complete(context.Background(), r.ID, "ca-1", nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	r, err = f.svc.SubmitFiling(context.Background(), r.ID, "ca-1")
	if err != nil {
		t.Fatalf("submit filing: %v", err)
	}
	if r.FilingNumber == nil || *r.FilingStatus != FilingPending {
		t.Fatalf("filing fields not set: %+v", r)
	}
	if _, err := f.svc.SubmitFiling(context.Background(), r.ID, "ca-1"); apperr.KindOf(err) != apperr.KindPrecondition {
		t.Fatalf("double submit err = %v, want precondition error", err)
	}

	r, err = f.svc.ResolveFiling(context.Background(), r.ID, "mr-1", true, nil)
	if err != nil {
		t.Fatalf("resolve filing: %v", err)
	}
	if *r.FilingStatus != FilingApproved {
		t.Errorf("filing status = %s, want approved", *r.FilingStatus)
	}
}

func TestListFiltersByHolder(t *testing.T) {
	f := newFixture()
	mine := f.create(t)
	other := f.create(t)

	if err := f.repo.UpdateCustody(context.Background(), other.ID, "ca-2", nil, HandoverNone); err != nil {
		t.Fatalf("move custody: %v", err)
	}

	items, total, err := f.svc.List(context.Background(), Filter{HolderUserID: "ca-1"}, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("got %d items (total %d), want 1", len(items), total)
	}
	if items[0].ID != mine.ID {
		t.Errorf("listed %s, want %s", items[0].ID, mine.ID)
	}
}

func TestMarkSentOutRequiresReceipt(t *testing.T) {
	f := newFixture()
	r := f.approved(t)
	person := "Dr. Lim"
	if _, err := f.svc.MarkSentOut(context.Background(), r.ID, "ca-1", &person, nil); apperr.KindOf(err) != apperr.KindPrecondition {
		t.Fatalf("err = %v, want precondition error", err)
	}

	r = f.received(t)
	r, err := f.svc.MarkSentOut(context.Background(), r.ID, "ca-1", &person, &f.locID)
	if err != nil {
		t.Fatalf("send out: %v", err)
	}
	if r.SentOutAt == nil {
		t.Errorf("sent_out_at not stamped")
	}
}
