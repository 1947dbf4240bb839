package batch

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/casetrack/casetrack/internal/domain/event"
	"github.com/casetrack/casetrack/internal/domain/request"
	"github.com/casetrack/casetrack/internal/domain/sequence"
	"github.com/casetrack/casetrack/internal/platform/apperr"
	"github.com/casetrack/casetrack/internal/platform/db"
	"github.com/casetrack/casetrack/internal/platform/refdata"
)

type fixture struct {
	svc      *Service
	requests *request.Service
	events   *event.MemoryRepository
	repo     *MemoryRepository

	deptID uuid.UUID
	locID  uuid.UUID
}

func newFixture() *fixture {
	reqRepo := request.NewMemoryRepository()
	events := event.NewMemoryRepository()

	refs := refdata.NewMemoryChecker()
	deptID, locID := uuid.New(), uuid.New()
	refs.AddDepartment(deptID, true)
	refs.AddLocation(locID, true)

	recorder := event.NewRecorder(events, event.NewRegistry())
	runner := db.PassthroughRunner{}
	alloc := sequence.NewMemoryAllocator()
	reqSvc := request.NewService(runner, reqRepo, recorder, alloc, refs)
	repo := NewMemoryRepository()
	svc := NewService(runner, repo, reqSvc, alloc, refs)
	return &fixture{svc: svc, requests: reqSvc, events: events, repo: repo, deptID: deptID, locID: locID}
}

func (f *fixture) createBatch(t *testing.T, n int) *View {
	t.Helper()
	patients := make([]uuid.UUID, n)
	for i := range patients {
		patients[i] = uuid.New()
	}
	v, err := f.svc.Create(context.Background(), CreateParams{
		RequesterID:  "ca-1",
		PatientIDs:   patients,
		DepartmentID: f.deptID,
		LocationID:   f.locID,
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return v
}

func TestCreateBatchLinksMembers(t *testing.T) {
	f := newFixture()
	v := f.createBatch(t, 3)

	if v.Status != StatusPending {
		t.Errorf("status = %s, want pending", v.Status)
	}
	if v.Counts.Total != 3 || v.Counts.Pending != 3 {
		t.Errorf("counts = %+v, want 3 pending of 3", v.Counts)
	}
	seen := map[string]bool{}
	for _, m := range v.Members {
		if m.BatchID == nil || *m.BatchID != v.ID {
			t.Errorf("member %s not linked to batch", m.RequestNumber)
		}
		if seen[m.RequestNumber] {
			t.Errorf("duplicate request number %s", m.RequestNumber)
		}
		seen[m.RequestNumber] = true
	}
	// Each member carries its own created event.
	created := 0
	for _, e := range f.events.All() {
		if e.Type == event.TypeCreated {
			created++
		}
	}
	if created != 3 {
		t.Errorf("created events = %d, want 3", created)
	}
}

type recordingNotifier struct {
	events []*event.Event
}

func (n *recordingNotifier) Notify(e *event.Event) { n.events = append(n.events, e) }

func TestCreateBatchHoldsNotificationsUntilCommit(t *testing.T) {
	reqRepo := request.NewMemoryRepository()
	events := event.NewMemoryRepository()
	refs := refdata.NewMemoryChecker()
	deptID, locID := uuid.New(), uuid.New()
	refs.AddDepartment(deptID, true)
	refs.AddLocation(locID, true)

	recorder := event.NewRecorder(events, event.NewRegistry())
	runner := db.PassthroughRunner{}
	alloc := sequence.NewMemoryAllocator()
	alloc.FailAfter = 2 // batch number + first member succeed, second member fails
	reqSvc := request.NewService(runner, reqRepo, recorder, alloc, refs)
	notifier := &recordingNotifier{}
	reqSvc.SetNotifier(notifier)
	svc := NewService(runner, NewMemoryRepository(), reqSvc, alloc, refs)

	_, err := svc.Create(context.Background(), CreateParams{
		RequesterID:  "ca-1",
		PatientIDs:   []uuid.UUID{uuid.New(), uuid.New()},
		DepartmentID: deptID,
		LocationID:   locID,
	})
	if err == nil {
		t.Fatal("create should fail when a member's number cannot be allocated")
	}
	if len(notifier.events) != 0 {
		t.Fatalf("%d notification(s) escaped a rolled-back batch, first type=%s",
			len(notifier.events), notifier.events[0].Type)
	}

	// A successful batch flushes one created notification per member.
	alloc.FailAfter = 0
	v, err := svc.Create(context.Background(), CreateParams{
		RequesterID:  "ca-1",
		PatientIDs:   []uuid.UUID{uuid.New(), uuid.New()},
		DepartmentID: deptID,
		LocationID:   locID,
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if len(notifier.events) != len(v.Members) {
		t.Fatalf("notifications = %d, want %d", len(notifier.events), len(v.Members))
	}
	for _, e := range notifier.events {
		if e.Type != event.TypeCreated {
			t.Errorf("notification type = %s, want created", e.Type)
		}
	}
}

func TestCreateBatchRejectsEmpty(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), CreateParams{
		RequesterID:  "ca-1",
		DepartmentID: f.deptID,
		LocationID:   f.locID,
	})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestDerivedStatusPartialApproval(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v := f.createBatch(t, 3)

	// Approve two members, reject one.
	if _, err := f.requests.Approve(ctx, v.Members[0].ID, "mr-1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.requests.Approve(ctx, v.Members[1].ID, "mr-1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.requests.Reject(ctx, v.Members[2].ID, "mr-1", "illegible form"); err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.Get(ctx, v.ID, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPartiallyApproved {
		t.Errorf("status = %s, want partially_approved", got.Status)
	}
	if got.Counts.Approved != 2 || got.Counts.Rejected != 1 || got.Counts.Pending != 0 {
		t.Errorf("counts = %+v", got.Counts)
	}
}

func TestDerivedStatusUnanimous(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v := f.createBatch(t, 2)

	for _, m := range v.Members {
		if _, err := f.requests.Approve(ctx, m.ID, "mr-1", nil); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := f.svc.Get(ctx, v.ID, false)
	if got.Status != StatusApproved {
		t.Errorf("status = %s, want approved", got.Status)
	}

	v2 := f.createBatch(t, 2)
	for _, m := range v2.Members {
		if _, err := f.requests.Reject(ctx, m.ID, "mr-1", "dup"); err != nil {
			t.Fatal(err)
		}
	}
	got2, _ := f.svc.Get(ctx, v2.ID, false)
	if got2.Status != StatusRejected {
		t.Errorf("status = %s, want rejected", got2.Status)
	}
}

func TestGetDoesNotWriteBack(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v := f.createBatch(t, 2)

	// Member transitions leave the stored batch row stale.
	if _, err := f.requests.Approve(ctx, v.Members[0].ID, "mr-1", nil); err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.Get(ctx, v.ID, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPartiallyApproved {
		t.Errorf("derived status = %s, want partially_approved", got.Status)
	}
	if got.ApprovedCount != 1 {
		t.Errorf("derived approved count = %d, want 1", got.ApprovedCount)
	}

	// The read must not have touched the persisted row.
	stored, err := f.repo.GetByID(ctx, v.ID)
	if err != nil {
		t.Fatalf("stored row: %v", err)
	}
	if stored.ApprovedCount != 0 || stored.ReceivedCount != 0 {
		t.Errorf("read path wrote counters back: %+v", stored)
	}
	if stored.Status != StatusPending {
		t.Errorf("read path wrote status back: %s", stored.Status)
	}
}

func TestVerifyReceiptPartialSubset(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v := f.createBatch(t, 3)

	for _, m := range v.Members[:2] {
		if _, err := f.requests.Approve(ctx, m.ID, "mr-1", nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.requests.Reject(ctx, v.Members[2].ID, "mr-1", "dup"); err != nil {
		t.Fatal(err)
	}

	// First subset: one of the two approved members.
	got, err := f.svc.VerifyReceipt(ctx, v.ID, "ca-1", []uuid.UUID{v.Members[0].ID}, nil)
	if err != nil {
		t.Fatalf("verify receipt: %v", err)
	}
	if got.Counts.Received != 1 || got.IsVerified {
		t.Errorf("after partial receipt: %+v verified=%v", got.Counts, got.IsVerified)
	}

	// Remaining approved member completes the roll-up.
	got, err = f.svc.VerifyReceipt(ctx, v.ID, "ca-1", []uuid.UUID{v.Members[1].ID}, nil)
	if err != nil {
		t.Fatalf("verify receipt: %v", err)
	}
	if got.Counts.Received != 2 || !got.IsVerified {
		t.Errorf("after full receipt: %+v verified=%v", got.Counts, got.IsVerified)
	}
}

func TestVerifyReceiptRejectsOutsiders(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v := f.createBatch(t, 1)
	if _, err := f.requests.Approve(ctx, v.Members[0].ID, "mr-1", nil); err != nil {
		t.Fatal(err)
	}

	// Not a member.
	if _, err := f.svc.VerifyReceipt(ctx, v.ID, "ca-1", []uuid.UUID{uuid.New()}, nil); apperr.KindOf(err) != apperr.KindPrecondition {
		t.Fatalf("non-member err = %v, want precondition error", err)
	}

	// Member that was never approved.
	v2 := f.createBatch(t, 1)
	if _, err := f.svc.VerifyReceipt(ctx, v2.ID, "ca-1", []uuid.UUID{v2.Members[0].ID}, nil); apperr.KindOf(err) != apperr.KindPrecondition {
		t.Fatalf("unapproved err = %v, want precondition error", err)
	}
}

func TestVerifyReceiptRetrySafe(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v := f.createBatch(t, 1)
	if _, err := f.requests.Approve(ctx, v.Members[0].ID, "mr-1", nil); err != nil {
		t.Fatal(err)
	}

	ids := []uuid.UUID{v.Members[0].ID}
	if _, err := f.svc.VerifyReceipt(ctx, v.ID, "ca-1", ids, nil); err != nil {
		t.Fatalf("verify receipt: %v", err)
	}
	got, err := f.svc.VerifyReceipt(ctx, v.ID, "ca-1", ids, nil)
	if err != nil {
		t.Fatalf("repeat verify receipt: %v", err)
	}
	if got.Counts.Received != 1 || !got.IsVerified {
		t.Errorf("retry changed the roll-up: %+v", got.Counts)
	}
}
