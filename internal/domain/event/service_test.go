package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/casetrack/casetrack/internal/platform/apperr"
)

func newTestRecorder() (*Recorder, *MemoryRepository) {
	repo := NewMemoryRepository()
	return NewRecorder(repo, NewRegistry()), repo
}

func TestRecord_Success(t *testing.T) {
	rec, repo := newTestRecorder()
	e := &Event{
		RequestID:   uuid.New(),
		Type:        TypeCreated,
		ActorUserID: "ca-1",
	}
	if err := rec.Record(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if e.OccurredAt.IsZero() {
		t.Error("expected OccurredAt to be stamped")
	}
	if len(repo.All()) != 1 {
		t.Errorf("expected 1 stored event, got %d", len(repo.All()))
	}
}

func TestRecord_UnknownType(t *testing.T) {
	rec, _ := newTestRecorder()
	e := &Event{RequestID: uuid.New(), Type: "teleported", ActorUserID: "ca-1"}
	err := rec.Record(context.Background(), e)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecord_RegisteredTypeAccepted(t *testing.T) {
	rec, _ := newTestRecorder()
	rec.Registry().Register("archived")
	e := &Event{RequestID: uuid.New(), Type: "archived", ActorUserID: "mr-1"}
	if err := rec.Record(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecord_MissingActor(t *testing.T) {
	rec, _ := newTestRecorder()
	e := &Event{RequestID: uuid.New(), Type: TypeCreated}
	if err := rec.Record(context.Background(), e); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecord_AppendFailurePropagates(t *testing.T) {
	rec, repo := newTestRecorder()
	repo.Fail = errors.New("disk full")
	e := &Event{RequestID: uuid.New(), Type: TypeCreated, ActorUserID: "ca-1"}
	if err := rec.Record(context.Background(), e); err == nil {
		t.Fatal("expected append failure to propagate")
	}
}

func TestTimeline_OrderedAscending(t *testing.T) {
	rec, _ := newTestRecorder()
	reqID := uuid.New()
	base := time.Now().UTC()

	for i, typ := range []string{TypeCreated, TypeApproved, TypeReceived} {
		e := &Event{
			RequestID:   reqID,
			Type:        typ,
			ActorUserID: "ca-1",
			OccurredAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := rec.Record(context.Background(), e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	items, total, err := rec.Timeline(context.Background(), reqID, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("expected 3 events, got %d", total)
	}
	want := []string{TypeCreated, TypeApproved, TypeReceived}
	for i, e := range items {
		if e.Type != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], e.Type)
		}
	}
}

func TestRegistry_BuiltinsRegistered(t *testing.T) {
	r := NewRegistry()
	for _, typ := range builtinTypes() {
		if !r.Valid(typ) {
			t.Errorf("builtin type %q not registered", typ)
		}
	}
	if r.Valid("bogus") {
		t.Error("unexpected valid type")
	}
}
