package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/casetrack/casetrack/internal/platform/apperr"
)

// Notifier receives committed events for asynchronous fan-out
// (reminders, escalations). Delivery is fire-and-forget: a Notify failure
// must never affect the state transition that produced the event.
type Notifier interface {
	Notify(e *Event)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Notify(*Event) {}

// Recorder validates and appends audit events. Domain services call Record
// inside the same transaction as their own mutation, so an event write
// failure rolls the whole transition back.
type Recorder struct {
	repo     Repository
	registry *Registry
}

func NewRecorder(repo Repository, registry *Registry) *Recorder {
	return &Recorder{repo: repo, registry: registry}
}

// Registry exposes the recorder's type registry for wiring-time additions.
func (r *Recorder) Registry() *Registry { return r.registry }

// Record appends one event. Type must be registered and the actor known;
// OccurredAt defaults to now.
func (r *Recorder) Record(ctx context.Context, e *Event) error {
	if e.RequestID == uuid.Nil {
		return apperr.Validation("event request_id is required")
	}
	if e.ActorUserID == "" {
		return apperr.Validation("event actor_user_id is required")
	}
	if !r.registry.Valid(e.Type) {
		return apperr.Validation("unknown event type %q", e.Type)
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if err := r.repo.Append(ctx, e); err != nil {
		return fmt.Errorf("append %s event: %w", e.Type, err)
	}
	return nil
}

// Timeline returns the events of a request ordered by occurrence.
func (r *Recorder) Timeline(ctx context.Context, requestID uuid.UUID, limit, offset int) ([]*Event, int, error) {
	return r.repo.ListByRequest(ctx, requestID, limit, offset)
}
