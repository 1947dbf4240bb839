package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/casetrack/casetrack/internal/domain/event"
	"github.com/casetrack/casetrack/internal/domain/handover"
)

// Directory resolves a user id to a deliverable address. Unresolvable users
// are skipped, not errors.
type Directory interface {
	AddressFor(userID string) (string, bool)
}

// MemoryDirectory is a static Directory for tests and dev mode.
type MemoryDirectory struct {
	mu        sync.RWMutex
	addresses map[string]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{addresses: make(map[string]string)}
}

func (d *MemoryDirectory) Add(userID, address string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addresses[userID] = address
}

func (d *MemoryDirectory) AddressFor(userID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	addr, ok := d.addresses[userID]
	return addr, ok
}

const dispatchTimeout = 10 * time.Second

// Dispatcher subscribes to domain events and SLA alerts and turns them into
// outbound notifications. Everything is asynchronous and fire-and-forget; a
// failed send is logged and left in the outbox for retry.
type Dispatcher struct {
	manager *Manager
	dir     Directory
	log     zerolog.Logger
}

func NewDispatcher(manager *Manager, dir Directory, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		manager: manager,
		dir:     dir,
		log:     log.With().Str("component", "notification-dispatcher").Logger(),
	}
}

// Notify implements event.Notifier. It is called after the transition's
// transaction has committed.
func (d *Dispatcher) Notify(e *event.Event) {
	if e == nil {
		return
	}
	templateID, recipientUserID := d.route(e)
	if templateID == "" || recipientUserID == "" {
		return
	}
	go d.send(templateID, recipientUserID, d.eventData(e))
}

// route picks the template and the user a domain event concerns. Events
// without a notification consequence map to empty values.
func (d *Dispatcher) route(e *event.Event) (templateID, recipientUserID string) {
	switch e.Type {
	case event.TypeApproved:
		return TplRequestApproved, e.Metadata["holder"]
	case event.TypeRejected, event.TypeRejectedNotReceived:
		return TplRequestRejected, e.Metadata["holder"]
	case event.TypeHandoverRequested:
		return TplHandoverRequestReceived, e.Metadata["holder"]
	case event.TypeReturnedVerified:
		return TplReturnVerified, e.Metadata["holder"]
	default:
		return "", ""
	}
}

func (d *Dispatcher) eventData(e *event.Event) map[string]string {
	data := map[string]string{
		"request_id": e.RequestID.String(),
		"actor":      e.ActorUserID,
	}
	for k, v := range e.Metadata {
		data[k] = v
	}
	if e.Reason != nil {
		data["reason"] = *e.Reason
	}
	return data
}

// HandoverAlert implements handover.AlertSink for the SLA sweeper. The
// reminder goes to the receiving user; the escalation goes to the sender,
// who is still accountable for the unacknowledged note.
func (d *Dispatcher) HandoverAlert(h *handover.Handover, stage string) {
	data := map[string]string{
		"request_id":     h.CaseNoteRequestID.String(),
		"to_user":        h.HandedOverTo,
		"handed_over_at": h.HandedOverAt.Format(time.RFC3339),
	}
	switch stage {
	case handover.AlertReminder:
		go d.send(TplHandoverReminder, h.HandedOverTo, data)
	case handover.AlertEscalation:
		go d.send(TplHandoverEscalation, h.HandedOverBy, data)
	}
}

func (d *Dispatcher) send(templateID, userID string, data map[string]string) {
	addr, ok := d.dir.AddressFor(userID)
	if !ok {
		d.log.Debug().Str("user_id", userID).Str("template", templateID).Msg("no address for user, skipping notification")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if _, err := d.manager.SendFromTemplate(ctx, templateID, data, addr); err != nil {
		d.log.Error().Err(err).Str("template", templateID).Str("recipient", addr).Msg("notification delivery failed")
	}
}
