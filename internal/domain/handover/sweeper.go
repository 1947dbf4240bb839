package handover

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Alert stages handed to the notification dispatcher by the sweeper.
const (
	AlertReminder   = "reminder"
	AlertEscalation = "escalation"
)

// AlertSink receives SLA alerts. Implementations must not block the sweep;
// failures are the sink's problem and never undo a stamped timestamp.
type AlertSink interface {
	HandoverAlert(h *Handover, stage string)
}

// AlertSinkFunc adapts a function to AlertSink.
type AlertSinkFunc func(h *Handover, stage string)

func (f AlertSinkFunc) HandoverAlert(h *Handover, stage string) { f(h, stage) }

const sweepBatchSize = 200

// Sweeper is the background job behind the acknowledgement SLA: pending
// handovers older than the SLA get overdue_at stamped, then a reminder,
// then an escalation on subsequent sweeps. It holds no locks between runs.
type Sweeper struct {
	repo     Repository
	sla      time.Duration
	interval time.Duration
	sink     AlertSink
	log      zerolog.Logger
	done     chan struct{}
}

func NewSweeper(repo Repository, sla, interval time.Duration, sink AlertSink, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		repo:     repo,
		sla:      sla,
		interval: interval,
		sink:     sink,
		log:      log.With().Str("component", "handover-sweeper").Logger(),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Stop or ctx cancellation ends it; the
// loop simply stops being scheduled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Sweep(ctx); err != nil {
					s.log.Error().Err(err).Msg("handover SLA sweep failed")
				}
			}
		}
	}()
}

// Stop ends the sweep loop.
func (s *Sweeper) Stop() {
	close(s.done)
}

// Sweep advances every overdue pending handover one stage: stamp
// overdue_at first, then send and stamp the reminder, then the escalation.
// One stage per sweep keeps the reminder pipeline spread over time.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.sla)
	overdue, err := s.repo.ListOverdueCandidates(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return err
	}

	for _, h := range overdue {
		switch {
		case h.OverdueAt == nil:
			h.OverdueAt = &now
		case h.ReminderSentAt == nil:
			h.ReminderSentAt = &now
			s.sink.HandoverAlert(h, AlertReminder)
		case h.EscalationSentAt == nil:
			h.EscalationSentAt = &now
			s.sink.HandoverAlert(h, AlertEscalation)
		default:
			continue
		}
		if err := s.repo.UpdateHandover(ctx, h); err != nil {
			s.log.Error().Err(err).Str("handover_id", h.ID.String()).Msg("failed to stamp SLA stage")
			continue
		}
		s.log.Info().
			Str("handover_id", h.ID.String()).
			Str("request_id", h.CaseNoteRequestID.String()).
			Time("handed_over_at", h.HandedOverAt).
			Msg("handover past acknowledgement SLA")
	}
	return nil
}
