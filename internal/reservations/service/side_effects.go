package service

import (
	"context"
	"time"

	"agendly/pkg/config"
	"agendly/pkg/model"

	"github.com/google/uuid"
)

type EventPublisher interface {
	PublishReservationEvent(ctx context.Context, event model.ReservationEvent) error
}

type UsageCounter interface {
	Increment(ctx context.Context, tenantID, counter string, at time.Time) error
}

type AuditLogger interface {
	Record(ctx context.Context, entry *model.AuditEntry) error
}

type ReminderScheduler interface {
	Schedule(ctx context.Context, reminders []*model.Reminder) error
	CancelForReservation(ctx context.Context, tenantID, reservationID string) error
}

type LineItemAttacher interface {
	Attach(ctx context.Context, item *model.LineItem) error
}

// SideEffects are the collaborators notified after a reservation changes.
// Any of them may be nil.
type SideEffects struct {
	Events    EventPublisher
	Counters  UsageCounter
	Audit     AuditLogger
	Reminders ReminderScheduler
	LineItems LineItemAttacher
}

type effect struct {
	name string
	fn   func(ctx context.Context) error
}

// dispatch runs effects in the background with a context detached from the
// request. Failures are logged and never reach the caller.
func (s *reservationService) dispatch(ctx context.Context, r *model.Reservation, effects []effect) {
	if len(effects) == 0 {
		return
	}

	timeout := s.cfg.SideEffectTimeout
	if timeout <= 0 {
		timeout = config.DefaultSideEffectTimeout
	}
	log := s.cfg.Log.ForTenant(r.TenantID)
	detached := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(detached, timeout)
		defer cancel()

		for _, e := range effects {
			if err := e.fn(ctx); err != nil {
				log.Warn("Reservation side effect failed",
					"effect", e.name,
					"reservation_id", r.ID,
					"error", err,
				)
			}
		}
	}()
}

func (s *reservationService) afterCreate(ctx context.Context, r *model.Reservation) {
	now := s.clock.Now()
	var effects []effect

	if s.effects.Events != nil {
		effects = append(effects, s.eventEffect(model.EventReservationCreated, r, now))
	}
	if s.effects.Counters != nil {
		effects = append(effects, s.counterEffect(r.TenantID, model.CounterReservationsCreated, now))
	}
	if s.effects.Audit != nil {
		effects = append(effects, s.auditEffect(r, model.AuditActionCreated, now, map[string]any{
			"status":   r.Status,
			"start_at": r.StartAt,
			"end_at":   r.EndAt,
		}))
	}
	if s.effects.Reminders != nil {
		if reminders := s.buildReminders(r, now); len(reminders) > 0 {
			effects = append(effects, effect{name: "reminders", fn: func(ctx context.Context) error {
				return s.effects.Reminders.Schedule(ctx, reminders)
			}})
		}
	}
	if s.effects.LineItems != nil && r.ServiceID != "" {
		item := &model.LineItem{
			ID:            uuid.NewString(),
			TenantID:      r.TenantID,
			ReservationID: r.ID,
			ServiceID:     r.ServiceID,
			DurationMin:   int(r.EndAt.Sub(r.StartAt) / time.Minute),
			CreatedAt:     now,
		}
		effects = append(effects, effect{name: "line_item", fn: func(ctx context.Context) error {
			return s.effects.LineItems.Attach(ctx, item)
		}})
	}

	s.dispatch(ctx, r, effects)
}

func (s *reservationService) afterReschedule(ctx context.Context, before, after *model.Reservation) {
	now := s.clock.Now()
	var effects []effect

	if s.effects.Events != nil {
		effects = append(effects, s.eventEffect(model.EventReservationRescheduled, after, now))
	}
	if s.effects.Audit != nil {
		effects = append(effects, s.auditEffect(after, model.AuditActionRescheduled, now, map[string]any{
			"previous_start_at": before.StartAt,
			"previous_end_at":   before.EndAt,
			"start_at":          after.StartAt,
			"end_at":            after.EndAt,
		}))
	}
	if s.effects.Reminders != nil {
		reminders := s.buildReminders(after, now)
		effects = append(effects, effect{name: "reminders", fn: func(ctx context.Context) error {
			if err := s.effects.Reminders.CancelForReservation(ctx, after.TenantID, after.ID); err != nil {
				return err
			}
			return s.effects.Reminders.Schedule(ctx, reminders)
		}})
	}

	s.dispatch(ctx, after, effects)
}

func (s *reservationService) afterCancel(ctx context.Context, r *model.Reservation) {
	now := s.clock.Now()
	var effects []effect

	if s.effects.Reminders != nil {
		effects = append(effects, effect{name: "reminders", fn: func(ctx context.Context) error {
			return s.effects.Reminders.CancelForReservation(ctx, r.TenantID, r.ID)
		}})
	}
	if s.effects.Counters != nil {
		effects = append(effects, s.counterEffect(r.TenantID, model.CounterReservationsCancelled, now))
	}
	if s.effects.Events != nil {
		effects = append(effects, s.eventEffect(model.EventReservationCancelled, r, now))
	}
	if s.effects.Audit != nil {
		effects = append(effects, s.auditEffect(r, model.AuditActionCancelled, now, nil))
	}

	s.dispatch(ctx, r, effects)
}

func (s *reservationService) eventEffect(eventType model.ReservationEventType, r *model.Reservation, at time.Time) effect {
	event := model.NewReservationEvent(eventType, r, at)
	return effect{name: "event", fn: func(ctx context.Context) error {
		return s.effects.Events.PublishReservationEvent(ctx, event)
	}}
}

func (s *reservationService) counterEffect(tenantID, counter string, at time.Time) effect {
	return effect{name: "usage_counter", fn: func(ctx context.Context) error {
		return s.effects.Counters.Increment(ctx, tenantID, counter, at)
	}}
}

func (s *reservationService) auditEffect(r *model.Reservation, action string, at time.Time, details map[string]any) effect {
	entry := &model.AuditEntry{
		ID:            uuid.NewString(),
		TenantID:      r.TenantID,
		ReservationID: r.ID,
		Action:        action,
		Details:       details,
		CreatedAt:     at,
	}
	return effect{name: "audit", fn: func(ctx context.Context) error {
		return s.effects.Audit.Record(ctx, entry)
	}}
}

// buildReminders returns one reminder per configured offset that still lies
// in the future. Reservations without a phone get none.
func (s *reservationService) buildReminders(r *model.Reservation, now time.Time) []*model.Reminder {
	if r.CustomerPhone == "" {
		return nil
	}

	var reminders []*model.Reminder
	for _, offset := range s.cfg.ReminderOffsets {
		sendAt := r.StartAt.Add(-offset)
		if !sendAt.After(now) {
			continue
		}
		reminders = append(reminders, &model.Reminder{
			ID:            uuid.NewString(),
			TenantID:      r.TenantID,
			ReservationID: r.ID,
			Channel:       model.ReminderChannelWhatsApp,
			Phone:         r.CustomerPhone,
			SendAt:        sendAt,
			Status:        model.ReminderStatusScheduled,
			CreatedAt:     now,
		})
	}
	return reminders
}
