// Package alerting implements the alert commands of admins and users on top
// of the reminder engine.
package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/domain/delivery"
	"github.com/NordCoder/Alertus/internal/domain/notification"
	"github.com/NordCoder/Alertus/internal/domain/outbox"
	"github.com/NordCoder/Alertus/internal/domain/preference"
	"github.com/NordCoder/Alertus/internal/domain/user"
	"github.com/NordCoder/Alertus/internal/obs"
	outboxrelay "github.com/NordCoder/Alertus/internal/outbox"
	"github.com/NordCoder/Alertus/internal/reminder"
	"github.com/NordCoder/Alertus/internal/repository/postgres"
	"go.uber.org/zap"
)

// Reminders is the slice of the reminder engine the service drives.
type Reminders interface {
	SeedPreferences(ctx context.Context, a *alert.Alert) ([]*user.User, error)
	Sweep(ctx context.Context) (reminder.SweepReport, error)
	ExpireDue(ctx context.Context) ([]*alert.Alert, error)
	MarkRead(ctx context.Context, userID, alertID int64) (*preference.Preference, error)
	Snooze(ctx context.Context, userID, alertID int64, until *time.Time) (*preference.Preference, error)
}

// Notifier receives committed lifecycle changes.
type Notifier interface {
	NotifyCreated(ctx context.Context, a *alert.Alert)
	NotifyUpdated(ctx context.Context, a *alert.Alert)
	NotifyExpired(ctx context.Context, a *alert.Alert)
}

type Deps struct {
	Alerts     alert.Repo
	Users      user.Repo
	Prefs      preference.Repo
	Deliveries delivery.Repo
	Outbox     outbox.Repository
	Tx         postgres.Transactor
	Reminders  Reminders
	Notifier   Notifier
	Clock      notification.Clock
}

type Service struct {
	Deps
	log *zap.Logger
}

func New(log *zap.Logger, d Deps) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Deps: d, log: log.With(zap.String("component", "alerting"))}
}

// UserAlert is an alert as seen by one user.
type UserAlert struct {
	Alert      *alert.Alert           `json:"alert"`
	Preference *preference.Preference `json:"preference"`
}

func requireAdmin(actor user.Actor) error {
	if !actor.IsAdmin() {
		return alert.ErrForbidden
	}
	return nil
}

// Create validates and stores a new alert, seeds one preference per target
// and, after commit, notifies subscribers.
func (s *Service) Create(ctx context.Context, actor user.Actor, a *alert.Alert) (*alert.Alert, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	if a.ReminderFrequencyHours == 0 {
		a.ReminderFrequencyHours = alert.DefaultReminderHours
	}
	if a.Channel == "" {
		a.Channel = string(delivery.ChannelInApp)
	}
	if a.StartTime.IsZero() {
		a.StartTime = now
	}
	a.CreatedBy = actor.UserID
	a.Archived = false
	if err := a.Validate(); err != nil {
		return nil, err
	}

	err := s.Tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.Alerts.Create(txCtx, a); err != nil {
			return err
		}
		if _, err := s.Reminders.SeedPreferences(txCtx, a); err != nil {
			return err
		}
		return s.enqueue(txCtx, outbox.KindAlertCreated, a, now)
	})
	if err != nil {
		return nil, err
	}

	obs.WithTrace(ctx, s.log).Info("alert created",
		zap.Int64("alert_id", a.ID),
		zap.String("severity", string(a.Severity)),
		zap.String("visibility", string(a.Visibility)),
	)
	s.Notifier.NotifyCreated(ctx, a)
	return a, nil
}

// Update applies a partial change. Archived alerts are immutable.
func (s *Service) Update(ctx context.Context, actor user.Actor, id int64, patch alert.Patch) (*alert.Alert, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	now := s.Clock.Now()

	var updated *alert.Alert
	err := s.Tx.WithTx(ctx, func(txCtx context.Context) error {
		a, err := s.Alerts.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if a.Archived {
			return alert.ErrArchived
		}
		patch.Apply(a)
		if err := a.Validate(); err != nil {
			return err
		}
		if err := s.Alerts.Update(txCtx, a); err != nil {
			return err
		}
		if a.Active {
			if _, err := s.Reminders.SeedPreferences(txCtx, a); err != nil {
				return err
			}
		}
		updated = a
		return s.enqueue(txCtx, outbox.KindAlertUpdated, a, now)
	})
	if err != nil {
		return nil, err
	}

	obs.WithTrace(ctx, s.log).Info("alert updated", zap.Int64("alert_id", id), zap.Bool("active", updated.Active))
	s.Notifier.NotifyUpdated(ctx, updated)
	return updated, nil
}

// Archive deactivates the alert for good. Archiving twice is not an error.
func (s *Service) Archive(ctx context.Context, actor user.Actor, id int64) (*alert.Alert, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	now := s.Clock.Now()

	var archived *alert.Alert
	err := s.Tx.WithTx(ctx, func(txCtx context.Context) error {
		a, err := s.Alerts.Archive(txCtx, id)
		if err != nil {
			return err
		}
		archived = a
		return s.enqueue(txCtx, outbox.KindAlertArchived, a, now)
	})
	if err != nil {
		return nil, err
	}

	obs.WithTrace(ctx, s.log).Info("alert archived", zap.Int64("alert_id", id))
	s.Notifier.NotifyExpired(ctx, archived)
	return archived, nil
}

// List returns the alerts the admin created, newest first.
func (s *Service) List(ctx context.Context, actor user.Actor, f alert.Filter) ([]*alert.Alert, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.Alerts.ListByCreator(ctx, actor.UserID, f)
}

// Deliveries returns the newest delivery records of an alert.
func (s *Service) Deliveries(ctx context.Context, actor user.Actor, alertID int64, limit int) ([]*delivery.Record, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.Alerts.GetByID(ctx, alertID); err != nil {
		return nil, err
	}
	return s.Deps.Deliveries.ListByAlert(ctx, alertID, limit)
}

// TriggerReminders runs a sweep now. It fails with
// reminder.ErrSweepInProgress while another sweep is running.
func (s *Service) TriggerReminders(ctx context.Context, actor user.Actor) (reminder.SweepReport, error) {
	if err := requireAdmin(actor); err != nil {
		return reminder.SweepReport{}, err
	}
	return s.Reminders.Sweep(ctx)
}

// ListForUser returns the live alerts visible to the actor with the actor's
// preference for each. Preferences missing for a visible alert, e.g. after
// the user joined a team, are created on the way.
func (s *Service) ListForUser(ctx context.Context, actor user.Actor) ([]UserAlert, error) {
	teamIDs, err := s.Users.ListTeamIDs(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	alerts, err := s.Alerts.ListVisibleTo(ctx, actor.UserID, teamIDs)
	if err != nil {
		return nil, err
	}
	prefs, err := s.Prefs.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	byAlert := make(map[int64]*preference.Preference, len(prefs))
	for _, p := range prefs {
		byAlert[p.AlertID] = p
	}

	now := s.Clock.Now()
	out := make([]UserAlert, 0, len(alerts))
	for _, a := range alerts {
		if a.StartTime.After(now) || a.Expired(now) {
			continue
		}
		p, ok := byAlert[a.ID]
		if !ok {
			if _, err := s.Prefs.Seed(ctx, a.ID, []int64{actor.UserID}); err != nil {
				return nil, err
			}
			if p, err = s.Prefs.Get(ctx, actor.UserID, a.ID); err != nil {
				return nil, err
			}
		}
		out = append(out, UserAlert{Alert: a, Preference: p})
	}
	return out, nil
}

func (s *Service) MarkRead(ctx context.Context, actor user.Actor, alertID int64) (*preference.Preference, error) {
	return s.Reminders.MarkRead(ctx, actor.UserID, alertID)
}

func (s *Service) Snooze(ctx context.Context, actor user.Actor, alertID int64, until *time.Time) (*preference.Preference, error) {
	if until != nil && !until.After(s.Clock.Now()) {
		return nil, fmt.Errorf("%w: snooze deadline must be in the future", alert.ErrValidation)
	}
	return s.Reminders.Snooze(ctx, actor.UserID, alertID, until)
}

// ExpireDue deactivates alerts past their expiry time, records the change
// in the outbox and notifies subscribers.
func (s *Service) ExpireDue(ctx context.Context) ([]*alert.Alert, error) {
	var expired []*alert.Alert
	now := s.Clock.Now()
	err := s.Tx.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		expired, err = s.Reminders.ExpireDue(txCtx)
		if err != nil {
			return err
		}
		for _, a := range expired {
			if err := s.enqueue(txCtx, outbox.KindAlertExpired, a, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, a := range expired {
		s.Notifier.NotifyExpired(ctx, a)
	}
	if len(expired) > 0 {
		s.log.Info("alerts expired", zap.Int("count", len(expired)))
	}
	return expired, nil
}

func (s *Service) enqueue(ctx context.Context, kind outbox.Kind, a *alert.Alert, at time.Time) error {
	if s.Outbox == nil {
		return nil
	}
	key, data, err := outboxrelay.EncodeAlert(kind, a, at)
	if err != nil {
		return err
	}
	if err := s.Outbox.Enqueue(ctx, key, kind, data); err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return nil
}
