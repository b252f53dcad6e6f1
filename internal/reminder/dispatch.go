package reminder

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/domain/delivery"
	"github.com/NordCoder/Alertus/internal/domain/preference"
	"github.com/NordCoder/Alertus/internal/domain/user"
	"github.com/NordCoder/Alertus/internal/obs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DispatchReport summarises one immediate dispatch.
type DispatchReport struct {
	Targets     int
	Sent        int
	Failed      int
	SkippedRead int
	Errors      int
}

// Targets resolves the users an alert is addressed to.
func (e *Engine) Targets(ctx context.Context, a *alert.Alert) ([]*user.User, error) {
	switch a.Visibility {
	case alert.VisibilityOrganization:
		return e.Users.ListAll(ctx)
	case alert.VisibilityTeam:
		if a.TargetTeamID == nil {
			return nil, nil
		}
		return e.Users.ListTeamMembers(ctx, *a.TargetTeamID)
	case alert.VisibilityUser:
		if a.TargetUserID == nil {
			return nil, nil
		}
		u, err := e.Users.GetByID(ctx, *a.TargetUserID)
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []*user.User{u}, nil
	}
	return nil, nil
}

// SeedPreferences resolves the alert's targets and creates the missing
// unread preferences. Safe to call repeatedly for the same alert.
func (e *Engine) SeedPreferences(ctx context.Context, a *alert.Alert) ([]*user.User, error) {
	targets, err := e.Targets(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("resolve targets: %w", err)
	}
	if len(targets) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(targets))
	for _, u := range targets {
		ids = append(ids, u.ID)
	}
	created, err := e.Prefs.Seed(ctx, a.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("seed preferences: %w", err)
	}
	if created > 0 {
		e.log.Debug("preferences seeded", zap.Int64("alert_id", a.ID), zap.Int("created", created))
	}
	return targets, nil
}

// DispatchAlert sends the alert now to every target that has not read it,
// without consulting the reminder due check. A failure for one user does
// not stop the others.
func (e *Engine) DispatchAlert(ctx context.Context, a *alert.Alert) (DispatchReport, error) {
	tr := otel.Tracer("reminder.engine")
	ctx, span := tr.Start(ctx, "reminder.dispatch",
		trace.WithAttributes(attribute.Int64("alert.id", a.ID)),
	)
	defer span.End()

	var rep DispatchReport
	targets, err := e.SeedPreferences(ctx, a)
	if err != nil {
		span.RecordError(err)
		return rep, err
	}
	rep.Targets = len(targets)

	prefs, err := e.Prefs.ListByAlert(ctx, a.ID)
	if err != nil {
		span.RecordError(err)
		return rep, fmt.Errorf("list preferences: %w", err)
	}
	read := make(map[int64]bool, len(prefs))
	for _, p := range prefs {
		if p.State == preference.StateRead {
			read[p.UserID] = true
		}
	}

	log := obs.WithTrace(ctx, e.log).With(zap.Int64("alert_id", a.ID))
	for _, u := range targets {
		if read[u.ID] {
			rep.SkippedRead++
			dispatchTargets.WithLabelValues("skipped_read").Inc()
			continue
		}
		outcome, err := e.dispatchOne(ctx, u, a)
		switch {
		case err != nil:
			rep.Errors++
			dispatchTargets.WithLabelValues("failed").Inc()
			log.Error("dispatch to user", zap.Int64("user_id", u.ID), zap.Error(err))
		case outcome == "":
			rep.SkippedRead++
			dispatchTargets.WithLabelValues("skipped_read").Inc()
		case outcome == delivery.OutcomeFailed:
			rep.Failed++
			dispatchTargets.WithLabelValues("failed").Inc()
		default:
			rep.Sent++
			dispatchTargets.WithLabelValues("sent").Inc()
		}
	}

	span.SetAttributes(
		attribute.Int("dispatch.targets", rep.Targets),
		attribute.Int("dispatch.sent", rep.Sent),
		attribute.Int("dispatch.failed", rep.Failed),
	)
	log.Info("alert dispatched",
		zap.Int("targets", rep.Targets),
		zap.Int("sent", rep.Sent),
		zap.Int("failed", rep.Failed),
		zap.Int("skipped_read", rep.SkippedRead),
	)
	return rep, nil
}

// dispatchOne delivers to one user and starts the reminder cadence from
// now. An empty outcome means the user read the alert in the meantime.
func (e *Engine) dispatchOne(ctx context.Context, u *user.User, a *alert.Alert) (delivery.Outcome, error) {
	var outcome delivery.Outcome
	err := e.Tx.WithTx(ctx, func(txCtx context.Context) error {
		p, err := e.Prefs.GetForUpdate(txCtx, u.ID, a.ID)
		if err != nil {
			return fmt.Errorf("lock preference: %w", err)
		}
		if p.State == preference.StateRead {
			return nil
		}
		outcome = e.deliver(ctx, u, a)

		now := e.Clock.Now()
		p.LastRemindedAt = &now
		p.UpdatedAt = now
		return e.Prefs.Save(txCtx, p)
	})
	return outcome, err
}
