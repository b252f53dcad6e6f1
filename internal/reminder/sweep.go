package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NordCoder/Alertus/internal/ackstate"
	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/domain/delivery"
	"github.com/NordCoder/Alertus/internal/domain/preference"
	"github.com/NordCoder/Alertus/internal/obs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SweepReport summarises one reminder sweep.
type SweepReport struct {
	Candidates int
	Reminded   int
	Failed     int
	Skipped    int
	Errors     int
	Duration   time.Duration
}

type pairResult int

const (
	pairSkipped pairResult = iota
	pairReminded
	pairFailedDelivery
)

// Sweep re-evaluates every unread or snoozed preference of live alerts and
// sends the reminders that are due. Candidates are read in pages of
// BatchLimit ordered by (alert_id, user_id); the distributed lease is
// renewed before each page after the first. Only one sweep runs at a time;
// a concurrent call returns ErrSweepInProgress without doing any work.
func (e *Engine) Sweep(ctx context.Context) (SweepReport, error) {
	if !e.sweepMu.TryLock() {
		sweepsSkipped.Inc()
		return SweepReport{}, ErrSweepInProgress
	}
	defer e.sweepMu.Unlock()

	if e.Lock != nil {
		ok, err := e.Lock.Acquire(ctx)
		if err != nil {
			return SweepReport{}, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			sweepsSkipped.Inc()
			return SweepReport{}, ErrSweepInProgress
		}
		defer func() {
			if err := e.Lock.Release(context.WithoutCancel(ctx)); err != nil {
				e.log.Warn("release sweep lock", zap.Error(err))
			}
		}()
	}

	tr := otel.Tracer("reminder.engine")
	ctx, span := tr.Start(ctx, "reminder.sweep")
	defer span.End()

	start := time.Now()
	now := e.Clock.Now()

	var (
		mu    sync.Mutex
		rep   SweepReport
		after preference.Candidate
	)
	for page := 0; ; page++ {
		if page > 0 && e.Lock != nil {
			ok, err := e.Lock.Extend(ctx)
			if err != nil || !ok {
				lost := errors.Join(ErrSweepLockLost, err)
				span.RecordError(lost)
				return rep, fmt.Errorf("extend sweep lock after %d pairs: %w", rep.Candidates, lost)
			}
		}

		cands, err := e.Prefs.ListReminderCandidates(ctx, now, after, e.cfg.BatchLimit)
		if err != nil {
			span.RecordError(err)
			return rep, fmt.Errorf("list candidates: %w", err)
		}
		rep.Candidates += len(cands)

		g := new(errgroup.Group)
		g.SetLimit(e.cfg.Workers)
		for _, c := range cands {
			g.Go(func() error {
				res, err := e.remindPair(ctx, c, now)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					rep.Errors++
					sweepPairs.WithLabelValues("error").Inc()
					obs.WithTrace(ctx, e.log).Error("reminder pair",
						zap.Int64("user_id", c.UserID), zap.Int64("alert_id", c.AlertID), zap.Error(err))
				case res == pairReminded:
					rep.Reminded++
					sweepPairs.WithLabelValues("reminded").Inc()
				case res == pairFailedDelivery:
					rep.Failed++
					sweepPairs.WithLabelValues("failed").Inc()
				default:
					rep.Skipped++
					sweepPairs.WithLabelValues("skipped").Inc()
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(cands) < e.cfg.BatchLimit || ctx.Err() != nil {
			break
		}
		after = cands[len(cands)-1]
	}
	span.SetAttributes(attribute.Int("sweep.candidates", rep.Candidates))

	rep.Duration = time.Since(start)
	sweepDuration.Observe(rep.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("sweep.reminded", rep.Reminded),
		attribute.Int("sweep.failed", rep.Failed),
		attribute.Int("sweep.errors", rep.Errors),
	)
	e.log.Info("reminder sweep done",
		zap.Int("candidates", rep.Candidates),
		zap.Int("reminded", rep.Reminded),
		zap.Int("failed", rep.Failed),
		zap.Int("skipped", rep.Skipped),
		zap.Int("errors", rep.Errors),
		zap.Duration("elapsed", rep.Duration),
	)
	return rep, nil
}

// remindPair is transactionally self-contained: the preference row stays
// locked from the due check until LastRemindedAt is stamped.
func (e *Engine) remindPair(ctx context.Context, c preference.Candidate, now time.Time) (pairResult, error) {
	res := pairSkipped
	err := e.Tx.WithTx(ctx, func(txCtx context.Context) error {
		p, err := e.Prefs.GetForUpdate(txCtx, c.UserID, c.AlertID)
		if err != nil {
			return fmt.Errorf("lock preference: %w", err)
		}
		if p.State == preference.StateRead {
			return nil
		}
		a, err := e.Alerts.GetByID(txCtx, c.AlertID)
		if err != nil {
			return fmt.Errorf("get alert: %w", err)
		}
		if !a.Active || a.Archived || a.Expired(now) {
			return nil
		}

		due := ackstate.ClearSnoozeIfExpired(p, now)
		if !due && !ackstate.ShouldRemind(p, a.ReminderInterval(), now) {
			return nil
		}

		u, err := e.Users.GetByID(txCtx, c.UserID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit: %w", err)
			}
		}

		if e.deliver(ctx, u, a) == delivery.OutcomeFailed {
			res = pairFailedDelivery
		} else {
			res = pairReminded
		}

		stamp := now
		p.LastRemindedAt = &stamp
		p.UpdatedAt = e.Clock.Now()
		return e.Prefs.Save(txCtx, p)
	})
	if err != nil {
		return pairSkipped, err
	}
	return res, nil
}

// ExpireDue deactivates alerts whose expiry time has passed.
func (e *Engine) ExpireDue(ctx context.Context) ([]*alert.Alert, error) {
	expired, err := e.Alerts.ExpireDue(ctx, e.Clock.Now())
	if err != nil {
		return nil, fmt.Errorf("expire alerts: %w", err)
	}
	return expired, nil
}
