// Package reminder owns every write to alert preferences: immediate
// dispatch on alert changes, the periodic reminder sweep and the user's
// read/snooze actions. Each delivery attempt leaves exactly one record in
// the delivery audit trail.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NordCoder/Alertus/internal/channel"
	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/domain/delivery"
	"github.com/NordCoder/Alertus/internal/domain/notification"
	"github.com/NordCoder/Alertus/internal/domain/preference"
	"github.com/NordCoder/Alertus/internal/domain/user"
	"github.com/NordCoder/Alertus/internal/obs"
	"github.com/NordCoder/Alertus/internal/repository/postgres"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrSweepInProgress = errors.New("reminder sweep already running")
	// ErrSweepLockLost ends a sweep whose distributed lease could not be
	// renewed between pages.
	ErrSweepLockLost = errors.New("reminder sweep lock lost")
)

// Locker serialises sweeps across processes.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	// Extend renews a held lease; false means it is no longer owned.
	Extend(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type Config struct {
	Workers         int
	BatchLimit      int
	DeliveryTimeout time.Duration
	// RatePerSec caps sweep delivery attempts; zero disables the limit.
	RatePerSec float64
}

type Deps struct {
	Alerts     alert.Repo
	Users      user.Repo
	Prefs      preference.Repo
	Deliveries delivery.Repo
	Tx         postgres.Transactor
	Channels   *channel.Registry
	Clock      notification.Clock
	Lock       Locker
}

type Engine struct {
	Deps
	cfg     Config
	log     *zap.Logger
	limiter *rate.Limiter

	sweepMu sync.Mutex
}

func New(log *zap.Logger, d Deps, cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 1000
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		Deps: d,
		cfg:  cfg,
		log:  log.With(zap.String("component", "reminder.engine")),
	}
	if cfg.RatePerSec > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), max(1, int(cfg.RatePerSec)))
	}
	return e
}

// deliver attempts one delivery and appends its record. The record is
// written with a context detached from ctx's cancellation and outside any
// transaction carried by ctx, so the audit entry survives both.
func (e *Engine) deliver(ctx context.Context, u *user.User, a *alert.Alert) delivery.Outcome {
	s := e.Channels.Lookup(a.Channel)
	res := e.attempt(ctx, s, u, a)

	rec := &delivery.Record{
		AlertID: a.ID,
		UserID:  u.ID,
		Channel: s.Channel(),
		Outcome: res.Outcome,
		At:      e.Clock.Now().UTC(),
		Detail:  res.Detail,
	}
	deliveriesTotal.WithLabelValues(string(rec.Channel), string(rec.Outcome)).Inc()

	log := obs.WithTrace(ctx, e.log).With(
		zap.Int64("alert_id", a.ID),
		zap.Int64("user_id", u.ID),
		zap.String("channel", string(rec.Channel)),
	)
	if err := e.Deliveries.Append(postgres.WithoutTx(context.WithoutCancel(ctx)), rec); err != nil {
		auditErrors.Inc()
		log.Error("append delivery record", zap.Error(err))
	}
	if rec.Outcome == delivery.OutcomeFailed {
		log.Warn("delivery failed", zap.String("detail", rec.Detail))
	} else {
		log.Debug("delivery attempted", zap.String("outcome", string(rec.Outcome)))
	}
	return rec.Outcome
}

// attempt runs the strategy with a deadline. Errors, panics, timeouts and
// unknown outcomes all become a failed result.
func (e *Engine) attempt(ctx context.Context, s channel.Strategy, u *user.User, a *alert.Alert) channel.Result {
	actx, cancel := context.WithTimeout(ctx, e.cfg.DeliveryTimeout)
	defer cancel()

	done := make(chan channel.Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- channel.Failed(fmt.Sprintf("panic: %v", r))
			}
		}()
		res, err := s.Attempt(actx, u, a)
		if err != nil {
			done <- channel.Failed(err.Error())
			return
		}
		switch res.Outcome {
		case delivery.OutcomeSent, delivery.OutcomeDelivered:
			done <- res
		case delivery.OutcomeFailed:
			if res.Detail == "" {
				res.Detail = "delivery reported failure"
			}
			done <- res
		default:
			done <- channel.Failed(fmt.Sprintf("unexpected outcome %q", res.Outcome))
		}
	}()

	select {
	case res := <-done:
		return res
	case <-actx.Done():
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			return channel.Failed(fmt.Sprintf("delivery timed out after %s", e.cfg.DeliveryTimeout))
		}
		return channel.Failed(actx.Err().Error())
	}
}
