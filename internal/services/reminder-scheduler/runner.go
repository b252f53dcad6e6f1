package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Alertus/internal/obs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	mTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_scheduler_ticks_total", Help: "Scheduled passes started.",
	})
	mSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_scheduler_skipped_total", Help: "Passes whose sweep found another sweep running.",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_scheduler_errors_total", Help: "Passes that ended with an error.",
	})
	mExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_scheduler_alerts_expired_total", Help: "Alerts deactivated by the expiry pass.",
	})
	mLoopDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "reminder_scheduler_tick_duration_seconds", Help: "Scheduled pass duration.",
		Buckets: []float64{.1, .5, 1, 5, 15, 60, 300, 900},
	})
)

type Config struct {
	Spec       string
	RunOnStart bool
	Location   *time.Location
}

// Runner triggers the use case on a cron schedule. A pass that is still
// running when the next one is due causes that one to be skipped.
type Runner struct {
	log *zap.Logger
	uc  *Usecase
	cfg Config
}

func New(log *zap.Logger, uc *Usecase, cfg Config) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Spec == "" {
		cfg.Spec = "@every 2h"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Runner{log: obs.Component(log, "reminder-scheduler"), uc: uc, cfg: cfg}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	mTicks.Inc()
	res, err := r.uc.Tick(ctx)
	mExpired.Add(float64(res.Expired))
	if res.Skipped {
		mSkipped.Inc()
		r.log.Info("sweep already running, pass skipped")
	}
	if err != nil {
		mErr.Inc()
		r.log.Warn("tick error", zap.Error(err))
	}
	rep := res.Report
	r.log.Info("scheduled pass done",
		zap.Int("expired", res.Expired),
		zap.Int("candidates", rep.Candidates),
		zap.Int("reminded", rep.Reminded),
		zap.Int("failed", rep.Failed),
		zap.Int("errors", rep.Errors),
		zap.Duration("elapsed", time.Since(start)),
	)
	mLoopDur.Observe(time.Since(start).Seconds())
}

// Run blocks until ctx is done and waits for an in-flight pass to finish.
func (r *Runner) Run(ctx context.Context) error {
	cl := cronLogger{r.log}
	c := cron.New(
		cron.WithLocation(r.cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(r.cfg.Spec, func() { r.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", r.cfg.Spec, err)
	}
	c.Start()
	r.log.Info("scheduler started", zap.String("spec", r.cfg.Spec), zap.String("tz", r.cfg.Location.String()))

	if r.cfg.RunOnStart {
		r.tick(ctx)
	}

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Sugar().Debugw(msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Sugar().Errorw(msg, append(kv, "error", err)...)
}
