package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/reminder"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type Expirer interface {
	ExpireDue(ctx context.Context) ([]*alert.Alert, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (reminder.SweepReport, error)
}

// TickResult is what one scheduled pass did.
type TickResult struct {
	Expired int
	Report  reminder.SweepReport
	// Skipped is set when another sweep held the lock.
	Skipped bool
}

type Usecase struct {
	Expirer Expirer
	Sweeper Sweeper
}

func NewUC(exp Expirer, sw Sweeper) *Usecase {
	return &Usecase{Expirer: exp, Sweeper: sw}
}

// Tick deactivates expired alerts, then runs the reminder sweep. An expiry
// failure does not prevent the sweep.
func (u *Usecase) Tick(ctx context.Context) (TickResult, error) {
	tr := otel.Tracer("reminder-scheduler.uc")
	ctx, span := tr.Start(ctx, "scheduler.tick")
	defer span.End()

	var res TickResult
	var errs []error

	expired, err := u.Expirer.ExpireDue(ctx)
	if err != nil {
		span.RecordError(err)
		errs = append(errs, fmt.Errorf("expire due: %w", err))
	}
	res.Expired = len(expired)

	rep, err := u.Sweeper.Sweep(ctx)
	switch {
	case errors.Is(err, reminder.ErrSweepInProgress):
		res.Skipped = true
	case err != nil:
		span.RecordError(err)
		errs = append(errs, fmt.Errorf("sweep: %w", err))
	}
	res.Report = rep

	span.SetAttributes(
		attribute.Int("tick.expired", res.Expired),
		attribute.Bool("tick.skipped", res.Skipped),
		attribute.Int("sweep.candidates", rep.Candidates),
		attribute.Int("sweep.reminded", rep.Reminded),
	)
	return res, errors.Join(errs...)
}
