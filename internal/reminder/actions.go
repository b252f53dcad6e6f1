package reminder

import (
	"context"
	"time"

	"github.com/NordCoder/Alertus/internal/ackstate"
	"github.com/NordCoder/Alertus/internal/domain/preference"
)

// MarkRead acknowledges an alert for a user. A missing preference yields
// preference.ErrNotFound.
func (e *Engine) MarkRead(ctx context.Context, userID, alertID int64) (*preference.Preference, error) {
	return e.transition(ctx, userID, alertID, func(p *preference.Preference, now time.Time) bool {
		return ackstate.MarkRead(p, now)
	})
}

// Snooze postpones reminders for a user until the given time, or until the
// end of the current day in the engine clock's location when until is nil.
func (e *Engine) Snooze(ctx context.Context, userID, alertID int64, until *time.Time) (*preference.Preference, error) {
	return e.transition(ctx, userID, alertID, func(p *preference.Preference, now time.Time) bool {
		return ackstate.Snooze(p, until, now)
	})
}

func (e *Engine) transition(
	ctx context.Context,
	userID, alertID int64,
	apply func(p *preference.Preference, now time.Time) bool,
) (*preference.Preference, error) {
	var out *preference.Preference
	err := e.Tx.WithTx(ctx, func(txCtx context.Context) error {
		p, err := e.Prefs.GetForUpdate(txCtx, userID, alertID)
		if err != nil {
			return err
		}
		now := e.Clock.Now()
		if apply(p, now) {
			p.UpdatedAt = now
			if err := e.Prefs.Save(txCtx, p); err != nil {
				return err
			}
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
