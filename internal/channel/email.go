package channel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/domain/delivery"
	"github.com/NordCoder/Alertus/internal/domain/notification"
	"github.com/NordCoder/Alertus/internal/domain/user"
	"github.com/google/uuid"
)

// EmailQueue hands an email off to the email-notifier.
type EmailQueue interface {
	PublishEmailRequested(ctx context.Context, ev *notification.EmailRequested) error
}

// Email reports sent once the request is accepted by the queue; the
// email-notifier appends the delivered or failed record later.
type Email struct {
	q   EmailQueue
	now func() time.Time
}

func NewEmail(q EmailQueue, now func() time.Time) *Email {
	if now == nil {
		now = time.Now
	}
	return &Email{q: q, now: now}
}

func (c *Email) Channel() delivery.Channel { return delivery.ChannelEmail }

func (c *Email) Attempt(ctx context.Context, u *user.User, a *alert.Alert) (Result, error) {
	if strings.TrimSpace(u.Email) == "" {
		return Failed("user has no email address"), nil
	}
	ev := &notification.EmailRequested{
		Ref:      uuid.NewString(),
		AlertID:  a.ID,
		UserID:   u.ID,
		To:       u.Email,
		Subject:  fmt.Sprintf("[%s] %s", strings.ToUpper(string(a.Severity)), a.Title),
		Body:     emailBody(u, a),
		Severity: string(a.Severity),
		At:       c.now().UTC(),
	}
	if err := c.q.PublishEmailRequested(ctx, ev); err != nil {
		return Result{}, fmt.Errorf("queue email: %w", err)
	}
	return Sent("queued " + ev.Ref), nil
}

func emailBody(u *user.User, a *alert.Alert) string {
	name := u.Name
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(
		"Hello %s!\n\n%s\n\nSeverity: %s\n\nPlease acknowledge this alert or snooze it to stop reminders.\n\n-- Alertus",
		name, a.Message, a.Severity,
	)
}
