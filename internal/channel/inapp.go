package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/domain/delivery"
	"github.com/NordCoder/Alertus/internal/domain/user"
)

// InboxItem is what the in-app channel leaves for a user's client to fetch.
type InboxItem struct {
	AlertID  int64     `json:"alert_id"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Severity string    `json:"severity"`
	At       time.Time `json:"at"`
}

type Inbox interface {
	Push(ctx context.Context, userID int64, item InboxItem) error
}

type InApp struct {
	inbox Inbox
	now   func() time.Time
}

// NewInApp returns the default channel. A nil inbox makes every attempt a
// bookkeeping-only send: the alert is visible through the user alert list.
func NewInApp(inbox Inbox, now func() time.Time) *InApp {
	if now == nil {
		now = time.Now
	}
	return &InApp{inbox: inbox, now: now}
}

func (c *InApp) Channel() delivery.Channel { return delivery.ChannelInApp }

func (c *InApp) Attempt(ctx context.Context, u *user.User, a *alert.Alert) (Result, error) {
	if c.inbox != nil {
		err := c.inbox.Push(ctx, u.ID, InboxItem{
			AlertID:  a.ID,
			Title:    a.Title,
			Message:  a.Message,
			Severity: string(a.Severity),
			At:       c.now().UTC(),
		})
		if err != nil {
			return Result{}, fmt.Errorf("inbox push: %w", err)
		}
	}
	return Sent("Alert: " + a.Title), nil
}
