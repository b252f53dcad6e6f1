package notification

import (
	"context"
	"time"
)

// EmailRequested asks the email-notifier to deliver one alert to one user.
type EmailRequested struct {
	Ref      string    `json:"ref"`
	AlertID  int64     `json:"alert_id"`
	UserID   int64     `json:"user_id"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	Severity string    `json:"severity"`
	At       time.Time `json:"at"`
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Clock interface {
	Now() time.Time
}

// SystemClock reports wall time in the configured location.
type SystemClock struct{ Loc *time.Location }

func (c SystemClock) Now() time.Time {
	if c.Loc == nil {
		return time.Now()
	}
	return time.Now().In(c.Loc)
}
