package kafka

import (
	"context"
	"time"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/domain/notification"
)

// AlertEvent is an alert lifecycle record relayed from the outbox.
type AlertEvent struct {
	Kind  string       `json:"kind"`
	Alert *alert.Alert `json:"alert"`
	At    time.Time    `json:"at"`
}

type AlertEvents interface {
	PublishAlertEvent(ctx context.Context, ev *AlertEvent) error
}

type EmailEvents interface {
	PublishEmailRequested(ctx context.Context, ev *notification.EmailRequested) error
}
