package kafka

import (
	"context"

	events "github.com/NordCoder/Alertus/internal/domain/kafka"
	"github.com/NordCoder/Alertus/internal/domain/notification"
	"github.com/segmentio/kafka-go"
)

const (
	TopicEmailRequested = "alertus.email.requested"
	TopicAlertLifecycle = "alertus.alerts.lifecycle"
)

var (
	_ events.EmailEvents = (*EmailEventsKafka)(nil)
	_ events.AlertEvents = (*AlertEventsKafka)(nil)
)

type EmailEventsKafka struct {
	p *Producer
}

func NewEmailEventsKafka(p *Producer) *EmailEventsKafka { return &EmailEventsKafka{p: p} }

func (e *EmailEventsKafka) PublishEmailRequested(ctx context.Context, ev *notification.EmailRequested) error {
	return e.p.PublishJSON(ctx, KeyFromInt64(ev.UserID), ev)
}

type AlertEventsKafka struct {
	p *Producer
}

func NewAlertEventsKafka(p *Producer) *AlertEventsKafka { return &AlertEventsKafka{p: p} }

func (e *AlertEventsKafka) PublishAlertEvent(ctx context.Context, ev *events.AlertEvent) error {
	var key []byte
	if ev.Alert != nil {
		key = KeyFromInt64(ev.Alert.ID)
	}
	return e.p.PublishJSON(ctx, key, ev, kafka.Header{Key: "kind", Value: []byte(ev.Kind)})
}
