// Package notifier fans alert lifecycle changes out to subscribers.
package notifier

import (
	"context"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/obs"
	"go.uber.org/zap"
)

type Event string

const (
	EventCreated Event = "created"
	EventUpdated Event = "updated"
	EventExpired Event = "expired"
)

type Subscriber interface {
	OnCreated(ctx context.Context, a *alert.Alert) error
	OnUpdated(ctx context.Context, a *alert.Alert) error
	OnExpired(ctx context.Context, a *alert.Alert) error
}

// Subject calls its subscribers synchronously in attach order. Attach is
// meant for startup; notifications may then run concurrently.
type Subject struct {
	subs []namedSub
	log  *zap.Logger
}

type namedSub struct {
	name string
	sub  Subscriber
}

func NewSubject(log *zap.Logger) *Subject {
	if log == nil {
		log = zap.NewNop()
	}
	return &Subject{log: log.With(zap.String("component", "notifier"))}
}

func (s *Subject) Attach(name string, sub Subscriber) {
	s.subs = append(s.subs, namedSub{name: name, sub: sub})
}

func (s *Subject) NotifyCreated(ctx context.Context, a *alert.Alert) {
	s.notify(ctx, EventCreated, a)
}

func (s *Subject) NotifyUpdated(ctx context.Context, a *alert.Alert) {
	s.notify(ctx, EventUpdated, a)
}

func (s *Subject) NotifyExpired(ctx context.Context, a *alert.Alert) {
	s.notify(ctx, EventExpired, a)
}

// notify never stops early: a failing subscriber is logged and skipped.
func (s *Subject) notify(ctx context.Context, ev Event, a *alert.Alert) {
	for _, ns := range s.subs {
		var err error
		switch ev {
		case EventCreated:
			err = ns.sub.OnCreated(ctx, a)
		case EventUpdated:
			err = ns.sub.OnUpdated(ctx, a)
		case EventExpired:
			err = ns.sub.OnExpired(ctx, a)
		}
		if err != nil {
			subscriberErrors.WithLabelValues(ns.name, string(ev)).Inc()
			obs.WithTrace(ctx, s.log).Error("subscriber failed",
				zap.String("subscriber", ns.name),
				zap.String("event", string(ev)),
				zap.Int64("alert_id", a.ID),
				zap.Error(err),
			)
		}
	}
}
