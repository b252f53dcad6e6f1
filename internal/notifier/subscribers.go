package notifier

import (
	"context"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/reminder"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	alertEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_lifecycle_events_total",
		Help: "Alert lifecycle events by kind and severity.",
	}, []string{"event", "severity"})
	subscriberErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_subscriber_errors_total",
		Help: "Subscriber failures by subscriber and event.",
	}, []string{"subscriber", "event"})
)

// Dispatcher is the part of the reminder engine the dispatch subscriber needs.
type Dispatcher interface {
	DispatchAlert(ctx context.Context, a *alert.Alert) (reminder.DispatchReport, error)
}

// DispatchSubscriber sends an alert immediately when it is created, and
// again on update while it is active.
type DispatchSubscriber struct {
	d   Dispatcher
	log *zap.Logger
}

func NewDispatchSubscriber(d Dispatcher, log *zap.Logger) *DispatchSubscriber {
	if log == nil {
		log = zap.NewNop()
	}
	return &DispatchSubscriber{d: d, log: log.With(zap.String("component", "notifier.dispatch"))}
}

func (s *DispatchSubscriber) OnCreated(ctx context.Context, a *alert.Alert) error {
	if !a.Active || a.Archived {
		return nil
	}
	_, err := s.d.DispatchAlert(ctx, a)
	return err
}

func (s *DispatchSubscriber) OnUpdated(ctx context.Context, a *alert.Alert) error {
	if !a.Active || a.Archived {
		s.log.Debug("inactive alert updated; no dispatch", zap.Int64("alert_id", a.ID))
		return nil
	}
	_, err := s.d.DispatchAlert(ctx, a)
	return err
}

func (s *DispatchSubscriber) OnExpired(_ context.Context, a *alert.Alert) error {
	s.log.Info("alert expired", zap.Int64("alert_id", a.ID), zap.String("title", a.Title))
	return nil
}

// MetricsSubscriber counts lifecycle events per severity.
type MetricsSubscriber struct{}

func (MetricsSubscriber) OnCreated(_ context.Context, a *alert.Alert) error {
	alertEvents.WithLabelValues(string(EventCreated), string(a.Severity)).Inc()
	return nil
}

func (MetricsSubscriber) OnUpdated(_ context.Context, a *alert.Alert) error {
	alertEvents.WithLabelValues(string(EventUpdated), string(a.Severity)).Inc()
	return nil
}

func (MetricsSubscriber) OnExpired(_ context.Context, a *alert.Alert) error {
	alertEvents.WithLabelValues(string(EventExpired), string(a.Severity)).Inc()
	return nil
}
