package emailnotifier

import (
	"context"
	"fmt"

	"github.com/NordCoder/Alertus/internal/domain/delivery"
	"github.com/NordCoder/Alertus/internal/domain/notification"
	"github.com/NordCoder/Alertus/internal/obs"
	"github.com/NordCoder/Alertus/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	mConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "email_notifier_messages_consumed_total",
		Help: "Email requests consumed.",
	})
	mSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "email_notifier_emails_total",
		Help: "Email send results by outcome.",
	}, []string{"outcome"})
	mDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "email_notifier_dropped_total",
		Help: "Malformed email requests dropped.",
	})
)

type Handler struct {
	Deliveries delivery.Repo
	Out        notification.EmailSender
	Clock      notification.Clock
	Retry      retry.Policy
	Log        *zap.Logger
}

// HandleEmailRequested sends one email and appends the delivered or failed
// record for it. Only a failure to write the record is returned, so the
// message is redelivered rather than lost from the audit trail.
func (h *Handler) HandleEmailRequested(ctx context.Context, ev *notification.EmailRequested) error {
	mConsumed.Inc()
	log := obs.WithTrace(ctx, h.logger()).With(
		zap.String("ref", ev.Ref),
		zap.Int64("alert_id", ev.AlertID),
		zap.Int64("user_id", ev.UserID),
	)
	if ev.AlertID <= 0 || ev.UserID <= 0 || ev.To == "" {
		mDropped.Inc()
		log.Warn("email request dropped: missing alert, user or address")
		return nil
	}

	sendErr := retry.Do(ctx, func() error {
		return h.Out.Send(ctx, ev.To, ev.Subject, ev.Body)
	}, h.Retry)

	rec := &delivery.Record{
		AlertID: ev.AlertID,
		UserID:  ev.UserID,
		Channel: delivery.ChannelEmail,
		Outcome: delivery.OutcomeDelivered,
		At:      h.Clock.Now().UTC(),
	}
	if sendErr != nil {
		rec.Outcome = delivery.OutcomeFailed
		rec.Detail = sendErr.Error()
		log.Warn("email send failed", zap.Error(sendErr))
	}
	mSent.WithLabelValues(string(rec.Outcome)).Inc()

	if err := h.Deliveries.Append(context.WithoutCancel(ctx), rec); err != nil {
		return fmt.Errorf("append delivery record: %w", err)
	}
	log.Debug("email handled", zap.String("outcome", string(rec.Outcome)))
	return nil
}

func (h *Handler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
