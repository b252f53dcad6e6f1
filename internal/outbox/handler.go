package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	events "github.com/NordCoder/Alertus/internal/domain/kafka"
	"github.com/NordCoder/Alertus/internal/domain/outbox"
	"github.com/NordCoder/Alertus/internal/obs/retry"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// AlertPayload is the outbox body of every alert lifecycle kind.
type AlertPayload struct {
	Alert *alert.Alert `json:"alert"`
	At    time.Time    `json:"at"`
}

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

func instrument(kind string, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	if pol.Name == "" {
		pol.Name = "outbox_" + kind
	}
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle")
		defer span.End()

		start := time.Now()
		err := retry.Do(ctx, func() error { return h(ctx, data) }, pol)
		outboxHandlerLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			outboxHandlerErrors.WithLabelValues(kind).Inc()
		}
		return err
	}
}

// MakeGlobalOutboxHandler relays alert lifecycle messages to the event bus.
func MakeGlobalOutboxHandler(pub events.AlertEvents, pol retry.Policy) outbox.GlobalHandler {
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindAlertCreated, outbox.KindAlertUpdated, outbox.KindAlertArchived, outbox.KindAlertExpired:
			name := kind.String()
			base := func(ctx context.Context, data []byte) error {
				var p AlertPayload
				if err := json.Unmarshal(data, &p); err != nil {
					return fmt.Errorf("unmarshal %s payload: %w", name, err)
				}
				return pub.PublishAlertEvent(ctx, &events.AlertEvent{Kind: name, Alert: p.Alert, At: p.At})
			}
			return instrument(name, base, pol), nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
	}
}

// EncodeAlert builds the outbox key and body for one lifecycle change.
func EncodeAlert(kind outbox.Kind, a *alert.Alert, at time.Time) (string, []byte, error) {
	data, err := json.Marshal(AlertPayload{Alert: a, At: at})
	if err != nil {
		return "", nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	key := fmt.Sprintf("%s:%d:%s", kind, a.ID, uuid.NewString())
	return key, data, nil
}
