package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Backoff interface {
	Next(attempt int) time.Duration
}

// ExpoJitter doubles Base per attempt up to Max and spreads the result by
// +/- Jitter.
type ExpoJitter struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func (b ExpoJitter) Next(attempt int) time.Duration {
	attempt = max(attempt, 0)
	d := float64(b.Base) * math.Pow(2, float64(attempt))
	if b.Max > 0 {
		d = math.Min(d, float64(b.Max))
	}
	if b.Jitter > 0 {
		d *= 1 + (rand.Float64()*2-1)*b.Jitter
	}
	return time.Duration(d)
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying under the default Retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

type Policy struct {
	Name      string
	Attempts  int
	Backoff   Backoff
	Retryable func(error) bool
	OnAttempt func(attempt int, err error)
	OnExhaust func(lastErr error)
}

func (p Policy) name() string {
	if p.Name == "" {
		return "default"
	}
	return p.Name
}

func (p Policy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return !IsPermanent(err)
}

func (p Policy) wait(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff.Next(attempt)
}

var (
	retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alertus_retry_attempts_total",
		Help: "Attempts made inside retry.Do, including the last one.",
	}, []string{"name"})
	retryOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alertus_retry_outcomes_total",
		Help: "retry.Do results by outcome (ok|exhausted|canceled).",
	}, []string{"name", "outcome"})
	retryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alertus_retry_duration_seconds",
		Help:    "Total time spent inside retry.Do.",
		Buckets: prometheus.DefBuckets,
	}, []string{"name"})
)

// Do runs fn until it succeeds, the policy gives up or ctx is done.
func Do(ctx context.Context, fn func() error, p Policy) (err error) {
	name := p.name()
	start := time.Now()
	outcome := "ok"
	defer func() {
		retryOutcomes.WithLabelValues(name, outcome).Inc()
		retryLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	attempts := max(p.Attempts, 1)
	span := trace.SpanFromContext(ctx)

	for i := 0; ; i++ {
		retryAttempts.WithLabelValues(name).Inc()
		if err = fn(); err == nil {
			return nil
		}
		if p.OnAttempt != nil {
			p.OnAttempt(i, err)
		}
		if span.IsRecording() {
			span.AddEvent("retry.attempt", trace.WithAttributes(
				attribute.String("retry.name", name),
				attribute.Int("retry.attempt", i+1),
				attribute.String("retry.error", err.Error()),
			))
		}
		if !p.retryable(err) || i+1 >= attempts {
			outcome = "exhausted"
			if p.OnExhaust != nil {
				p.OnExhaust(err)
			}
			return err
		}

		t := time.NewTimer(p.wait(i))
		select {
		case <-ctx.Done():
			t.Stop()
			outcome = "canceled"
			return ctx.Err()
		case <-t.C:
		}
	}
}
