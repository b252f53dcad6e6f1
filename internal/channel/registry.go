// Package channel maps delivery channel identifiers to the strategies that
// attempt a single delivery of an alert to a user.
package channel

import (
	"context"
	"sort"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/domain/delivery"
	"github.com/NordCoder/Alertus/internal/domain/user"
)

// Result is what a strategy reports about one attempt. A non-nil error from
// Attempt is treated the same as Outcome failed.
type Result struct {
	Outcome delivery.Outcome
	Detail  string
}

func Sent(detail string) Result   { return Result{Outcome: delivery.OutcomeSent, Detail: detail} }
func Failed(detail string) Result { return Result{Outcome: delivery.OutcomeFailed, Detail: detail} }

// Strategy delivers through one transport. Implementations must not touch
// preference state.
type Strategy interface {
	Channel() delivery.Channel
	Attempt(ctx context.Context, u *user.User, a *alert.Alert) (Result, error)
}

// Registry is written during startup only and read concurrently afterwards.
type Registry struct {
	strategies map[delivery.Channel]Strategy
	fallback   Strategy
}

// NewRegistry builds a registry whose lookups fall back to inApp.
func NewRegistry(inApp Strategy, more ...Strategy) *Registry {
	r := &Registry{strategies: map[delivery.Channel]Strategy{}, fallback: inApp}
	r.Register(inApp)
	for _, s := range more {
		r.Register(s)
	}
	return r
}

// Register adds or replaces the strategy for s.Channel().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Channel()] = s
}

// Lookup returns the strategy for ch, or the in-app strategy when ch is not
// registered.
func (r *Registry) Lookup(ch string) Strategy {
	if s, ok := r.strategies[delivery.Channel(ch)]; ok {
		return s
	}
	return r.fallback
}

func (r *Registry) Channels() []delivery.Channel {
	out := make([]delivery.Channel, 0, len(r.strategies))
	for ch := range r.strategies {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
