package outbox

import (
	"context"
	"time"
)

type Status string

type Kind int

const (
	KindAlertCreated  Kind = 1
	KindAlertUpdated  Kind = 2
	KindAlertArchived Kind = 3
	KindAlertExpired  Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindAlertCreated:
		return "alert.created"
	case KindAlertUpdated:
		return "alert.updated"
	case KindAlertArchived:
		return "alert.archived"
	case KindAlertExpired:
		return "alert.expired"
	}
	return "unknown"
}

type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tracestate     string
	Traceparent    string
	Baggage        string
}

type Repository interface {
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error

	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)

	MarkSuccess(ctx context.Context, keys []string) error
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)
