package emailnotifier

import (
	"context"

	"github.com/NordCoder/Alertus/internal/domain/notification"
	kafkax "github.com/NordCoder/Alertus/internal/repository/kafka"
	"go.uber.org/zap"
)

type Subscriber interface {
	Consume(ctx context.Context, h kafkax.Handler) error
}

type Controller struct {
	Log *zap.Logger
	Sub Subscriber
	UC  *Handler
}

func (c *Controller) Run(ctx context.Context) error {
	handler := kafkax.JSONHandler(func(ctx context.Context, _ []byte, ev *notification.EmailRequested) error {
		return c.UC.HandleEmailRequested(ctx, ev)
	})
	c.Log.Info("email controller running")
	return c.Sub.Consume(ctx, handler)
}
