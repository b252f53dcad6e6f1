package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BootstrapConsumer makes sure the consumed topic exists before building the
// consumer. A topic that cannot be ensured is logged and the consumer is
// still returned, since the reader keeps retrying its fetches.
func BootstrapConsumer(ctx context.Context, cfg *ConsumerConfig, logger *zap.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	err := EnsureTopic(ctx, cfg.Brokers, TopicSpec{
		Name:    cfg.Topic,
		MaxWait: 5 * time.Second,
	}, logger)
	if err != nil && logger != nil {
		logger.Warn("ensure consumer topic", zap.String("topic", cfg.Topic), zap.Error(err))
	}
	return NewConsumer(cfg), nil
}
