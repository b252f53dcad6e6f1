package emailnotifier

import (
	"context"
	"time"

	config "github.com/NordCoder/Alertus/internal/config/email-notifier"
	"github.com/NordCoder/Alertus/internal/domain/notification"
	"github.com/NordCoder/Alertus/internal/obs/retry"
	"go.uber.org/zap"
)

// NewSender builds the transport selected by email.provider.
func NewSender(ctx context.Context, cfg *config.Config, log *zap.Logger) (notification.EmailSender, error) {
	if cfg.Email.Provider == config.ProviderSES {
		return NewSESSender(ctx, cfg.SES, cfg.Email, log)
	}
	return NewMailer(cfg.SMTP, cfg.Email).WithLogger(log), nil
}

// SendPolicy retries a send a few times before it is recorded as failed.
func SendPolicy(log *zap.Logger) retry.Policy {
	return retry.Policy{
		Name:     "email.send",
		Attempts: 3,
		Backoff:  retry.ExpoJitter{Base: 500 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.2},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("email send retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
	}
}
