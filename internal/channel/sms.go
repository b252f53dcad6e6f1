package channel

import (
	"context"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/domain/delivery"
	"github.com/NordCoder/Alertus/internal/domain/user"
)

// SMS is registered so alerts can target it; there is no transport behind
// it yet and every attempt is recorded as failed.
type SMS struct{}

func (SMS) Channel() delivery.Channel { return delivery.ChannelSMS }

func (SMS) Attempt(context.Context, *user.User, *alert.Alert) (Result, error) {
	return Failed("sms transport not configured"), nil
}
