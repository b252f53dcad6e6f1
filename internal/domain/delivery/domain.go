package delivery

import "time"

type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
)

// Record is an append-only audit entry of one delivery attempt.
type Record struct {
	ID      int64     `json:"id"`
	AlertID int64     `json:"alert_id"`
	UserID  int64     `json:"user_id"`
	Channel Channel   `json:"delivery_type"`
	Outcome Outcome   `json:"status"`
	At      time.Time `json:"delivered_at"`
	Detail  string    `json:"error_message,omitempty"`
}
