package preference

import (
	"errors"
	"time"
)

type State string

const (
	StateUnread  State = "unread"
	StateRead    State = "read"
	StateSnoozed State = "snoozed"
)

func (s State) Valid() bool {
	switch s {
	case StateUnread, StateRead, StateSnoozed:
		return true
	}
	return false
}

// Preference is a user's acknowledgment record for one alert.
type Preference struct {
	UserID         int64      `json:"user_id"`
	AlertID        int64      `json:"alert_id"`
	State          State      `json:"state"`
	SnoozedUntil   *time.Time `json:"snoozed_until,omitempty"`
	LastRemindedAt *time.Time `json:"last_reminded_at,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Candidate is one (user, alert) pair picked up by a reminder sweep.
type Candidate struct {
	UserID  int64
	AlertID int64
}

var ErrNotFound = errors.New("preference not found")
