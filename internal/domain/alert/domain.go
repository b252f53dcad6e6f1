package alert

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

type Visibility string

const (
	VisibilityOrganization Visibility = "organization"
	VisibilityTeam         Visibility = "team"
	VisibilityUser         Visibility = "user"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityOrganization, VisibilityTeam, VisibilityUser:
		return true
	}
	return false
}

// DefaultReminderHours is used when an alert is created without an explicit
// reminder frequency.
const DefaultReminderHours = 2

type Alert struct {
	ID                     int64      `json:"id"`
	Title                  string     `json:"title"`
	Message                string     `json:"message"`
	Severity               Severity   `json:"severity"`
	Channel                string     `json:"delivery_type"`
	Visibility             Visibility `json:"visibility_type"`
	TargetTeamID           *int64     `json:"target_team_id,omitempty"`
	TargetUserID           *int64     `json:"target_user_id,omitempty"`
	StartTime              time.Time  `json:"start_time"`
	ExpiryTime             *time.Time `json:"expiry_time,omitempty"`
	ReminderFrequencyHours int        `json:"reminder_frequency_hours"`
	Active                 bool       `json:"is_active"`
	Archived               bool       `json:"is_archived"`
	CreatedBy              int64      `json:"created_by"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// MaxReminderFrequencyHours bounds the reminder cadence to one year.
const MaxReminderFrequencyHours = 8760

func (a *Alert) ReminderInterval() time.Duration {
	return time.Duration(min(a.ReminderFrequencyHours, MaxReminderFrequencyHours)) * time.Hour
}

// Expired reports whether the alert's active window has closed at now.
func (a *Alert) Expired(now time.Time) bool {
	return a.ExpiryTime != nil && !now.Before(*a.ExpiryTime)
}

var (
	ErrNotFound   = errors.New("alert not found")
	ErrValidation = errors.New("invalid alert")
	ErrForbidden  = errors.New("admin access required")
	ErrArchived   = errors.New("alert is archived")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Validate checks the payload invariants before anything is persisted.
func (a *Alert) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return invalid("title is required")
	}
	if strings.TrimSpace(a.Message) == "" {
		return invalid("message is required")
	}
	if !a.Severity.Valid() {
		return invalid("unknown severity %q", a.Severity)
	}
	if !a.Visibility.Valid() {
		return invalid("unknown visibility %q", a.Visibility)
	}
	if strings.TrimSpace(a.Channel) == "" {
		return invalid("delivery type is required")
	}
	switch a.Visibility {
	case VisibilityTeam:
		if a.TargetTeamID == nil {
			return invalid("team visibility requires target_team_id")
		}
	case VisibilityUser:
		if a.TargetUserID == nil {
			return invalid("user visibility requires target_user_id")
		}
	}
	if a.ReminderFrequencyHours <= 0 || a.ReminderFrequencyHours > MaxReminderFrequencyHours {
		return invalid("reminder_frequency_hours must be between 1 and %d", MaxReminderFrequencyHours)
	}
	if a.ExpiryTime != nil && !a.ExpiryTime.After(a.StartTime) {
		return invalid("expiry_time must be after start_time")
	}
	if a.Archived && a.Active {
		return invalid("archived alert cannot be active")
	}
	return nil
}

// Filter narrows the admin listing. Nil fields are not applied.
type Filter struct {
	Severity   *Severity
	Active     *bool
	Visibility *Visibility
}

// Patch is a partial update; nil fields keep the stored value. ClearExpiry
// drops the expiry time. Targets that do not match the resulting visibility
// are dropped.
type Patch struct {
	Title                  *string
	Message                *string
	Severity               *Severity
	Channel                *string
	Visibility             *Visibility
	TargetTeamID           *int64
	TargetUserID           *int64
	StartTime              *time.Time
	ExpiryTime             *time.Time
	ReminderFrequencyHours *int
	Active                 *bool
	ClearExpiry            bool
}

// Apply copies the set fields of p onto a.
func (p Patch) Apply(a *Alert) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Message != nil {
		a.Message = *p.Message
	}
	if p.Severity != nil {
		a.Severity = *p.Severity
	}
	if p.Channel != nil {
		a.Channel = *p.Channel
	}
	if p.Visibility != nil {
		a.Visibility = *p.Visibility
	}
	if p.TargetTeamID != nil {
		a.TargetTeamID = p.TargetTeamID
	}
	if p.TargetUserID != nil {
		a.TargetUserID = p.TargetUserID
	}
	if p.StartTime != nil {
		a.StartTime = *p.StartTime
	}
	if p.ExpiryTime != nil {
		a.ExpiryTime = p.ExpiryTime
	}
	if p.ClearExpiry {
		a.ExpiryTime = nil
	}
	if p.ReminderFrequencyHours != nil {
		a.ReminderFrequencyHours = *p.ReminderFrequencyHours
	}
	if p.Active != nil {
		a.Active = *p.Active
	}
	if a.Visibility != VisibilityTeam {
		a.TargetTeamID = nil
	}
	if a.Visibility != VisibilityUser {
		a.TargetUserID = nil
	}
}
