package alerts

import (
	"time"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/reminder"
)

type createAlertRequest struct {
	Title                  string     `json:"title"`
	Message                string     `json:"message"`
	Severity               string     `json:"severity"`
	DeliveryType           string     `json:"delivery_type"`
	VisibilityType         string     `json:"visibility_type"`
	TargetTeamID           *int64     `json:"target_team_id"`
	TargetUserID           *int64     `json:"target_user_id"`
	StartTime              *time.Time `json:"start_time"`
	ExpiryTime             *time.Time `json:"expiry_time"`
	ReminderFrequencyHours *int       `json:"reminder_frequency_hours"`
	IsActive               *bool      `json:"is_active"`
}

func (r createAlertRequest) toAlert() *alert.Alert {
	a := &alert.Alert{
		Title:        r.Title,
		Message:      r.Message,
		Severity:     alert.Severity(r.Severity),
		Channel:      r.DeliveryType,
		Visibility:   alert.Visibility(r.VisibilityType),
		TargetTeamID: r.TargetTeamID,
		TargetUserID: r.TargetUserID,
		ExpiryTime:   r.ExpiryTime,
		Active:       true,
	}
	if r.StartTime != nil {
		a.StartTime = *r.StartTime
	}
	if r.ReminderFrequencyHours != nil {
		a.ReminderFrequencyHours = *r.ReminderFrequencyHours
	}
	if r.IsActive != nil {
		a.Active = *r.IsActive
	}
	return a
}

type updateAlertRequest struct {
	Title                  *string    `json:"title"`
	Message                *string    `json:"message"`
	Severity               *string    `json:"severity"`
	DeliveryType           *string    `json:"delivery_type"`
	VisibilityType         *string    `json:"visibility_type"`
	TargetTeamID           *int64     `json:"target_team_id"`
	TargetUserID           *int64     `json:"target_user_id"`
	StartTime              *time.Time `json:"start_time"`
	ExpiryTime             *time.Time `json:"expiry_time"`
	ReminderFrequencyHours *int       `json:"reminder_frequency_hours"`
	IsActive               *bool      `json:"is_active"`
	ClearExpiry            bool       `json:"clear_expiry"`
}

func (r updateAlertRequest) toPatch() alert.Patch {
	p := alert.Patch{
		Title:                  r.Title,
		Message:                r.Message,
		Channel:                r.DeliveryType,
		TargetTeamID:           r.TargetTeamID,
		TargetUserID:           r.TargetUserID,
		StartTime:              r.StartTime,
		ExpiryTime:             r.ExpiryTime,
		ReminderFrequencyHours: r.ReminderFrequencyHours,
		Active:                 r.IsActive,
		ClearExpiry:            r.ClearExpiry,
	}
	if r.Severity != nil {
		s := alert.Severity(*r.Severity)
		p.Severity = &s
	}
	if r.VisibilityType != nil {
		v := alert.Visibility(*r.VisibilityType)
		p.Visibility = &v
	}
	return p
}

type snoozeRequest struct {
	Until *time.Time `json:"until"`
}

type sweepResponse struct {
	Candidates int   `json:"candidates"`
	Reminded   int   `json:"reminded"`
	Failed     int   `json:"failed"`
	Skipped    int   `json:"skipped"`
	Errors     int   `json:"errors"`
	DurationMS int64 `json:"duration_ms"`
}

func toSweepResponse(r reminder.SweepReport) sweepResponse {
	return sweepResponse{
		Candidates: r.Candidates,
		Reminded:   r.Reminded,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		Errors:     r.Errors,
		DurationMS: r.Duration.Milliseconds(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}
