// Package ackstate holds the acknowledgment state machine of a user's alert
// preference. Every function is pure over the record it is given: no I/O,
// no clock reads, no shared state.
package ackstate

import (
	"time"

	"github.com/NordCoder/Alertus/internal/domain/preference"
)

// transitions is the closed set of behaviours of a preference state.
type transitions struct {
	markRead     func(p *preference.Preference, now time.Time) bool
	snooze       func(p *preference.Preference, until *time.Time, now time.Time) bool
	shouldRemind func(p *preference.Preference, interval time.Duration, now time.Time) bool
}

var table = map[preference.State]transitions{
	preference.StateUnread: {
		markRead: func(p *preference.Preference, now time.Time) bool {
			p.State = preference.StateRead
			p.ReadAt = ptr(now)
			return true
		},
		snooze: snoozeFresh,
		shouldRemind: func(p *preference.Preference, interval time.Duration, now time.Time) bool {
			if p.LastRemindedAt == nil {
				return true
			}
			return now.Sub(*p.LastRemindedAt) >= interval
		},
	},
	preference.StateRead: {
		markRead: func(*preference.Preference, time.Time) bool { return false },
		snooze:   snoozeFresh,
		shouldRemind: func(*preference.Preference, time.Duration, time.Time) bool {
			return false
		},
	},
	preference.StateSnoozed: {
		markRead: func(p *preference.Preference, now time.Time) bool {
			p.State = preference.StateRead
			p.ReadAt = ptr(now)
			p.SnoozedUntil = nil
			return true
		},
		snooze: func(p *preference.Preference, until *time.Time, _ time.Time) bool {
			if until == nil {
				return false
			}
			p.SnoozedUntil = ptr(*until)
			return true
		},
		shouldRemind: func(p *preference.Preference, _ time.Duration, now time.Time) bool {
			return IsSnoozeExpired(p, now)
		},
	},
}

func snoozeFresh(p *preference.Preference, until *time.Time, now time.Time) bool {
	deadline := EndOfDay(now)
	if until != nil {
		deadline = *until
	}
	p.State = preference.StateSnoozed
	p.SnoozedUntil = ptr(deadline)
	return true
}

func lookup(s preference.State) transitions {
	if t, ok := table[s]; ok {
		return t
	}
	// Unknown persisted values behave as unread.
	return table[preference.StateUnread]
}

// MarkRead acknowledges the alert. Marking a read preference again is a
// no-op and keeps the first ReadAt. Reports whether p changed.
func MarkRead(p *preference.Preference, now time.Time) bool {
	return lookup(p.State).markRead(p, now)
}

// Snooze postpones reminders until the given deadline, or until the end of
// now's calendar day when until is nil. An already snoozed preference only
// moves its deadline when until is given. Reports whether p changed.
func Snooze(p *preference.Preference, until *time.Time, now time.Time) bool {
	return lookup(p.State).snooze(p, until, now)
}

// ShouldRemind reports whether a reminder is due at now. It never mutates p.
func ShouldRemind(p *preference.Preference, interval time.Duration, now time.Time) bool {
	return lookup(p.State).shouldRemind(p, interval, now)
}

// IsSnoozeExpired reports whether p is snoozed with a deadline strictly
// before now.
func IsSnoozeExpired(p *preference.Preference, now time.Time) bool {
	return p.State == preference.StateSnoozed &&
		p.SnoozedUntil != nil &&
		now.After(*p.SnoozedUntil)
}

// ClearSnoozeIfExpired returns an expired snooze to unread and drops its
// deadline. A true result means the preference changed and a reminder is
// due now regardless of LastRemindedAt.
func ClearSnoozeIfExpired(p *preference.Preference, now time.Time) bool {
	if !IsSnoozeExpired(p, now) {
		return false
	}
	p.State = preference.StateUnread
	p.SnoozedUntil = nil
	return true
}

// EndOfDay is 23:59:59 of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

func ptr(t time.Time) *time.Time { return &t }
