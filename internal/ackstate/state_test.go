package ackstate

import (
	"testing"
	"time"

	"github.com/NordCoder/Alertus/internal/domain/preference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := base.Add(d)
	return &t
}

func TestMarkRead_Idempotent(t *testing.T) {
	p := &preference.Preference{State: preference.StateUnread}

	require.True(t, MarkRead(p, base))
	require.Equal(t, preference.StateRead, p.State)
	require.NotNil(t, p.ReadAt)
	first := *p.ReadAt

	require.False(t, MarkRead(p, base.Add(time.Hour)))
	assert.Equal(t, preference.StateRead, p.State)
	assert.Equal(t, first, *p.ReadAt)
}

func TestMarkRead_FromSnoozedClearsDeadline(t *testing.T) {
	p := &preference.Preference{State: preference.StateSnoozed, SnoozedUntil: at(3 * time.Hour)}

	require.True(t, MarkRead(p, base))
	assert.Equal(t, preference.StateRead, p.State)
	assert.Nil(t, p.SnoozedUntil)
	assert.Equal(t, base, *p.ReadAt)
}

func TestSnooze_DefaultsToEndOfDay(t *testing.T) {
	for _, st := range []preference.State{preference.StateUnread, preference.StateRead} {
		p := &preference.Preference{State: st}
		require.True(t, Snooze(p, nil, base))
		assert.Equal(t, preference.StateSnoozed, p.State)
		assert.Equal(t, time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC), *p.SnoozedUntil)
	}
}

func TestSnooze_UsesCallerLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	now := time.Date(2025, 3, 14, 22, 30, 0, 0, time.UTC).In(loc) // 07:30 on the 15th locally

	p := &preference.Preference{State: preference.StateUnread}
	Snooze(p, nil, now)

	assert.Equal(t, time.Date(2025, 3, 15, 23, 59, 59, 0, loc), *p.SnoozedUntil)
}

func TestSnooze_AlreadySnoozed(t *testing.T) {
	p := &preference.Preference{State: preference.StateSnoozed, SnoozedUntil: at(time.Hour)}

	assert.False(t, Snooze(p, nil, base))
	assert.Equal(t, *at(time.Hour), *p.SnoozedUntil)

	assert.True(t, Snooze(p, at(5*time.Hour), base))
	assert.Equal(t, *at(5 * time.Hour), *p.SnoozedUntil)
}

func TestSnooze_ExplicitDeadline(t *testing.T) {
	p := &preference.Preference{State: preference.StateUnread}
	Snooze(p, at(48*time.Hour), base)
	assert.Equal(t, *at(48 * time.Hour), *p.SnoozedUntil)
}

func TestShouldRemind_Unread(t *testing.T) {
	interval := 2 * time.Hour
	now := base

	p := &preference.Preference{State: preference.StateUnread}
	assert.True(t, ShouldRemind(p, interval, now), "never reminded")

	p.LastRemindedAt = at(-90 * time.Minute)
	assert.False(t, ShouldRemind(p, interval, now))

	p.LastRemindedAt = at(-130 * time.Minute)
	assert.True(t, ShouldRemind(p, interval, now))

	p.LastRemindedAt = at(-2 * time.Hour)
	assert.True(t, ShouldRemind(p, interval, now), "boundary is inclusive")
}

func TestShouldRemind_ReadNeverDue(t *testing.T) {
	for _, last := range []*time.Time{nil, at(-time.Minute), at(-100 * time.Hour)} {
		p := &preference.Preference{State: preference.StateRead, LastRemindedAt: last}
		assert.False(t, ShouldRemind(p, time.Hour, base))
	}
}

func TestShouldRemind_SnoozedIsPure(t *testing.T) {
	until := at(-time.Minute)
	p := &preference.Preference{State: preference.StateSnoozed, SnoozedUntil: until}

	assert.True(t, ShouldRemind(p, time.Hour, base))
	assert.Equal(t, preference.StateSnoozed, p.State)
	assert.Equal(t, until, p.SnoozedUntil)

	p.SnoozedUntil = at(time.Minute)
	assert.False(t, ShouldRemind(p, time.Hour, base))

	p.SnoozedUntil = nil
	assert.False(t, ShouldRemind(p, time.Hour, base))
}

func TestSnoozeScenario_EndOfDayThenNextMorning(t *testing.T) {
	p := &preference.Preference{State: preference.StateUnread}
	Snooze(p, nil, base) // 10:00
	require.Equal(t, time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC), *p.SnoozedUntil)

	evening := time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)
	assert.False(t, ClearSnoozeIfExpired(p, evening))
	assert.False(t, ShouldRemind(p, 2*time.Hour, evening))

	nextDay := time.Date(2025, 3, 15, 0, 1, 0, 0, time.UTC)
	assert.True(t, ClearSnoozeIfExpired(p, nextDay))
	assert.Nil(t, p.SnoozedUntil)
	assert.Equal(t, preference.StateUnread, p.State)

	assert.False(t, ClearSnoozeIfExpired(p, nextDay), "cleared only once")
}

func TestEndOfDay(t *testing.T) {
	got := EndOfDay(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC), got)
}

func TestUnknownStateBehavesAsUnread(t *testing.T) {
	p := &preference.Preference{State: "archived"}
	assert.True(t, ShouldRemind(p, time.Hour, base))
}
