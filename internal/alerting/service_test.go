package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NordCoder/Alertus/internal/channel"
	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/domain/delivery"
	"github.com/NordCoder/Alertus/internal/domain/outbox"
	"github.com/NordCoder/Alertus/internal/domain/preference"
	"github.com/NordCoder/Alertus/internal/domain/user"
	"github.com/NordCoder/Alertus/internal/notifier"
	"github.com/NordCoder/Alertus/internal/reminder"
	"github.com/NordCoder/Alertus/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	t0    = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	admin = user.Actor{UserID: 100, Role: user.RoleAdmin}
)

type fixture struct {
	store *memory.Store
	clock *memory.Clock
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := memory.NewClock(t0)
	store := memory.New(clock.Now)
	engine := reminder.New(zap.NewNop(), reminder.Deps{
		Alerts:     store.Alerts(),
		Users:      store.Users(),
		Prefs:      store.Prefs(),
		Deliveries: store.Deliveries(),
		Tx:         store.Transactor(),
		Channels:   channel.NewRegistry(channel.NewInApp(nil, clock.Now), channel.SMS{}),
		Clock:      clock,
	}, reminder.Config{})

	subject := notifier.NewSubject(zap.NewNop())
	subject.Attach("dispatch", notifier.NewDispatchSubscriber(engine, nil))
	subject.Attach("metrics", notifier.MetricsSubscriber{})

	svc := New(zap.NewNop(), Deps{
		Alerts:     store.Alerts(),
		Users:      store.Users(),
		Prefs:      store.Prefs(),
		Deliveries: store.Deliveries(),
		Outbox:     store.Outbox(),
		Tx:         store.Transactor(),
		Reminders:  engine,
		Notifier:   subject,
		Clock:      clock,
	})
	store.AddUser(&user.User{ID: admin.UserID, Role: user.RoleAdmin})
	return &fixture{store: store, clock: clock, svc: svc}
}

func orgDraft() *alert.Alert {
	return &alert.Alert{
		Title:      "Maintenance",
		Message:    "DB failover at 18:00",
		Severity:   alert.SeverityWarning,
		Visibility: alert.VisibilityOrganization,
		Active:     true,
	}
}

func TestCreate_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), user.Actor{UserID: 1, Role: user.RoleUser}, orgDraft())
	require.ErrorIs(t, err, alert.ErrForbidden)
}

func TestCreate_ValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t)
	d := orgDraft()
	d.Visibility = alert.VisibilityTeam

	_, err := f.svc.Create(context.Background(), admin, d)
	require.ErrorIs(t, err, alert.ErrValidation)

	list, err := f.svc.List(context.Background(), admin, alert.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.store.OutboxMessages())
}

func TestCreate_DefaultsSeedsDispatchesAndEnqueues(t *testing.T) {
	f := newFixture(t)
	f.store.AddUser(&user.User{ID: 1})
	f.store.AddUser(&user.User{ID: 2})

	a, err := f.svc.Create(context.Background(), admin, orgDraft())
	require.NoError(t, err)
	assert.Equal(t, alert.DefaultReminderHours, a.ReminderFrequencyHours)
	assert.Equal(t, "in_app", a.Channel)
	assert.Equal(t, admin.UserID, a.CreatedBy)
	assert.True(t, t0.Equal(a.StartTime))

	prefs, err := f.store.Prefs().ListByAlert(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Len(t, prefs, 3)

	recs := f.store.Records()
	assert.Len(t, recs, 3)
	for _, r := range recs {
		assert.Equal(t, delivery.OutcomeSent, r.Outcome)
		assert.Equal(t, "Alert: Maintenance", r.Detail)
	}

	msgs := f.store.OutboxMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, outbox.KindAlertCreated, msgs[0].Kind)
}

func TestCreate_TeamAlertSeedsMembersOnce(t *testing.T) {
	f := newFixture(t)
	f.store.AddUser(&user.User{ID: 1}, 7)
	f.store.AddUser(&user.User{ID: 2}, 7)
	f.store.AddUser(&user.User{ID: 3}, 8)

	team := int64(7)
	d := orgDraft()
	d.Visibility, d.TargetTeamID = alert.VisibilityTeam, &team
	a, err := f.svc.Create(context.Background(), admin, d)
	require.NoError(t, err)

	prefs, err := f.store.Prefs().ListByAlert(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, prefs, 2)

	title := "Maintenance (moved)"
	_, err = f.svc.Update(context.Background(), admin, a.ID, alert.Patch{Title: &title})
	require.NoError(t, err)

	prefs, err = f.store.Prefs().ListByAlert(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Len(t, prefs, 2)
}

func TestUpdate_DispatchSkipsReadUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.AddUser(&user.User{ID: 1})
	f.store.AddUser(&user.User{ID: 2})
	f.store.AddUser(&user.User{ID: 3})

	a, err := f.svc.Create(ctx, admin, orgDraft())
	require.NoError(t, err)

	_, err = f.svc.MarkRead(ctx, user.Actor{UserID: 1}, a.ID)
	require.NoError(t, err)
	until := t0.Add(time.Hour)
	_, err = f.svc.Snooze(ctx, user.Actor{UserID: 3}, a.ID, &until)
	require.NoError(t, err)
	_, err = f.svc.MarkRead(ctx, admin, a.ID)
	require.NoError(t, err)

	before := len(f.store.Records())
	sev := alert.SeverityCritical
	_, err = f.svc.Update(ctx, admin, a.ID, alert.Patch{Severity: &sev})
	require.NoError(t, err)

	var got []int64
	for _, r := range f.store.Records()[before:] {
		got = append(got, r.UserID)
	}
	assert.ElementsMatch(t, []int64{2, 3}, got)
}

func TestUpdate_InactiveAlertIsNotDispatched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.AddUser(&user.User{ID: 1})

	a, err := f.svc.Create(ctx, admin, orgDraft())
	require.NoError(t, err)
	before := len(f.store.Records())

	off := false
	updated, err := f.svc.Update(ctx, admin, a.ID, alert.Patch{Active: &off})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Len(t, f.store.Records(), before)
}

func TestArchive_IsOneWay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, admin, orgDraft())
	require.NoError(t, err)

	archived, err := f.svc.Archive(ctx, admin, a.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
	assert.False(t, archived.Active)

	on := true
	_, err = f.svc.Update(ctx, admin, a.ID, alert.Patch{Active: &on})
	require.ErrorIs(t, err, alert.ErrArchived)

	_, err = f.svc.Archive(ctx, admin, 404)
	require.ErrorIs(t, err, alert.ErrNotFound)

	kinds := []outbox.Kind{}
	for _, m := range f.store.OutboxMessages() {
		kinds = append(kinds, m.Kind)
	}
	assert.Equal(t, []outbox.Kind{outbox.KindAlertCreated, outbox.KindAlertArchived}, kinds)
}

func TestList_FiltersByCreatorAndFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, admin, orgDraft())
	require.NoError(t, err)
	crit := orgDraft()
	crit.Severity = alert.SeverityCritical
	_, err = f.svc.Create(ctx, admin, crit)
	require.NoError(t, err)
	other := user.Actor{UserID: 200, Role: user.RoleAdmin}
	_, err = f.svc.Create(ctx, other, orgDraft())
	require.NoError(t, err)

	all, err := f.svc.List(ctx, admin, alert.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sev := alert.SeverityCritical
	only, err := f.svc.List(ctx, admin, alert.Filter{Severity: &sev})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, alert.SeverityCritical, only[0].Severity)
}

func TestListForUser_VisibilityAndLazySeeding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.AddUser(&user.User{ID: 1}, 7)
	f.store.AddUser(&user.User{ID: 2})

	_, err := f.svc.Create(ctx, admin, orgDraft())
	require.NoError(t, err)

	team := int64(7)
	teamDraft := orgDraft()
	teamDraft.Visibility, teamDraft.TargetTeamID = alert.VisibilityTeam, &team
	teamAlert, err := f.svc.Create(ctx, admin, teamDraft)
	require.NoError(t, err)

	target := int64(2)
	personal := orgDraft()
	personal.Visibility, personal.TargetUserID = alert.VisibilityUser, &target
	_, err = f.svc.Create(ctx, admin, personal)
	require.NoError(t, err)

	got, err := f.svc.ListForUser(ctx, user.Actor{UserID: 1})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// A user who joins the team later gets a preference on first listing.
	f.store.AddUser(&user.User{ID: 3}, 7)
	got, err = f.svc.ListForUser(ctx, user.Actor{UserID: 3})
	require.NoError(t, err)
	require.Len(t, got, 2)
	p, err := f.store.Prefs().Get(ctx, 3, teamAlert.ID)
	require.NoError(t, err)
	assert.Equal(t, preference.StateUnread, p.State)
}

func TestSnooze_RejectsPastDeadline(t *testing.T) {
	f := newFixture(t)
	past := t0.Add(-time.Minute)
	_, err := f.svc.Snooze(context.Background(), user.Actor{UserID: 1}, 1, &past)
	require.ErrorIs(t, err, alert.ErrValidation)
}

func TestMarkRead_MissingPreference(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.MarkRead(context.Background(), user.Actor{UserID: 1}, 999)
	require.True(t, errors.Is(err, preference.ErrNotFound))
}

func TestTriggerReminders_AdminOnly(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.TriggerReminders(context.Background(), user.Actor{UserID: 1, Role: user.RoleUser})
	require.ErrorIs(t, err, alert.ErrForbidden)

	rep, err := f.svc.TriggerReminders(context.Background(), admin)
	require.NoError(t, err)
	assert.Zero(t, rep.Candidates)
}

func TestExpireDue_EnqueuesAndStopsReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.AddUser(&user.User{ID: 1})

	d := orgDraft()
	exp := t0.Add(30 * time.Minute)
	d.ExpiryTime = &exp
	a, err := f.svc.Create(ctx, admin, d)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	expired, err := f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, a.ID, expired[0].ID)

	msgs := f.store.OutboxMessages()
	assert.Equal(t, outbox.KindAlertExpired, msgs[len(msgs)-1].Kind)

	f.clock.Advance(3 * time.Hour)
	rep, err := f.svc.TriggerReminders(ctx, admin)
	require.NoError(t, err)
	assert.Zero(t, rep.Candidates)
}

func TestDeliveries_ListsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.AddUser(&user.User{ID: 1})

	d := orgDraft()
	d.Channel = "sms"
	a, err := f.svc.Create(ctx, admin, d)
	require.NoError(t, err)

	recs, err := f.svc.Deliveries(ctx, admin, a.ID, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, delivery.OutcomeFailed, r.Outcome)
		assert.Equal(t, "sms transport not configured", r.Detail)
	}

	_, err = f.svc.Deliveries(ctx, admin, 999, 10)
	require.ErrorIs(t, err, alert.ErrNotFound)
}

func TestCreate_UnknownTargetIsValidationFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	team := int64(99)
	d := orgDraft()
	d.Visibility, d.TargetTeamID = alert.VisibilityTeam, &team
	_, err := f.svc.Create(ctx, admin, d)
	require.ErrorIs(t, err, alert.ErrValidation)

	ghost := int64(404)
	d = orgDraft()
	d.Visibility, d.TargetUserID = alert.VisibilityUser, &ghost
	_, err = f.svc.Create(ctx, admin, d)
	require.ErrorIs(t, err, alert.ErrValidation)

	assert.Empty(t, f.store.OutboxMessages())
}

func TestCreate_RejectsOverlongReminderFrequency(t *testing.T) {
	f := newFixture(t)
	d := orgDraft()
	d.ReminderFrequencyHours = 3_000_000
	_, err := f.svc.Create(context.Background(), admin, d)
	require.ErrorIs(t, err, alert.ErrValidation)
}

func TestUpdate_ClearsExpiryAndRetargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.AddUser(&user.User{ID: 1}, 7)

	team := int64(7)
	d := orgDraft()
	d.Visibility, d.TargetTeamID = alert.VisibilityTeam, &team
	expiry := f.clock.Now().Add(24 * time.Hour)
	d.ExpiryTime = &expiry
	a, err := f.svc.Create(ctx, admin, d)
	require.NoError(t, err)

	org := alert.VisibilityOrganization
	updated, err := f.svc.Update(ctx, admin, a.ID, alert.Patch{ClearExpiry: true, Visibility: &org})
	require.NoError(t, err)
	assert.Nil(t, updated.ExpiryTime)
	assert.Nil(t, updated.TargetTeamID)

	stored, err := f.store.Alerts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ExpiryTime)
}
