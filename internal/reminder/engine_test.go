package reminder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NordCoder/Alertus/internal/channel"
	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/domain/delivery"
	"github.com/NordCoder/Alertus/internal/domain/preference"
	"github.com/NordCoder/Alertus/internal/domain/user"
	"github.com/NordCoder/Alertus/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

type stubStrategy struct {
	ch    delivery.Channel
	calls atomic.Int32
	fn    func(ctx context.Context, u *user.User) (channel.Result, error)
}

func (s *stubStrategy) Channel() delivery.Channel { return s.ch }

func (s *stubStrategy) Attempt(ctx context.Context, u *user.User, _ *alert.Alert) (channel.Result, error) {
	s.calls.Add(1)
	if s.fn == nil {
		return channel.Sent("ok"), nil
	}
	return s.fn(ctx, u)
}

type harness struct {
	store  *memory.Store
	clock  *memory.Clock
	inApp  *stubStrategy
	engine *Engine
}

func newHarness(t *testing.T, cfg Config, more ...channel.Strategy) *harness {
	t.Helper()
	clock := memory.NewClock(t0)
	store := memory.New(clock.Now)
	inApp := &stubStrategy{ch: delivery.ChannelInApp}
	h := &harness{store: store, clock: clock, inApp: inApp}
	h.engine = New(zap.NewNop(), Deps{
		Alerts:     store.Alerts(),
		Users:      store.Users(),
		Prefs:      store.Prefs(),
		Deliveries: store.Deliveries(),
		Tx:         store.Transactor(),
		Channels:   channel.NewRegistry(inApp, more...),
		Clock:      clock,
	}, cfg)
	return h
}

func (h *harness) addUsers(ids ...int64) {
	for _, id := range ids {
		h.store.AddUser(&user.User{ID: id, Name: "u", Email: "u@example.com"})
	}
}

func (h *harness) orgAlert(id int64, ch string) *alert.Alert {
	a := &alert.Alert{
		ID: id, Title: "Disk", Message: "full", Severity: alert.SeverityWarning,
		Channel: ch, Visibility: alert.VisibilityOrganization,
		StartTime: t0.Add(-time.Hour), ReminderFrequencyHours: 2, Active: true,
	}
	h.store.PutAlert(a)
	return a
}

func (h *harness) pref(userID, alertID int64) *preference.Preference {
	p, err := h.store.Prefs().Get(context.Background(), userID, alertID)
	if err != nil {
		panic(err)
	}
	return p
}

func TestSweep_EveryCandidateLeavesExactlyOneRecord(t *testing.T) {
	flaky := &stubStrategy{ch: "flaky", fn: func(ctx context.Context, u *user.User) (channel.Result, error) {
		switch u.ID {
		case 2:
			panic("transport exploded")
		case 3:
			return channel.Result{}, errors.New("connection refused")
		case 4:
			return channel.Failed("mailbox full"), nil
		case 5:
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			return channel.Sent("too late"), nil
		}
		return channel.Sent("ok"), nil
	}}
	h := newHarness(t, Config{Workers: 3, DeliveryTimeout: 50 * time.Millisecond}, flaky)
	h.addUsers(1, 2, 3, 4, 5, 6)
	a := h.orgAlert(10, "flaky")

	_, err := h.engine.SeedPreferences(context.Background(), a)
	require.NoError(t, err)

	rep, err := h.engine.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Candidates)
	assert.Equal(t, 2, rep.Reminded)
	assert.Equal(t, 4, rep.Failed)
	assert.Zero(t, rep.Errors)

	recs := h.store.Records()
	require.Len(t, recs, 6)
	byUser := map[int64]*delivery.Record{}
	for _, r := range recs {
		byUser[r.UserID] = r
		assert.Equal(t, delivery.Channel("flaky"), r.Channel)
		assert.True(t, t0.Equal(r.At))
	}
	assert.Equal(t, delivery.OutcomeSent, byUser[1].Outcome)
	assert.Contains(t, byUser[2].Detail, "panic")
	assert.Equal(t, "connection refused", byUser[3].Detail)
	assert.Equal(t, "mailbox full", byUser[4].Detail)
	assert.Contains(t, byUser[5].Detail, "timed out")
	assert.Equal(t, delivery.OutcomeFailed, byUser[5].Outcome)

	for id := int64(1); id <= 6; id++ {
		p := h.pref(id, a.ID)
		require.NotNil(t, p.LastRemindedAt)
		assert.True(t, t0.Equal(*p.LastRemindedAt))
	}
}

func TestSweep_RespectsReminderInterval(t *testing.T) {
	h := newHarness(t, Config{})
	h.addUsers(1)
	a := h.orgAlert(1, "in_app")
	last := t0.Add(-90 * time.Minute)
	h.store.PutPreference(&preference.Preference{UserID: 1, AlertID: a.ID, State: preference.StateUnread, LastRemindedAt: &last})

	rep, err := h.engine.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Skipped)
	assert.Empty(t, h.store.Records())

	h.clock.Advance(40 * time.Minute)
	rep, err = h.engine.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Reminded)
	require.Len(t, h.store.Records(), 1)
	assert.Equal(t, delivery.ChannelInApp, h.store.Records()[0].Channel)
}

func TestSweep_ExpiredSnoozeRemindsAndClears(t *testing.T) {
	h := newHarness(t, Config{})
	h.addUsers(1)
	a := h.orgAlert(1, "in_app")
	until := t0.Add(-time.Minute)
	last := t0.Add(-2 * time.Minute)
	h.store.PutPreference(&preference.Preference{
		UserID: 1, AlertID: a.ID, State: preference.StateSnoozed, SnoozedUntil: &until, LastRemindedAt: &last,
	})

	rep, err := h.engine.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Reminded)

	p := h.pref(1, a.ID)
	assert.Equal(t, preference.StateUnread, p.State)
	assert.Nil(t, p.SnoozedUntil)
}

func TestSweep_ActiveSnoozeIsQuiet(t *testing.T) {
	h := newHarness(t, Config{})
	h.addUsers(1)
	a := h.orgAlert(1, "in_app")
	until := t0.Add(time.Hour)
	h.store.PutPreference(&preference.Preference{UserID: 1, AlertID: a.ID, State: preference.StateSnoozed, SnoozedUntil: &until})

	rep, err := h.engine.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Skipped)
	assert.Zero(t, h.inApp.calls.Load())
}

func TestSweep_SkipsReadArchivedAndExpired(t *testing.T) {
	h := newHarness(t, Config{})
	h.addUsers(1)
	live := h.orgAlert(1, "in_app")
	archived := h.orgAlert(2, "in_app")
	archived.Archived, archived.Active = true, false
	h.store.PutAlert(archived)
	expired := h.orgAlert(3, "in_app")
	past := t0.Add(-time.Minute)
	expired.ExpiryTime = &past
	h.store.PutAlert(expired)

	readAt := t0.Add(-time.Hour)
	h.store.PutPreference(&preference.Preference{UserID: 1, AlertID: live.ID, State: preference.StateRead, ReadAt: &readAt})
	h.store.PutPreference(&preference.Preference{UserID: 1, AlertID: archived.ID, State: preference.StateUnread})
	h.store.PutPreference(&preference.Preference{UserID: 1, AlertID: expired.ID, State: preference.StateUnread})

	rep, err := h.engine.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Candidates)
	assert.Empty(t, h.store.Records())
}

func TestSweep_ConcurrentCallIsRejected(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	slow := &stubStrategy{ch: "slow", fn: func(ctx context.Context, _ *user.User) (channel.Result, error) {
		once.Do(func() { close(entered) })
		<-release
		return channel.Sent("ok"), nil
	}}
	h := newHarness(t, Config{DeliveryTimeout: 5 * time.Second}, slow)
	h.addUsers(1)
	a := h.orgAlert(1, "slow")
	_, err := h.engine.SeedPreferences(context.Background(), a)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.engine.Sweep(context.Background())
		done <- err
	}()

	<-entered
	_, err = h.engine.Sweep(context.Background())
	require.ErrorIs(t, err, ErrSweepInProgress)

	close(release)
	require.NoError(t, <-done)
	require.Len(t, h.store.Records(), 1)
}

type denyLocker struct{ released bool }

func (d *denyLocker) Acquire(context.Context) (bool, error) { return false, nil }

func (d *denyLocker) Extend(context.Context) (bool, error) { return false, nil }

func (d *denyLocker) Release(context.Context) error {
	d.released = true
	return nil
}

func TestSweep_HeldDistributedLockIsRejected(t *testing.T) {
	h := newHarness(t, Config{})
	lock := &denyLocker{}
	h.engine.Lock = lock

	_, err := h.engine.Sweep(context.Background())
	require.ErrorIs(t, err, ErrSweepInProgress)
	assert.False(t, lock.released)
}

type failingSave struct {
	*memory.PreferenceRepo
}

func (failingSave) Save(context.Context, *preference.Preference) error {
	return errors.New("disk on fire")
}

func TestSweep_RecordSurvivesRolledBackTransaction(t *testing.T) {
	h := newHarness(t, Config{})
	h.addUsers(1)
	a := h.orgAlert(1, "in_app")
	h.store.PutPreference(&preference.Preference{UserID: 1, AlertID: a.ID, State: preference.StateUnread})
	h.engine.Prefs = failingSave{h.store.Prefs()}

	rep, err := h.engine.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Errors)

	require.Len(t, h.store.Records(), 1)
	assert.Nil(t, h.pref(1, a.ID).LastRemindedAt)
}

func TestDispatchAlert_SkipsReadAndSeedsOnce(t *testing.T) {
	h := newHarness(t, Config{})
	h.addUsers(1, 2, 3)
	a := h.orgAlert(1, "in_app")

	rep, err := h.engine.DispatchAlert(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, DispatchReport{Targets: 3, Sent: 3}, rep)

	_, err = h.engine.MarkRead(context.Background(), 2, a.ID)
	require.NoError(t, err)

	rep, err = h.engine.DispatchAlert(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, DispatchReport{Targets: 3, Sent: 2, SkippedRead: 1}, rep)

	prefs, err := h.store.Prefs().ListByAlert(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Len(t, prefs, 3)
	assert.Len(t, h.store.Records(), 5)

	p := h.pref(1, a.ID)
	require.NotNil(t, p.LastRemindedAt)
}

func TestDispatchAlert_TeamTargetsOnlyMembers(t *testing.T) {
	h := newHarness(t, Config{})
	h.store.AddUser(&user.User{ID: 1}, 100)
	h.store.AddUser(&user.User{ID: 2}, 100, 200)
	h.store.AddUser(&user.User{ID: 3}, 200)
	team := int64(100)
	a := h.orgAlert(1, "in_app")
	a.Visibility, a.TargetTeamID = alert.VisibilityTeam, &team
	h.store.PutAlert(a)

	rep, err := h.engine.DispatchAlert(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Targets)

	_, err = h.store.Prefs().Get(context.Background(), 3, a.ID)
	require.ErrorIs(t, err, preference.ErrNotFound)
}

func TestDispatchAlert_UnknownChannelUsesInApp(t *testing.T) {
	h := newHarness(t, Config{})
	h.addUsers(1)
	a := h.orgAlert(1, "carrier-pigeon")

	_, err := h.engine.DispatchAlert(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, h.store.Records(), 1)
	assert.Equal(t, delivery.ChannelInApp, h.store.Records()[0].Channel)
	assert.EqualValues(t, 1, h.inApp.calls.Load())
}

func TestActions_MarkReadAndSnooze(t *testing.T) {
	h := newHarness(t, Config{})
	h.addUsers(1)
	a := h.orgAlert(1, "in_app")
	h.store.PutPreference(&preference.Preference{UserID: 1, AlertID: a.ID, State: preference.StateUnread})

	p, err := h.engine.Snooze(context.Background(), 1, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, preference.StateSnoozed, p.State)
	assert.Equal(t, time.Date(2025, 6, 2, 23, 59, 59, 0, time.UTC), *p.SnoozedUntil)

	p, err = h.engine.MarkRead(context.Background(), 1, a.ID)
	require.NoError(t, err)
	assert.Equal(t, preference.StateRead, p.State)
	assert.Nil(t, p.SnoozedUntil)
	first := *p.ReadAt

	h.clock.Advance(time.Hour)
	p, err = h.engine.MarkRead(context.Background(), 1, a.ID)
	require.NoError(t, err)
	assert.True(t, first.Equal(*p.ReadAt))

	_, err = h.engine.MarkRead(context.Background(), 1, 999)
	require.ErrorIs(t, err, preference.ErrNotFound)
}

func TestExpireDue_DeactivatesPastExpiry(t *testing.T) {
	h := newHarness(t, Config{})
	a := h.orgAlert(1, "in_app")
	exp := t0.Add(time.Minute)
	a.ExpiryTime = &exp
	h.store.PutAlert(a)
	h.orgAlert(2, "in_app")

	got, err := h.engine.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	h.clock.Advance(time.Minute)
	got, err = h.engine.ExpireDue(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
	assert.False(t, got[0].Active)
}

func TestSweep_PagesPastBatchLimit(t *testing.T) {
	h := newHarness(t, Config{BatchLimit: 2})
	h.addUsers(1, 2, 3)
	a := h.orgAlert(1, "in_app")
	recent := t0.Add(-30 * time.Minute)
	h.store.PutPreference(&preference.Preference{UserID: 1, AlertID: a.ID, State: preference.StateUnread, LastRemindedAt: &recent})
	h.store.PutPreference(&preference.Preference{UserID: 2, AlertID: a.ID, State: preference.StateUnread, LastRemindedAt: &recent})
	h.store.PutPreference(&preference.Preference{UserID: 3, AlertID: a.ID, State: preference.StateUnread})

	rep, err := h.engine.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Candidates)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 1, rep.Reminded)

	p := h.pref(3, a.ID)
	require.NotNil(t, p.LastRemindedAt)
	assert.True(t, t0.Equal(*p.LastRemindedAt))
}

type leaseLocker struct {
	extendOK bool
	extends  int
	released bool
}

func (l *leaseLocker) Acquire(context.Context) (bool, error) { return true, nil }

func (l *leaseLocker) Extend(context.Context) (bool, error) {
	l.extends++
	return l.extendOK, nil
}

func (l *leaseLocker) Release(context.Context) error {
	l.released = true
	return nil
}

func TestSweep_RenewsLeaseBetweenPages(t *testing.T) {
	h := newHarness(t, Config{BatchLimit: 2})
	h.addUsers(1, 2, 3, 4, 5)
	a := h.orgAlert(1, "in_app")
	_, err := h.engine.SeedPreferences(context.Background(), a)
	require.NoError(t, err)
	lock := &leaseLocker{extendOK: true}
	h.engine.Lock = lock

	rep, err := h.engine.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Reminded)
	assert.Equal(t, 2, lock.extends)
	assert.True(t, lock.released)
}

func TestSweep_StopsWhenLeaseIsLost(t *testing.T) {
	h := newHarness(t, Config{BatchLimit: 2})
	h.addUsers(1, 2, 3)
	a := h.orgAlert(1, "in_app")
	_, err := h.engine.SeedPreferences(context.Background(), a)
	require.NoError(t, err)
	lock := &leaseLocker{extendOK: false}
	h.engine.Lock = lock

	rep, err := h.engine.Sweep(context.Background())
	require.ErrorIs(t, err, ErrSweepLockLost)
	assert.Equal(t, 2, rep.Reminded)
	assert.Nil(t, h.pref(3, a.ID).LastRemindedAt)
	assert.True(t, lock.released)
}
