// Package memory holds in-process implementations of the repository ports.
// Transactions are serialised and roll back alert, preference and outbox
// changes on error; delivery records are never rolled back.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/domain/delivery"
	"github.com/NordCoder/Alertus/internal/domain/outbox"
	"github.com/NordCoder/Alertus/internal/domain/preference"
	"github.com/NordCoder/Alertus/internal/domain/user"
	"github.com/NordCoder/Alertus/internal/repository/postgres"
)

type prefKey struct{ user, alert int64 }

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	clock func() time.Time

	alerts     map[int64]*alert.Alert
	nextAlert  int64
	users      map[int64]*user.User
	members    map[int64][]int64
	teams      map[int64]bool
	prefs      map[prefKey]*preference.Preference
	deliveries []*delivery.Record
	nextRecord int64
	outbox     []outbox.Message
}

func New(clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		clock:   clock,
		alerts:  map[int64]*alert.Alert{},
		users:   map[int64]*user.User{},
		members: map[int64][]int64{},
		teams:   map[int64]bool{},
		prefs:   map[prefKey]*preference.Preference{},
	}
}

func (s *Store) Alerts() *AlertRepo { return &AlertRepo{s} }
func (s *Store) Users() *UserRepo { return &UserRepo{s} }
func (s *Store) Prefs() *PreferenceRepo { return &PreferenceRepo{s} }
func (s *Store) Deliveries() *DeliveryRepo { return &DeliveryRepo{s} }
func (s *Store) Outbox() *OutboxRepo { return &OutboxRepo{s} }
func (s *Store) Transactor() postgres.Transactor { return &Transactor{s} }

// AddUser registers a user and its team memberships.
func (s *Store) AddUser(u *user.User, teamIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	if cp.Role == "" {
		cp.Role = user.RoleUser
	}
	s.users[cp.ID] = &cp
	for _, t := range teamIDs {
		s.teams[t] = true
		s.members[t] = append(s.members[t], cp.ID)
	}
}

// AddTeam registers a team without members.
func (s *Store) AddTeam(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[id] = true
}

// checkTargets mirrors the alerts foreign keys. Callers hold s.mu.
func (s *Store) checkTargets(a *alert.Alert) error {
	if a.TargetTeamID != nil && !s.teams[*a.TargetTeamID] {
		return fmt.Errorf("%w: target team or user does not exist", alert.ErrValidation)
	}
	if a.TargetUserID != nil {
		if _, ok := s.users[*a.TargetUserID]; !ok {
			return fmt.Errorf("%w: target team or user does not exist", alert.ErrValidation)
		}
	}
	return nil
}

// PutAlert stores a fully-formed alert as is, keeping its ID.
func (s *Store) PutAlert(a *alert.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.alerts[cp.ID] = &cp
	if cp.ID > s.nextAlert {
		s.nextAlert = cp.ID
	}
}

// PutPreference stores p as is.
func (s *Store) PutPreference(p *preference.Preference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.prefs[prefKey{cp.UserID, cp.AlertID}] = &cp
}

// Records returns a snapshot of every delivery record in append order.
func (s *Store) Records() []*delivery.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*delivery.Record, len(s.deliveries))
	for i, r := range s.deliveries {
		cp := *r
		out[i] = &cp
	}
	return out
}

// OutboxMessages returns a snapshot of the pending outbox.
func (s *Store) OutboxMessages() []outbox.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Message(nil), s.outbox...)
}

type snapshot struct {
	alerts    map[int64]*alert.Alert
	nextAlert int64
	prefs     map[prefKey]*preference.Preference
	outbox    []outbox.Message
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		alerts:    make(map[int64]*alert.Alert, len(s.alerts)),
		nextAlert: s.nextAlert,
		prefs:     make(map[prefKey]*preference.Preference, len(s.prefs)),
		outbox:    append([]outbox.Message(nil), s.outbox...),
	}
	for k, v := range s.alerts {
		cp := *v
		snap.alerts[k] = &cp
	}
	for k, v := range s.prefs {
		cp := *v
		snap.prefs[k] = &cp
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = snap.alerts
	s.nextAlert = snap.nextAlert
	s.prefs = snap.prefs
	s.outbox = snap.outbox
}

type txKey struct{}

type Transactor struct{ s *Store }

func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	snap := t.s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

func sortAlerts(out []*alert.Alert) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
}
