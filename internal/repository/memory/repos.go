package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/domain/delivery"
	"github.com/NordCoder/Alertus/internal/domain/outbox"
	"github.com/NordCoder/Alertus/internal/domain/preference"
	"github.com/NordCoder/Alertus/internal/domain/user"
)

var (
	_ alert.Repo        = (*AlertRepo)(nil)
	_ user.Repo         = (*UserRepo)(nil)
	_ preference.Repo   = (*PreferenceRepo)(nil)
	_ delivery.Repo     = (*DeliveryRepo)(nil)
	_ outbox.Repository = (*OutboxRepo)(nil)
)

type AlertRepo struct{ s *Store }

func (r *AlertRepo) Create(_ context.Context, a *alert.Alert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTargets(a); err != nil {
		return err
	}
	now := r.s.clock()
	r.s.nextAlert++
	a.ID = r.s.nextAlert
	if a.StartTime.IsZero() {
		a.StartTime = now
	}
	a.Archived = false
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	r.s.alerts[a.ID] = &cp
	return nil
}

func (r *AlertRepo) GetByID(_ context.Context, id int64) (*alert.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.alerts[id]
	if !ok {
		return nil, alert.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *AlertRepo) Update(_ context.Context, a *alert.Alert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.alerts[a.ID]
	if !ok || cur.Archived {
		return alert.ErrNotFound
	}
	if err := r.s.checkTargets(a); err != nil {
		return err
	}
	a.CreatedAt = cur.CreatedAt
	a.CreatedBy = cur.CreatedBy
	a.Archived = false
	a.UpdatedAt = r.s.clock()
	cp := *a
	r.s.alerts[a.ID] = &cp
	return nil
}

func (r *AlertRepo) Archive(_ context.Context, id int64) (*alert.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.alerts[id]
	if !ok {
		return nil, alert.ErrNotFound
	}
	a.Archived, a.Active = true, false
	a.UpdatedAt = r.s.clock()
	cp := *a
	return &cp, nil
}

func (r *AlertRepo) ListByCreator(_ context.Context, creatorID int64, f alert.Filter) ([]*alert.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*alert.Alert
	for _, a := range r.s.alerts {
		if a.CreatedBy != creatorID {
			continue
		}
		if f.Severity != nil && a.Severity != *f.Severity {
			continue
		}
		if f.Active != nil && a.Active != *f.Active {
			continue
		}
		if f.Visibility != nil && a.Visibility != *f.Visibility {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sortAlerts(out)
	return out, nil
}

func (r *AlertRepo) ListVisibleTo(_ context.Context, userID int64, teamIDs []int64) ([]*alert.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	teams := make(map[int64]bool, len(teamIDs))
	for _, t := range teamIDs {
		teams[t] = true
	}
	var out []*alert.Alert
	for _, a := range r.s.alerts {
		if !a.Active || a.Archived {
			continue
		}
		visible := false
		switch a.Visibility {
		case alert.VisibilityOrganization:
			visible = true
		case alert.VisibilityTeam:
			visible = a.TargetTeamID != nil && teams[*a.TargetTeamID]
		case alert.VisibilityUser:
			visible = a.TargetUserID != nil && *a.TargetUserID == userID
		}
		if visible {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortAlerts(out)
	return out, nil
}

func (r *AlertRepo) ExpireDue(_ context.Context, now time.Time) ([]*alert.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*alert.Alert
	for _, a := range r.s.alerts {
		if a.Active && !a.Archived && a.Expired(now) {
			a.Active = false
			a.UpdatedAt = r.s.clock()
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type UserRepo struct{ s *Store }

func (r *UserRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) ListAll(_ context.Context) ([]*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *UserRepo) ListTeamMembers(_ context.Context, teamID int64) ([]*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*user.User
	for _, id := range r.s.members[teamID] {
		if u, ok := r.s.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *UserRepo) ListTeamIDs(_ context.Context, userID int64) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []int64
	for team, ids := range r.s.members {
		for _, id := range ids {
			if id == userID {
				out = append(out, team)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

type PreferenceRepo struct{ s *Store }

func (r *PreferenceRepo) Seed(_ context.Context, alertID int64, userIDs []int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.clock()
	created := 0
	for _, uid := range userIDs {
		k := prefKey{uid, alertID}
		if _, ok := r.s.prefs[k]; ok {
			continue
		}
		r.s.prefs[k] = &preference.Preference{
			UserID: uid, AlertID: alertID, State: preference.StateUnread,
			CreatedAt: now, UpdatedAt: now,
		}
		created++
	}
	return created, nil
}

func (r *PreferenceRepo) Get(_ context.Context, userID, alertID int64) (*preference.Preference, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prefs[prefKey{userID, alertID}]
	if !ok {
		return nil, preference.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *PreferenceRepo) GetForUpdate(ctx context.Context, userID, alertID int64) (*preference.Preference, error) {
	return r.Get(ctx, userID, alertID)
}

func (r *PreferenceRepo) ListByAlert(_ context.Context, alertID int64) ([]*preference.Preference, error) {
	return r.list(func(p *preference.Preference) bool { return p.AlertID == alertID }), nil
}

func (r *PreferenceRepo) ListByUser(_ context.Context, userID int64) ([]*preference.Preference, error) {
	return r.list(func(p *preference.Preference) bool { return p.UserID == userID }), nil
}

func (r *PreferenceRepo) list(keep func(*preference.Preference) bool) []*preference.Preference {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*preference.Preference
	for _, p := range r.s.prefs {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AlertID == out[j].AlertID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].AlertID < out[j].AlertID
	})
	return out
}

func (r *PreferenceRepo) Save(_ context.Context, p *preference.Preference) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := prefKey{p.UserID, p.AlertID}
	if _, ok := r.s.prefs[k]; !ok {
		return preference.ErrNotFound
	}
	cp := *p
	r.s.prefs[k] = &cp
	return nil
}

func (r *PreferenceRepo) ListReminderCandidates(_ context.Context, now time.Time, after preference.Candidate, limit int) ([]preference.Candidate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []preference.Candidate
	for k, p := range r.s.prefs {
		a, ok := r.s.alerts[k.alert]
		if !ok || !a.Active || a.Archived || a.StartTime.After(now) || a.Expired(now) {
			continue
		}
		if p.State == preference.StateRead {
			continue
		}
		if k.alert < after.AlertID || (k.alert == after.AlertID && k.user <= after.UserID) {
			continue
		}
		out = append(out, preference.Candidate{UserID: k.user, AlertID: k.alert})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AlertID == out[j].AlertID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].AlertID < out[j].AlertID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type DeliveryRepo struct{ s *Store }

func (r *DeliveryRepo) Append(_ context.Context, rec *delivery.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextRecord++
	rec.ID = r.s.nextRecord
	cp := *rec
	r.s.deliveries = append(r.s.deliveries, &cp)
	return nil
}

func (r *DeliveryRepo) ListByAlert(_ context.Context, alertID int64, limit int) ([]*delivery.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*delivery.Record
	for i := len(r.s.deliveries) - 1; i >= 0; i-- {
		rec := r.s.deliveries[i]
		if rec.AlertID != alertID {
			continue
		}
		cp := *rec
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type OutboxRepo struct{ s *Store }

func (r *OutboxRepo) Enqueue(_ context.Context, key string, kind outbox.Kind, data []byte) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.outbox {
		if m.IdempotencyKey == key {
			return nil
		}
	}
	now := r.s.clock()
	r.s.outbox = append(r.s.outbox, outbox.Message{
		IdempotencyKey: key, Kind: kind, Data: data, Status: "CREATED",
		CreatedAt: now, UpdatedAt: now,
	})
	return nil
}

func (r *OutboxRepo) PickBatch(_ context.Context, batch int, _ time.Duration) ([]outbox.Message, error) {
	if batch <= 0 {
		return nil, errors.New("batch must be > 0")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []outbox.Message
	for i := range r.s.outbox {
		if r.s.outbox[i].Status != "CREATED" {
			continue
		}
		r.s.outbox[i].Status = "IN_PROGRESS"
		out = append(out, r.s.outbox[i])
		if len(out) == batch {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepo) MarkSuccess(_ context.Context, keys []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	done := make(map[string]bool, len(keys))
	for _, k := range keys {
		done[k] = true
	}
	for i := range r.s.outbox {
		if done[r.s.outbox[i].IdempotencyKey] {
			r.s.outbox[i].Status = "SUCCESS"
		}
	}
	return nil
}
