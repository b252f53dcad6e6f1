package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Alertus/internal/domain/preference"
	"github.com/jackc/pgx/v5"
)

var _ preference.Repo = (*PreferenceRepo)(nil)

type PreferenceRepo struct {
	db *DB
}

func NewPreferenceRepo(db *DB) *PreferenceRepo { return &PreferenceRepo{db: db} }

const prefCols = `user_id, alert_id, state, snoozed_until, last_reminded_at, read_at, created_at, updated_at`

const (
	qPrefSeed = `
INSERT INTO user_alert_preferences (user_id, alert_id, state)
SELECT uid, $1, 'unread'
FROM unnest($2::bigint[]) AS uid
ON CONFLICT (user_id, alert_id) DO NOTHING;`

	qPrefGet = `
SELECT ` + prefCols + `
FROM user_alert_preferences
WHERE user_id = $1 AND alert_id = $2;`

	qPrefGetForUpdate = `
SELECT ` + prefCols + `
FROM user_alert_preferences
WHERE user_id = $1 AND alert_id = $2
FOR UPDATE;`

	qPrefByAlert = `
SELECT ` + prefCols + `
FROM user_alert_preferences
WHERE alert_id = $1
ORDER BY user_id;`

	qPrefByUser = `
SELECT ` + prefCols + `
FROM user_alert_preferences
WHERE user_id = $1
ORDER BY alert_id;`

	qPrefSave = `
UPDATE user_alert_preferences
SET state = $3, snoozed_until = $4, last_reminded_at = $5, read_at = $6, updated_at = now()
WHERE user_id = $1 AND alert_id = $2
RETURNING updated_at;`

	qPrefCandidates = `
SELECT p.user_id, p.alert_id
FROM user_alert_preferences p
JOIN alerts a ON a.id = p.alert_id
WHERE a.is_active = TRUE
  AND a.is_archived = FALSE
  AND a.start_time <= $1
  AND (a.expiry_time IS NULL OR a.expiry_time > $1)
  AND p.state <> 'read'
  AND (p.alert_id, p.user_id) > ($2, $3)
ORDER BY p.alert_id, p.user_id
LIMIT $4;`
)

func scanPref(row pgx.Row, p *preference.Preference) error {
	var state string
	if err := row.Scan(
		&p.UserID,
		&p.AlertID,
		&state,
		&p.SnoozedUntil,
		&p.LastRemindedAt,
		&p.ReadAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return preference.ErrNotFound
		}
		return fmt.Errorf("scan preference: %w", err)
	}
	p.State = preference.State(state)
	return nil
}

func (r *PreferenceRepo) Seed(ctx context.Context, alertID int64, userIDs []int64) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qPrefSeed, alertID, userIDs)
	if err != nil {
		return 0, fmt.Errorf("seed preferences: %w", mapPgErr(err))
	}
	return int(tag.RowsAffected()), nil
}

func (r *PreferenceRepo) Get(ctx context.Context, userID, alertID int64) (*preference.Preference, error) {
	return r.getOne(ctx, qPrefGet, userID, alertID)
}

func (r *PreferenceRepo) GetForUpdate(ctx context.Context, userID, alertID int64) (*preference.Preference, error) {
	return r.getOne(ctx, qPrefGetForUpdate, userID, alertID)
}

func (r *PreferenceRepo) getOne(ctx context.Context, q string, userID, alertID int64) (*preference.Preference, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var p preference.Preference
	if err := scanPref(r.db.execQueryer(ctx).QueryRow(ctx, q, userID, alertID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PreferenceRepo) ListByAlert(ctx context.Context, alertID int64) ([]*preference.Preference, error) {
	return r.list(ctx, qPrefByAlert, alertID)
}

func (r *PreferenceRepo) ListByUser(ctx context.Context, userID int64) ([]*preference.Preference, error) {
	return r.list(ctx, qPrefByUser, userID)
}

func (r *PreferenceRepo) list(ctx context.Context, q string, arg int64) ([]*preference.Preference, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	var out []*preference.Preference
	for rows.Next() {
		var p preference.Preference
		if err := scanPref(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *PreferenceRepo) Save(ctx context.Context, p *preference.Preference) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).QueryRow(ctx, qPrefSave,
		p.UserID, p.AlertID, string(p.State), p.SnoozedUntil, p.LastRemindedAt, p.ReadAt,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return preference.ErrNotFound
		}
		return fmt.Errorf("save preference: %w", mapPgErr(err))
	}
	return nil
}

func (r *PreferenceRepo) ListReminderCandidates(ctx context.Context, now time.Time, after preference.Candidate, limit int) ([]preference.Candidate, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qPrefCandidates, now, after.AlertID, after.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []preference.Candidate
	for rows.Next() {
		var c preference.Candidate
		if err := rows.Scan(&c.UserID, &c.AlertID); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
