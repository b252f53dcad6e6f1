package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ alert.Repo = (*AlertRepo)(nil)

type AlertRepo struct {
	db *DB
}

func NewAlertRepo(db *DB) *AlertRepo { return &AlertRepo{db: db} }

const alertCols = `id, title, message, severity, delivery_type, visibility_type,
       target_team_id, target_user_id, start_time, expiry_time,
       reminder_frequency_hours, is_active, is_archived, created_by, created_at, updated_at`

const (
	qAlertInsert = `
INSERT INTO alerts (title, message, severity, delivery_type, visibility_type,
                    target_team_id, target_user_id, start_time, expiry_time,
                    reminder_frequency_hours, is_active, is_archived, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()), $9, $10, $11, FALSE, $12)
RETURNING ` + alertCols + `;`

	qAlertByID = `
SELECT ` + alertCols + `
FROM alerts
WHERE id = $1;`

	qAlertUpdate = `
UPDATE alerts
SET title = $2, message = $3, severity = $4, delivery_type = $5, visibility_type = $6,
    target_team_id = $7, target_user_id = $8, start_time = $9, expiry_time = $10,
    reminder_frequency_hours = $11, is_active = $12, updated_at = now()
WHERE id = $1 AND is_archived = FALSE
RETURNING ` + alertCols + `;`

	qAlertArchive = `
UPDATE alerts
SET is_archived = TRUE, is_active = FALSE, updated_at = now()
WHERE id = $1
RETURNING ` + alertCols + `;`

	qAlertsVisible = `
SELECT ` + alertCols + `
FROM alerts
WHERE is_active = TRUE AND is_archived = FALSE
  AND (visibility_type = 'organization'
       OR (visibility_type = 'user' AND target_user_id = $1)
       OR (visibility_type = 'team' AND target_team_id = ANY($2)))
ORDER BY created_at DESC;`

	qAlertsExpire = `
UPDATE alerts
SET is_active = FALSE, updated_at = now()
WHERE is_active = TRUE AND is_archived = FALSE
  AND expiry_time IS NOT NULL AND expiry_time <= $1
RETURNING ` + alertCols + `;`
)

func scanAlert(row pgx.Row, a *alert.Alert) error {
	var severity, visibility string
	if err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Message,
		&severity,
		&a.Channel,
		&visibility,
		&a.TargetTeamID,
		&a.TargetUserID,
		&a.StartTime,
		&a.ExpiryTime,
		&a.ReminderFrequencyHours,
		&a.Active,
		&a.Archived,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return alert.ErrNotFound
		}
		return fmt.Errorf("scan alert: %w", err)
	}
	a.Severity = alert.Severity(severity)
	a.Visibility = alert.Visibility(visibility)
	return nil
}

func collectAlerts(rows pgx.Rows) ([]*alert.Alert, error) {
	defer rows.Close()
	var out []*alert.Alert
	for rows.Next() {
		var a alert.Alert
		if err := scanAlert(rows, &a); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// alertWriteErr reports rejected references and checks as validation
// failures of the alert payload.
func alertWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23503":
		return fmt.Errorf("%w: target team or user does not exist", alert.ErrValidation)
	case "23514":
		return fmt.Errorf("%w: violates %s", alert.ErrValidation, pgErr.ConstraintName)
	}
	return mapPgErr(err)
}

func (r *AlertRepo) Create(ctx context.Context, a *alert.Alert) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.execQueryer(ctx).QueryRow(ctx, qAlertInsert,
		a.Title, a.Message, string(a.Severity), a.Channel, string(a.Visibility),
		a.TargetTeamID, a.TargetUserID, nullTime(a.StartTime), a.ExpiryTime,
		a.ReminderFrequencyHours, a.Active, a.CreatedBy,
	)
	if err := scanAlert(row, a); err != nil {
		return fmt.Errorf("insert alert: %w", alertWriteErr(err))
	}
	return nil
}

func (r *AlertRepo) GetByID(ctx context.Context, id int64) (*alert.Alert, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var a alert.Alert
	if err := scanAlert(r.db.execQueryer(ctx).QueryRow(ctx, qAlertByID, id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AlertRepo) Update(ctx context.Context, a *alert.Alert) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.execQueryer(ctx).QueryRow(ctx, qAlertUpdate,
		a.ID, a.Title, a.Message, string(a.Severity), a.Channel, string(a.Visibility),
		a.TargetTeamID, a.TargetUserID, a.StartTime, a.ExpiryTime,
		a.ReminderFrequencyHours, a.Active,
	)
	if err := scanAlert(row, a); err != nil {
		if errors.Is(err, alert.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update alert: %w", alertWriteErr(err))
	}
	return nil
}

func (r *AlertRepo) Archive(ctx context.Context, id int64) (*alert.Alert, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var a alert.Alert
	if err := scanAlert(r.db.execQueryer(ctx).QueryRow(ctx, qAlertArchive, id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AlertRepo) ListByCreator(ctx context.Context, creatorID int64, f alert.Filter) ([]*alert.Alert, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var (
		where = []string{"created_by = $1"}
		args  = []any{creatorID}
	)
	if f.Severity != nil {
		args = append(args, string(*f.Severity))
		where = append(where, fmt.Sprintf("severity = $%d", len(args)))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if f.Visibility != nil {
		args = append(args, string(*f.Visibility))
		where = append(where, fmt.Sprintf("visibility_type = $%d", len(args)))
	}
	q := `SELECT ` + alertCols + ` FROM alerts WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC;`

	rows, err := r.db.execQueryer(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	return collectAlerts(rows)
}

func (r *AlertRepo) ListVisibleTo(ctx context.Context, userID int64, teamIDs []int64) ([]*alert.Alert, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if teamIDs == nil {
		teamIDs = []int64{}
	}
	rows, err := r.db.execQueryer(ctx).Query(ctx, qAlertsVisible, userID, teamIDs)
	if err != nil {
		return nil, fmt.Errorf("query visible alerts: %w", err)
	}
	return collectAlerts(rows)
}

func (r *AlertRepo) ExpireDue(ctx context.Context, now time.Time) ([]*alert.Alert, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qAlertsExpire, now)
	if err != nil {
		return nil, fmt.Errorf("expire alerts: %w", err)
	}
	return collectAlerts(rows)
}
