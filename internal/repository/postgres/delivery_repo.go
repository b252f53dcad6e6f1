package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/Alertus/internal/domain/delivery"
)

var _ delivery.Repo = (*DeliveryRepo)(nil)

type DeliveryRepo struct {
	db *DB
}

func NewDeliveryRepo(db *DB) *DeliveryRepo { return &DeliveryRepo{db: db} }

const (
	qDeliveryInsert = `
INSERT INTO notification_deliveries (alert_id, user_id, delivery_type, status, delivered_at, error_message)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
RETURNING id;`

	qDeliveriesByAlert = `
SELECT id, alert_id, user_id, delivery_type, status, delivered_at, COALESCE(error_message, '')
FROM notification_deliveries
WHERE alert_id = $1
ORDER BY delivered_at DESC, id DESC
LIMIT $2;`
)

func (r *DeliveryRepo) Append(ctx context.Context, rec *delivery.Record) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).QueryRow(ctx, qDeliveryInsert,
		rec.AlertID, rec.UserID, string(rec.Channel), string(rec.Outcome), rec.At, rec.Detail,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", mapPgErr(err))
	}
	return nil
}

func (r *DeliveryRepo) ListByAlert(ctx context.Context, alertID int64, limit int) ([]*delivery.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qDeliveriesByAlert, alertID, limit)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var out []*delivery.Record
	for rows.Next() {
		var (
			rec             delivery.Record
			channel, status string
		)
		if err := rows.Scan(&rec.ID, &rec.AlertID, &rec.UserID, &channel, &status, &rec.At, &rec.Detail); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		rec.Channel = delivery.Channel(channel)
		rec.Outcome = delivery.Outcome(status)
		out = append(out, &rec)
	}
	return out, rows.Err()
}
