package delivery

import "context"

type Repo interface {
	Append(ctx context.Context, r *Record) error
	ListByAlert(ctx context.Context, alertID int64, limit int) ([]*Record, error)
}
