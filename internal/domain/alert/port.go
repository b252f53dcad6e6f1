package alert

import (
	"context"
	"time"
)

type Repo interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id int64) (*Alert, error)
	Update(ctx context.Context, a *Alert) error
	Archive(ctx context.Context, id int64) (*Alert, error)
	ListByCreator(ctx context.Context, creatorID int64, f Filter) ([]*Alert, error)
	ListVisibleTo(ctx context.Context, userID int64, teamIDs []int64) ([]*Alert, error)
	// ExpireDue deactivates active alerts whose expiry time is at or before
	// now and returns them.
	ExpireDue(ctx context.Context, now time.Time) ([]*Alert, error)
}
