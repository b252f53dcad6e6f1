package preference

import (
	"context"
	"time"
)

type Repo interface {
	// Seed inserts an unread preference for each user that has none for the
	// alert and returns the number of rows created.
	Seed(ctx context.Context, alertID int64, userIDs []int64) (int, error)
	Get(ctx context.Context, userID, alertID int64) (*Preference, error)
	// GetForUpdate locks the row for the surrounding transaction.
	GetForUpdate(ctx context.Context, userID, alertID int64) (*Preference, error)
	ListByAlert(ctx context.Context, alertID int64) ([]*Preference, error)
	ListByUser(ctx context.Context, userID int64) ([]*Preference, error)
	Save(ctx context.Context, p *Preference) error
	// ListReminderCandidates returns up to limit non-read preferences of
	// alerts that are active, not archived, started and not expired at now,
	// ordered by (AlertID, UserID) and strictly after the given cursor. The
	// zero Candidate starts from the beginning.
	ListReminderCandidates(ctx context.Context, now time.Time, after Candidate, limit int) ([]Candidate, error)
}
