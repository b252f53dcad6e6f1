package user

import "context"

type Repo interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	ListAll(ctx context.Context) ([]*User, error)
	ListTeamMembers(ctx context.Context, teamID int64) ([]*User, error)
	ListTeamIDs(ctx context.Context, userID int64) ([]int64, error)
}
