package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/Alertus/internal/domain/user"
	"github.com/jackc/pgx/v5"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const (
	qUserByID = `
SELECT id, name, email, role, created_at
FROM users
WHERE id = $1;`

	qUsersAll = `
SELECT id, name, email, role, created_at
FROM users
ORDER BY id;`

	qTeamMembers = `
SELECT u.id, u.name, u.email, u.role, u.created_at
FROM users u
JOIN user_teams ut ON ut.user_id = u.id
WHERE ut.team_id = $1
ORDER BY u.id;`

	qUserTeamIDs = `
SELECT team_id
FROM user_teams
WHERE user_id = $1
ORDER BY team_id;`
)

func scanUser(row pgx.Row, u *user.User) error {
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.ErrNotFound
		}
		return fmt.Errorf("scan user: %w", err)
	}
	u.Role = user.Role(role)
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserByID, id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ListAll(ctx context.Context) ([]*user.User, error) {
	return r.list(ctx, qUsersAll)
}

func (r *UserRepo) ListTeamMembers(ctx context.Context, teamID int64) ([]*user.User, error) {
	return r.list(ctx, qTeamMembers, teamID)
}

func (r *UserRepo) list(ctx context.Context, q string, args ...any) ([]*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []*user.User
	for rows.Next() {
		var u user.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

func (r *UserRepo) ListTeamIDs(ctx context.Context, userID int64) ([]int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qUserTeamIDs, userID)
	if err != nil {
		return nil, fmt.Errorf("query user teams: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect user teams: %w", err)
	}
	return ids, nil
}
