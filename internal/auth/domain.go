package auth

import (
	"fmt"
	"strconv"

	"github.com/NordCoder/Alertus/internal/domain/user"
)

type AccessClaims struct {
	Sub  string `json:"sub"`  // user id
	Role string `json:"role"` // admin | user
	Iat  int64  `json:"iat"`  // created at
	Exp  int64  `json:"exp"`  // expires at
}

// Actor converts verified claims into the caller identity.
func (c AccessClaims) Actor() (user.Actor, error) {
	id, err := strconv.ParseInt(c.Sub, 10, 64)
	if err != nil || id <= 0 {
		return user.Actor{}, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}
	role := user.Role(c.Role)
	switch role {
	case user.RoleAdmin, user.RoleUser:
	case "":
		role = user.RoleUser
	default:
		return user.Actor{}, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, c.Role)
	}
	return user.Actor{UserID: id, Role: role}, nil
}
