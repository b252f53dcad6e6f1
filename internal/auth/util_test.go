package auth

import (
	"testing"
	"time"

	"github.com/NordCoder/Alertus/internal/domain/user"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestIssueAndParse(t *testing.T) {
	tok, err := Issue(7, "admin", time.Hour, time.Now(), secret)
	require.NoError(t, err)

	c, err := ParseAndValidate(tok, secret)
	require.NoError(t, err)

	actor, err := c.Actor()
	require.NoError(t, err)
	require.Equal(t, user.Actor{UserID: 7, Role: user.RoleAdmin}, actor)
	require.True(t, actor.IsAdmin())
}

func TestParse_WrongSecret(t *testing.T) {
	tok, err := Issue(7, "user", time.Hour, time.Now(), secret)
	require.NoError(t, err)

	_, err = ParseAndValidate(tok, []byte("other"))
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParse_Expired(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	tok, err := Issue(7, "user", time.Hour, issued, secret)
	require.NoError(t, err)

	_, err = ParseAndValidate(tok, secret)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestParse_Malformed(t *testing.T) {
	_, err := ParseAndValidate("a.b", secret)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestActor_DefaultsAndRejects(t *testing.T) {
	a, err := AccessClaims{Sub: "3"}.Actor()
	require.NoError(t, err)
	require.Equal(t, user.RoleUser, a.Role)

	_, err = AccessClaims{Sub: "x", Role: "user"}.Actor()
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = AccessClaims{Sub: "3", Role: "root"}.Actor()
	require.ErrorIs(t, err, ErrTokenInvalid)
}
