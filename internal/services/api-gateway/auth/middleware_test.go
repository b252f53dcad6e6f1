package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authtoken "github.com/NordCoder/Alertus/internal/auth"
	"github.com/NordCoder/Alertus/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("s3cret")

func protected(t *testing.T) (http.Handler, *user.Actor) {
	var seen user.Actor
	h := Middleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := ActorFromCtx(r.Context())
		require.True(t, ok)
		seen = a
		w.WriteHeader(http.StatusNoContent)
	}))
	return h, &seen
}

func TestMiddleware_AcceptsValidToken(t *testing.T) {
	h, seen := protected(t)
	tok, err := authtoken.Issue(5, "admin", time.Hour, time.Now(), secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, user.Actor{UserID: 5, Role: user.RoleAdmin}, *seen)
}

func TestMiddleware_Rejects(t *testing.T) {
	h, _ := protected(t)
	good, err := authtoken.Issue(5, "user", time.Hour, time.Now(), []byte("other"))
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":      "",
		"wrong scheme": "Basic abc",
		"bad secret":   "Bearer " + good,
		"garbage":      "Bearer x.y.z",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}
