package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	authtoken "github.com/NordCoder/Alertus/internal/auth"
	"github.com/NordCoder/Alertus/internal/domain/user"
)

type ctxKey int

const actorKey ctxKey = 1

func ActorFromCtx(ctx context.Context) (user.Actor, bool) {
	a, ok := ctx.Value(actorKey).(user.Actor)
	return a, ok
}

func WithActor(ctx context.Context, a user.Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// Middleware rejects requests without a valid bearer token and stores the
// caller in the request context.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r)
			if token == "" {
				unauthorized(w, "missing bearer token")
				return
			}
			claims, err := authtoken.ParseAndValidate(token, secret)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}
			actor, err := claims.Actor()
			if err != nil {
				unauthorized(w, "invalid token subject")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
