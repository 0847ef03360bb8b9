package middleware

import (
	"context"
	"net/http"
	"strings"

	"evalconsole/internal/domain/auth"
	"evalconsole/internal/platform/apiclient"
	"evalconsole/internal/requestctx"
	"evalconsole/internal/transport/http/api"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

// Auth reads the caller's identity from the upstream access token and
// forwards that token on every upstream call made for the request. The
// signature is not checked here; the remote API verifies it.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, err := auth.UserFromToken(token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		requestctx.SetUser(r.Context(), user.UserID)
		ctx := apiclient.WithToken(WithUser(r.Context(), user), token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func BearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
