package middleware

import (
	"net/http"
	"slices"

	"evalconsole/internal/domain/auth"
	"evalconsole/internal/transport/http/api"
)

// RequireCapability admits callers whose role grants any of permissions.
// The remote API enforces the same rules; this only saves a round trip.
func RequireCapability(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := GetRequestID(r.Context())
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
				return
			}
			if !canAny(user.Capabilities(), permissions) {
				api.FailWithDetails(w, http.StatusForbidden, "forbidden", "insufficient permissions",
					map[string]any{"role": user.Role, "required": permissions}, reqID)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func canAny(caps auth.Capabilities, permissions []string) bool {
	return slices.ContainsFunc(permissions, caps.Can)
}
