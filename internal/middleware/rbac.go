package middleware

import (
	"context"
	"net/http"

	"github.com/Strob0t/tenantgate/internal/domain/member"
)

type roleCtxKey struct{}

// RequireRole returns middleware that admits requests whose role header
// grants at least the required role. The header is expected to be set by a
// trusted gateway in front of the admin surface.
func RequireRole(header string, required member.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(header)
			if raw == "" {
				writeJSONError(w, http.StatusUnauthorized, "authorization required")
				return
			}

			role, err := member.ParseRole(raw)
			if err != nil || !role.Allows(required) {
				writeJSONError(w, http.StatusForbidden, "forbidden")
				return
			}

			ctx := context.WithValue(r.Context(), roleCtxKey{}, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RoleFromContext returns the role admitted by RequireRole.
func RoleFromContext(ctx context.Context) (member.Role, bool) {
	r, ok := ctx.Value(roleCtxKey{}).(member.Role)
	return r, ok
}
