package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/Strob0t/tenantgate/internal/domain"
	"github.com/Strob0t/tenantgate/internal/domain/tenant"
	"github.com/Strob0t/tenantgate/internal/logger"
	"github.com/Strob0t/tenantgate/internal/scope"
)

// Resolver maps a hostname to its routing result.
type Resolver interface {
	Resolve(ctx context.Context, hostname string) (*tenant.Resolved, error)
}

// HostResolution resolves the request's Host to a tenant and binds the
// partition scope into the request context. A request that cannot be
// resolved never reaches next.
func HostResolution(res Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			resolved, err := res.Resolve(ctx, RequestHost(r))
			if err != nil {
				if ctx.Err() != nil {
					// Client went away; nobody is listening for a response.
					return
				}
				status, msg := resolutionStatus(err)
				if status == http.StatusInternalServerError {
					logger.From(ctx).Error("tenant resolution failed", "host", r.Host, "error", err)
				}
				writeJSONError(w, status, msg)
				return
			}

			sc, err := scope.FromResolved(resolved)
			if err != nil {
				logger.From(ctx).Error("resolution produced no usable scope", "host", r.Host, "error", err)
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			ctx = scope.WithTenant(ctx, sc)
			ctx = logger.WithTenant(ctx, sc.Slug(), sc.Partition())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestHost returns the request's host without a port.
func RequestHost(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	// Bracketed IPv6 literal without a port.
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}

func resolutionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnknownTenant):
		return http.StatusNotFound, "unknown tenant"
	case errors.Is(err, domain.ErrTenantInactive):
		return http.StatusForbidden, "tenant inactive"
	case errors.Is(err, domain.ErrResolutionTimeout):
		return http.StatusServiceUnavailable, "tenant resolution timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
