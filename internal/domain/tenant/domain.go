package tenant

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/tenantgate/internal/domain"
)

// Domain binds an external hostname to exactly one tenant.
type Domain struct {
	ID        string    `json:"id"`
	Hostname  string    `json:"hostname"`
	TenantID  string    `json:"tenant_id"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

// BindRequest holds the fields required to bind a hostname to a tenant.
// Override permits binding to an inactive tenant.
type BindRequest struct {
	Hostname  string `json:"hostname"`
	TenantID  string `json:"tenant_id"`
	IsPrimary bool   `json:"is_primary"`
	Override  bool   `json:"override,omitempty"`
}

// Validate normalizes and checks the request.
func (r *BindRequest) Validate() error {
	host, err := NormalizeHostname(r.Hostname)
	if err != nil {
		return err
	}
	r.Hostname = host
	if r.TenantID == "" {
		return fmt.Errorf("%w: tenant_id is required", domain.ErrValidation)
	}
	return nil
}

// NormalizeHostname lowercases host and strips one trailing dot. Hostnames are
// otherwise matched exactly: no wildcard or subdomain fallback.
func NormalizeHostname(host string) (string, error) {
	h := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if h == "" {
		return "", fmt.Errorf("%w: hostname is required", domain.ErrValidation)
	}
	if len(h) > 253 || strings.ContainsAny(h, " /\\*?#@") {
		return "", fmt.Errorf("%w: invalid hostname %q", domain.ErrValidation, host)
	}
	return h, nil
}
