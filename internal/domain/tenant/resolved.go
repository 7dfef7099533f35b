package tenant

import "time"

// Resolved is the routing result for a hostname. It is derived from a Tenant
// and its Domain and is never persisted; caches hold copies of it.
type Resolved struct {
	Hostname  string    `json:"hostname"`
	TenantID  string    `json:"tenant_id"`
	Slug      string    `json:"slug"`
	Partition string    `json:"partition"`
	Plan      Plan      `json:"plan"`
	Active    bool      `json:"active"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewResolved builds the routing result for host from t.
func NewResolved(host string, t *Tenant) Resolved {
	return Resolved{
		Hostname:  host,
		TenantID:  t.ID,
		Slug:      t.Slug,
		Partition: t.Partition,
		Plan:      t.Plan,
		Active:    t.Active,
	}
}

// Expired reports whether the entry is past its expiry at now.
// A zero ExpiresAt never expires.
func (r *Resolved) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}
