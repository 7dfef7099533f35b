// Package tenant defines the tenant and domain registry model for
// hostname-routed, schema-per-tenant isolation.
package tenant

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Strob0t/tenantgate/internal/domain"
)

// PartitionPrefix is prepended to the slug to form a partition descriptor.
const PartitionPrefix = "tenant_"

// maxIdentifierLen is the Postgres identifier limit (NAMEDATALEN - 1).
const maxIdentifierLen = 63

var (
	slugRegex      = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$|^[a-z0-9]$`)
	partitionRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Tenant is a customer whose data lives in its own partition.
// Partition is derived from Slug once at provisioning and never changes.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Partition string    `json:"partition"`
	Plan      Plan      `json:"plan"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProvisionRequest holds the fields required to provision a new tenant.
type ProvisionRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Plan Plan   `json:"plan,omitempty"`
}

// Validate checks the request and fills in the default plan.
func (r *ProvisionRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return fmt.Errorf("%w: tenant name is required", domain.ErrValidation)
	}
	if len(r.Name) > 255 {
		return fmt.Errorf("%w: tenant name too long (max 255 chars)", domain.ErrValidation)
	}
	if err := ValidateSlug(r.Slug); err != nil {
		return err
	}
	if r.Plan == "" {
		r.Plan = PlanFree
	}
	if !r.Plan.IsValid() {
		return fmt.Errorf("%w: unknown plan %q", domain.ErrValidation, r.Plan)
	}
	return nil
}

// ValidateSlug checks that slug is lowercase alphanumeric with inner hyphens
// and short enough that its partition descriptor fits an identifier.
func ValidateSlug(slug string) error {
	if !slugRegex.MatchString(slug) || strings.Contains(slug, "--") {
		return fmt.Errorf("%w: invalid slug %q: lowercase letters, digits and single inner hyphens only", domain.ErrValidation, slug)
	}
	if len(PartitionPrefix)+len(slug) > maxIdentifierLen {
		return fmt.Errorf("%w: slug %q too long (max %d chars)", domain.ErrValidation, slug, maxIdentifierLen-len(PartitionPrefix))
	}
	return nil
}

// PartitionFor derives the partition descriptor for a slug.
// "acme-corp" becomes "tenant_acme_corp".
func PartitionFor(slug string) (string, error) {
	if err := ValidateSlug(slug); err != nil {
		return "", err
	}
	p := PartitionPrefix + strings.ReplaceAll(slug, "-", "_")
	if err := ValidatePartition(p); err != nil {
		return "", err
	}
	return p, nil
}

// ValidatePartition checks a descriptor against the safe identifier set
// (lowercase letters, digits, underscore; leading letter).
func ValidatePartition(p string) error {
	if len(p) == 0 || len(p) > maxIdentifierLen || !partitionRegex.MatchString(p) {
		return fmt.Errorf("%w: invalid partition descriptor %q", domain.ErrValidation, p)
	}
	return nil
}
