// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a uniqueness violation: a hostname already bound to
// another tenant, or a slug that is already provisioned.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates malformed input (bad slug, unknown plan, empty name).
var ErrValidation = errors.New("validation")

// ErrUnknownTenant is returned by resolution when no tenant can be found for a
// hostname, including the dangling-reference case where a domain row points at
// a tenant row that no longer exists.
var ErrUnknownTenant = errors.New("unknown tenant")

// ErrTenantInactive is returned when the tenant exists but is deactivated.
var ErrTenantInactive = errors.New("tenant inactive")

// ErrInvalidState indicates an operation not permitted in the entity's
// current state, e.g. binding a domain to an inactive tenant.
var ErrInvalidState = errors.New("invalid state")

// ErrResolutionTimeout is returned when the store fallback exceeds its deadline.
var ErrResolutionTimeout = errors.New("resolution timeout")

// ErrProvisioningFailure reports a provisioning attempt that failed after its
// partial effects were rolled back.
var ErrProvisioningFailure = errors.New("provisioning failure")

// ErrIntegrity reports a failed rollback. The registry and the storage engine
// may disagree and an operator has to reconcile them.
var ErrIntegrity = errors.New("integrity alarm")

// ErrInvalidationFailed reports a committed mutation whose routing cache
// eviction failed. Staleness is bounded by the cache TTL ceiling.
var ErrInvalidationFailed = errors.New("cache invalidation failed")
