// Package member defines the role capability set used for tenant and
// platform operators.
package member

import (
	"fmt"
	"strings"

	"github.com/Strob0t/tenantgate/internal/domain"
)

// Role is a capability level. Higher roles subsume every lower one.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// rank orders roles: owner ⊇ admin ⊇ member ⊇ viewer.
var rank = map[Role]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// ParseRole converts s to a Role, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: unknown role %q", domain.ErrValidation, s)
	}
	return r, nil
}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	_, ok := rank[r]
	return ok
}

// Allows reports whether r grants everything required grants.
// Unknown roles allow nothing.
func (r Role) Allows(required Role) bool {
	have, ok := rank[r]
	if !ok {
		return false
	}
	need, ok := rank[required]
	if !ok {
		return false
	}
	return have >= need
}
