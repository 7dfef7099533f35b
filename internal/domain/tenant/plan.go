package tenant

import "slices"

// Plan is a subscription tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanBasic      Plan = "basic"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// Plans lists every plan from smallest to largest.
var Plans = []Plan{PlanFree, PlanBasic, PlanPremium, PlanEnterprise}

// Limits are the resource ceilings of a plan. Zero means unlimited.
type Limits struct {
	MaxUsers    int `json:"max_users"`
	MaxProjects int `json:"max_projects"`
	StorageMB   int `json:"storage_mb"`
}

var planLimits = map[Plan]Limits{
	PlanFree:       {MaxUsers: 3, MaxProjects: 1, StorageMB: 100},
	PlanBasic:      {MaxUsers: 10, MaxProjects: 10, StorageMB: 1024},
	PlanPremium:    {MaxUsers: 50, MaxProjects: 100, StorageMB: 10 * 1024},
	PlanEnterprise: {},
}

// IsValid reports whether p is a known plan.
func (p Plan) IsValid() bool {
	return slices.Contains(Plans, p)
}

// Limits returns the resource limits for p. Unknown plans get the free limits.
func (p Plan) Limits() Limits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// Allows reports whether n units fit under limit. A zero limit is unlimited.
func Allows(limit, n int) bool {
	return limit == 0 || n <= limit
}
