package tenant

// Plan is the subscription plan of a tenant.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
)

// IsValid reports whether the plan is known.
func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanStandard, PlanPremium:
		return true
	}
	return false
}

func (p Plan) String() string { return string(p) }

// ParsePlan converts a string to a Plan.
func ParsePlan(s string) (Plan, bool) {
	p := Plan(s)
	return p, p.IsValid()
}
