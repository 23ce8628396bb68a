package models

// PlanTable maps gateway billing plan ids to tiers.
type PlanTable map[string]string

// NewPlanTable builds a table from tier -> plan id settings, skipping tiers
// without a plan id.
func NewPlanTable(planIDs map[string]string) PlanTable {
	t := PlanTable{}
	for tier, planID := range planIDs {
		if planID != "" {
			t[planID] = tier
		}
	}
	return t
}

// Tier returns the tier billed by planID.
func (t PlanTable) Tier(planID string) (string, bool) {
	tier, ok := t[planID]
	return tier, ok
}

// PlanID returns the plan id configured for tier.
func (t PlanTable) PlanID(tier string) (string, bool) {
	for planID, tr := range t {
		if tr == tier {
			return planID, true
		}
	}
	return "", false
}
