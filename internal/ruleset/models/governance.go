package models

// GovernancePolicy holds the ruleset-level policy knobs that sit above
// individual rules: provisional admission relief and override authority.
type GovernancePolicy struct {
	ProvisionalAdmissionAllowed bool     `json:"provisional_admission_allowed"`
	MaxProvisionalValidityDays  int      `json:"max_provisional_validity_days"`
	OverrideRoles               []string `json:"override_roles"`
}

// AllowsOverride reports whether any of the actor's roles appears in the
// policy's override role set. This is a plain set intersection: there is no
// role hierarchy and no implicit elevation.
func (g GovernancePolicy) AllowsOverride(actorRoles []string) bool {
	if len(g.OverrideRoles) == 0 || len(actorRoles) == 0 {
		return false
	}
	allowed := make(map[string]struct{}, len(g.OverrideRoles))
	for _, role := range g.OverrideRoles {
		allowed[role] = struct{}{}
	}
	for _, role := range actorRoles {
		if _, ok := allowed[role]; ok {
			return true
		}
	}
	return false
}
