package model

import "time"

// Target kinds for loyalty scores.
const (
	TargetFaction = "faction"
	TargetPerson  = "person"
)

// InvolvementBreakdown holds the five weighted components of an
// involvement score, each clamped to [0, 1] before weighting.
type InvolvementBreakdown struct {
	RoleActivity       float64 `json:"role_activity"`
	EventParticipation float64 `json:"event_participation"`
	NetworkCentrality  float64 `json:"network_centrality"`
	Initiative         float64 `json:"initiative"`
	Reliability        float64 `json:"reliability"`
}

// InvolvementScore is the computed involvement for one person. One row
// per person; each recompute fully replaces the prior value.
type InvolvementScore struct {
	PersonID   string               `json:"person_id"`
	Score      float64              `json:"score"`
	Breakdown  InvolvementBreakdown `json:"breakdown"`
	WindowDays int                  `json:"window_days"`
	ComputedAt time.Time            `json:"computed_at"`
}

// LoyaltyBreakdown holds the five weighted components of a loyalty score.
type LoyaltyBreakdown struct {
	IdentityFit   float64 `json:"identity_fit"`
	BenefitFlow   float64 `json:"benefit_flow"`
	SharedHistory float64 `json:"shared_history"`
	PressureCost  float64 `json:"pressure_cost"`
	Satisfaction  float64 `json:"satisfaction"`
}

// LoyaltyScore is the computed loyalty of a person toward a target
// (faction or person). One row per (person, target) pair.
type LoyaltyScore struct {
	PersonID   string           `json:"person_id"`
	TargetID   string           `json:"target_id"`
	TargetKind string           `json:"target_kind"`
	Score      float64          `json:"score"`
	Breakdown  LoyaltyBreakdown `json:"breakdown"`
	WindowDays int              `json:"window_days"`
	ComputedAt time.Time        `json:"computed_at"`
}
