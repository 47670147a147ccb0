package model

import "time"

// SeedingPolicy declares a directed relationship-generation rule between
// a source cohort and a target cohort. Once a policy has been executed
// against the store it is frozen; changing seeding behavior requires a
// new policy version.
type SeedingPolicy struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	SourceCohortID  string    `json:"source_cohort_id"`
	TargetCohortID  string    `json:"target_cohort_id"`
	Domain          Domain    `json:"domain"`
	Probability     float64   `json:"probability"` // 0.0-1.0
	InvolvementTier string    `json:"involvement_tier"`
	ScoreMin        float64   `json:"score_min"` // 1-100
	ScoreMax        float64   `json:"score_max"` // 1-100
	WorldSeed       string    `json:"world_seed,omitempty"`
	Active          bool      `json:"active"`
	Executed        bool      `json:"executed"`
	CreatedAt       time.Time `json:"created_at"`
}

// Validate checks the policy's declarative constraints. Violations are
// configuration errors and are rejected at creation time, never coerced.
func (p *SeedingPolicy) Validate() error {
	if !ValidDomain(p.Domain) {
		return ErrInvalidDomain
	}
	if p.Probability < 0.0 || p.Probability > 1.0 {
		return ErrInvalidProbability
	}
	if p.ScoreMin > p.ScoreMax {
		return ErrInvalidScoreRange
	}
	if p.ScoreMin < RelationScoreMin || p.ScoreMax > RelationScoreMax {
		return ErrScoreOutOfScale
	}
	return nil
}
