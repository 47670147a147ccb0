// Package effects computes effective relationship scores by layering
// active event effects over a stored base score. Application order is
// fixed: all add effects first, then multiply effects, then decay
// effects. The computation never mutates the stored base score.
package effects

import (
	"math"
	"sort"
	"time"

	"github.com/messiahcarey/deer-river/internal/model"
	"github.com/messiahcarey/deer-river/internal/weights"
)

// BaseProvenance is the provenance entry when no effects apply.
const BaseProvenance = "base"

// ScopedEffect pairs an event effect with its event's start time, which
// anchors decay.
type ScopedEffect struct {
	Effect     model.EventEffect
	EventStart time.Time
}

// PairContext describes the relationship pair an effective score is
// computed for, including the cohort memberships needed for
// cohort-scoped matching.
type PairContext struct {
	FromPersonID string
	ToPersonID   string
	Domain       model.Domain
	FromCohorts  map[string]bool
	ToCohorts    map[string]bool
}

// Result is the outcome of an effective-score computation.
type Result struct {
	BaseScore      float64  `json:"base_score"`
	EffectiveScore float64  `json:"effective_score"`
	EffectsApplied []string `json:"effects_applied"`
	Provenance     []string `json:"provenance"`
}

// Apply computes the effective score for a pair. It is a pure function of
// the base score, the candidate effects, the pair's cohort memberships,
// and the current time. Matching is direction-sensitive: a cohort-scoped
// effect applies only when the from person is in the source cohort and
// the to person in the target cohort.
func Apply(base float64, candidates []ScopedEffect, pair PairContext, now time.Time) Result {
	var adds, multiplies, decays []ScopedEffect
	for _, c := range candidates {
		if !matches(c.Effect, pair) {
			continue
		}
		switch c.Effect.Type {
		case model.EffectAdd:
			adds = append(adds, c)
		case model.EffectMultiply:
			multiplies = append(multiplies, c)
		case model.EffectDecay:
			decays = append(decays, c)
		}
	}

	// Stable application order within each phase, independent of the
	// caller's slice ordering.
	sortByID(adds)
	sortByID(multiplies)
	sortByID(decays)

	score := base
	applied := make([]string, 0, len(adds)+len(multiplies)+len(decays))

	for _, c := range adds {
		score += c.Effect.Value
		applied = append(applied, c.Effect.ID)
	}
	for _, c := range multiplies {
		score *= c.Effect.Value
		applied = append(applied, c.Effect.ID)
	}
	for _, c := range decays {
		days := now.Sub(c.EventStart).Hours() / 24
		if days < 0 {
			days = 0
		}
		factor := c.Effect.DecayPerDay
		if factor <= 0 {
			factor = 1.0
		}
		score += c.Effect.Value * math.Pow(factor, days)
		if score < 0 {
			score = 0
		}
		applied = append(applied, c.Effect.ID)
	}

	score = weights.Clamp(score, model.RelationScoreMin, model.RelationScoreMax)

	provenance := applied
	if len(applied) == 0 {
		provenance = []string{BaseProvenance}
	}

	return Result{
		BaseScore:      base,
		EffectiveScore: score,
		EffectsApplied: applied,
		Provenance:     provenance,
	}
}

// matches reports whether the effect applies to the pair: scope match
// first, then the optional domain filter.
func matches(e model.EventEffect, pair PairContext) bool {
	if e.Domain != nil && *e.Domain != pair.Domain {
		return false
	}
	switch e.Scope {
	case model.ScopeGlobal:
		return true
	case model.ScopeCohortToCohort:
		return pair.FromCohorts[e.SourceCohortID] && pair.ToCohorts[e.TargetCohortID]
	case model.ScopePersonToPerson:
		return e.FromPersonID == pair.FromPersonID && e.ToPersonID == pair.ToPersonID
	}
	return false
}

func sortByID(effects []ScopedEffect) {
	sort.Slice(effects, func(i, j int) bool {
		return effects[i].Effect.ID < effects[j].Effect.ID
	})
}
