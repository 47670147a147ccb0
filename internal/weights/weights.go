// Package weights provides the shared weighted-scoring utilities used by
// the involvement and loyalty scorers: weight sets, clamping, time decay,
// and the static category lookup tables.
package weights

import (
	"fmt"
	"math"
	"time"
)

// WeightSumTolerance is the allowed deviation when validating that a
// formula's weights sum to 1.0.
const WeightSumTolerance = 0.001

// InvolvementWeights defines the relative importance of each involvement
// component. All weights must sum to 1.0 (within tolerance).
type InvolvementWeights struct {
	RoleActivity       float64 `json:"role_activity"`
	EventParticipation float64 `json:"event_participation"`
	NetworkCentrality  float64 `json:"network_centrality"`
	Initiative         float64 `json:"initiative"`
	Reliability        float64 `json:"reliability"`
}

// DefaultInvolvementWeights returns the default involvement formula:
// I = 0.35*role_activity + 0.25*event_participation +
// 0.20*network_centrality + 0.10*initiative + 0.10*reliability.
func DefaultInvolvementWeights() InvolvementWeights {
	return InvolvementWeights{
		RoleActivity:       0.35,
		EventParticipation: 0.25,
		NetworkCentrality:  0.20,
		Initiative:         0.10,
		Reliability:        0.10,
	}
}

// Sum returns the total of all involvement weights.
func (w InvolvementWeights) Sum() float64 {
	return w.RoleActivity + w.EventParticipation + w.NetworkCentrality +
		w.Initiative + w.Reliability
}

// Validate checks that weights sum to 1.0 and none are negative.
func (w InvolvementWeights) Validate() error {
	return validateSum(w.Sum(), []float64{
		w.RoleActivity, w.EventParticipation, w.NetworkCentrality,
		w.Initiative, w.Reliability,
	})
}

// LoyaltyWeights defines the relative importance of each loyalty
// component. All weights must sum to 1.0 (within tolerance).
type LoyaltyWeights struct {
	IdentityFit   float64 `json:"identity_fit"`
	BenefitFlow   float64 `json:"benefit_flow"`
	SharedHistory float64 `json:"shared_history"`
	PressureCost  float64 `json:"pressure_cost"`
	Satisfaction  float64 `json:"satisfaction"`
}

// DefaultLoyaltyWeights returns the default loyalty formula:
// L = 0.25*identity_fit + 0.25*benefit_flow + 0.20*shared_history +
// 0.15*pressure_cost + 0.15*satisfaction.
func DefaultLoyaltyWeights() LoyaltyWeights {
	return LoyaltyWeights{
		IdentityFit:   0.25,
		BenefitFlow:   0.25,
		SharedHistory: 0.20,
		PressureCost:  0.15,
		Satisfaction:  0.15,
	}
}

// Sum returns the total of all loyalty weights.
func (w LoyaltyWeights) Sum() float64 {
	return w.IdentityFit + w.BenefitFlow + w.SharedHistory +
		w.PressureCost + w.Satisfaction
}

// Validate checks that weights sum to 1.0 and none are negative.
func (w LoyaltyWeights) Validate() error {
	return validateSum(w.Sum(), []float64{
		w.IdentityFit, w.BenefitFlow, w.SharedHistory,
		w.PressureCost, w.Satisfaction,
	})
}

func validateSum(sum float64, all []float64) error {
	if math.Abs(sum-1.0) > WeightSumTolerance {
		return fmt.Errorf("weights sum to %.4f, must sum to 1.0", sum)
	}
	for _, v := range all {
		if v < 0 {
			return fmt.Errorf("negative weight: %f", v)
		}
	}
	return nil
}

// Clamp restricts v to the closed interval [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ClampUnit restricts v to [0, 1], the scale all computed score
// components live on.
func ClampUnit(v float64) float64 {
	return Clamp(v, 0.0, 1.0)
}

// DefaultDecayFactor is the per-week decay factor applied to
// time-weighted contributions.
const DefaultDecayFactor = 0.90

// TimeDecay returns decayFactor^weeks for an interval ending at end
// (or now if end is nil). Intervals ending in the future decay as if
// they ended now. Pass decayFactor <= 0 to use DefaultDecayFactor.
func TimeDecay(end *time.Time, now time.Time, decayFactor float64) float64 {
	if decayFactor <= 0 {
		decayFactor = DefaultDecayFactor
	}
	effective := now
	if end != nil && end.Before(now) {
		effective = *end
	}
	weeks := now.Sub(effective).Hours() / (24 * 7)
	if weeks <= 0 {
		return 1.0
	}
	return math.Pow(decayFactor, weeks)
}
