// Package loyalty computes a person's attachment score toward a target,
// which may be a faction or another person. Every component has a
// distinct computation path per target kind.
package loyalty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/messiahcarey/deer-river/internal/model"
	"github.com/messiahcarey/deer-river/internal/weights"
)

// DataSource provides the domain reads needed to score loyalty.
type DataSource interface {
	// GetPerson returns a person with faction memberships populated.
	GetPerson(ctx context.Context, id string) (*model.Person, error)
	// GetFaction returns a faction by id.
	GetFaction(ctx context.Context, id string) (*model.Faction, error)
	// ListRelationsByPerson returns all relations touching the person.
	ListRelationsByPerson(ctx context.Context, personID string) ([]model.PersonRelation, error)
	// ListPeopleByHousehold returns all people sharing a household.
	ListPeopleByHousehold(ctx context.Context, householdID string) ([]model.Person, error)
}

// Default scoring parameters.
const (
	DefaultWindowDays = 180

	// Identity fit, faction target.
	identityMembershipBase = 0.6
	identityRoleFactor     = 0.3
	identitySpeciesFactor  = 0.2
	identityHouseholdFactor = 0.1

	// Identity fit, person target.
	identitySameSpecies  = 0.4
	identitySameHousehold = 0.5
	identityAgeFactor    = 0.1
	ageSimilaritySpan    = 50.0

	// Benefit flow.
	benefitMembershipFactor = 0.6
	benefitRoleFactor       = 0.3
	benefitWorkplaceFactor  = 0.1
	benefitPatronageFactor  = 0.8

	// Shared history.
	historyRelationFactor   = 0.5
	historyMembershipFactor = 0.3
	historyFullYear         = 365.0

	// Pressure / cost.
	pressureRoleFactor     = 0.4
	pressurePowerFactor    = 0.3
	pressureDurationFactor = 0.3
	pressureCommandFactor  = 0.6

	// Satisfaction.
	satisfactionBase            = 0.5
	satisfactionSentimentFactor = 0.3
	satisfactionAlignmentFactor = 0.4
	alignmentScale              = 100.0
)

// Config holds the scorer's tunable parameters. Read-only after
// construction.
type Config struct {
	Weights     weights.LoyaltyWeights
	WindowDays  int
	DecayFactor float64
	Logger      *slog.Logger

	// Now returns the current time; injectable for tests.
	Now func() time.Time
}

// Scorer computes loyalty scores.
type Scorer struct {
	config Config
	ds     DataSource
}

// NewScorer creates a loyalty scorer. Zero-value config fields are
// replaced with defaults.
func NewScorer(config Config, ds DataSource) *Scorer {
	if config.Weights == (weights.LoyaltyWeights{}) {
		config.Weights = weights.DefaultLoyaltyWeights()
	}
	if config.WindowDays == 0 {
		config.WindowDays = DefaultWindowDays
	}
	if config.DecayFactor == 0 {
		config.DecayFactor = weights.DefaultDecayFactor
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Scorer{config: config, ds: ds}
}

// Compute calculates the loyalty of a person toward a target. The target
// id is resolved as a faction first, then as a person; a target that is
// neither returns model.ErrTargetNotFound.
func (s *Scorer) Compute(ctx context.Context, personID, targetID string) (*model.LoyaltyScore, error) {
	person, err := s.ds.GetPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("loyalty: fetch person %s: %w", personID, err)
	}

	now := s.config.Now()

	relations, err := s.ds.ListRelationsByPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("loyalty: list relations for %s: %w", personID, err)
	}

	faction, err := s.ds.GetFaction(ctx, targetID)
	switch {
	case err == nil:
		return s.computeFactionLoyalty(ctx, person, faction, relations, now)
	case errors.Is(err, model.ErrFactionNotFound):
		targetPerson, perr := s.ds.GetPerson(ctx, targetID)
		if errors.Is(perr, model.ErrPersonNotFound) {
			return nil, fmt.Errorf("loyalty: resolve target %s: %w", targetID, model.ErrTargetNotFound)
		}
		if perr != nil {
			return nil, fmt.Errorf("loyalty: resolve target %s: %w", targetID, perr)
		}
		return s.computePersonLoyalty(person, targetPerson, relations, now), nil
	default:
		return nil, fmt.Errorf("loyalty: resolve target %s: %w", targetID, err)
	}
}

func (s *Scorer) computeFactionLoyalty(ctx context.Context, person *model.Person, faction *model.Faction, relations []model.PersonRelation, now time.Time) (*model.LoyaltyScore, error) {
	membership := findMembership(person, faction.ID)

	householdOverlap, err := s.householdOverlap(ctx, person, faction.ID)
	if err != nil {
		return nil, fmt.Errorf("loyalty: household overlap for %s: %w", person.ID, err)
	}

	breakdown := model.LoyaltyBreakdown{
		IdentityFit:   s.factionIdentityFit(person, faction, membership, householdOverlap),
		BenefitFlow:   s.factionBenefitFlow(person, membership),
		SharedHistory: s.sharedHistory(relations, faction.ID, membership, now),
		PressureCost:  s.factionPressureCost(faction, membership, now),
		Satisfaction:  s.satisfaction(relations, faction.ID, membership, now),
	}
	return s.finish(person.ID, faction.ID, model.TargetFaction, breakdown, now), nil
}

func (s *Scorer) computePersonLoyalty(person, target *model.Person, relations []model.PersonRelation, now time.Time) *model.LoyaltyScore {
	breakdown := model.LoyaltyBreakdown{
		IdentityFit:   s.personIdentityFit(person, target),
		BenefitFlow:   s.personBenefitFlow(relations, target.ID),
		SharedHistory: s.sharedHistory(relations, target.ID, nil, now),
		PressureCost:  s.personPressureCost(relations, target.ID),
		Satisfaction:  s.satisfaction(relations, target.ID, nil, now),
	}
	return s.finish(person.ID, target.ID, model.TargetPerson, breakdown, now)
}

func (s *Scorer) finish(personID, targetID, kind string, breakdown model.LoyaltyBreakdown, now time.Time) *model.LoyaltyScore {
	w := s.config.Weights
	score := weights.ClampUnit(
		breakdown.IdentityFit*w.IdentityFit +
			breakdown.BenefitFlow*w.BenefitFlow +
			breakdown.SharedHistory*w.SharedHistory +
			breakdown.PressureCost*w.PressureCost +
			breakdown.Satisfaction*w.Satisfaction)

	s.config.Logger.Debug("loyalty computed",
		"person_id", personID,
		"target_id", targetID,
		"target_kind", kind,
		"score", score)

	return &model.LoyaltyScore{
		PersonID:   personID,
		TargetID:   targetID,
		TargetKind: kind,
		Score:      score,
		Breakdown:  breakdown,
		WindowDays: s.config.WindowDays,
		ComputedAt: now,
	}
}

// factionIdentityFit: membership base + role weight + species alignment +
// household overlap, each with its own factor.
func (s *Scorer) factionIdentityFit(person *model.Person, faction *model.Faction, membership *model.FactionMembership, householdOverlap float64) float64 {
	var total float64
	if membership != nil {
		total += identityMembershipBase
		total += identityRoleFactor * weights.Lookup(weights.RoleWeight, membership.Role, weights.DefaultCategoryWeight)
	}
	total += identitySpeciesFactor * weights.SpeciesAlignment(person.Species, faction.Name)
	total += identityHouseholdFactor * householdOverlap
	return weights.ClampUnit(total)
}

// personIdentityFit: shared species, shared household, age similarity.
func (s *Scorer) personIdentityFit(person, target *model.Person) float64 {
	var total float64
	if person.Species == target.Species {
		total += identitySameSpecies
	}
	if person.HouseholdID != "" && person.HouseholdID == target.HouseholdID {
		total += identitySameHousehold
	}
	ageSimilarity := 1.0 - math.Abs(float64(person.Age-target.Age))/ageSimilaritySpan
	if ageSimilarity > 0 {
		total += identityAgeFactor * ageSimilarity
	}
	return weights.ClampUnit(total)
}

func (s *Scorer) factionBenefitFlow(person *model.Person, membership *model.FactionMembership) float64 {
	if membership == nil {
		return 0
	}
	total := membership.BenefitLevel * benefitMembershipFactor
	total += weights.Lookup(weights.RoleBenefit, membership.Role, weights.DefaultCategoryWeight) * benefitRoleFactor
	if person.WorkplaceType != "" {
		total += weights.Lookup(weights.WorkplaceBenefit, person.WorkplaceType, weights.DefaultCategoryWeight) * benefitWorkplaceFactor
	}
	return weights.ClampUnit(total)
}

// personBenefitFlow: the strongest patronage relation between the pair.
func (s *Scorer) personBenefitFlow(relations []model.PersonRelation, targetID string) float64 {
	return weights.ClampUnit(strongestKind(relations, targetID, model.KindPatronage) * benefitPatronageFactor)
}

// sharedHistory sums duration-weighted relation weights toward the
// target, plus a membership tenure bonus for faction targets.
func (s *Scorer) sharedHistory(relations []model.PersonRelation, targetID string, membership *model.FactionMembership, now time.Time) float64 {
	var total float64
	for i := range relations {
		r := &relations[i]
		if !r.Touches(targetID) {
			continue
		}
		days := now.Sub(r.CreatedAt).Hours() / 24
		durationWeight := days / historyFullYear
		if durationWeight > 1.0 {
			durationWeight = 1.0
		}
		if durationWeight < 0 {
			durationWeight = 0
		}
		total += r.Weight * durationWeight * historyRelationFactor
	}
	if membership != nil {
		tenure := membership.DurationDays(now) / historyFullYear
		if tenure > 1.0 {
			tenure = 1.0
		}
		total += tenure * historyMembershipFactor
	}
	return weights.ClampUnit(total)
}

func (s *Scorer) factionPressureCost(faction *model.Faction, membership *model.FactionMembership, now time.Time) float64 {
	total := pressurePowerFactor * weights.Lookup(weights.FactionPower, faction.Name, weights.DefaultCategoryWeight)
	if membership != nil {
		total += pressureRoleFactor * weights.Lookup(weights.RolePressure, membership.Role, weights.DefaultCategoryWeight)
		tenure := membership.DurationDays(now) / historyFullYear
		if tenure > 1.0 {
			tenure = 1.0
		}
		total += pressureDurationFactor * tenure
	}
	return weights.ClampUnit(total)
}

// personPressureCost: the strongest command relation between the pair.
func (s *Scorer) personPressureCost(relations []model.PersonRelation, targetID string) float64 {
	return weights.ClampUnit(strongestKind(relations, targetID, model.KindCommand) * pressureCommandFactor)
}

// satisfaction starts at a neutral base, shifted by sentiment on recent
// relations toward the target and, for faction targets, by the
// membership's alignment.
func (s *Scorer) satisfaction(relations []model.PersonRelation, targetID string, membership *model.FactionMembership, now time.Time) float64 {
	total := satisfactionBase
	windowStart := now.Add(-time.Duration(s.config.WindowDays) * 24 * time.Hour)
	for i := range relations {
		r := &relations[i]
		if !r.Touches(targetID) {
			continue
		}
		if r.CreatedAt.Before(windowStart) {
			continue
		}
		created := r.CreatedAt
		timeWeight := weights.TimeDecay(&created, now, s.config.DecayFactor)
		total += r.Sentiment * timeWeight * satisfactionSentimentFactor
	}
	if membership != nil {
		// Alignment is stored on a -100..100 scale, normalized to -1..1.
		total += membership.Alignment / alignmentScale * satisfactionAlignmentFactor
	}
	return weights.ClampUnit(total)
}

// householdOverlap returns the fraction of the person's household that
// also holds membership in the faction. A person with no household or an
// empty household scores zero overlap.
func (s *Scorer) householdOverlap(ctx context.Context, person *model.Person, factionID string) (float64, error) {
	if person.HouseholdID == "" {
		return 0, nil
	}
	members, err := s.ds.ListPeopleByHousehold(ctx, person.HouseholdID)
	if err != nil {
		return 0, err
	}
	var others, inFaction int
	for i := range members {
		if members[i].ID == person.ID {
			continue
		}
		others++
		if findMembership(&members[i], factionID) != nil {
			inFaction++
		}
	}
	if others == 0 {
		return 0, nil
	}
	return float64(inFaction) / float64(others), nil
}

// findMembership returns the person's membership in the faction, active
// memberships preferred, or nil when none exists.
func findMembership(person *model.Person, factionID string) *model.FactionMembership {
	var ended *model.FactionMembership
	for i := range person.Memberships {
		m := &person.Memberships[i]
		if m.FactionID != factionID {
			continue
		}
		if m.Active() {
			return m
		}
		ended = m
	}
	return ended
}

// strongestKind returns the highest weight among relations of the given
// kind between the person and the target, or 0 when none exists.
func strongestKind(relations []model.PersonRelation, targetID, kind string) float64 {
	var strongest float64
	for i := range relations {
		r := &relations[i]
		if r.Kind != kind || !r.Touches(targetID) {
			continue
		}
		if r.Weight > strongest {
			strongest = r.Weight
		}
	}
	return strongest
}
