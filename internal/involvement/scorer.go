// Package involvement computes a person's involvement score: how active
// and central they are in village life, derived from faction roles,
// event participation, network centrality, initiative, and reliability.
package involvement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/messiahcarey/deer-river/internal/model"
	"github.com/messiahcarey/deer-river/internal/weights"
)

// DataSource provides the domain reads needed to score involvement.
type DataSource interface {
	// GetPerson returns a person with faction memberships populated.
	GetPerson(ctx context.Context, id string) (*model.Person, error)
	// ListRelationsByPerson returns all relations touching the person
	// in either direction.
	ListRelationsByPerson(ctx context.Context, personID string) ([]model.PersonRelation, error)
	// CountEventsOverlapping returns the number of events whose time
	// window intersects [from, to].
	CountEventsOverlapping(ctx context.Context, from, to time.Time) (int, error)
}

// Default scoring parameters.
const (
	DefaultWindowDays    = 90
	DefaultCentralityCap = 100.0

	// Contribution multipliers for role activity.
	workplaceContribution  = 0.5
	occupationContribution = 0.3

	// Event participation draws on per-membership activity levels.
	participationPerMembership = 0.5

	// Reliability starts at a neutral base and earns a stability bonus
	// per long-standing active membership.
	reliabilityBase  = 0.5
	stabilityBonus   = 0.3
	stabilityFullYear = 365.0
)

// Config holds the scorer's tunable parameters. Read-only after
// construction.
type Config struct {
	Weights       weights.InvolvementWeights
	WindowDays    int
	DecayFactor   float64
	EnableDecay   bool
	CentralityCap float64
	Logger        *slog.Logger

	// Now returns the current time; injectable for tests.
	Now func() time.Time
}

// Scorer computes involvement scores.
type Scorer struct {
	config Config
	ds     DataSource
}

// NewScorer creates an involvement scorer. Zero-value config fields are
// replaced with defaults.
func NewScorer(config Config, ds DataSource) *Scorer {
	if config.Weights == (weights.InvolvementWeights{}) {
		config.Weights = weights.DefaultInvolvementWeights()
	}
	if config.WindowDays == 0 {
		config.WindowDays = DefaultWindowDays
	}
	if config.DecayFactor == 0 {
		config.DecayFactor = weights.DefaultDecayFactor
	}
	if config.CentralityCap == 0 {
		config.CentralityCap = DefaultCentralityCap
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Scorer{config: config, ds: ds}
}

// Compute calculates the involvement score for one person. The returned
// score fully replaces any prior value for the person. A missing person
// is returned as an error; missing referenced categories fall back to
// neutral weights.
func (s *Scorer) Compute(ctx context.Context, personID string) (*model.InvolvementScore, error) {
	person, err := s.ds.GetPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("involvement: fetch person %s: %w", personID, err)
	}

	now := s.config.Now()

	relations, err := s.ds.ListRelationsByPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("involvement: list relations for %s: %w", personID, err)
	}

	windowStart := now.Add(-time.Duration(s.config.WindowDays) * 24 * time.Hour)
	eventCount, err := s.ds.CountEventsOverlapping(ctx, windowStart, now)
	if err != nil {
		return nil, fmt.Errorf("involvement: count events for %s: %w", personID, err)
	}

	breakdown := model.InvolvementBreakdown{
		RoleActivity:       s.roleActivity(person, now),
		EventParticipation: s.eventParticipation(person, eventCount),
		NetworkCentrality:  s.networkCentrality(relations),
		Initiative:         s.initiative(person),
		Reliability:        s.reliability(person, now),
	}

	w := s.config.Weights
	score := weights.ClampUnit(
		breakdown.RoleActivity*w.RoleActivity +
			breakdown.EventParticipation*w.EventParticipation +
			breakdown.NetworkCentrality*w.NetworkCentrality +
			breakdown.Initiative*w.Initiative +
			breakdown.Reliability*w.Reliability)

	s.config.Logger.Debug("involvement computed",
		"person_id", personID,
		"score", score,
		"relations", len(relations),
		"events_in_window", eventCount)

	return &model.InvolvementScore{
		PersonID:   personID,
		Score:      score,
		Breakdown:  breakdown,
		WindowDays: s.config.WindowDays,
		ComputedAt: now,
	}, nil
}

// roleActivity sums role-weighted activity across active memberships,
// plus workplace and occupation contributions.
func (s *Scorer) roleActivity(person *model.Person, now time.Time) float64 {
	var total float64
	for i := range person.Memberships {
		m := &person.Memberships[i]
		if !m.Active() {
			continue
		}
		roleW := weights.Lookup(weights.RoleWeight, m.Role, weights.DefaultCategoryWeight)
		timeW := 1.0
		if s.config.EnableDecay {
			timeW = weights.TimeDecay(m.LeftAt, now, s.config.DecayFactor)
		}
		total += roleW * timeW
	}
	if person.WorkplaceType != "" {
		total += weights.Lookup(weights.WorkplaceWeight, person.WorkplaceType, weights.DefaultCategoryWeight) * workplaceContribution
	}
	if person.Occupation != "" {
		total += weights.Lookup(weights.OccupationWeight, person.Occupation, weights.DefaultCategoryWeight) * occupationContribution
	}
	return weights.ClampUnit(total)
}

// eventParticipation is the ratio of summed membership activity to the
// number of events in the lookback window. Zero events scores zero.
func (s *Scorer) eventParticipation(person *model.Person, eventCount int) float64 {
	if eventCount == 0 {
		return 0
	}
	var activity float64
	for i := range person.Memberships {
		activity += person.Memberships[i].ActivityLevel * participationPerMembership
	}
	return weights.ClampUnit(activity / float64(eventCount))
}

// networkCentrality is degree centrality: relations touching the person
// divided by the normalization cap.
func (s *Scorer) networkCentrality(relations []model.PersonRelation) float64 {
	return weights.ClampUnit(float64(len(relations)) / s.config.CentralityCap)
}

// initiative sums role initiative weights across active memberships.
func (s *Scorer) initiative(person *model.Person) float64 {
	var total float64
	for i := range person.Memberships {
		m := &person.Memberships[i]
		if !m.Active() {
			continue
		}
		total += weights.Lookup(weights.RoleInitiative, m.Role, weights.DefaultCategoryWeight)
	}
	return weights.ClampUnit(total)
}

// reliability is a neutral base plus a stability bonus for each
// long-standing active membership.
func (s *Scorer) reliability(person *model.Person, now time.Time) float64 {
	total := reliabilityBase
	for i := range person.Memberships {
		m := &person.Memberships[i]
		if !m.Active() {
			continue
		}
		tenure := m.DurationDays(now) / stabilityFullYear
		if tenure > 1.0 {
			tenure = 1.0
		}
		total += tenure * stabilityBonus
	}
	return weights.ClampUnit(total)
}
