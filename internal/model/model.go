// Package model defines the domain entities for the Deer River social
// engine: people, cohorts, factions, relationships, seeding policies,
// events, and computed scores.
package model

import (
	"errors"
	"time"
)

// Domain categorizes a relationship or score component.
type Domain string

// Relationship domains.
const (
	DomainKinship Domain = "kinship"
	DomainFaction Domain = "faction"
	DomainWork    Domain = "work"
)

// ValidDomain reports whether d is a recognized relationship domain.
func ValidDomain(d Domain) bool {
	switch d {
	case DomainKinship, DomainFaction, DomainWork:
		return true
	}
	return false
}

// Relationship kinds. Kinds refine a domain: a "work" relation may be
// patronage (benefit flows down) or command (authority flows down).
const (
	KindFriendship = "friendship"
	KindKinship    = "kinship"
	KindPatronage  = "patronage"
	KindCommand    = "command"
	KindRivalry    = "rivalry"
)

// Base relationship scores are stored on a 1-100 scale; computed
// involvement/loyalty scores live in [0, 1].
const (
	RelationScoreMin = 1.0
	RelationScoreMax = 100.0
)

// Validation errors shared across entities.
var (
	ErrPersonNotFound  = errors.New("person not found")
	ErrFactionNotFound = errors.New("faction not found")
	ErrCohortNotFound  = errors.New("cohort not found")
	ErrTargetNotFound  = errors.New("target not found: not a faction or person")

	ErrInvalidDomain      = errors.New("invalid domain: must be kinship, faction, or work")
	ErrInvalidScoreRange  = errors.New("invalid score range: score_min must not exceed score_max")
	ErrScoreOutOfScale    = errors.New("score out of scale: must be within 1-100")
	ErrInvalidProbability = errors.New("invalid probability: must be between 0.0 and 1.0")
	ErrPolicyExecuted     = errors.New("policy already executed: create a new policy version instead of mutating")
)

// Person is a simulated inhabitant of the village. Identity fields are
// immutable; mutable attributes are maintained by the CRUD boundary.
type Person struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Species       string    `json:"species"`
	Age           int       `json:"age"`
	Occupation    string    `json:"occupation"`
	HouseholdID   string    `json:"household_id,omitempty"`
	WorkplaceID   string    `json:"workplace_id,omitempty"`
	WorkplaceType string    `json:"workplace_type,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	// Memberships is populated by the store when the person is fetched
	// with faction context.
	Memberships []FactionMembership `json:"memberships,omitempty"`
}

// Faction is an organized group a person can hold membership in.
type Faction struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FactionMembership links a person to a faction with role metadata.
type FactionMembership struct {
	PersonID      string     `json:"person_id"`
	FactionID     string     `json:"faction_id"`
	FactionName   string     `json:"faction_name"`
	Role          string     `json:"role"`
	ActivityLevel float64    `json:"activity_level"` // 0.0-1.0
	BenefitLevel  float64    `json:"benefit_level"`  // 0.0-1.0
	Alignment     float64    `json:"alignment"`      // -100..100
	JoinedAt      time.Time  `json:"joined_at"`
	LeftAt        *time.Time `json:"left_at,omitempty"`
}

// Active reports whether the membership is still current.
func (m *FactionMembership) Active() bool {
	return m.LeftAt == nil
}

// DurationDays returns the membership duration in days as of now.
// For ended memberships the duration runs to LeftAt.
func (m *FactionMembership) DurationDays(now time.Time) float64 {
	end := now
	if m.LeftAt != nil {
		end = *m.LeftAt
	}
	d := end.Sub(m.JoinedAt).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// Cohort is a named, operator-defined group of people used as the unit
// of seeding-policy targeting.
type Cohort struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CohortMember links a person to a cohort with join metadata.
type CohortMember struct {
	CohortID string    `json:"cohort_id"`
	PersonID string    `json:"person_id"`
	Notes    string    `json:"notes,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

// PersonRelation is a directed edge between two people.
type PersonRelation struct {
	ID           string    `json:"id"`
	FromPersonID string    `json:"from_person_id"`
	ToPersonID   string    `json:"to_person_id"`
	Domain       Domain    `json:"domain"`
	Kind         string    `json:"kind"`
	Score        float64   `json:"score"`     // 1-100 base score
	Weight       float64   `json:"weight"`    // 0.0-1.0
	Sentiment    float64   `json:"sentiment"` // -1.0..1.0
	Provenance   string    `json:"provenance"`
	PolicyID     string    `json:"policy_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Touches reports whether the relation involves the given person in
// either direction.
func (r *PersonRelation) Touches(personID string) bool {
	return r.FromPersonID == personID || r.ToPersonID == personID
}

// Other returns the counterpart of personID on this edge, or "" when the
// person is not on the edge.
func (r *PersonRelation) Other(personID string) string {
	switch personID {
	case r.FromPersonID:
		return r.ToPersonID
	case r.ToPersonID:
		return r.FromPersonID
	}
	return ""
}
