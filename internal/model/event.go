package model

import (
	"errors"
	"time"
)

// EffectScope determines which relationship pairs an event effect applies to.
type EffectScope string

// Effect scopes.
const (
	ScopeGlobal         EffectScope = "global"
	ScopeCohortToCohort EffectScope = "cohort_to_cohort"
	ScopePersonToPerson EffectScope = "person_to_person"
)

// EffectType determines how an effect modifies a base score.
type EffectType string

// Effect types, applied in this fixed order: all add effects first,
// then multiply effects, then decay effects.
const (
	EffectAdd      EffectType = "add"
	EffectMultiply EffectType = "multiply"
	EffectDecay    EffectType = "decay"
)

// Effect validation errors.
var (
	ErrInvalidEffectScope  = errors.New("invalid effect scope")
	ErrInvalidEffectType   = errors.New("invalid effect type")
	ErrMissingCohortRefs   = errors.New("cohort_to_cohort effect requires source and target cohort refs")
	ErrMissingPersonRefs   = errors.New("person_to_person effect requires from and to person refs")
	ErrUnexpectedScopeRefs = errors.New("global effect must not carry cohort or person refs")
	ErrInvalidEventWindow  = errors.New("event end time must not precede start time")
)

// Event is a world occurrence with a time window and a list of score
// effects layered over base relationship scores while the event is active.
type Event struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	StartsAt  time.Time  `json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	WorldSeed string     `json:"world_seed,omitempty"`
	Active    bool       `json:"active"`

	Effects []EventEffect `json:"effects,omitempty"`
}

// InWindow reports whether the event's time window covers the given instant.
// An open-ended event (nil EndsAt) covers everything after StartsAt.
func (e *Event) InWindow(at time.Time) bool {
	if at.Before(e.StartsAt) {
		return false
	}
	if e.EndsAt != nil && at.After(*e.EndsAt) {
		return false
	}
	return true
}

// Validate checks the event's time window.
func (e *Event) Validate() error {
	if e.EndsAt != nil && e.EndsAt.Before(e.StartsAt) {
		return ErrInvalidEventWindow
	}
	for i := range e.Effects {
		if err := e.Effects[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EventEffect is a single score modifier carried by an event.
type EventEffect struct {
	ID      string      `json:"id"`
	EventID string      `json:"event_id"`
	Scope   EffectScope `json:"scope"`
	Domain  *Domain     `json:"domain,omitempty"` // nil applies to all domains
	Type    EffectType  `json:"type"`
	Value   float64     `json:"value"`
	// DecayPerDay is the per-day decay factor for decay effects,
	// e.g. 0.9 halves the contribution roughly every week.
	DecayPerDay float64 `json:"decay_per_day,omitempty"`

	// Scope refs. Required by cohort_to_cohort / person_to_person scopes.
	SourceCohortID string `json:"source_cohort_id,omitempty"`
	TargetCohortID string `json:"target_cohort_id,omitempty"`
	FromPersonID   string `json:"from_person_id,omitempty"`
	ToPersonID     string `json:"to_person_id,omitempty"`
}

// Validate enforces the scope-dependent reference invariants. Scoped
// effects without their refs are configuration errors and are rejected
// at creation time.
func (ef *EventEffect) Validate() error {
	switch ef.Type {
	case EffectAdd, EffectMultiply, EffectDecay:
	default:
		return ErrInvalidEffectType
	}
	if ef.Domain != nil && !ValidDomain(*ef.Domain) {
		return ErrInvalidDomain
	}
	switch ef.Scope {
	case ScopeGlobal:
		if ef.SourceCohortID != "" || ef.TargetCohortID != "" ||
			ef.FromPersonID != "" || ef.ToPersonID != "" {
			return ErrUnexpectedScopeRefs
		}
	case ScopeCohortToCohort:
		if ef.SourceCohortID == "" || ef.TargetCohortID == "" {
			return ErrMissingCohortRefs
		}
	case ScopePersonToPerson:
		if ef.FromPersonID == "" || ef.ToPersonID == "" {
			return ErrMissingPersonRefs
		}
	default:
		return ErrInvalidEffectScope
	}
	return nil
}
