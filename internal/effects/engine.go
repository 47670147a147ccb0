package effects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/messiahcarey/deer-river/internal/model"
)

// ErrRelationNotFound is returned when no base relationship exists for
// the requested (from, to, domain) triple.
var ErrRelationNotFound = errors.New("relationship not found")

// DataSource provides the reads needed to assemble an effective score.
type DataSource interface {
	// ListRelationsByPerson returns all relations touching the person.
	ListRelationsByPerson(ctx context.Context, personID string) ([]model.PersonRelation, error)
	// ListActiveEvents returns active events whose window covers the
	// given instant, with effects populated.
	ListActiveEvents(ctx context.Context, at time.Time) ([]model.Event, error)
	// ListCohortIDsByPerson returns the ids of cohorts the person
	// belongs to.
	ListCohortIDsByPerson(ctx context.Context, personID string) ([]string, error)
}

// Engine assembles effective-score inputs from the store and delegates
// the computation to Apply.
type Engine struct {
	ds     DataSource
	logger *slog.Logger
}

// NewEngine creates an effect engine.
func NewEngine(ds DataSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{ds: ds, logger: logger}
}

// EffectiveScore computes the effective score for the directed pair
// (from, to) in the given domain as of the given instant. The stored
// base score is never mutated.
func (e *Engine) EffectiveScore(ctx context.Context, fromID, toID string, domain model.Domain, asOf time.Time) (*Result, error) {
	relations, err := e.ds.ListRelationsByPerson(ctx, fromID)
	if err != nil {
		return nil, fmt.Errorf("effects: list relations for %s: %w", fromID, err)
	}

	var base *model.PersonRelation
	for i := range relations {
		r := &relations[i]
		if r.FromPersonID == fromID && r.ToPersonID == toID && r.Domain == domain {
			base = r
			break
		}
	}
	if base == nil {
		return nil, fmt.Errorf("effects: %s -> %s (%s): %w", fromID, toID, domain, ErrRelationNotFound)
	}

	events, err := e.ds.ListActiveEvents(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("effects: list active events: %w", err)
	}

	var candidates []ScopedEffect
	for i := range events {
		ev := &events[i]
		for _, eff := range ev.Effects {
			candidates = append(candidates, ScopedEffect{Effect: eff, EventStart: ev.StartsAt})
		}
	}

	fromCohorts, err := e.cohortSet(ctx, fromID)
	if err != nil {
		return nil, err
	}
	toCohorts, err := e.cohortSet(ctx, toID)
	if err != nil {
		return nil, err
	}

	result := Apply(base.Score, candidates, PairContext{
		FromPersonID: fromID,
		ToPersonID:   toID,
		Domain:       domain,
		FromCohorts:  fromCohorts,
		ToCohorts:    toCohorts,
	}, asOf)

	e.logger.Debug("effective score computed",
		"from", fromID,
		"to", toID,
		"domain", domain,
		"base", result.BaseScore,
		"effective", result.EffectiveScore,
		"effects_applied", len(result.EffectsApplied))

	return &result, nil
}

func (e *Engine) cohortSet(ctx context.Context, personID string) (map[string]bool, error) {
	ids, err := e.ds.ListCohortIDsByPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("effects: list cohorts for %s: %w", personID, err)
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
