// Package scoring coordinates batch recomputation of involvement and
// loyalty scores across the whole population.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/messiahcarey/deer-river/internal/model"
	"github.com/messiahcarey/deer-river/internal/tracing"
)

// DataSource provides the population data the orchestrator iterates over.
type DataSource interface {
	// ListPersonIDs returns the ids of every person.
	ListPersonIDs(ctx context.Context) ([]string, error)
	// ListFactions returns all factions.
	ListFactions(ctx context.Context) ([]model.Faction, error)
	// ListRelationsByPerson returns all relations touching the person.
	ListRelationsByPerson(ctx context.Context, personID string) ([]model.PersonRelation, error)
}

// ScoreStore persists computed scores.
type ScoreStore interface {
	UpsertInvolvement(ctx context.Context, score *model.InvolvementScore) error
	GetInvolvement(ctx context.Context, personID string) (*model.InvolvementScore, error)
	ListInvolvement(ctx context.Context) ([]model.InvolvementScore, error)
	UpsertLoyalty(ctx context.Context, score *model.LoyaltyScore) error
	ListLoyaltyByPerson(ctx context.Context, personID string) ([]model.LoyaltyScore, error)
}

// InvolvementScorer computes a person's involvement score.
type InvolvementScorer interface {
	Compute(ctx context.Context, personID string) (*model.InvolvementScore, error)
}

// LoyaltyScorer computes a person's loyalty toward a target.
type LoyaltyScorer interface {
	Compute(ctx context.Context, personID, targetID string) (*model.LoyaltyScore, error)
}

// DefaultSampleCap bounds how many person-to-person loyalty targets are
// scored per person during a batch run.
const DefaultSampleCap = 10

// Config configures an Orchestrator.
type Config struct {
	// SampleCap limits person targets per person. Zero means DefaultSampleCap.
	SampleCap int
	// Logger for batch activity.
	Logger *slog.Logger
	// Metrics for recompute tracking. May be nil.
	Metrics *Metrics
}

// Orchestrator runs batch score recomputation. A failure on one person
// is recorded and the batch moves on; it never aborts the whole run.
type Orchestrator struct {
	config      Config
	data        DataSource
	scores      ScoreStore
	involvement InvolvementScorer
	loyalty     LoyaltyScorer
}

// NewOrchestrator creates a batch scoring orchestrator.
func NewOrchestrator(config Config, data DataSource, scores ScoreStore, inv InvolvementScorer, loy LoyaltyScorer) *Orchestrator {
	if config.SampleCap <= 0 {
		config.SampleCap = DefaultSampleCap
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Orchestrator{
		config:      config,
		data:        data,
		scores:      scores,
		involvement: inv,
		loyalty:     loy,
	}
}

// BatchResult summarizes a batch recompute run.
type BatchResult struct {
	TotalPeople     int      `json:"totalPeople"`
	ProcessedPeople int      `json:"processedPeople"`
	Errors          []string `json:"errors,omitempty"`
	Duration        string   `json:"duration"`
}

// RecalculatePersonScores recomputes and persists the involvement score
// and all loyalty scores for a single person. Loyalty targets are every
// faction plus up to SampleCap relation counterparts, strongest first.
func (o *Orchestrator) RecalculatePersonScores(ctx context.Context, personID string) error {
	ctx, end := tracing.StartSpan(ctx, "recalculate_person_scores")
	var err error
	defer func() { end(err) }()

	inv, err := o.involvement.Compute(ctx, personID)
	if err != nil {
		return fmt.Errorf("involvement for %s: %w", personID, err)
	}
	if err = o.scores.UpsertInvolvement(ctx, inv); err != nil {
		return fmt.Errorf("store involvement for %s: %w", personID, err)
	}

	targets, err := o.loyaltyTargets(ctx, personID)
	if err != nil {
		return err
	}

	for _, targetID := range targets {
		loy, lerr := o.loyalty.Compute(ctx, personID, targetID)
		if lerr != nil {
			// A vanished target is not a person-level failure.
			if errors.Is(lerr, model.ErrTargetNotFound) {
				continue
			}
			err = fmt.Errorf("loyalty %s -> %s: %w", personID, targetID, lerr)
			return err
		}
		if err = o.scores.UpsertLoyalty(ctx, loy); err != nil {
			return fmt.Errorf("store loyalty %s -> %s: %w", personID, targetID, err)
		}
	}
	return nil
}

// loyaltyTargets returns faction ids plus the person's strongest relation
// counterparts, capped at SampleCap. Counterparts are ordered by their
// strongest relation weight descending, ties broken by id for stable
// batch output.
func (o *Orchestrator) loyaltyTargets(ctx context.Context, personID string) ([]string, error) {
	factions, err := o.data.ListFactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list factions: %w", err)
	}

	targets := make([]string, 0, len(factions)+o.config.SampleCap)
	for _, f := range factions {
		targets = append(targets, f.ID)
	}

	relations, err := o.data.ListRelationsByPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("list relations for %s: %w", personID, err)
	}

	strongest := make(map[string]float64)
	for _, r := range relations {
		other := r.Other(personID)
		if other == "" || other == personID {
			continue
		}
		if w, ok := strongest[other]; !ok || r.Weight > w {
			strongest[other] = r.Weight
		}
	}

	counterparts := make([]string, 0, len(strongest))
	for id := range strongest {
		counterparts = append(counterparts, id)
	}
	sort.Slice(counterparts, func(i, j int) bool {
		wi, wj := strongest[counterparts[i]], strongest[counterparts[j]]
		if wi != wj {
			return wi > wj
		}
		return counterparts[i] < counterparts[j]
	})

	if len(counterparts) > o.config.SampleCap {
		counterparts = counterparts[:o.config.SampleCap]
	}
	return append(targets, counterparts...), nil
}

// RecalculateAll recomputes scores for the entire population. Individual
// failures are accumulated in the result; the batch always runs to the
// end of the person list.
func (o *Orchestrator) RecalculateAll(ctx context.Context) (*BatchResult, error) {
	ctx, end := tracing.StartSpan(ctx, "recalculate_all_scores")
	var err error
	defer func() { end(err) }()

	start := time.Now()

	personIDs, err := o.data.ListPersonIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list person ids: %w", err)
	}

	result := &BatchResult{TotalPeople: len(personIDs)}

	o.config.Logger.Info("score recalculation started", "people", len(personIDs))

	for _, personID := range personIDs {
		if ctx.Err() != nil {
			err = ctx.Err()
			result.Errors = append(result.Errors, "batch aborted: "+err.Error())
			break
		}

		if perr := o.RecalculatePersonScores(ctx, personID); perr != nil {
			result.Errors = append(result.Errors, perr.Error())
			o.config.Logger.Error("failed to recalculate scores",
				"person_id", personID,
				"error", perr)
			if o.config.Metrics != nil {
				o.config.Metrics.IncRecomputeErrors()
			}
			continue
		}
		result.ProcessedPeople++
	}

	duration := time.Since(start)
	result.Duration = duration.String()

	if o.config.Metrics != nil {
		o.config.Metrics.IncRecomputeTotal()
		o.config.Metrics.ObserveRecomputeDuration(duration.Seconds())
		o.config.Metrics.SetLastRecomputeTimestamp(float64(time.Now().Unix()))
		o.config.Metrics.SetLastRecomputePersonCount(float64(result.ProcessedPeople))
	}

	o.config.Logger.Info("score recalculation completed",
		"processed", result.ProcessedPeople,
		"failed", result.TotalPeople-result.ProcessedPeople,
		"duration", duration)

	return result, nil
}

// TopLoyalties returns a person's stored loyalty scores ordered by score
// descending, limited to n entries. n <= 0 returns all.
func (o *Orchestrator) TopLoyalties(ctx context.Context, personID string, n int) ([]model.LoyaltyScore, error) {
	scores, err := o.scores.ListLoyaltyByPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].TargetID < scores[j].TargetID
	})
	if n > 0 && len(scores) > n {
		scores = scores[:n]
	}
	return scores, nil
}

// histogramBuckets are the fixed involvement distribution buckets.
var histogramBuckets = []struct {
	Label string
	Upper float64
}{
	{"0.0-0.2", 0.2},
	{"0.2-0.4", 0.4},
	{"0.4-0.6", 0.6},
	{"0.6-0.8", 0.8},
	{"0.8-1.0", 1.01},
}

// Histogram buckets all stored involvement scores into five fixed ranges.
// Keys are range labels, values are person counts.
func (o *Orchestrator) Histogram(ctx context.Context) (map[string]int, error) {
	scores, err := o.scores.ListInvolvement(ctx)
	if err != nil {
		return nil, err
	}

	hist := make(map[string]int, len(histogramBuckets))
	for _, b := range histogramBuckets {
		hist[b.Label] = 0
	}
	for _, s := range scores {
		for _, b := range histogramBuckets {
			if s.Score < b.Upper {
				hist[b.Label]++
				break
			}
		}
	}
	return hist, nil
}
