// Package seeding deterministically generates baseline relationships
// between cohorts from declarative policies. The outcome for a pair
// depends only on the world seed, the policy id, and the two person ids,
// never on iteration order or wall-clock time, so re-running with the
// same inputs reproduces the same relationship set.
package seeding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/messiahcarey/deer-river/internal/model"
)

// ErrNoActivePolicies is returned in the result's error list when a run
// finds nothing to do.
var ErrNoActivePolicies = errors.New("no active seeding policies")

// DataSource provides the reads and writes needed by a seeding run.
type DataSource interface {
	// ListActivePolicies returns all active seeding policies.
	ListActivePolicies(ctx context.Context) ([]model.SeedingPolicy, error)
	// GetCohort returns a cohort by id.
	GetCohort(ctx context.Context, id string) (*model.Cohort, error)
	// ListCohortMembers returns the members of a cohort.
	ListCohortMembers(ctx context.Context, cohortID string) ([]model.CohortMember, error)
	// GetPerson returns a person by id.
	GetPerson(ctx context.Context, id string) (*model.Person, error)
	// RelationExists reports whether a directed relation already exists
	// for the pair and domain.
	RelationExists(ctx context.Context, fromID, toID string, domain model.Domain) (bool, error)
	// InsertRelation persists a generated relation.
	InsertRelation(ctx context.Context, rel *model.PersonRelation) error
	// MarkPolicyExecuted freezes a policy after its first persisting run.
	MarkPolicyExecuted(ctx context.Context, policyID string) error
}

// PolicyDetail summarizes one policy's contribution to a seeding run.
type PolicyDetail struct {
	PolicyName             string `json:"policy_name"`
	SourceCohort           string `json:"source_cohort"`
	TargetCohort           string `json:"target_cohort"`
	RelationshipsGenerated int    `json:"relationships_generated"`
}

// Result is the outcome of a seeding run. A run with per-pair errors is
// still a success envelope with diagnostic detail.
type Result struct {
	Success              bool           `json:"success"`
	DryRun               bool           `json:"dry_run"`
	RelationshipsCreated int            `json:"relationships_created"`
	Errors               []string       `json:"errors"`
	Details              []PolicyDetail `json:"details"`
}

// Engine runs seeding policies.
type Engine struct {
	ds     DataSource
	logger *slog.Logger
	stats  *RunStats

	// now is injectable for tests.
	now func() time.Time
}

// NewEngine creates a seeding engine.
func NewEngine(ds DataSource, logger *slog.Logger, stats *RunStats) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if stats == nil {
		stats = NewRunStats()
	}
	return &Engine{ds: ds, logger: logger, stats: stats, now: time.Now}
}

// Preview runs all active policies without persisting anything. The
// result has the same shape as Execute.
func (e *Engine) Preview(ctx context.Context, worldSeed string) *Result {
	return e.run(ctx, worldSeed, true)
}

// Execute runs all active policies and persists the generated
// relationships. Pairs already holding a relation for the same domain
// are skipped, making repeated runs idempotent.
func (e *Engine) Execute(ctx context.Context, worldSeed string) *Result {
	return e.run(ctx, worldSeed, false)
}

func (e *Engine) run(ctx context.Context, worldSeed string, dryRun bool) *Result {
	result := &Result{
		Success: true,
		DryRun:  dryRun,
		Errors:  []string{},
		Details: []PolicyDetail{},
	}

	policies, err := e.ds.ListActivePolicies(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list policies: %v", err))
		return result
	}
	if len(policies) == 0 {
		result.Errors = append(result.Errors, ErrNoActivePolicies.Error())
		return result
	}

	for i := range policies {
		policy := &policies[i]
		detail, errs := e.runPolicy(ctx, policy, worldSeed, dryRun)
		result.Errors = append(result.Errors, errs...)
		if detail != nil {
			result.Details = append(result.Details, *detail)
			result.RelationshipsCreated += detail.RelationshipsGenerated
		}
	}

	e.logger.Info("seeding run completed",
		"dry_run", dryRun,
		"policies", len(policies),
		"relationships_created", result.RelationshipsCreated,
		"errors", len(result.Errors),
		"stats", e.stats.String())

	return result
}

// runPolicy evaluates every ordered cross pair for one policy. A failure
// on one pair is recorded and processing continues; a policy never
// aborts the run.
func (e *Engine) runPolicy(ctx context.Context, policy *model.SeedingPolicy, worldSeed string, dryRun bool) (*PolicyDetail, []string) {
	var errs []string

	if err := policy.Validate(); err != nil {
		return nil, []string{fmt.Sprintf("policy %s: %v", policy.Name, err)}
	}

	source, err := e.ds.GetCohort(ctx, policy.SourceCohortID)
	if err != nil {
		return nil, []string{fmt.Sprintf("policy %s: source cohort: %v", policy.Name, err)}
	}
	target, err := e.ds.GetCohort(ctx, policy.TargetCohortID)
	if err != nil {
		return nil, []string{fmt.Sprintf("policy %s: target cohort: %v", policy.Name, err)}
	}

	sourceMembers, err := e.ds.ListCohortMembers(ctx, policy.SourceCohortID)
	if err != nil {
		return nil, []string{fmt.Sprintf("policy %s: source members: %v", policy.Name, err)}
	}
	targetMembers, err := e.ds.ListCohortMembers(ctx, policy.TargetCohortID)
	if err != nil {
		return nil, []string{fmt.Sprintf("policy %s: target members: %v", policy.Name, err)}
	}

	// A policy's own seed, when set, pins its output regardless of the
	// seed the run was invoked with.
	seed := worldSeed
	if policy.WorldSeed != "" {
		seed = policy.WorldSeed
	}

	detail := &PolicyDetail{
		PolicyName:   policy.Name,
		SourceCohort: source.Name,
		TargetCohort: target.Name,
	}

	for _, sm := range sourceMembers {
		for _, tm := range targetMembers {
			if sm.PersonID == tm.PersonID {
				continue
			}
			created, err := e.evaluatePair(ctx, policy, seed, sm.PersonID, tm.PersonID, dryRun)
			if err != nil {
				errs = append(errs, fmt.Sprintf("policy %s: pair %s -> %s: %v", policy.Name, sm.PersonID, tm.PersonID, err))
				e.stats.RecordError()
				continue
			}
			if created {
				detail.RelationshipsGenerated++
			}
		}
	}

	if !dryRun && !policy.Executed {
		if err := e.ds.MarkPolicyExecuted(ctx, policy.ID); err != nil {
			errs = append(errs, fmt.Sprintf("policy %s: mark executed: %v", policy.Name, err))
		}
	}

	return detail, errs
}

// evaluatePair draws the pair's deterministic outcome and, when
// accepted and not already present, persists the relation.
func (e *Engine) evaluatePair(ctx context.Context, policy *model.SeedingPolicy, seed, fromID, toID string, dryRun bool) (bool, error) {
	if _, err := e.ds.GetPerson(ctx, fromID); err != nil {
		return false, err
	}
	if _, err := e.ds.GetPerson(ctx, toID); err != nil {
		return false, err
	}

	rng := PairRNG(seed, policy.ID, fromID, toID)

	// Bernoulli trial first, then the score draw, so the score is
	// reproducible independent of whether earlier pairs were accepted.
	if rng.Float64() >= policy.Probability {
		return false, nil
	}
	score := policy.ScoreMin + rng.Float64()*(policy.ScoreMax-policy.ScoreMin)

	exists, err := e.ds.RelationExists(ctx, fromID, toID, policy.Domain)
	if err != nil {
		return false, err
	}
	if exists {
		e.stats.RecordSkip()
		return false, nil
	}

	if dryRun {
		e.stats.RecordCreate()
		return true, nil
	}

	rel := &model.PersonRelation{
		ID:           uuid.New().String(),
		FromPersonID: fromID,
		ToPersonID:   toID,
		Domain:       policy.Domain,
		Kind:         kindForDomain(policy.Domain),
		Score:        score,
		Weight:       score / model.RelationScoreMax,
		Provenance:   "policy:" + policy.ID,
		PolicyID:     policy.ID,
		CreatedAt:    e.now(),
	}
	if err := e.ds.InsertRelation(ctx, rel); err != nil {
		return false, err
	}
	e.stats.RecordCreate()
	return true, nil
}

// PairRNG derives the pair's PRNG from the world seed, policy id, and
// both person ids. The seed string is hashed and the first 8 bytes feed
// a seeded source.
func PairRNG(worldSeed, policyID, fromID, toID string) *rand.Rand {
	h := sha256.Sum256([]byte(worldSeed + "|" + policyID + "|" + fromID + "|" + toID))
	seed := int64(binary.BigEndian.Uint64(h[:8]))
	return rand.New(rand.NewSource(seed))
}

// kindForDomain maps a policy domain to the baseline relation kind it
// seeds.
func kindForDomain(d model.Domain) string {
	switch d {
	case model.DomainKinship:
		return model.KindKinship
	case model.DomainWork:
		return model.KindPatronage
	default:
		return model.KindFriendship
	}
}
