// Package store provides the repository layer for the social engine: an
// in-memory implementation for tests and local runs, a Postgres
// implementation for production, and an optional Redis read-through
// cache for computed scores.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/messiahcarey/deer-river/internal/model"
)

// Store-level errors.
var (
	ErrScoreNotFound  = errors.New("score not found")
	ErrPolicyNotFound = errors.New("policy not found")
	ErrEventNotFound  = errors.New("event not found")
)

// Store is the full repository surface the engines read and write
// through. The scorers and engines each declare the narrow slice they
// need; both Memory and Postgres satisfy all of them.
type Store interface {
	// People and groups.
	GetPerson(ctx context.Context, id string) (*model.Person, error)
	ListPersonIDs(ctx context.Context) ([]string, error)
	ListPeopleByHousehold(ctx context.Context, householdID string) ([]model.Person, error)
	GetFaction(ctx context.Context, id string) (*model.Faction, error)
	ListFactions(ctx context.Context) ([]model.Faction, error)
	GetCohort(ctx context.Context, id string) (*model.Cohort, error)
	ListCohortMembers(ctx context.Context, cohortID string) ([]model.CohortMember, error)
	ListCohortIDsByPerson(ctx context.Context, personID string) ([]string, error)

	// Relationships.
	ListRelationsByPerson(ctx context.Context, personID string) ([]model.PersonRelation, error)
	RelationExists(ctx context.Context, fromID, toID string, domain model.Domain) (bool, error)
	InsertRelation(ctx context.Context, rel *model.PersonRelation) error

	// Seeding policies.
	ListActivePolicies(ctx context.Context) ([]model.SeedingPolicy, error)
	GetPolicy(ctx context.Context, id string) (*model.SeedingPolicy, error)
	CreatePolicy(ctx context.Context, policy *model.SeedingPolicy) error
	UpdatePolicy(ctx context.Context, policy *model.SeedingPolicy) error
	MarkPolicyExecuted(ctx context.Context, policyID string) error

	// Events.
	ListActiveEvents(ctx context.Context, at time.Time) ([]model.Event, error)
	CountEventsOverlapping(ctx context.Context, from, to time.Time) (int, error)

	// Computed scores.
	UpsertInvolvement(ctx context.Context, score *model.InvolvementScore) error
	GetInvolvement(ctx context.Context, personID string) (*model.InvolvementScore, error)
	ListInvolvement(ctx context.Context) ([]model.InvolvementScore, error)
	UpsertLoyalty(ctx context.Context, score *model.LoyaltyScore) error
	GetLoyalty(ctx context.Context, personID, targetID string) (*model.LoyaltyScore, error)
	ListLoyaltyByPerson(ctx context.Context, personID string) ([]model.LoyaltyScore, error)
}
