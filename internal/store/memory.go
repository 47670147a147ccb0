package store

import (
	"context"
	"sync"
	"time"

	"github.com/messiahcarey/deer-river/internal/model"
)

// Memory is an in-memory implementation of Store. Thread-safe via
// RWMutex. Used by tests and local runs without a database.
type Memory struct {
	mu            sync.RWMutex
	people        map[string]*model.Person
	factions      map[string]*model.Faction
	cohorts       map[string]*model.Cohort
	cohortMembers map[string][]model.CohortMember // cohortID -> members
	relations     []model.PersonRelation
	policies      map[string]*model.SeedingPolicy
	events        map[string]*model.Event
	involvement   map[string]model.InvolvementScore          // personID -> score
	loyalty       map[string]map[string]model.LoyaltyScore   // personID -> targetID -> score
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		people:        make(map[string]*model.Person),
		factions:      make(map[string]*model.Faction),
		cohorts:       make(map[string]*model.Cohort),
		cohortMembers: make(map[string][]model.CohortMember),
		policies:      make(map[string]*model.SeedingPolicy),
		events:        make(map[string]*model.Event),
		involvement:   make(map[string]model.InvolvementScore),
		loyalty:       make(map[string]map[string]model.LoyaltyScore),
	}
}

// AddPerson adds or replaces a person.
func (m *Memory) AddPerson(p model.Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.people[p.ID] = &cp
}

// RemovePerson deletes a person, simulating a mid-batch deletion.
func (m *Memory) RemovePerson(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.people, id)
}

// AddFaction adds or replaces a faction.
func (m *Memory) AddFaction(f model.Faction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cf := f
	m.factions[f.ID] = &cf
}

// AddCohort adds or replaces a cohort.
func (m *Memory) AddCohort(c model.Cohort) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cc := c
	m.cohorts[c.ID] = &cc
}

// AddCohortMember appends a cohort membership.
func (m *Memory) AddCohortMember(cm model.CohortMember) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cohortMembers[cm.CohortID] = append(m.cohortMembers[cm.CohortID], cm)
}

// AddRelation appends a relation directly, bypassing idempotence checks.
func (m *Memory) AddRelation(r model.PersonRelation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relations = append(m.relations, r)
}

// AddEvent adds or replaces an event with its effects.
func (m *Memory) AddEvent(e model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ce := e
	m.events[e.ID] = &ce
}

// GetPerson returns a copy of the person with memberships populated.
func (m *Memory) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.people[id]
	if !ok {
		return nil, model.ErrPersonNotFound
	}
	cp := *p
	cp.Memberships = append([]model.FactionMembership(nil), p.Memberships...)
	return &cp, nil
}

// ListPersonIDs returns all person ids.
func (m *Memory) ListPersonIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.people))
	for id := range m.people {
		ids = append(ids, id)
	}
	return ids, nil
}

// ListPeopleByHousehold returns all people sharing a household.
func (m *Memory) ListPeopleByHousehold(ctx context.Context, householdID string) ([]model.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []model.Person
	for _, p := range m.people {
		if p.HouseholdID == householdID {
			cp := *p
			cp.Memberships = append([]model.FactionMembership(nil), p.Memberships...)
			result = append(result, cp)
		}
	}
	return result, nil
}

// GetFaction returns a copy of the faction.
func (m *Memory) GetFaction(ctx context.Context, id string) (*model.Faction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.factions[id]
	if !ok {
		return nil, model.ErrFactionNotFound
	}
	cf := *f
	return &cf, nil
}

// ListFactions returns all factions.
func (m *Memory) ListFactions(ctx context.Context) ([]model.Faction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]model.Faction, 0, len(m.factions))
	for _, f := range m.factions {
		result = append(result, *f)
	}
	return result, nil
}

// GetCohort returns a copy of the cohort.
func (m *Memory) GetCohort(ctx context.Context, id string) (*model.Cohort, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cohorts[id]
	if !ok {
		return nil, model.ErrCohortNotFound
	}
	cc := *c
	return &cc, nil
}

// ListCohortMembers returns the members of a cohort.
func (m *Memory) ListCohortMembers(ctx context.Context, cohortID string) ([]model.CohortMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := m.cohortMembers[cohortID]
	result := make([]model.CohortMember, len(members))
	copy(result, members)
	return result, nil
}

// ListCohortIDsByPerson returns the ids of cohorts the person belongs to.
func (m *Memory) ListCohortIDsByPerson(ctx context.Context, personID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for cohortID, members := range m.cohortMembers {
		for _, cm := range members {
			if cm.PersonID == personID {
				ids = append(ids, cohortID)
				break
			}
		}
	}
	return ids, nil
}

// ListRelationsByPerson returns all relations touching the person.
func (m *Memory) ListRelationsByPerson(ctx context.Context, personID string) ([]model.PersonRelation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []model.PersonRelation
	for _, r := range m.relations {
		if r.Touches(personID) {
			result = append(result, r)
		}
	}
	return result, nil
}

// RelationExists reports whether a directed relation exists for the pair
// and domain.
func (m *Memory) RelationExists(ctx context.Context, fromID, toID string, domain model.Domain) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.relations {
		if r.FromPersonID == fromID && r.ToPersonID == toID && r.Domain == domain {
			return true, nil
		}
	}
	return false, nil
}

// InsertRelation appends a relation.
func (m *Memory) InsertRelation(ctx context.Context, rel *model.PersonRelation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relations = append(m.relations, *rel)
	return nil
}

// RelationCount returns the total number of stored relations.
func (m *Memory) RelationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.relations)
}

// AllRelations returns a copy of every stored relation.
func (m *Memory) AllRelations() []model.PersonRelation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]model.PersonRelation, len(m.relations))
	copy(result, m.relations)
	return result
}

// ListActivePolicies returns all active policies.
func (m *Memory) ListActivePolicies(ctx context.Context) ([]model.SeedingPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []model.SeedingPolicy
	for _, p := range m.policies {
		if p.Active {
			result = append(result, *p)
		}
	}
	return result, nil
}

// GetPolicy returns a copy of the policy.
func (m *Memory) GetPolicy(ctx context.Context, id string) (*model.SeedingPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[id]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	cp := *p
	return &cp, nil
}

// CreatePolicy validates and stores a new policy.
func (m *Memory) CreatePolicy(ctx context.Context, policy *model.SeedingPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *policy
	m.policies[policy.ID] = &cp
	return nil
}

// UpdatePolicy replaces a stored policy. Executed policies are frozen:
// mutation returns model.ErrPolicyExecuted.
func (m *Memory) UpdatePolicy(ctx context.Context, policy *model.SeedingPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.policies[policy.ID]
	if !ok {
		return ErrPolicyNotFound
	}
	if existing.Executed {
		return model.ErrPolicyExecuted
	}
	cp := *policy
	m.policies[policy.ID] = &cp
	return nil
}

// MarkPolicyExecuted freezes a policy after its first persisting run.
func (m *Memory) MarkPolicyExecuted(ctx context.Context, policyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[policyID]
	if !ok {
		return ErrPolicyNotFound
	}
	p.Executed = true
	return nil
}

// ListActiveEvents returns active events whose window covers the instant,
// with effects populated.
func (m *Memory) ListActiveEvents(ctx context.Context, at time.Time) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []model.Event
	for _, e := range m.events {
		if e.Active && e.InWindow(at) {
			ce := *e
			ce.Effects = append([]model.EventEffect(nil), e.Effects...)
			result = append(result, ce)
		}
	}
	return result, nil
}

// CountEventsOverlapping returns the number of events whose window
// intersects [from, to].
func (m *Memory) CountEventsOverlapping(ctx context.Context, from, to time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int
	for _, e := range m.events {
		if e.StartsAt.After(to) {
			continue
		}
		if e.EndsAt != nil && e.EndsAt.Before(from) {
			continue
		}
		count++
	}
	return count, nil
}

// UpsertInvolvement stores one involvement score per person, replacing
// any prior value.
func (m *Memory) UpsertInvolvement(ctx context.Context, score *model.InvolvementScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.involvement[score.PersonID] = *score
	return nil
}

// GetInvolvement returns the stored involvement score for a person.
func (m *Memory) GetInvolvement(ctx context.Context, personID string) (*model.InvolvementScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	score, ok := m.involvement[personID]
	if !ok {
		return nil, ErrScoreNotFound
	}
	return &score, nil
}

// ListInvolvement returns all stored involvement scores.
func (m *Memory) ListInvolvement(ctx context.Context) ([]model.InvolvementScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]model.InvolvementScore, 0, len(m.involvement))
	for _, s := range m.involvement {
		result = append(result, s)
	}
	return result, nil
}

// UpsertLoyalty stores one loyalty score per (person, target) pair,
// replacing any prior value.
func (m *Memory) UpsertLoyalty(ctx context.Context, score *model.LoyaltyScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byTarget, ok := m.loyalty[score.PersonID]
	if !ok {
		byTarget = make(map[string]model.LoyaltyScore)
		m.loyalty[score.PersonID] = byTarget
	}
	byTarget[score.TargetID] = *score
	return nil
}

// GetLoyalty returns the stored loyalty score for a (person, target) pair.
func (m *Memory) GetLoyalty(ctx context.Context, personID, targetID string) (*model.LoyaltyScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	score, ok := m.loyalty[personID][targetID]
	if !ok {
		return nil, ErrScoreNotFound
	}
	return &score, nil
}

// ListLoyaltyByPerson returns all stored loyalty scores for a person.
func (m *Memory) ListLoyaltyByPerson(ctx context.Context, personID string) ([]model.LoyaltyScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byTarget := m.loyalty[personID]
	result := make([]model.LoyaltyScore, 0, len(byTarget))
	for _, s := range byTarget {
		result = append(result, s)
	}
	return result, nil
}
