package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/messiahcarey/deer-river/internal/model"
	"github.com/messiahcarey/deer-river/internal/tracing"
)

// Postgres implements Store backed by PostgreSQL. Score and relation
// writes use ON CONFLICT upserts so concurrent recomputes of the same
// row cannot produce lost updates or duplicates.
type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db, logger: logger}, nil
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(db *sql.DB, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, logger: logger}
}

// DB exposes the underlying pool for health checks.
func (p *Postgres) DB() *sql.DB {
	return p.db
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// GetPerson returns a person with faction memberships populated.
func (p *Postgres) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	ctx, end := tracing.StartDBSpan(ctx, "people", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	const q = `
		SELECT id, name, species, age, occupation,
		       COALESCE(household_id, ''), COALESCE(workplace_id, ''),
		       COALESCE(workplace_type, ''), created_at
		FROM people WHERE id = $1
	`
	var person model.Person
	err = p.db.QueryRowContext(ctx, q, id).Scan(
		&person.ID, &person.Name, &person.Species, &person.Age,
		&person.Occupation, &person.HouseholdID, &person.WorkplaceID,
		&person.WorkplaceType, &person.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = model.ErrPersonNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get person %s: %w", id, err)
	}

	person.Memberships, err = p.listMemberships(ctx, id)
	if err != nil {
		return nil, err
	}
	return &person, nil
}

func (p *Postgres) listMemberships(ctx context.Context, personID string) ([]model.FactionMembership, error) {
	const q = `
		SELECT fm.person_id, fm.faction_id, f.name, fm.role,
		       fm.activity_level, fm.benefit_level, fm.alignment,
		       fm.joined_at, fm.left_at
		FROM faction_memberships fm
		JOIN factions f ON f.id = fm.faction_id
		WHERE fm.person_id = $1
		ORDER BY fm.joined_at
	`
	rows, err := p.db.QueryContext(ctx, q, personID)
	if err != nil {
		return nil, fmt.Errorf("list memberships for %s: %w", personID, err)
	}
	defer rows.Close()

	var memberships []model.FactionMembership
	for rows.Next() {
		var m model.FactionMembership
		var leftAt sql.NullTime
		if err := rows.Scan(&m.PersonID, &m.FactionID, &m.FactionName, &m.Role,
			&m.ActivityLevel, &m.BenefitLevel, &m.Alignment,
			&m.JoinedAt, &leftAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		if leftAt.Valid {
			t := leftAt.Time
			m.LeftAt = &t
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// ListPersonIDs returns all person ids.
func (p *Postgres) ListPersonIDs(ctx context.Context) ([]string, error) {
	ctx, end := tracing.StartDBSpan(ctx, "people", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	rows, err := p.db.QueryContext(ctx, `SELECT id FROM people ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list person ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan person id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPeopleByHousehold returns all people sharing a household, with
// memberships populated.
func (p *Postgres) ListPeopleByHousehold(ctx context.Context, householdID string) ([]model.Person, error) {
	ctx, end := tracing.StartDBSpan(ctx, "people", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	const q = `SELECT id FROM people WHERE household_id = $1 ORDER BY id`
	rows, err := p.db.QueryContext(ctx, q, householdID)
	if err != nil {
		return nil, fmt.Errorf("list household %s: %w", householdID, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan household member: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	people := make([]model.Person, 0, len(ids))
	for _, id := range ids {
		person, perr := p.GetPerson(ctx, id)
		if perr != nil {
			err = perr
			return nil, err
		}
		people = append(people, *person)
	}
	return people, nil
}

// GetFaction returns a faction by id.
func (p *Postgres) GetFaction(ctx context.Context, id string) (*model.Faction, error) {
	ctx, end := tracing.StartDBSpan(ctx, "factions", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	var f model.Faction
	err = p.db.QueryRowContext(ctx, `SELECT id, name FROM factions WHERE id = $1`, id).
		Scan(&f.ID, &f.Name)
	if errors.Is(err, sql.ErrNoRows) {
		err = model.ErrFactionNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get faction %s: %w", id, err)
	}
	return &f, nil
}

// ListFactions returns all factions.
func (p *Postgres) ListFactions(ctx context.Context) ([]model.Faction, error) {
	ctx, end := tracing.StartDBSpan(ctx, "factions", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	rows, err := p.db.QueryContext(ctx, `SELECT id, name FROM factions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list factions: %w", err)
	}
	defer rows.Close()

	var factions []model.Faction
	for rows.Next() {
		var f model.Faction
		if err = rows.Scan(&f.ID, &f.Name); err != nil {
			return nil, fmt.Errorf("scan faction: %w", err)
		}
		factions = append(factions, f)
	}
	return factions, rows.Err()
}

// GetCohort returns a cohort by id.
func (p *Postgres) GetCohort(ctx context.Context, id string) (*model.Cohort, error) {
	ctx, end := tracing.StartDBSpan(ctx, "cohorts", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	var c model.Cohort
	err = p.db.QueryRowContext(ctx, `SELECT id, name, COALESCE(color, '') FROM cohorts WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Color)
	if errors.Is(err, sql.ErrNoRows) {
		err = model.ErrCohortNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get cohort %s: %w", id, err)
	}
	return &c, nil
}

// ListCohortMembers returns the members of a cohort.
func (p *Postgres) ListCohortMembers(ctx context.Context, cohortID string) ([]model.CohortMember, error) {
	ctx, end := tracing.StartDBSpan(ctx, "cohort_members", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	const q = `
		SELECT cohort_id, person_id, COALESCE(notes, ''), joined_at
		FROM cohort_members WHERE cohort_id = $1 ORDER BY person_id
	`
	rows, err := p.db.QueryContext(ctx, q, cohortID)
	if err != nil {
		return nil, fmt.Errorf("list cohort members %s: %w", cohortID, err)
	}
	defer rows.Close()

	var members []model.CohortMember
	for rows.Next() {
		var cm model.CohortMember
		if err = rows.Scan(&cm.CohortID, &cm.PersonID, &cm.Notes, &cm.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan cohort member: %w", err)
		}
		members = append(members, cm)
	}
	return members, rows.Err()
}

// ListCohortIDsByPerson returns the ids of cohorts the person belongs to.
func (p *Postgres) ListCohortIDsByPerson(ctx context.Context, personID string) ([]string, error) {
	ctx, end := tracing.StartDBSpan(ctx, "cohort_members", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	const q = `SELECT DISTINCT cohort_id FROM cohort_members WHERE person_id = $1 ORDER BY cohort_id`
	rows, err := p.db.QueryContext(ctx, q, personID)
	if err != nil {
		return nil, fmt.Errorf("list cohorts for %s: %w", personID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan cohort id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListRelationsByPerson returns all relations touching the person in
// either direction.
func (p *Postgres) ListRelationsByPerson(ctx context.Context, personID string) ([]model.PersonRelation, error) {
	ctx, end := tracing.StartDBSpan(ctx, "person_relations", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	const q = `
		SELECT id, from_person_id, to_person_id, domain, kind, score,
		       weight, sentiment, COALESCE(provenance, ''),
		       COALESCE(policy_id, ''), created_at
		FROM person_relations
		WHERE from_person_id = $1 OR to_person_id = $1
		ORDER BY created_at, id
	`
	rows, err := p.db.QueryContext(ctx, q, personID)
	if err != nil {
		return nil, fmt.Errorf("list relations for %s: %w", personID, err)
	}
	defer rows.Close()

	var relations []model.PersonRelation
	for rows.Next() {
		var r model.PersonRelation
		if err = rows.Scan(&r.ID, &r.FromPersonID, &r.ToPersonID, &r.Domain,
			&r.Kind, &r.Score, &r.Weight, &r.Sentiment,
			&r.Provenance, &r.PolicyID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		relations = append(relations, r)
	}
	return relations, rows.Err()
}

// RelationExists reports whether a directed relation exists for the pair
// and domain.
func (p *Postgres) RelationExists(ctx context.Context, fromID, toID string, domain model.Domain) (bool, error) {
	ctx, end := tracing.StartDBSpan(ctx, "person_relations", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	const q = `
		SELECT EXISTS (
			SELECT 1 FROM person_relations
			WHERE from_person_id = $1 AND to_person_id = $2 AND domain = $3
		)
	`
	var exists bool
	err = p.db.QueryRowContext(ctx, q, fromID, toID, domain).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("relation exists check: %w", err)
	}
	return exists, nil
}

// InsertRelation persists a relation. The unique constraint on
// (from, to, domain, policy_id) makes concurrent seeding runs safe; a
// conflicting insert is a no-op.
func (p *Postgres) InsertRelation(ctx context.Context, rel *model.PersonRelation) error {
	ctx, end := tracing.StartDBSpan(ctx, "person_relations", tracing.DBOperationInsert)
	var err error
	defer func() { end(err) }()

	const q = `
		INSERT INTO person_relations
			(id, from_person_id, to_person_id, domain, kind, score,
			 weight, sentiment, provenance, policy_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11)
		ON CONFLICT (from_person_id, to_person_id, domain, policy_id) DO NOTHING
	`
	_, err = p.db.ExecContext(ctx, q, rel.ID, rel.FromPersonID, rel.ToPersonID,
		rel.Domain, rel.Kind, rel.Score, rel.Weight, rel.Sentiment,
		rel.Provenance, rel.PolicyID, rel.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert relation: %w", err)
	}
	return nil
}

// ListActivePolicies returns all active seeding policies.
func (p *Postgres) ListActivePolicies(ctx context.Context) ([]model.SeedingPolicy, error) {
	ctx, end := tracing.StartDBSpan(ctx, "seeding_policies", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	const q = `
		SELECT id, name, source_cohort_id, target_cohort_id, domain,
		       probability, COALESCE(involvement_tier, ''), score_min,
		       score_max, COALESCE(world_seed, ''), active, executed,
		       created_at
		FROM seeding_policies WHERE active ORDER BY created_at, id
	`
	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list active policies: %w", err)
	}
	defer rows.Close()

	var policies []model.SeedingPolicy
	for rows.Next() {
		var pol model.SeedingPolicy
		if err = rows.Scan(&pol.ID, &pol.Name, &pol.SourceCohortID,
			&pol.TargetCohortID, &pol.Domain, &pol.Probability,
			&pol.InvolvementTier, &pol.ScoreMin, &pol.ScoreMax,
			&pol.WorldSeed, &pol.Active, &pol.Executed, &pol.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		policies = append(policies, pol)
	}
	return policies, rows.Err()
}

// GetPolicy returns a seeding policy by id.
func (p *Postgres) GetPolicy(ctx context.Context, id string) (*model.SeedingPolicy, error) {
	ctx, end := tracing.StartDBSpan(ctx, "seeding_policies", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	const q = `
		SELECT id, name, source_cohort_id, target_cohort_id, domain,
		       probability, COALESCE(involvement_tier, ''), score_min,
		       score_max, COALESCE(world_seed, ''), active, executed,
		       created_at
		FROM seeding_policies WHERE id = $1
	`
	var pol model.SeedingPolicy
	err = p.db.QueryRowContext(ctx, q, id).Scan(&pol.ID, &pol.Name,
		&pol.SourceCohortID, &pol.TargetCohortID, &pol.Domain,
		&pol.Probability, &pol.InvolvementTier, &pol.ScoreMin,
		&pol.ScoreMax, &pol.WorldSeed, &pol.Active, &pol.Executed,
		&pol.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrPolicyNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get policy %s: %w", id, err)
	}
	return &pol, nil
}

// CreatePolicy validates and inserts a new policy.
func (p *Postgres) CreatePolicy(ctx context.Context, policy *model.SeedingPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	ctx, end := tracing.StartDBSpan(ctx, "seeding_policies", tracing.DBOperationInsert)
	var err error
	defer func() { end(err) }()

	const q = `
		INSERT INTO seeding_policies
			(id, name, source_cohort_id, target_cohort_id, domain,
			 probability, involvement_tier, score_min, score_max,
			 world_seed, active, executed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13)
	`
	_, err = p.db.ExecContext(ctx, q, policy.ID, policy.Name,
		policy.SourceCohortID, policy.TargetCohortID, policy.Domain,
		policy.Probability, policy.InvolvementTier, policy.ScoreMin,
		policy.ScoreMax, policy.WorldSeed, policy.Active, policy.Executed,
		policy.CreatedAt)
	if err != nil {
		return fmt.Errorf("create policy: %w", err)
	}
	return nil
}

// UpdatePolicy replaces a stored policy inside a transaction. Executed
// policies are frozen; mutation returns model.ErrPolicyExecuted.
func (p *Postgres) UpdatePolicy(ctx context.Context, policy *model.SeedingPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	ctx, end := tracing.StartDBSpan(ctx, "seeding_policies", tracing.DBOperationUpdate)
	var err error
	defer func() { end(err) }()

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin policy update: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			p.logger.Warn("failed to rollback policy update", "error", rbErr)
		}
	}()

	var executed bool
	err = tx.QueryRowContext(ctx,
		`SELECT executed FROM seeding_policies WHERE id = $1 FOR UPDATE`,
		policy.ID).Scan(&executed)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrPolicyNotFound
		return err
	}
	if err != nil {
		return fmt.Errorf("lock policy %s: %w", policy.ID, err)
	}
	if executed {
		err = model.ErrPolicyExecuted
		return err
	}

	const q = `
		UPDATE seeding_policies SET
			name = $2, source_cohort_id = $3, target_cohort_id = $4,
			domain = $5, probability = $6, involvement_tier = $7,
			score_min = $8, score_max = $9, world_seed = NULLIF($10, ''),
			active = $11
		WHERE id = $1
	`
	_, err = tx.ExecContext(ctx, q, policy.ID, policy.Name,
		policy.SourceCohortID, policy.TargetCohortID, policy.Domain,
		policy.Probability, policy.InvolvementTier, policy.ScoreMin,
		policy.ScoreMax, policy.WorldSeed, policy.Active)
	if err != nil {
		return fmt.Errorf("update policy %s: %w", policy.ID, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit policy update: %w", err)
	}
	return nil
}

// MarkPolicyExecuted freezes a policy after its first persisting run.
func (p *Postgres) MarkPolicyExecuted(ctx context.Context, policyID string) error {
	ctx, end := tracing.StartDBSpan(ctx, "seeding_policies", tracing.DBOperationUpdate)
	var err error
	defer func() { end(err) }()

	result, err := p.db.ExecContext(ctx,
		`UPDATE seeding_policies SET executed = TRUE WHERE id = $1`, policyID)
	if err != nil {
		return fmt.Errorf("mark policy executed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark policy executed: %w", err)
	}
	if affected == 0 {
		err = ErrPolicyNotFound
		return err
	}
	return nil
}

// ListActiveEvents returns active events whose window covers the
// instant, with effects populated.
func (p *Postgres) ListActiveEvents(ctx context.Context, at time.Time) ([]model.Event, error) {
	ctx, end := tracing.StartDBSpan(ctx, "events", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	const q = `
		SELECT id, name, type, starts_at, ends_at, COALESCE(world_seed, ''), active
		FROM events
		WHERE active AND starts_at <= $1 AND (ends_at IS NULL OR ends_at >= $1)
		ORDER BY starts_at, id
	`
	rows, err := p.db.QueryContext(ctx, q, at)
	if err != nil {
		return nil, fmt.Errorf("list active events: %w", err)
	}
	var events []model.Event
	for rows.Next() {
		var e model.Event
		var endsAt sql.NullTime
		if err = rows.Scan(&e.ID, &e.Name, &e.Type, &e.StartsAt, &endsAt,
			&e.WorldSeed, &e.Active); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if endsAt.Valid {
			t := endsAt.Time
			e.EndsAt = &t
		}
		events = append(events, e)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range events {
		events[i].Effects, err = p.listEffects(ctx, events[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return events, nil
}

func (p *Postgres) listEffects(ctx context.Context, eventID string) ([]model.EventEffect, error) {
	const q = `
		SELECT id, event_id, scope, domain, type, value,
		       COALESCE(decay_per_day, 0),
		       COALESCE(source_cohort_id, ''), COALESCE(target_cohort_id, ''),
		       COALESCE(from_person_id, ''), COALESCE(to_person_id, '')
		FROM event_effects WHERE event_id = $1 ORDER BY id
	`
	rows, err := p.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list effects for %s: %w", eventID, err)
	}
	defer rows.Close()

	var effects []model.EventEffect
	for rows.Next() {
		var ef model.EventEffect
		var domain sql.NullString
		if err := rows.Scan(&ef.ID, &ef.EventID, &ef.Scope, &domain,
			&ef.Type, &ef.Value, &ef.DecayPerDay,
			&ef.SourceCohortID, &ef.TargetCohortID,
			&ef.FromPersonID, &ef.ToPersonID); err != nil {
			return nil, fmt.Errorf("scan effect: %w", err)
		}
		if domain.Valid && domain.String != "" {
			d := model.Domain(domain.String)
			ef.Domain = &d
		}
		effects = append(effects, ef)
	}
	return effects, rows.Err()
}

// CountEventsOverlapping returns the number of events whose window
// intersects [from, to].
func (p *Postgres) CountEventsOverlapping(ctx context.Context, from, to time.Time) (int, error) {
	ctx, end := tracing.StartDBSpan(ctx, "events", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	const q = `
		SELECT COUNT(*) FROM events
		WHERE starts_at <= $2 AND (ends_at IS NULL OR ends_at >= $1)
	`
	var count int
	err = p.db.QueryRowContext(ctx, q, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// UpsertInvolvement atomically replaces the involvement score row for a
// person.
func (p *Postgres) UpsertInvolvement(ctx context.Context, score *model.InvolvementScore) error {
	ctx, end := tracing.StartDBSpan(ctx, "involvement_scores", tracing.DBOperationInsert)
	var err error
	defer func() { end(err) }()

	const q = `
		INSERT INTO involvement_scores
			(person_id, score, role_activity, event_participation,
			 network_centrality, initiative, reliability, window_days,
			 computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (person_id) DO UPDATE SET
			score = EXCLUDED.score,
			role_activity = EXCLUDED.role_activity,
			event_participation = EXCLUDED.event_participation,
			network_centrality = EXCLUDED.network_centrality,
			initiative = EXCLUDED.initiative,
			reliability = EXCLUDED.reliability,
			window_days = EXCLUDED.window_days,
			computed_at = EXCLUDED.computed_at
	`
	_, err = p.db.ExecContext(ctx, q, score.PersonID, score.Score,
		score.Breakdown.RoleActivity, score.Breakdown.EventParticipation,
		score.Breakdown.NetworkCentrality, score.Breakdown.Initiative,
		score.Breakdown.Reliability, score.WindowDays, score.ComputedAt)
	if err != nil {
		return fmt.Errorf("upsert involvement for %s: %w", score.PersonID, err)
	}
	return nil
}

// GetInvolvement returns the stored involvement score for a person.
func (p *Postgres) GetInvolvement(ctx context.Context, personID string) (*model.InvolvementScore, error) {
	ctx, end := tracing.StartDBSpan(ctx, "involvement_scores", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	const q = `
		SELECT person_id, score, role_activity, event_participation,
		       network_centrality, initiative, reliability, window_days,
		       computed_at
		FROM involvement_scores WHERE person_id = $1
	`
	var s model.InvolvementScore
	err = p.db.QueryRowContext(ctx, q, personID).Scan(&s.PersonID, &s.Score,
		&s.Breakdown.RoleActivity, &s.Breakdown.EventParticipation,
		&s.Breakdown.NetworkCentrality, &s.Breakdown.Initiative,
		&s.Breakdown.Reliability, &s.WindowDays, &s.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrScoreNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get involvement for %s: %w", personID, err)
	}
	return &s, nil
}

// ListInvolvement returns all stored involvement scores.
func (p *Postgres) ListInvolvement(ctx context.Context) ([]model.InvolvementScore, error) {
	ctx, end := tracing.StartDBSpan(ctx, "involvement_scores", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	const q = `
		SELECT person_id, score, role_activity, event_participation,
		       network_centrality, initiative, reliability, window_days,
		       computed_at
		FROM involvement_scores ORDER BY person_id
	`
	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list involvement: %w", err)
	}
	defer rows.Close()

	var scores []model.InvolvementScore
	for rows.Next() {
		var s model.InvolvementScore
		if err = rows.Scan(&s.PersonID, &s.Score,
			&s.Breakdown.RoleActivity, &s.Breakdown.EventParticipation,
			&s.Breakdown.NetworkCentrality, &s.Breakdown.Initiative,
			&s.Breakdown.Reliability, &s.WindowDays, &s.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan involvement: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// UpsertLoyalty atomically replaces the loyalty score row for a
// (person, target) pair.
func (p *Postgres) UpsertLoyalty(ctx context.Context, score *model.LoyaltyScore) error {
	ctx, end := tracing.StartDBSpan(ctx, "loyalty_scores", tracing.DBOperationInsert)
	var err error
	defer func() { end(err) }()

	const q = `
		INSERT INTO loyalty_scores
			(person_id, target_id, target_kind, score, identity_fit,
			 benefit_flow, shared_history, pressure_cost, satisfaction,
			 window_days, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (person_id, target_id) DO UPDATE SET
			target_kind = EXCLUDED.target_kind,
			score = EXCLUDED.score,
			identity_fit = EXCLUDED.identity_fit,
			benefit_flow = EXCLUDED.benefit_flow,
			shared_history = EXCLUDED.shared_history,
			pressure_cost = EXCLUDED.pressure_cost,
			satisfaction = EXCLUDED.satisfaction,
			window_days = EXCLUDED.window_days,
			computed_at = EXCLUDED.computed_at
	`
	_, err = p.db.ExecContext(ctx, q, score.PersonID, score.TargetID,
		score.TargetKind, score.Score, score.Breakdown.IdentityFit,
		score.Breakdown.BenefitFlow, score.Breakdown.SharedHistory,
		score.Breakdown.PressureCost, score.Breakdown.Satisfaction,
		score.WindowDays, score.ComputedAt)
	if err != nil {
		return fmt.Errorf("upsert loyalty for %s -> %s: %w", score.PersonID, score.TargetID, err)
	}
	return nil
}

// GetLoyalty returns the stored loyalty score for a (person, target) pair.
func (p *Postgres) GetLoyalty(ctx context.Context, personID, targetID string) (*model.LoyaltyScore, error) {
	ctx, end := tracing.StartDBSpan(ctx, "loyalty_scores", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	const q = `
		SELECT person_id, target_id, target_kind, score, identity_fit,
		       benefit_flow, shared_history, pressure_cost, satisfaction,
		       window_days, computed_at
		FROM loyalty_scores WHERE person_id = $1 AND target_id = $2
	`
	var s model.LoyaltyScore
	err = p.db.QueryRowContext(ctx, q, personID, targetID).Scan(&s.PersonID,
		&s.TargetID, &s.TargetKind, &s.Score, &s.Breakdown.IdentityFit,
		&s.Breakdown.BenefitFlow, &s.Breakdown.SharedHistory,
		&s.Breakdown.PressureCost, &s.Breakdown.Satisfaction,
		&s.WindowDays, &s.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrScoreNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get loyalty for %s -> %s: %w", personID, targetID, err)
	}
	return &s, nil
}

// ListLoyaltyByPerson returns all stored loyalty scores for a person.
func (p *Postgres) ListLoyaltyByPerson(ctx context.Context, personID string) ([]model.LoyaltyScore, error) {
	ctx, end := tracing.StartDBSpan(ctx, "loyalty_scores", tracing.DBOperationQuery)
	var err error
	defer func() { end(err) }()

	const q = `
		SELECT person_id, target_id, target_kind, score, identity_fit,
		       benefit_flow, shared_history, pressure_cost, satisfaction,
		       window_days, computed_at
		FROM loyalty_scores WHERE person_id = $1 ORDER BY score DESC, target_id
	`
	rows, err := p.db.QueryContext(ctx, q, personID)
	if err != nil {
		return nil, fmt.Errorf("list loyalty for %s: %w", personID, err)
	}
	defer rows.Close()

	var scores []model.LoyaltyScore
	for rows.Next() {
		var s model.LoyaltyScore
		if err = rows.Scan(&s.PersonID, &s.TargetID, &s.TargetKind, &s.Score,
			&s.Breakdown.IdentityFit, &s.Breakdown.BenefitFlow,
			&s.Breakdown.SharedHistory, &s.Breakdown.PressureCost,
			&s.Breakdown.Satisfaction, &s.WindowDays, &s.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan loyalty: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}
