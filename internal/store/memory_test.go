package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/messiahcarey/deer-river/internal/model"
)

func TestMemory_GetPersonNotFound(t *testing.T) {
	mem := NewMemory()
	if _, err := mem.GetPerson(context.Background(), "p-ghost"); !errors.Is(err, model.ErrPersonNotFound) {
		t.Errorf("expected ErrPersonNotFound, got %v", err)
	}
}

func TestMemory_PersonRoundTrip(t *testing.T) {
	mem := NewMemory()
	mem.AddPerson(model.Person{ID: "p-1", Name: "Alva", Species: "human", Age: 34})

	person, err := mem.GetPerson(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("GetPerson: %v", err)
	}
	if person.Name != "Alva" {
		t.Errorf("expected name Alva, got %s", person.Name)
	}

	ids, err := mem.ListPersonIDs(context.Background())
	if err != nil {
		t.Fatalf("ListPersonIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != "p-1" {
		t.Errorf("expected single id p-1, got %v", ids)
	}
}

func TestMemory_InvolvementUpsertReplaces(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	score := &model.InvolvementScore{PersonID: "p-1", Score: 0.4, WindowDays: 90, ComputedAt: time.Now()}
	if err := mem.UpsertInvolvement(ctx, score); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	score.Score = 0.7
	if err := mem.UpsertInvolvement(ctx, score); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := mem.GetInvolvement(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetInvolvement: %v", err)
	}
	if got.Score != 0.7 {
		t.Errorf("expected replaced score 0.7, got %v", got.Score)
	}

	if _, err := mem.GetInvolvement(ctx, "p-2"); !errors.Is(err, ErrScoreNotFound) {
		t.Errorf("expected ErrScoreNotFound, got %v", err)
	}
}

func TestMemory_LoyaltyPerPair(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	for _, target := range []string{"f-guild", "p-2"} {
		s := &model.LoyaltyScore{PersonID: "p-1", TargetID: target, TargetKind: "faction", Score: 0.5}
		if err := mem.UpsertLoyalty(ctx, s); err != nil {
			t.Fatalf("UpsertLoyalty %s: %v", target, err)
		}
	}

	got, err := mem.GetLoyalty(ctx, "p-1", "f-guild")
	if err != nil {
		t.Fatalf("GetLoyalty: %v", err)
	}
	if got.TargetID != "f-guild" {
		t.Errorf("expected target f-guild, got %s", got.TargetID)
	}

	all, err := mem.ListLoyaltyByPerson(ctx, "p-1")
	if err != nil {
		t.Fatalf("ListLoyaltyByPerson: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 loyalty rows, got %d", len(all))
	}

	if _, err := mem.GetLoyalty(ctx, "p-1", "p-ghost"); !errors.Is(err, ErrScoreNotFound) {
		t.Errorf("expected ErrScoreNotFound, got %v", err)
	}
}

func TestMemory_PolicyFreeze(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	policy := &model.SeedingPolicy{
		ID:             "pol-1",
		Name:           "Harvest Pact",
		SourceCohortID: "c-1",
		TargetCohortID: "c-2",
		Domain:         model.DomainWork,
		Probability:    0.5,
		ScoreMin:       20,
		ScoreMax:       60,
		Active:         true,
		CreatedAt:      time.Now(),
	}
	if err := mem.CreatePolicy(ctx, policy); err != nil {
		t.Fatalf("CreatePolicy: %v", err)
	}

	policy.Name = "Harvest Pact v2"
	if err := mem.UpdatePolicy(ctx, policy); err != nil {
		t.Fatalf("UpdatePolicy: %v", err)
	}

	if err := mem.MarkPolicyExecuted(ctx, "pol-1"); err != nil {
		t.Fatalf("MarkPolicyExecuted: %v", err)
	}

	policy.Name = "Mutated"
	if err := mem.UpdatePolicy(ctx, policy); !errors.Is(err, model.ErrPolicyExecuted) {
		t.Errorf("expected ErrPolicyExecuted, got %v", err)
	}

	got, err := mem.GetPolicy(ctx, "pol-1")
	if err != nil {
		t.Fatalf("GetPolicy: %v", err)
	}
	if got.Name != "Harvest Pact v2" {
		t.Errorf("expected frozen name, got %s", got.Name)
	}

	if err := mem.MarkPolicyExecuted(ctx, "pol-ghost"); !errors.Is(err, ErrPolicyNotFound) {
		t.Errorf("expected ErrPolicyNotFound, got %v", err)
	}
}

func TestMemory_RelationExists(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	rel := &model.PersonRelation{
		ID:           "r-1",
		FromPersonID: "p-1",
		ToPersonID:   "p-2",
		Domain:       model.DomainKinship,
		Kind:         "friend",
		Score:        50,
	}
	if err := mem.InsertRelation(ctx, rel); err != nil {
		t.Fatalf("InsertRelation: %v", err)
	}

	tests := []struct {
		name   string
		from   string
		to     string
		domain model.Domain
		want   bool
	}{
		{"existing pair", "p-1", "p-2", model.DomainKinship, true},
		{"reverse direction", "p-2", "p-1", model.DomainKinship, false},
		{"other domain", "p-1", "p-2", model.DomainWork, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mem.RelationExists(ctx, tt.from, tt.to, tt.domain)
			if err != nil {
				t.Fatalf("RelationExists: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMemory_ListActiveEventsWindow(t *testing.T) {
	mem := NewMemory()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -10)
	future := now.AddDate(0, 0, 10)

	mem.AddEvent(model.Event{ID: "ev-open", Name: "Festival", Type: "festival", StartsAt: past, Active: true})
	mem.AddEvent(model.Event{ID: "ev-closed", Name: "Old Feud", Type: "feud", StartsAt: past, EndsAt: &past, Active: true})
	mem.AddEvent(model.Event{ID: "ev-future", Name: "Harvest", Type: "festival", StartsAt: future, Active: true})
	mem.AddEvent(model.Event{ID: "ev-inactive", Name: "Cancelled", Type: "festival", StartsAt: past, Active: false})

	events, err := mem.ListActiveEvents(context.Background(), now)
	if err != nil {
		t.Fatalf("ListActiveEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 active event, got %d", len(events))
	}
	if events[0].ID != "ev-open" {
		t.Errorf("expected ev-open, got %s", events[0].ID)
	}
}
