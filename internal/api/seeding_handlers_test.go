package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/messiahcarey/deer-river/internal/model"
	"github.com/messiahcarey/deer-river/internal/seeding"
	"github.com/messiahcarey/deer-river/internal/store"
)

// newSeededWorld builds two cohorts of two people each with one active
// always-accept policy, so an execute run creates exactly 4 relations.
func newSeededWorld(t *testing.T) *store.Memory {
	t.Helper()
	mem := store.NewMemory()

	mem.AddCohort(model.Cohort{ID: "c-farmers", Name: "Farmers"})
	mem.AddCohort(model.Cohort{ID: "c-millers", Name: "Millers"})

	for _, id := range []string{"p-1", "p-2", "p-3", "p-4"} {
		mem.AddPerson(model.Person{ID: id, Name: id})
	}
	mem.AddCohortMember(model.CohortMember{CohortID: "c-farmers", PersonID: "p-1"})
	mem.AddCohortMember(model.CohortMember{CohortID: "c-farmers", PersonID: "p-2"})
	mem.AddCohortMember(model.CohortMember{CohortID: "c-millers", PersonID: "p-3"})
	mem.AddCohortMember(model.CohortMember{CohortID: "c-millers", PersonID: "p-4"})

	if err := mem.CreatePolicy(context.Background(), &model.SeedingPolicy{
		ID:             "pol-1",
		Name:           "Farmers trade with millers",
		SourceCohortID: "c-farmers",
		TargetCohortID: "c-millers",
		Domain:         model.DomainWork,
		Probability:    1.0,
		ScoreMin:       50,
		ScoreMax:       50,
		Active:         true,
		CreatedAt:      time.Now(),
	}); err != nil {
		t.Fatalf("CreatePolicy: %v", err)
	}

	return mem
}

func newSeedingMux(mem *store.Memory) http.Handler {
	handlers := NewSeedingHandlers(seeding.NewEngine(mem, nil, nil))
	mux := http.NewServeMux()
	mux.HandleFunc("/seeding/preview", handlers.Preview)
	mux.HandleFunc("/seeding/execute", handlers.Execute)
	return mux
}

func TestSeedingPreview_NoWrites(t *testing.T) {
	mem := newSeededWorld(t)
	mux := newSeedingMux(mem)

	req := httptest.NewRequest(http.MethodPost, "/seeding/preview",
		strings.NewReader(`{"world_seed":"deer-river-1"}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result seeding.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}
	if !result.DryRun {
		t.Error("expected dry_run=true")
	}
	if result.RelationshipsCreated != 4 {
		t.Errorf("expected 4 relationships in preview, got %d", result.RelationshipsCreated)
	}
	if mem.RelationCount() != 0 {
		t.Errorf("preview must not persist relations, found %d", mem.RelationCount())
	}
}

func TestSeedingExecute_PersistsAndIsIdempotent(t *testing.T) {
	mem := newSeededWorld(t)
	mux := newSeedingMux(mem)

	body := `{"world_seed":"deer-river-1"}`
	req := httptest.NewRequest(http.MethodPost, "/seeding/execute", strings.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result seeding.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}
	if result.RelationshipsCreated != 4 {
		t.Errorf("expected 4 relationships created, got %d", result.RelationshipsCreated)
	}
	if mem.RelationCount() != 4 {
		t.Errorf("expected 4 persisted relations, got %d", mem.RelationCount())
	}
	for _, rel := range mem.AllRelations() {
		if rel.Score != 50 {
			t.Errorf("expected fixed score 50, got %v", rel.Score)
		}
	}

	// A second run skips every existing pair
	req = httptest.NewRequest(http.MethodPost, "/seeding/execute", strings.NewReader(body))
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse second result: %v", err)
	}
	if result.RelationshipsCreated != 0 {
		t.Errorf("expected idempotent rerun to create 0, got %d", result.RelationshipsCreated)
	}
	if mem.RelationCount() != 4 {
		t.Errorf("expected relation count to stay 4, got %d", mem.RelationCount())
	}
}

func TestSeedingExecute_MissingSeed(t *testing.T) {
	mux := newSeedingMux(newSeededWorld(t))

	req := httptest.NewRequest(http.MethodPost, "/seeding/execute", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse error: %v", err)
	}
	if resp.Error.Code != ErrCodeValidation {
		t.Errorf("expected code %s, got %s", ErrCodeValidation, resp.Error.Code)
	}
}

func TestSeedingPreview_MethodNotAllowed(t *testing.T) {
	mux := newSeedingMux(newSeededWorld(t))

	req := httptest.NewRequest(http.MethodGet, "/seeding/preview", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestSeedingExecute_Deterministic(t *testing.T) {
	runOnce := func() []model.PersonRelation {
		mem := newSeededWorld(t)
		mux := newSeedingMux(mem)
		req := httptest.NewRequest(http.MethodPost, "/seeding/execute",
			strings.NewReader(`{"world_seed":"fixed-seed"}`))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		return mem.AllRelations()
	}

	first := runOnce()
	second := runOnce()

	if len(first) != len(second) {
		t.Fatalf("runs produced different relation counts: %d vs %d", len(first), len(second))
	}
	scores := func(rels []model.PersonRelation) map[string]float64 {
		out := make(map[string]float64, len(rels))
		for _, r := range rels {
			out[r.FromPersonID+"->"+r.ToPersonID] = r.Score
		}
		return out
	}
	a, b := scores(first), scores(second)
	for pair, score := range a {
		if b[pair] != score {
			t.Errorf("pair %s: scores differ across runs: %v vs %v", pair, score, b[pair])
		}
	}
}
