package effects_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/messiahcarey/deer-river/internal/effects"
	"github.com/messiahcarey/deer-river/internal/model"
	"github.com/messiahcarey/deer-river/internal/store"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

const tolerance = 1e-9

func globalEffect(id string, typ model.EffectType, value float64) effects.ScopedEffect {
	return effects.ScopedEffect{
		Effect: model.EventEffect{
			ID:    id,
			Scope: model.ScopeGlobal,
			Type:  typ,
			Value: value,
		},
		EventStart: testNow,
	}
}

func basePair() effects.PairContext {
	return effects.PairContext{
		FromPersonID: "p-alva",
		ToPersonID:   "p-bren",
		Domain:       model.DomainKinship,
	}
}

func TestApply_NoEffects(t *testing.T) {
	result := effects.Apply(70, nil, basePair(), testNow)

	if result.EffectiveScore != 70 {
		t.Errorf("EffectiveScore = %f, want 70", result.EffectiveScore)
	}
	if result.BaseScore != 70 {
		t.Errorf("BaseScore = %f, want 70", result.BaseScore)
	}
	if len(result.EffectsApplied) != 0 {
		t.Errorf("EffectsApplied = %v, want empty", result.EffectsApplied)
	}
	if len(result.Provenance) != 1 || result.Provenance[0] != effects.BaseProvenance {
		t.Errorf("Provenance = %v, want [%s]", result.Provenance, effects.BaseProvenance)
	}
}

func TestApply_AddThenMultiply(t *testing.T) {
	// Multiply handed in before add: the phase order still applies
	// add first, so (40 + 10) * 1.5 = 75.
	candidates := []effects.ScopedEffect{
		globalEffect("e-mult", model.EffectMultiply, 1.5),
		globalEffect("e-add", model.EffectAdd, 10),
	}

	result := effects.Apply(40, candidates, basePair(), testNow)

	if math.Abs(result.EffectiveScore-75) > tolerance {
		t.Errorf("EffectiveScore = %f, want 75", result.EffectiveScore)
	}
	if len(result.EffectsApplied) != 2 {
		t.Fatalf("EffectsApplied = %v, want 2 entries", result.EffectsApplied)
	}
	if result.EffectsApplied[0] != "e-add" || result.EffectsApplied[1] != "e-mult" {
		t.Errorf("application order = %v, want [e-add e-mult]", result.EffectsApplied)
	}
}

func TestApply_DecayAnchoredToEventStart(t *testing.T) {
	decay := effects.ScopedEffect{
		Effect: model.EventEffect{
			ID:          "e-decay",
			Scope:       model.ScopeGlobal,
			Type:        model.EffectDecay,
			Value:       10,
			DecayPerDay: 0.9,
		},
		EventStart: testNow.AddDate(0, 0, -7),
	}

	result := effects.Apply(50, []effects.ScopedEffect{decay}, basePair(), testNow)

	want := 50 + 10*math.Pow(0.9, 7)
	if math.Abs(result.EffectiveScore-want) > tolerance {
		t.Errorf("EffectiveScore = %f, want %f", result.EffectiveScore, want)
	}
}

func TestApply_ClampToScale(t *testing.T) {
	tests := []struct {
		name       string
		base       float64
		candidates []effects.ScopedEffect
		want       float64
	}{
		{
			name:       "over the top",
			base:       95,
			candidates: []effects.ScopedEffect{globalEffect("e-1", model.EffectAdd, 20)},
			want:       model.RelationScoreMax,
		},
		{
			name:       "below the floor",
			base:       5,
			candidates: []effects.ScopedEffect{globalEffect("e-1", model.EffectMultiply, 0.01)},
			want:       model.RelationScoreMin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := effects.Apply(tt.base, tt.candidates, basePair(), testNow)
			if result.EffectiveScore != tt.want {
				t.Errorf("EffectiveScore = %f, want %f", result.EffectiveScore, tt.want)
			}
		})
	}
}

func TestApply_StableOrderWithinPhase(t *testing.T) {
	// Two adds handed in reverse id order apply in id order.
	candidates := []effects.ScopedEffect{
		globalEffect("e-b", model.EffectAdd, 5),
		globalEffect("e-a", model.EffectAdd, 3),
	}

	result := effects.Apply(50, candidates, basePair(), testNow)

	if result.EffectsApplied[0] != "e-a" || result.EffectsApplied[1] != "e-b" {
		t.Errorf("application order = %v, want [e-a e-b]", result.EffectsApplied)
	}
}

func TestApply_CohortScopeDirectionSensitive(t *testing.T) {
	effect := effects.ScopedEffect{
		Effect: model.EventEffect{
			ID:             "e-feud",
			Scope:          model.ScopeCohortToCohort,
			Type:           model.EffectAdd,
			Value:          -20,
			SourceCohortID: "c-north",
			TargetCohortID: "c-south",
		},
		EventStart: testNow,
	}

	forward := effects.PairContext{
		FromPersonID: "p-alva",
		ToPersonID:   "p-bren",
		Domain:       model.DomainKinship,
		FromCohorts:  map[string]bool{"c-north": true},
		ToCohorts:    map[string]bool{"c-south": true},
	}
	reversed := effects.PairContext{
		FromPersonID: "p-bren",
		ToPersonID:   "p-alva",
		Domain:       model.DomainKinship,
		FromCohorts:  map[string]bool{"c-south": true},
		ToCohorts:    map[string]bool{"c-north": true},
	}

	if got := effects.Apply(60, []effects.ScopedEffect{effect}, forward, testNow); got.EffectiveScore != 40 {
		t.Errorf("forward EffectiveScore = %f, want 40", got.EffectiveScore)
	}
	if got := effects.Apply(60, []effects.ScopedEffect{effect}, reversed, testNow); got.EffectiveScore != 60 {
		t.Errorf("reversed EffectiveScore = %f, want 60 (effect must not apply)", got.EffectiveScore)
	}
}

func TestApply_PersonScopeExactPairOnly(t *testing.T) {
	effect := effects.ScopedEffect{
		Effect: model.EventEffect{
			ID:           "e-grudge",
			Scope:        model.ScopePersonToPerson,
			Type:         model.EffectAdd,
			Value:        -15,
			FromPersonID: "p-alva",
			ToPersonID:   "p-bren",
		},
		EventStart: testNow,
	}

	matching := basePair()
	other := effects.PairContext{FromPersonID: "p-alva", ToPersonID: "p-cole", Domain: model.DomainKinship}

	if got := effects.Apply(60, []effects.ScopedEffect{effect}, matching, testNow); got.EffectiveScore != 45 {
		t.Errorf("matching pair EffectiveScore = %f, want 45", got.EffectiveScore)
	}
	if got := effects.Apply(60, []effects.ScopedEffect{effect}, other, testNow); got.EffectiveScore != 60 {
		t.Errorf("other pair EffectiveScore = %f, want 60", got.EffectiveScore)
	}
}

func TestApply_DomainFilter(t *testing.T) {
	work := model.DomainWork
	effect := globalEffect("e-strike", model.EffectAdd, -30)
	effect.Effect.Domain = &work

	kinshipPair := basePair()
	workPair := basePair()
	workPair.Domain = model.DomainWork

	if got := effects.Apply(80, []effects.ScopedEffect{effect}, kinshipPair, testNow); got.EffectiveScore != 80 {
		t.Errorf("kinship EffectiveScore = %f, want 80", got.EffectiveScore)
	}
	if got := effects.Apply(80, []effects.ScopedEffect{effect}, workPair, testNow); got.EffectiveScore != 50 {
		t.Errorf("work EffectiveScore = %f, want 50", got.EffectiveScore)
	}
}

func TestEngine_EffectiveScore(t *testing.T) {
	mem := store.NewMemory()
	mem.AddRelation(model.PersonRelation{
		ID:           "r-1",
		FromPersonID: "p-alva",
		ToPersonID:   "p-bren",
		Domain:       model.DomainWork,
		Kind:         model.KindPatronage,
		Score:        60,
		CreatedAt:    testNow.AddDate(0, -1, 0),
	})
	mem.AddEvent(model.Event{
		ID:       "ev-festival",
		Name:     "Harvest Festival",
		StartsAt: testNow.AddDate(0, 0, -1),
		Active:   true,
		Effects: []model.EventEffect{{
			ID:    "e-cheer",
			Scope: model.ScopeGlobal,
			Type:  model.EffectAdd,
			Value: 10,
		}},
	})

	engine := effects.NewEngine(mem, nil)
	result, err := engine.EffectiveScore(context.Background(), "p-alva", "p-bren", model.DomainWork, testNow)
	if err != nil {
		t.Fatalf("EffectiveScore() error = %v", err)
	}

	if result.BaseScore != 60 {
		t.Errorf("BaseScore = %f, want 60", result.BaseScore)
	}
	if result.EffectiveScore != 70 {
		t.Errorf("EffectiveScore = %f, want 70", result.EffectiveScore)
	}
	if len(result.EffectsApplied) != 1 || result.EffectsApplied[0] != "e-cheer" {
		t.Errorf("EffectsApplied = %v, want [e-cheer]", result.EffectsApplied)
	}
}

func TestEngine_EffectiveScore_RelationNotFound(t *testing.T) {
	engine := effects.NewEngine(store.NewMemory(), nil)

	_, err := engine.EffectiveScore(context.Background(), "p-alva", "p-bren", model.DomainWork, testNow)
	if !errors.Is(err, effects.ErrRelationNotFound) {
		t.Errorf("error = %v, want ErrRelationNotFound", err)
	}
}

func TestEngine_EffectiveScore_DirectionMatters(t *testing.T) {
	mem := store.NewMemory()
	mem.AddRelation(model.PersonRelation{
		ID:           "r-1",
		FromPersonID: "p-alva",
		ToPersonID:   "p-bren",
		Domain:       model.DomainWork,
		Score:        60,
		CreatedAt:    testNow,
	})

	engine := effects.NewEngine(mem, nil)
	_, err := engine.EffectiveScore(context.Background(), "p-bren", "p-alva", model.DomainWork, testNow)
	if !errors.Is(err, effects.ErrRelationNotFound) {
		t.Errorf("error = %v, want ErrRelationNotFound for reversed pair", err)
	}
}

func TestEngine_ExpiredEventIgnored(t *testing.T) {
	mem := store.NewMemory()
	mem.AddRelation(model.PersonRelation{
		ID:           "r-1",
		FromPersonID: "p-alva",
		ToPersonID:   "p-bren",
		Domain:       model.DomainKinship,
		Score:        55,
		CreatedAt:    testNow,
	})
	ended := testNow.AddDate(0, 0, -2)
	mem.AddEvent(model.Event{
		ID:       "ev-over",
		StartsAt: testNow.AddDate(0, 0, -10),
		EndsAt:   &ended,
		Active:   true,
		Effects: []model.EventEffect{{
			ID:    "e-old",
			Scope: model.ScopeGlobal,
			Type:  model.EffectAdd,
			Value: 25,
		}},
	})

	engine := effects.NewEngine(mem, nil)
	result, err := engine.EffectiveScore(context.Background(), "p-alva", "p-bren", model.DomainKinship, testNow)
	if err != nil {
		t.Fatalf("EffectiveScore() error = %v", err)
	}
	if result.EffectiveScore != 55 {
		t.Errorf("EffectiveScore = %f, want 55 (expired event must not apply)", result.EffectiveScore)
	}
}
