package weights

import (
	"math"
	"testing"
	"time"
)

const epsilon = 1e-9

func TestDefaultWeightsSumToOne(t *testing.T) {
	// Static property of the configuration, checked once.
	if err := DefaultInvolvementWeights().Validate(); err != nil {
		t.Errorf("default involvement weights invalid: %v", err)
	}
	if err := DefaultLoyaltyWeights().Validate(); err != nil {
		t.Errorf("default loyalty weights invalid: %v", err)
	}
}

func TestWeightSetValidate(t *testing.T) {
	w := DefaultInvolvementWeights()
	w.RoleActivity = 0.5 // sum now 1.15
	if err := w.Validate(); err == nil {
		t.Error("expected error for weights not summing to 1.0")
	}

	l := DefaultLoyaltyWeights()
	l.IdentityFit = -0.25
	l.BenefitFlow = 0.75 // sum still 1.0 but one weight negative
	if err := l.Validate(); err == nil {
		t.Error("expected error for negative weight")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name          string
		v, min, max   float64
		want          float64
	}{
		{"below min", -0.5, 0, 1, 0},
		{"above max", 1.7, 0, 1, 1},
		{"inside", 0.42, 0, 1, 0.42},
		{"at min", 0, 0, 1, 0},
		{"at max", 1, 0, 1, 1},
		{"relation scale", 130, 1, 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.v, tt.min, tt.max); got != tt.want {
				t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.v, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestTimeDecay(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	twoWeeksAgo := now.Add(-14 * 24 * time.Hour)
	future := now.Add(7 * 24 * time.Hour)

	// Open-ended interval decays from now: no decay.
	if got := TimeDecay(nil, now, 0.9); math.Abs(got-1.0) > epsilon {
		t.Errorf("open-ended TimeDecay = %v, want 1.0", got)
	}

	// Two elapsed weeks: 0.9^2 = 0.81.
	if got := TimeDecay(&twoWeeksAgo, now, 0.9); math.Abs(got-0.81) > epsilon {
		t.Errorf("TimeDecay two weeks = %v, want 0.81", got)
	}

	// Interval ending in the future behaves like now.
	if got := TimeDecay(&future, now, 0.9); math.Abs(got-1.0) > epsilon {
		t.Errorf("future-end TimeDecay = %v, want 1.0", got)
	}

	// Non-positive factor falls back to the default.
	want := math.Pow(DefaultDecayFactor, 2)
	if got := TimeDecay(&twoWeeksAgo, now, 0); math.Abs(got-want) > epsilon {
		t.Errorf("fallback TimeDecay = %v, want %v", got, want)
	}
}

func TestLookupFallback(t *testing.T) {
	// Unknown categories never fail, they fall back.
	if got := Lookup(RoleWeight, "wandering-bard", DefaultCategoryWeight); got != DefaultCategoryWeight {
		t.Errorf("unknown role = %v, want fallback %v", got, DefaultCategoryWeight)
	}
	if got := Lookup(RoleWeight, "leader", DefaultCategoryWeight); got != 1.0 {
		t.Errorf("leader role = %v, want 1.0", got)
	}
	if got := SpeciesAlignment("gnome", "Town Council"); got != SpeciesAlignmentNeutral {
		t.Errorf("unknown species alignment = %v, want neutral %v", got, SpeciesAlignmentNeutral)
	}
	if got := SpeciesAlignment("elf", "Temple of Dawn"); got != 0.8 {
		t.Errorf("elf/Temple alignment = %v, want 0.8", got)
	}
}
