package sim

import (
	"errors"
	"math"
	"testing"
)

func TestRegistry_TotalError_EmptyIsZero(t *testing.T) {
	r := NewRegistry(4)

	if got := r.TotalError(); got != 0 {
		t.Errorf("TotalError(empty) = %v, want 0", got)
	}
	if got := r.Survival(); got != 1 {
		t.Errorf("Survival(empty) = %v, want 1", got)
	}
}

// TestRegistry_TotalError_SurvivalProduct verifies the composition rule
// 1 − Π(1−e_i) against the canonical 0.5 / 0.2 / 0.75 → 0.9 oracle.
func TestRegistry_TotalError_SurvivalProduct(t *testing.T) {
	// GIVEN a registry with a single 0.5 source
	r := NewRegistry(4)
	if err := r.Add("", 0.5); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// THEN the aggregate equals the lone source
	if got := r.TotalError(); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("TotalError = %v, want 0.5", got)
	}

	// WHEN two more sources are added
	if err := r.Add("", 0.2); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add("", 0.75); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// THEN total = 1 − 0.5·0.8·0.25 = 0.9
	if got := r.TotalError(); math.Abs(got-0.9) > 1e-12 {
		t.Errorf("TotalError = %v, want 0.9", got)
	}
}

// TestRegistry_TotalError_MonotoneAndBounded verifies the aggregate never
// decreases as sources are added and saturates below 1.
func TestRegistry_TotalError_MonotoneAndBounded(t *testing.T) {
	r := NewRegistry(1)
	rates := []float64{0.01, 0.5, 0.999, 0.3, 0, 0.8}
	prev := r.TotalError()
	for _, rate := range rates {
		if err := r.Add("", rate); err != nil {
			t.Fatalf("Add(%v): %v", rate, err)
		}
		got := r.TotalError()
		if got < prev {
			t.Errorf("TotalError decreased from %v to %v after adding %v", prev, got, rate)
		}
		if got < 0 || got >= 1 {
			t.Errorf("TotalError = %v, want in [0, 1)", got)
		}
		prev = got
	}
}

func TestRegistry_Add_AutoNamesNeverReused(t *testing.T) {
	// GIVEN auto-named sources interleaved with a named one
	r := NewRegistry(1)
	for _, step := range []struct {
		name string
		rate float64
	}{
		{"", 0.1},         // err_source0
		{"detector", 0.2}, // named, must not consume a counter slot
		{"", 0.3},         // err_source1
		{"", 0.4},         // err_source2
	} {
		if err := r.Add(step.name, step.rate); err != nil {
			t.Fatalf("Add(%q, %v): %v", step.name, step.rate, err)
		}
	}

	// THEN the mapping holds exactly the four expected names
	got := r.Rates()
	want := map[string]float64{
		"err_source0": 0.1,
		"detector":    0.2,
		"err_source1": 0.3,
		"err_source2": 0.4,
	}
	if len(got) != len(want) {
		t.Fatalf("Rates() has %d entries, want %d: %v", len(got), len(want), got)
	}
	for name, rate := range want {
		if got[name] != rate {
			t.Errorf("Rates()[%q] = %v, want %v", name, got[name], rate)
		}
	}
}

func TestRegistry_Add_RejectsOutOfRangeRates(t *testing.T) {
	r := NewRegistry(1)
	for _, rate := range []float64{-0.1, 1, 1.5, math.Inf(1)} {
		err := r.Add("bad", rate)
		if !errors.Is(err, ErrInvalidRate) {
			t.Errorf("Add(%v) error = %v, want ErrInvalidRate", rate, err)
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after rejected adds, want 0", r.Len())
	}
}

// TestRegistry_AddLengthDependent verifies 1 − (1−r)^L: r=0.5 over L=4 is
// 15/16, over L=10 is 1023/1024.
func TestRegistry_AddLengthDependent(t *testing.T) {
	tcs := []struct {
		length float64
		rate   float64
		want   float64
	}{
		{4, 0.5, 15.0 / 16.0},
		{10, 0.5, 1023.0 / 1024.0},
	}
	for _, tc := range tcs {
		r := NewRegistry(tc.length)
		if err := r.AddLengthDependent("span", tc.rate); err != nil {
			t.Fatalf("AddLengthDependent(%v over %v): %v", tc.rate, tc.length, err)
		}
		if got := r.TotalError(); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("TotalError(r=%v, L=%v) = %v, want %v", tc.rate, tc.length, got, tc.want)
		}
	}
}

func TestRegistry_AddLengthDependentOver_OverridesOwnLength(t *testing.T) {
	// GIVEN a registry spanning 4 meters
	r := NewRegistry(4)

	// WHEN a source is registered over an explicit 2-meter span
	if err := r.AddLengthDependentOver("short", 0.5, 2); err != nil {
		t.Fatalf("AddLengthDependentOver: %v", err)
	}

	// THEN the override span is used: 1 − 0.5² = 0.75
	if got := r.TotalError(); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("TotalError = %v, want 0.75", got)
	}
}

func TestRegistry_AddDerived_EvaluatesEagerly(t *testing.T) {
	r := NewRegistry(1)
	calls := 0
	if err := r.AddDerived("snr", func() float64 {
		calls++
		return 0.25
	}); err != nil {
		t.Fatalf("AddDerived: %v", err)
	}

	// Evaluated exactly once, at registration.
	if calls != 1 {
		t.Errorf("derived fn called %d times, want 1", calls)
	}
	r.TotalError()
	r.TotalError()
	if calls != 1 {
		t.Errorf("derived fn called %d times after reads, want 1", calls)
	}
	if got := r.TotalError(); math.Abs(got-0.25) > 1e-12 {
		t.Errorf("TotalError = %v, want 0.25", got)
	}
}

// TestRegistry_AddLengthDerived verifies the fn receives the registry's own
// span: 1/length gives 0.25 over 4 meters and 0.1 over 10.
func TestRegistry_AddLengthDerived(t *testing.T) {
	inverse := func(length float64) float64 { return 1 / length }
	for _, tc := range []struct {
		length float64
		want   float64
	}{
		{4, 0.25},
		{10, 0.1},
	} {
		r := NewRegistry(tc.length)
		if err := r.AddLengthDerived("inverse", inverse); err != nil {
			t.Fatalf("AddLengthDerived(L=%v): %v", tc.length, err)
		}
		if got := r.TotalError(); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("TotalError(L=%v) = %v, want %v", tc.length, got, tc.want)
		}
	}
}

func TestRegistry_AddDerived_RejectsOutOfRangeResult(t *testing.T) {
	r := NewRegistry(1)
	err := r.AddDerived("bad", func() float64 { return 1.5 })
	if !errors.Is(err, ErrInvalidRate) {
		t.Errorf("AddDerived(→1.5) error = %v, want ErrInvalidRate", err)
	}
}
