// Package sim models timing and error-rate composition for a point-to-point
// QKD link.
//
// The package answers two questions about a link: given a target key length,
// how many qubits must be sent and how long does that take; and given a fixed
// time budget, how much key material can be generated. Qubits are treated
// purely as countable lossy units; there is no quantum-state simulation.
//
// Three entry points:
//   - Registry: a named set of independent failure probabilities and their
//     aggregate (shared by the other two).
//   - ErrorCalculator: standalone error composition plus bitrate adjustment.
//   - Simulator: two Endpoints, a fiber, and an error budget, producing
//     qubit-count / time / key-yield estimates.
//
// All computation is synchronous closed-form arithmetic over scalar inputs.
// Read-only methods are safe to call concurrently on one instance; the Add*
// registration methods and ChangeEndpoints require exclusive access.
package sim

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidRate reports an error probability outside [0, 1).
	ErrInvalidRate = errors.New("error rate outside [0, 1)")

	// ErrNoSurvival reports a survival probability of zero: every qubit is
	// lost and no finite qubit count or pre-loss bitrate exists.
	ErrNoSurvival = errors.New("survival probability is zero")
)

// A Registry maintains a named set of independent failure probabilities and
// exposes their aggregate. Sources combine via survival-probability
// multiplication, never additively: the aggregate saturates toward 1 as
// sources are added and cannot exceed it.
//
// Registration is strictly additive. There is no remove or update method;
// build a new Registry to start over.
type Registry struct {
	length float64 // owning span in meters, used by the length-aware Add methods
	rates  map[string]float64
	nextID int
}

// NewRegistry returns an empty registry whose length-aware sources span
// length meters.
func NewRegistry(length float64) *Registry {
	return &Registry{
		length: length,
		rates:  make(map[string]float64),
	}
}

// Length returns the span the registry was created with.
func (r *Registry) Length() float64 { return r.length }

// Len returns the number of registered sources.
func (r *Registry) Len() int { return len(r.rates) }

// Add registers a fixed failure probability under name. An empty name is
// replaced with an auto-generated "err_source{N}" name; N increases
// monotonically per registry and is never reused, even when named sources are
// interleaved.
func (r *Registry) Add(name string, rate float64) error {
	if rate < 0 || rate >= 1 {
		return fmt.Errorf("add error source %q: rate %v: %w", name, rate, ErrInvalidRate)
	}
	if name == "" {
		name = fmt.Sprintf("err_source%d", r.nextID)
		r.nextID++
	}
	r.rates[name] = rate
	return nil
}

// AddLengthDependent registers a source whose probability compounds a
// per-meter failure probability over the registry's own span:
//
//	err = 1 − (1 − ratePerMeter)^length
func (r *Registry) AddLengthDependent(name string, ratePerMeter float64) error {
	return r.AddLengthDependentOver(name, ratePerMeter, r.length)
}

// AddLengthDependentOver is AddLengthDependent with an explicit span,
// overriding the registry's own length for this source only.
func (r *Registry) AddLengthDependentOver(name string, ratePerMeter, length float64) error {
	if ratePerMeter < 0 || ratePerMeter >= 1 {
		return fmt.Errorf("add length-dependent source %q: rate per meter %v: %w",
			name, ratePerMeter, ErrInvalidRate)
	}
	return r.Add(name, LengthDependentRate(ratePerMeter, length))
}

// LengthDependentRate compounds an independent per-meter failure probability
// over a span of length meters: 1 − (1 − ratePerMeter)^length.
func LengthDependentRate(ratePerMeter, length float64) float64 {
	return 1 - math.Pow(1-ratePerMeter, length)
}

// AddDerived registers fn() as a fixed source. fn is evaluated once, here;
// the registry stores only the resulting scalar.
func (r *Registry) AddDerived(name string, fn func() float64) error {
	return r.Add(name, fn())
}

// AddLengthDerived registers fn(length) as a fixed source, passing the
// registry's own span. Like AddDerived, evaluation is eager.
func (r *Registry) AddLengthDerived(name string, fn func(length float64) float64) error {
	return r.Add(name, fn(r.length))
}

// Survival returns the probability that a qubit escapes every registered
// source: Π(1−e_i). An empty registry yields 1.
func (r *Registry) Survival() float64 {
	p := 1.0
	for _, rate := range r.rates {
		p *= 1 - rate
	}
	return p
}

// TotalError returns the aggregate failure probability 1 − Π(1−e_i). An
// empty registry yields 0.
func (r *Registry) TotalError() float64 {
	return 1 - r.Survival()
}

// Rates returns a copy of the name → probability mapping.
func (r *Registry) Rates() map[string]float64 {
	out := make(map[string]float64, len(r.rates))
	for name, rate := range r.rates {
		out[name] = rate
	}
	return out
}
