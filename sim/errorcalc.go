package sim

import "fmt"

// An ErrorCalculator composes independent error sources on a link of fixed
// length and derives loss-adjusted bitrates. It is a thin owner of a Registry
// plus the two bitrate formulas; the Simulator uses the same Registry for its
// own budget.
type ErrorCalculator struct {
	sources *Registry
}

// NewErrorCalculator returns a calculator for a link of length meters.
func NewErrorCalculator(length float64) *ErrorCalculator {
	return &ErrorCalculator{sources: NewRegistry(length)}
}

// Length returns the link length the calculator was created with.
func (c *ErrorCalculator) Length() float64 { return c.sources.Length() }

// AddErrorSource registers a fixed failure probability. An empty name gets an
// auto-generated one; see Registry.Add.
func (c *ErrorCalculator) AddErrorSource(name string, rate float64) error {
	return c.sources.Add(name, rate)
}

// AddLengthDependentError registers a per-meter failure probability
// compounded over the calculator's link length.
func (c *ErrorCalculator) AddLengthDependentError(name string, ratePerMeter float64) error {
	return c.sources.AddLengthDependent(name, ratePerMeter)
}

// AddLengthDependentErrorOver is AddLengthDependentError with an explicit
// span overriding the calculator's length for this source only.
func (c *ErrorCalculator) AddLengthDependentErrorOver(name string, ratePerMeter, length float64) error {
	return c.sources.AddLengthDependentOver(name, ratePerMeter, length)
}

// AddDerivedError registers fn(), evaluated once at registration.
func (c *ErrorCalculator) AddDerivedError(name string, fn func() float64) error {
	return c.sources.AddDerived(name, fn)
}

// AddLengthDerivedError registers fn(length), evaluated once at registration
// with the calculator's link length.
func (c *ErrorCalculator) AddLengthDerivedError(name string, fn func(length float64) float64) error {
	return c.sources.AddLengthDerived(name, fn)
}

// TotalError returns the aggregate failure probability over all registered
// sources. Pure; safe to call at any point between registrations.
func (c *ErrorCalculator) TotalError() float64 {
	return c.sources.TotalError()
}

// AdjustBitrate returns the expected post-loss throughput for a pre-loss
// bitrate: bitrate · (1 − TotalError()).
func (c *ErrorCalculator) AdjustBitrate(bitrate float64) float64 {
	return bitrate * c.sources.Survival()
}

// NeededBitrate inverts AdjustBitrate: the pre-loss bitrate required to
// achieve target net of errors. Returns ErrNoSurvival when the aggregate
// error reaches 1 and no finite bitrate suffices.
func (c *ErrorCalculator) NeededBitrate(target float64) (float64, error) {
	p := c.sources.Survival()
	if p <= 0 {
		return 0, fmt.Errorf("needed bitrate for target %v: %w", target, ErrNoSurvival)
	}
	return target / p, nil
}
