// Package scenario loads QKD link scenarios from YAML and builds simulators
// from them. A scenario bundles the fiber parameters, the two endpoint delay
// profiles, the extra error sources, and optional default targets for the
// CLI's run modes.
package scenario

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/qlink-sim/qlink-sim/sim"
)

// Spec is the top-level scenario configuration, loaded from YAML via Load.
type Spec struct {
	Link         LinkSpec     `yaml:"link"`
	Sender       EndpointSpec `yaml:"sender"`
	Receiver     EndpointSpec `yaml:"receiver"`
	ErrorSources []SourceSpec `yaml:"error_sources,omitempty"`
	Targets      *TargetsSpec `yaml:"targets,omitempty"`
}

// LinkSpec describes the fiber.
type LinkSpec struct {
	Length      float64 `yaml:"length"`       // meters
	LenErr      float64 `yaml:"len_err"`      // per-meter loss rate in [0,1)
	FiberSpeed  float64 `yaml:"fiber_speed"`  // meters/second
	TestingMode bool    `yaml:"testing_mode"` // include error_sources in the aggregate
}

// EndpointSpec describes one side's delay profile, all in seconds.
type EndpointSpec struct {
	TransmissionDelayPerQubit float64 `yaml:"transmission_delay_per_qubit"`
	ProcessingDelayPerQubit   float64 `yaml:"processing_delay_per_qubit"`
	FixedDelay                float64 `yaml:"fixed_delay"`
}

// SourceSpec describes one extra error source. Type selects the variant:
//
//	fixed            - Rate is the probability
//	length_dependent - RatePerMeter compounded over the link length
//	bpsk_snr         - bit error rate of BPSK at SNRdB
type SourceSpec struct {
	Name         string  `yaml:"name"`
	Type         string  `yaml:"type"`
	Rate         float64 `yaml:"rate,omitempty"`
	RatePerMeter float64 `yaml:"rate_per_meter,omitempty"`
	SNRdB        float64 `yaml:"snr_db,omitempty"`
}

// TargetsSpec carries default run-mode inputs so a scenario file is runnable
// without CLI overrides.
type TargetsSpec struct {
	KeyLength  int     `yaml:"key_length"`            // desired net key bits
	TimeBudget float64 `yaml:"time_budget,omitempty"` // seconds, for budget mode
}

// Source type names accepted in SourceSpec.Type.
const (
	SourceFixed           = "fixed"
	SourceLengthDependent = "length_dependent"
	SourceBPSKSNR         = "bpsk_snr"
)

// Load reads and validates a scenario file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %q: %w", path, err)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse scenario %q: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", path, err)
	}
	return &spec, nil
}

// Validate checks the spec against the simulator's input contract. It fails
// on anything the builder would reject and warns on configurations that are
// legal but usually mistakes.
func (s *Spec) Validate() error {
	if s.Link.FiberSpeed <= 0 {
		return fmt.Errorf("link.fiber_speed must be positive, got %v", s.Link.FiberSpeed)
	}
	if s.Link.Length < 0 {
		return fmt.Errorf("link.length must be non-negative, got %v", s.Link.Length)
	}
	if s.Link.LenErr < 0 || s.Link.LenErr >= 1 {
		return fmt.Errorf("link.len_err must be in [0, 1), got %v", s.Link.LenErr)
	}

	for i, src := range s.ErrorSources {
		if src.Name == "" {
			return fmt.Errorf("error_sources[%d]: name is required", i)
		}
		switch src.Type {
		case SourceFixed:
			if src.Rate < 0 || src.Rate >= 1 {
				return fmt.Errorf("error_sources[%d] %q: rate must be in [0, 1), got %v",
					i, src.Name, src.Rate)
			}
		case SourceLengthDependent:
			if src.RatePerMeter < 0 || src.RatePerMeter >= 1 {
				return fmt.Errorf("error_sources[%d] %q: rate_per_meter must be in [0, 1), got %v",
					i, src.Name, src.RatePerMeter)
			}
		case SourceBPSKSNR:
			// any finite SNR yields a rate in (0, 0.5]; nothing to check
		default:
			return fmt.Errorf("error_sources[%d] %q: unknown type %q", i, src.Name, src.Type)
		}
	}

	if len(s.ErrorSources) > 0 && !s.Link.TestingMode {
		logrus.Warnf("scenario declares %d error sources but testing_mode is off; they will not affect results",
			len(s.ErrorSources))
	}
	if (s.Sender == EndpointSpec{}) || (s.Receiver == EndpointSpec{}) {
		logrus.Warn("scenario has a zero-delay endpoint; budget-mode estimates may be rejected")
	}
	if s.Targets != nil && s.Targets.KeyLength <= 0 {
		return fmt.Errorf("targets.key_length must be positive, got %d", s.Targets.KeyLength)
	}
	return nil
}

func (e EndpointSpec) endpoint() sim.Endpoint {
	return sim.Endpoint{
		TransmissionDelayPerQubit: e.TransmissionDelayPerQubit,
		ProcessingDelayPerQubit:   e.ProcessingDelayPerQubit,
		FixedDelay:                e.FixedDelay,
	}
}

// rate evaluates the spec'd source variant into a scalar probability.
func (src SourceSpec) rate(length float64) float64 {
	switch src.Type {
	case SourceLengthDependent:
		return sim.LengthDependentRate(src.RatePerMeter, length)
	case SourceBPSKSNR:
		return sim.BPSKBitError(src.SNRdB)
	default:
		return src.Rate
	}
}

// Build wires the scenario into a ready-to-run Simulator.
func (s *Spec) Build() (*sim.Simulator, error) {
	pair := sim.EndpointPair{
		Sender:   s.Sender.endpoint(),
		Receiver: s.Receiver.endpoint(),
	}
	link := sim.LinkConfig{
		Length:      s.Link.Length,
		LenErr:      s.Link.LenErr,
		FiberSpeed:  s.Link.FiberSpeed,
		TestingMode: s.Link.TestingMode,
	}
	simulator, err := sim.NewSimulator(pair, link)
	if err != nil {
		return nil, fmt.Errorf("build simulator: %w", err)
	}
	for _, src := range s.ErrorSources {
		if err := simulator.AddErrorSource(src.Name, src.rate(s.Link.Length)); err != nil {
			return nil, fmt.Errorf("error source %q: %w", src.Name, err)
		}
	}
	return simulator, nil
}
