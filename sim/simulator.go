package sim

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidLink reports a link configuration the formulas cannot use
	// (non-positive fiber speed, negative length, out-of-range attenuation).
	ErrInvalidLink = errors.New("invalid link configuration")

	// ErrInvalidKeyLength reports a non-positive target key length.
	ErrInvalidKeyLength = errors.New("key length must be positive")

	// ErrInvalidBudget reports a non-positive time budget.
	ErrInvalidBudget = errors.New("time budget must be positive")
)

// LinkConfig groups the fiber parameters of a Simulator.
type LinkConfig struct {
	Length     float64 // fiber length in meters (must be >= 0)
	LenErr     float64 // per-meter loss rate, dimensionless in [0,1)
	FiberSpeed float64 // signal propagation speed in meters/second (must be > 0)

	// TestingMode gates whether caller-added error sources participate in the
	// aggregate. The built-in fiber_length source always counts; sources added
	// with AddErrorSource count only when TestingMode is true. See
	// Simulator.TotalError.
	TestingMode bool
}

// BaseFiberSourceName is the name of the error source a Simulator derives
// from its own length and per-meter loss rate at construction.
const BaseFiberSourceName = "fiber_length"

// A Simulator composes a sender/receiver Endpoint pair with a fiber and an
// error budget to estimate end-to-end timing and key yield. Each public
// method is a single pure computation over the current configuration; the
// only mutable state is the endpoint pair and the additional error sources.
type Simulator struct {
	endpoints EndpointPair
	link      LinkConfig

	// base holds sources derived from the link itself, fixed at construction.
	// additional holds caller-registered sources, gated by TestingMode.
	base       *Registry
	additional *Registry
}

// NewSimulator returns a Simulator for the given endpoints and link. The base
// error budget is seeded with the exponential fiber attenuation
// 1 − exp(−LenErr·Length) under BaseFiberSourceName.
func NewSimulator(endpoints EndpointPair, link LinkConfig) (*Simulator, error) {
	if link.Length < 0 {
		return nil, fmt.Errorf("length %v: %w", link.Length, ErrInvalidLink)
	}
	if link.FiberSpeed <= 0 {
		return nil, fmt.Errorf("fiber speed %v: %w", link.FiberSpeed, ErrInvalidLink)
	}
	if link.LenErr < 0 || link.LenErr >= 1 {
		return nil, fmt.Errorf("per-meter loss rate %v: %w", link.LenErr, ErrInvalidLink)
	}

	s := &Simulator{
		endpoints:  endpoints,
		link:       link,
		base:       NewRegistry(link.Length),
		additional: NewRegistry(link.Length),
	}
	if err := s.base.Add(BaseFiberSourceName, 1-math.Exp(-link.LenErr*link.Length)); err != nil {
		return nil, err
	}
	return s, nil
}

// AddErrorSource registers an additional failure probability. Additional
// sources only enter the aggregate when the link was configured with
// TestingMode set.
func (s *Simulator) AddErrorSource(name string, rate float64) error {
	return s.additional.Add(name, rate)
}

// ChangeEndpoints replaces both endpoints wholesale. There is no partial
// update; results after the swap carry no residue of the old pair.
func (s *Simulator) ChangeEndpoints(pair EndpointPair) {
	s.endpoints = pair
}

// Endpoints returns the current sender/receiver pair.
func (s *Simulator) Endpoints() EndpointPair { return s.endpoints }

// Link returns the link configuration.
func (s *Simulator) Link() LinkConfig { return s.link }

// TotalError returns the aggregate qubit loss probability. Base sources
// (fiber attenuation) always participate; caller-added sources participate
// only when the link's TestingMode flag is set.
func (s *Simulator) TotalError() float64 {
	return 1 - s.survival()
}

func (s *Simulator) survival() float64 {
	p := s.base.Survival()
	if s.link.TestingMode {
		p *= s.additional.Survival()
	}
	return p
}

// propDelay is the one-way fiber propagation time in seconds.
func (s *Simulator) propDelay() float64 {
	return s.link.Length / s.link.FiberSpeed
}

// A RunResult reports what reaching a target key length costs.
type RunResult struct {
	QubitsNeeded     int     `json:"qubits_needed" yaml:"qubits_needed"`
	TotalTimeSeconds float64 `json:"total_time_seconds" yaml:"total_time_seconds"`
	QubitLossRate    float64 `json:"qubit_loss_rate" yaml:"qubit_loss_rate"`
}

// A BudgetResult reports what a fixed time budget can yield. QubitsNeeded is
// the target-mode count carried alongside for comparison; it is not checked
// against QubitsPossible.
type BudgetResult struct {
	QubitsNeeded   int     `json:"qubits_needed" yaml:"qubits_needed"`
	QubitsPossible int     `json:"qubits_possible" yaml:"qubits_possible"`
	KeyGenerated   int     `json:"key_generated" yaml:"key_generated"`
	QubitLossRate  float64 `json:"qubit_loss_rate" yaml:"qubit_loss_rate"`
}

// A DiagnosticsResult is the union of RunResult and BudgetResult plus the raw
// endpoint delay components at the target-mode qubit count.
type DiagnosticsResult struct {
	QubitsNeeded     int     `json:"qubits_needed" yaml:"qubits_needed"`
	TotalTimeSeconds float64 `json:"total_time_seconds" yaml:"total_time_seconds"`
	QubitsPossible   int     `json:"qubits_possible" yaml:"qubits_possible"`
	KeyGenerated     int     `json:"key_generated" yaml:"key_generated"`
	QubitLossRate    float64 `json:"qubit_loss_rate" yaml:"qubit_loss_rate"`
	SendDelay        float64 `json:"send_delay" yaml:"send_delay"`
	ReceiveDelay     float64 `json:"receive_delay" yaml:"receive_delay"`
}

// qubitsNeeded returns ceil(keyLen / survival) along with the survival
// probability, rejecting impossible links and non-positive targets.
func (s *Simulator) qubitsNeeded(keyLen int) (int, float64, error) {
	if keyLen <= 0 {
		return 0, 0, fmt.Errorf("key length %d: %w", keyLen, ErrInvalidKeyLength)
	}
	p := s.survival()
	if p <= 0 {
		return 0, 0, fmt.Errorf("key length %d unreachable: %w", keyLen, ErrNoSurvival)
	}
	return int(math.Ceil(float64(keyLen) / p)), p, nil
}

// Run estimates reaching a net key of keyLen bits: the qubit count
// T = ceil(keyLen/p), and the elapsed time
//
//	sendDelay(T) + receiveDelay(T) + 2·length/fiberSpeed
//
// counting round-trip propagation once for the whole batch.
func (s *Simulator) Run(keyLen int) (RunResult, error) {
	t, p, err := s.qubitsNeeded(keyLen)
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{
		QubitsNeeded:     t,
		TotalTimeSeconds: s.endpoints.Sender.SendDelay(t) + s.endpoints.Receiver.ReceiveDelay(t) + 2*s.propDelay(),
		QubitLossRate:    1 - p,
	}, nil
}

// RunFor estimates what a fixed time budget (seconds) yields. The budget is
// divided by the amortized per-qubit time sendDelay(1)+receiveDelay(1)+2·prop
// with floor division (remainder time is wasted, there is no partial qubit),
// and the expected net key is floor(qubits·p). QubitsNeeded reports the
// target-mode count for keyLen alongside, without reconciling the two.
func (s *Simulator) RunFor(keyLen int, budget float64) (BudgetResult, error) {
	if budget <= 0 {
		return BudgetResult{}, fmt.Errorf("budget %v: %w", budget, ErrInvalidBudget)
	}
	t, p, err := s.qubitsNeeded(keyLen)
	if err != nil {
		return BudgetResult{}, err
	}

	perQubit := s.endpoints.Sender.SendDelay(1) + s.endpoints.Receiver.ReceiveDelay(1) + 2*s.propDelay()
	if perQubit <= 0 {
		return BudgetResult{}, fmt.Errorf("per-qubit time %v: %w", perQubit, ErrInvalidBudget)
	}

	possible := int(math.Floor(budget / perQubit))
	return BudgetResult{
		QubitsNeeded:   t,
		QubitsPossible: possible,
		KeyGenerated:   int(math.Floor(float64(possible) * p)),
		QubitLossRate:  1 - p,
	}, nil
}

// EstimateKeyGenerationTime computes the same qubit count, elapsed time, and
// loss rate as Run. It exists as a separate entry point for callers asking
// "how long would this take" rather than "run it"; the formula is identical.
func (s *Simulator) EstimateKeyGenerationTime(keyLen int) (RunResult, error) {
	return s.Run(keyLen)
}

// RunAllDiagnostics returns the target-mode and budget-mode estimates in one
// call, plus the raw send and receive delay components at the target-mode
// qubit count.
func (s *Simulator) RunAllDiagnostics(keyLen int, fixedTime float64) (DiagnosticsResult, error) {
	run, err := s.Run(keyLen)
	if err != nil {
		return DiagnosticsResult{}, err
	}
	budget, err := s.RunFor(keyLen, fixedTime)
	if err != nil {
		return DiagnosticsResult{}, err
	}
	return DiagnosticsResult{
		QubitsNeeded:     run.QubitsNeeded,
		TotalTimeSeconds: run.TotalTimeSeconds,
		QubitsPossible:   budget.QubitsPossible,
		KeyGenerated:     budget.KeyGenerated,
		QubitLossRate:    run.QubitLossRate,
		SendDelay:        s.endpoints.Sender.SendDelay(run.QubitsNeeded),
		ReceiveDelay:     s.endpoints.Receiver.ReceiveDelay(run.QubitsNeeded),
	}, nil
}
