package sim

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// BPSKBitError returns the bit error probability of BPSK modulation at the
// given signal-to-noise ratio in dB.
//
// The dB figure is converted to a linear Eb/N0 ratio, and the error
// probability is the Gaussian tail beyond sqrt(2·Eb/N0):
//
//	Pb = Q(sqrt(2·Eb/N0)) = 1/2·erfc(sqrt(Eb/N0))
//
// Useful as a derived source, e.g.
// calc.AddDerivedError("detector", func() float64 { return sim.BPSKBitError(20) }).
func BPSKBitError(snrDB float64) float64 {
	ratio := math.Pow(10, snrDB/10)
	q := math.Sqrt(2 * ratio)
	return distuv.UnitNormal.Survival(q)
}
