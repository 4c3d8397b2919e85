// Package onset implements the per-frame RMS-differentiator onset detector
// (spec §4.3): a cheap energy-jump flag the confirmation engine uses for its
// re-trigger gate.
package onset

import "math"

const (
	strengthThreshold = 1.5
	rmsFloor          = 0.002
	prevRmsEpsilon    = 1e-9
)

// Result is the outcome of one onset detection pass.
type Result struct {
	IsOnset  bool
	Strength float64
}

// Detector tracks the previous frame's RMS across calls.
type Detector struct {
	prevRms    float64
	hasPrevRms bool
}

// New returns a Detector with no prior frame recorded.
func New() *Detector {
	return &Detector{}
}

// Detect computes RMS for frame and compares it against the previous call's
// RMS to decide whether an onset occurred.
func (d *Detector) Detect(frame []float32) Result {
	rms := computeRMS(frame)
	result := FromRms(d.prevRms, rms, d.hasPrevRms)
	d.prevRms = rms
	d.hasPrevRms = true
	return result
}

// DefaultStrengthThreshold is the ratio a frame's RMS must exceed the
// previous frame's RMS by to count as an onset, absent a setGates override.
const DefaultStrengthThreshold = strengthThreshold

// FromRms applies the same strength/floor test as Detect, for callers (like
// the confirmation engine's onset re-trigger gate) that already have a
// precomputed RMS rather than a raw frame.
func FromRms(prevRms, currentRms float64, hasPrevRms bool) Result {
	return FromRmsWithThreshold(prevRms, currentRms, hasPrevRms, strengthThreshold)
}

// FromRmsWithThreshold is FromRms with a caller-supplied strength
// threshold, for the confirmation engine's setGates(onsetRatio) override.
func FromRmsWithThreshold(prevRms, currentRms float64, hasPrevRms bool, threshold float64) Result {
	strength := 1.0
	if hasPrevRms && prevRms > prevRmsEpsilon {
		strength = currentRms / prevRms
	}
	isOnset := strength > threshold && currentRms > rmsFloor
	return Result{IsOnset: isOnset, Strength: strength}
}

// Reset clears the remembered previous RMS.
func (d *Detector) Reset() {
	d.prevRms = 0
	d.hasPrevRms = false
}

func computeRMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range frame {
		v := float64(s)
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(len(frame)))
}
