// Package pitch implements the monophonic pitch detector (spec §4.4): an
// autocorrelation-style (YIN-family) detector over a windowed sample frame,
// producing a pitch integer, frequency, confidence and clarity, or nothing.
//
// Of the two detector variants the source carries (first-minimum with
// multi-candidate octave disambiguation, and a simpler "always prefer
// higher octave" variant) this package implements the former, per the
// open question in spec §9 — see DESIGN.md for the reasoning.
package pitch

import (
	"math"

	"github.com/schollz/pianopractice/internal/music"
)

// Window lengths selected externally by the session depending on whether any
// expected note falls below the low-note threshold (spec §4.4, §6).
const (
	DefaultWindowSamples = 3072 // ~70ms at 44.1kHz
	LowNoteWindowSamples = 6144 // ~140ms at 44.1kHz
	LowNoteFreqThreshold = 130.0
)

const (
	energyGateRMS          = 0.002
	firstMinimumThreshold  = 0.20
	ambiguousHardCap       = 0.35
	octaveAcceptCmndCap    = 0.30
	goertzelRatioThreshold = 0.20
	epsilon                = 1e-12

	searchBandLowFreq  = 1000.0 // Hz, smaller tau
	searchBandHighFreq = 150.0  // Hz, larger tau

	hardFloorFreq   = 130.0
	hardCeilingFreq = 4500.0
)

// Detection is a single pitch-detector output: the emitted shape from spec §4.4 step 8.
type Detection struct {
	Pitch      int
	NoteName   string
	Frequency  float64
	Confidence float64
	Clarity    float64
	RMS        float64
}

// Detector holds the configuration (sample rate, low-octave threshold) a
// capture session constructs once and reuses for every frame.
type Detector struct {
	sampleRate             float64
	lowOctaveFreqThreshold float64
}

// New returns a Detector for the given sample rate with the default
// low-octave disambiguation threshold (~250Hz).
func New(sampleRate float64) *Detector {
	return &Detector{sampleRate: sampleRate, lowOctaveFreqThreshold: 250.0}
}

// NewWithLowOctaveThreshold is New with an explicit octave-disambiguation
// threshold, per the "configurable" note in spec §4.4 step 6.
func NewWithLowOctaveThreshold(sampleRate, lowOctaveFreqThreshold float64) *Detector {
	return &Detector{sampleRate: sampleRate, lowOctaveFreqThreshold: lowOctaveFreqThreshold}
}

// Detect runs the full algorithm from spec §4.4 over one sample frame.
// ok is false when the frame is silent or too ambiguous to call a pitch —
// this is the normal, silent "no detection" outcome (spec §7), never an error.
func (d *Detector) Detect(frame []float32) (det Detection, ok bool) {
	l := len(frame)
	if l < 8 {
		return Detection{}, false
	}

	rms := rootMeanSquare(frame)
	if rms < energyGateRMS {
		return Detection{}, false
	}

	tauMax := l / 2
	if srBound := int(d.sampleRate / 50); srBound < tauMax {
		tauMax = srBound
	}
	if tauMax < 4 {
		return Detection{}, false
	}

	diff := differenceFunction(frame, tauMax)
	cmnd := cumulativeMeanNormalizedDifference(diff)

	bandLow := int(d.sampleRate / searchBandLowFreq)
	if bandLow < 2 {
		bandLow = 2
	}
	bandHigh := int(d.sampleRate / searchBandHighFreq)
	if bandHigh >= tauMax {
		bandHigh = tauMax - 1
	}
	if bandHigh <= bandLow {
		return Detection{}, false
	}

	tau, found := firstMinimum(cmnd, bandLow, bandHigh, firstMinimumThreshold)
	if !found {
		tau, found = globalArgmin(cmnd, bandLow, bandHigh)
		if !found || cmnd[tau] > ambiguousHardCap {
			return Detection{}, false
		}
	}

	refinedTau := parabolicInterpolate(cmnd, tau)
	if refinedTau <= 0 {
		return Detection{}, false
	}
	freq := d.sampleRate / refinedTau
	cFinal := cmnd[tau]

	freq, cFinal = d.disambiguateOctave(frame, cmnd, freq, cFinal)

	freq, ok = d.applyPitchFloor(frame, freq)
	if !ok {
		return Detection{}, false
	}

	pitchInt := music.PitchFromFreq(freq)
	confidence := clamp01(1 - cFinal)
	return Detection{
		Pitch:      pitchInt,
		NoteName:   music.NameFromPitch(pitchInt),
		Frequency:  freq,
		Confidence: confidence,
		Clarity:    confidence,
		RMS:        rms,
	}, true
}

// disambiguateOctave implements spec §4.4 step 6: piano audio often yields a
// detection one octave below the perceived pitch. If the candidate is below
// the low-octave threshold, check whether doubling it (halving tau) is
// better supported, either by CMND or by spectral energy.
func (d *Detector) disambiguateOctave(frame []float32, cmnd []float64, freq, cFinal float64) (float64, float64) {
	if freq >= d.lowOctaveFreqThreshold {
		return freq, cFinal
	}
	altTau := d.sampleRate / (freq * 2)
	altIndex := int(math.Round(altTau))
	if altIndex < 1 || altIndex >= len(cmnd) {
		return freq, cFinal
	}

	altCmnd := cmnd[altIndex]
	supportedByCmnd := altCmnd < octaveAcceptCmndCap
	supportedBySpectrum := goertzelMagnitude(frame, freq*2, d.sampleRate) >= goertzelRatioThreshold*goertzelMagnitude(frame, freq, d.sampleRate)

	if supportedByCmnd || supportedBySpectrum {
		return freq * 2, altCmnd
	}
	return freq, cFinal
}

// applyPitchFloor implements spec §4.4 step 7: notes below the hard floor
// get one more chance at an octave-up correction if the spectrum supports
// it, otherwise frequencies outside [130, 4500] Hz are rejected.
func (d *Detector) applyPitchFloor(frame []float32, freq float64) (float64, bool) {
	if freq < hardFloorFreq {
		if goertzelMagnitude(frame, freq*2, d.sampleRate) >= goertzelRatioThreshold*goertzelMagnitude(frame, freq, d.sampleRate) {
			freq *= 2
		}
	}
	if freq < hardFloorFreq || freq > hardCeilingFreq {
		return 0, false
	}
	return freq, true
}

func differenceFunction(frame []float32, tauMax int) []float64 {
	l := len(frame)
	limit := l - tauMax
	if limit <= 0 {
		limit = l
	}
	d := make([]float64, tauMax)
	for tau := 0; tau < tauMax; tau++ {
		var sum float64
		upper := limit
		if upper+tau > l {
			upper = l - tau
		}
		for i := 0; i < upper; i++ {
			diff := float64(frame[i]) - float64(frame[i+tau])
			sum += diff * diff
		}
		d[tau] = sum
	}
	return d
}

func cumulativeMeanNormalizedDifference(d []float64) []float64 {
	c := make([]float64, len(d))
	if len(d) == 0 {
		return c
	}
	c[0] = 1
	var runningSum float64
	for tau := 1; tau < len(d); tau++ {
		runningSum += d[tau]
		if runningSum < epsilon {
			c[tau] = 1
		} else {
			c[tau] = d[tau] * float64(tau) / runningSum
		}
	}
	return c
}

// firstMinimum walks from bandLow looking for the first tau under threshold,
// then follows the dip to its local minimum (spec §4.4 step 4).
func firstMinimum(cmnd []float64, bandLow, bandHigh int, threshold float64) (int, bool) {
	for tau := bandLow; tau <= bandHigh; tau++ {
		if cmnd[tau] < threshold {
			for tau+1 < len(cmnd) && cmnd[tau+1] < cmnd[tau] {
				tau++
			}
			return tau, true
		}
	}
	return 0, false
}

func globalArgmin(cmnd []float64, bandLow, bandHigh int) (int, bool) {
	best := -1
	bestVal := math.Inf(1)
	for tau := bandLow; tau <= bandHigh; tau++ {
		if cmnd[tau] < bestVal {
			bestVal = cmnd[tau]
			best = tau
		}
	}
	return best, best >= 0
}

// parabolicInterpolate refines an integer tau to fractional precision using
// its neighbours, guarding the denominator against the near-zero case
// (spec §9's floating-point-edge-case note).
func parabolicInterpolate(cmnd []float64, tau int) float64 {
	if tau <= 0 || tau >= len(cmnd)-1 {
		return float64(tau)
	}
	s0, s1, s2 := cmnd[tau-1], cmnd[tau], cmnd[tau+1]
	denom := s0 - 2*s1 + s2
	if math.Abs(denom) < epsilon {
		return float64(tau)
	}
	delta := 0.5 * (s0 - s2) / denom
	if delta > 1 {
		delta = 1
	} else if delta < -1 {
		delta = -1
	}
	return float64(tau) + delta
}

// goertzelMagnitude estimates the spectral magnitude at freq using a
// single-bin Goertzel filter, used to arbitrate octave ambiguity without a
// full FFT.
func goertzelMagnitude(frame []float32, freq, sampleRate float64) float64 {
	n := len(frame)
	if n == 0 || freq <= 0 {
		return 0
	}
	k := math.Round(float64(n) * freq / sampleRate)
	omega := 2 * math.Pi * k / float64(n)
	coeff := 2 * math.Cos(omega)

	var s1, s2 float64
	for _, x := range frame {
		s0 := coeff*s1 - s2 + float64(x)
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		power = 0
	}
	return math.Sqrt(power)
}

func rootMeanSquare(frame []float32) float64 {
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

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
