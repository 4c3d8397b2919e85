package pitch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/pianopractice/internal/music"
	"github.com/schollz/pianopractice/internal/synth"
)

const testSampleRate = 44100.0

func steadyFrame(freq float64, harmonics []float64, sampleCount int) []float32 {
	// A flat envelope keeps the whole frame in the sustain region so RMS is
	// stable across the window, matching a held piano note.
	flat := synth.ADSR{AttackMs: 1, DecayMs: 1, SustainLvl: 1.0, ReleaseMs: 1}
	durationMs := float64(sampleCount) / testSampleRate * 1000
	tone := synth.Tone(freq, testSampleRate, durationMs+5, harmonics, flat)
	return tone[:sampleCount]
}

func TestDetectPureToneC4(t *testing.T) {
	d := New(testSampleRate)
	frame := steadyFrame(music.FreqFromPitch(60), []float64{1.0}, DefaultWindowSamples)

	det, ok := d.Detect(frame)
	if assert.True(t, ok, "expected a detection for a clean C4 tone") {
		assert.Equal(t, 60, det.Pitch)
		assert.InDelta(t, music.FreqFromPitch(60), det.Frequency, 2.0)
		assert.Greater(t, det.Confidence, 0.7)
	}
}

func TestDetectPianoLikeA4(t *testing.T) {
	d := New(testSampleRate)
	frame := steadyFrame(music.FreqFromPitch(69), synth.PianoHarmonics, DefaultWindowSamples)

	det, ok := d.Detect(frame)
	if assert.True(t, ok) {
		assert.Equal(t, 69, det.Pitch)
	}
}

func TestDetectLowNoteLandsOnAHarmonic(t *testing.T) {
	d := New(testSampleRate)
	// The first-minimum search band only reaches down to ~150Hz (spec
	// §4.4 step 4), so a true fundamental below that, like A2 (110Hz),
	// is necessarily read off one of its own harmonics rather than
	// directly — the scenario the octave-disambiguation step (step 6)
	// exists to partially correct. Assert the plausible-harmonic
	// property rather than the exact fundamental.
	fundamental := music.FreqFromPitch(45)
	frame := steadyFrame(fundamental, synth.PianoHarmonics, LowNoteWindowSamples)

	det, ok := d.Detect(frame)
	if assert.True(t, ok, "a strong low harmonic series should still yield some detection") {
		matchesHarmonic := false
		for h := 1; h <= 4; h++ {
			if math.Abs(det.Frequency-fundamental*float64(h)) < 5 {
				matchesHarmonic = true
				break
			}
		}
		assert.True(t, matchesHarmonic, "expected detection near a harmonic of %f, got %f", fundamental, det.Frequency)
	}
}

func TestSilenceNoDetection(t *testing.T) {
	d := New(testSampleRate)
	frame := make([]float32, DefaultWindowSamples)

	_, ok := d.Detect(frame)
	assert.False(t, ok)
}

func TestBelowEnergyGateNoDetection(t *testing.T) {
	d := New(testSampleRate)
	frame := steadyFrame(music.FreqFromPitch(60), []float64{0.0001}, DefaultWindowSamples)

	_, ok := d.Detect(frame)
	assert.False(t, ok)
}

func TestWhiteNoiseUsuallyNoDetection(t *testing.T) {
	d := New(testSampleRate)
	frame := make([]float32, DefaultWindowSamples)
	seed := uint32(12345)
	for i := range frame {
		// deterministic xorshift PRNG so the test has no hidden time/random dependency
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		frame[i] = float32(seed%2000-1000) / 1000.0
	}

	_, ok := d.Detect(frame)
	assert.False(t, ok, "pure noise should not yield a confident pitch")
}

func TestApplyPitchFloorRejectsOutOfRange(t *testing.T) {
	d := New(testSampleRate)
	frame := steadyFrame(80, []float64{1.0}, 512)

	_, ok := d.applyPitchFloor(frame, 80)
	assert.False(t, ok, "80Hz with no octave support should fall below the hard floor")

	_, ok = d.applyPitchFloor(frame, 6000)
	assert.False(t, ok, "6kHz is above the hard ceiling")

	freq, ok := d.applyPitchFloor(frame, 440)
	assert.True(t, ok)
	assert.Equal(t, 440.0, freq)
}

func TestParabolicInterpolateGuardsFlatRegion(t *testing.T) {
	cmnd := []float64{1, 0.1, 0.1, 0.1, 1}
	refined := parabolicInterpolate(cmnd, 2)
	assert.False(t, math.IsNaN(refined))
	assert.InDelta(t, 2.0, refined, 1e-9)
}

func TestCumulativeMeanNormalizedDifferenceGuardsZero(t *testing.T) {
	d := []float64{0, 0, 0, 0}
	c := cumulativeMeanNormalizedDifference(d)
	for _, v := range c {
		assert.False(t, math.IsNaN(v))
		assert.False(t, math.IsInf(v, 0))
	}
}
