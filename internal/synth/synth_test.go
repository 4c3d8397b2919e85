package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToneLength(t *testing.T) {
	samples := Tone(440, 44100, 100, PianoHarmonics, DefaultADSR)
	assert.InDelta(t, 4410, len(samples), 2)
}

func TestToneEnvelopeFadesOut(t *testing.T) {
	samples := Tone(440, 44100, 200, PianoHarmonics, DefaultADSR)
	lastQuarter := samples[len(samples)-10:]
	peakRegion := samples[len(samples)/4 : len(samples)/4+10]

	var lastEnergy, peakEnergy float64
	for _, s := range lastQuarter {
		lastEnergy += float64(s * s)
	}
	for _, s := range peakRegion {
		peakEnergy += float64(s * s)
	}
	assert.Less(t, lastEnergy, peakEnergy, "release should fade below sustain level")
}

func TestOverlayExtendsBacking(t *testing.T) {
	backing := make([]float32, 10)
	tone := []float32{1, 1, 1}
	out := Overlay(backing, tone, 8)

	assert.Len(t, out, 11)
	assert.Equal(t, float32(1), out[8])
	assert.Equal(t, float32(1), out[10])
}

func TestOverlayAddsWithinBounds(t *testing.T) {
	backing := []float32{0.1, 0.1, 0.1, 0.1}
	tone := []float32{0.2, 0.2}
	out := Overlay(backing, tone, 1)

	assert.InDelta(t, float32(0.3), out[1], 1e-6)
	assert.InDelta(t, float32(0.3), out[2], 1e-6)
	assert.InDelta(t, float32(0.1), out[3], 1e-6)
}
