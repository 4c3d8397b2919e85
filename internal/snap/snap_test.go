package snap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/pianopractice/internal/music"
	"github.com/schollz/pianopractice/internal/pitch"
)

func rawDetection(freq float64) pitch.Detection {
	p := music.PitchFromFreq(freq)
	return pitch.Detection{
		Pitch:      p,
		NoteName:   music.NameFromPitch(p),
		Frequency:  freq,
		Confidence: 0.9,
		Clarity:    0.9,
		RMS:        0.1,
	}
}

func TestNoExpectedNotesPassesThrough(t *testing.T) {
	s := New()
	raw := rawDetection(440)
	res := s.Snap(raw)
	assert.Equal(t, raw, res.Detection)
	assert.False(t, res.OctaveCorrected)
}

func TestExactPitchClassMatchSnapsAndKeepsConfidence(t *testing.T) {
	s := New()
	s.SetExpected([]int{60}) // C4
	raw := rawDetection(music.FreqFromPitch(60) * 1.002) // a few cents sharp

	res := s.Snap(raw)
	assert.Equal(t, 60, res.Pitch)
	assert.InDelta(t, music.FreqFromPitch(60), res.Frequency, 1e-9)
	assert.False(t, res.OctaveCorrected)
	assert.InDelta(t, raw.Confidence, res.Confidence, 1e-9)
}

func TestOctaveEquivalentMatchMarksCorrected(t *testing.T) {
	s := New()
	s.SetExpected([]int{60}) // C4
	raw := rawDetection(music.FreqFromPitch(72)) // C5, +12 semitones

	res := s.Snap(raw)
	assert.Equal(t, 60, res.Pitch)
	assert.True(t, res.OctaveCorrected)
	assert.InDelta(t, raw.Confidence*0.9, res.Confidence, 1e-9)
}

func TestHarmonicMatchSnapsToFundamental(t *testing.T) {
	s := New()
	s.SetExpected([]int{60}) // C4
	raw := rawDetection(music.FreqFromPitch(60) * 3) // third harmonic

	res := s.Snap(raw)
	assert.Equal(t, 60, res.Pitch)
	assert.InDelta(t, raw.Confidence*0.85, res.Confidence, 1e-9)
}

func TestSemitoneSnapForNearMiss(t *testing.T) {
	s := New()
	s.SetExpected([]int{60}) // C4
	raw := rawDetection(music.FreqFromPitch(62)) // D4, 2 semitones away

	res := s.Snap(raw)
	assert.Equal(t, 60, res.Pitch)
	assert.InDelta(t, raw.Confidence*0.75, res.Confidence, 1e-9)
}

func TestNoMatchPassesThroughUnchanged(t *testing.T) {
	s := New()
	s.SetExpected([]int{60}) // C4
	raw := rawDetection(music.FreqFromPitch(67)) // G4, far away

	res := s.Snap(raw)
	assert.Equal(t, raw, res.Detection)
	assert.False(t, res.OctaveCorrected)
}

func TestClosestExpectedNoteWins(t *testing.T) {
	s := New()
	s.SetExpected([]int{59, 60}) // B3, C4
	raw := rawDetection(music.FreqFromPitch(60) * 1.0005)

	res := s.Snap(raw)
	assert.Equal(t, 60, res.Pitch, "closer expected note should be preferred")
}
