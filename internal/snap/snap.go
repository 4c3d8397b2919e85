// Package snap implements the score-aware snapper (spec §4.4.1): given an
// expected-note set, it nudges a raw pitch detection onto the nearest
// expected pitch by pitch-class, octave, harmonic, or semitone rules before
// the confirmation engine ever sees it.
package snap

import (
	"math"

	"github.com/schollz/pianopractice/internal/music"
	"github.com/schollz/pianopractice/internal/pitch"
)

const (
	exactMatchCents  = 35
	octaveMatchCents = 50
	harmonicCents    = 80
)

var octaveOffsets = []int{12, -12, 24, -24}
var harmonicRatios = []float64{2, 2.5, 3, 4}

// Result is a (possibly snapped) detection.
type Result struct {
	pitch.Detection
	OctaveCorrected bool
}

// Snapper holds the currently configured expected-note set. It is safe to
// reconfigure between frames (the UI→core setExpectedNotes command, spec
// §6); it holds no other state.
type Snapper struct {
	expected []int
}

// New returns a Snapper with no expected notes configured.
func New() *Snapper {
	return &Snapper{}
}

// SetExpected installs the expected pitch-integer set used to snap future
// detections. An empty set disables snapping entirely.
func (s *Snapper) SetExpected(pitches []int) {
	s.expected = append(s.expected[:0], pitches...)
}

// Expected returns the currently configured expected pitch set.
func (s *Snapper) Expected() []int {
	return s.expected
}

// Snap applies the four-rule cascade from spec §4.4.1 to a raw detection.
// If no expected note matches under any rule, the raw detection is
// returned unchanged — this is never treated as a wrong note here; that
// classification belongs to the follower (spec §4.8).
func (s *Snapper) Snap(raw pitch.Detection) Result {
	if len(s.expected) == 0 {
		return Result{Detection: raw}
	}
	if res, ok := s.exactMatch(raw); ok {
		return res
	}
	if res, ok := s.octaveMatch(raw); ok {
		return res
	}
	if res, ok := s.harmonicMatch(raw); ok {
		return res
	}
	if res, ok := s.semitoneMatch(raw); ok {
		return res
	}
	return Result{Detection: raw}
}

func (s *Snapper) exactMatch(raw pitch.Detection) (Result, bool) {
	bestPitch, bestCents, found := -1, math.Inf(1), false
	for _, e := range s.expected {
		theoretical := music.FreqFromPitch(e)
		cents := music.CentsError(raw.Frequency, theoretical)
		if math.Abs(cents) <= exactMatchCents && math.Abs(cents) < math.Abs(bestCents) {
			bestPitch, bestCents, found = e, cents, true
		}
	}
	if !found {
		return Result{}, false
	}
	return Result{Detection: snappedDetection(raw, bestPitch, music.FreqFromPitch(bestPitch), 1.0)}, true
}

func (s *Snapper) octaveMatch(raw pitch.Detection) (Result, bool) {
	bestPitch, bestCents, found := -1, math.Inf(1), false
	for _, e := range s.expected {
		for _, offset := range octaveOffsets {
			theoretical := music.FreqFromPitch(e + offset)
			cents := music.CentsError(raw.Frequency, theoretical)
			if math.Abs(cents) <= octaveMatchCents && math.Abs(cents) < math.Abs(bestCents) {
				bestPitch, bestCents, found = e, cents, true
			}
		}
	}
	if !found {
		return Result{}, false
	}
	det := snappedDetection(raw, bestPitch, music.FreqFromPitch(bestPitch), 0.9)
	return Result{Detection: det, OctaveCorrected: true}, true
}

func (s *Snapper) harmonicMatch(raw pitch.Detection) (Result, bool) {
	bestPitch, bestCents, found := -1, math.Inf(1), false
	for _, e := range s.expected {
		fundamental := music.FreqFromPitch(e)
		for _, ratio := range harmonicRatios {
			theoretical := fundamental * ratio
			cents := music.CentsError(raw.Frequency, theoretical)
			if math.Abs(cents) <= harmonicCents && math.Abs(cents) < math.Abs(bestCents) {
				bestPitch, bestCents, found = e, cents, true
			}
		}
	}
	if !found {
		return Result{}, false
	}
	return Result{Detection: snappedDetection(raw, bestPitch, music.FreqFromPitch(bestPitch), 0.85)}, true
}

func (s *Snapper) semitoneMatch(raw pitch.Detection) (Result, bool) {
	bestPitch, bestDiff, found := -1, math.MaxInt, false
	for _, e := range s.expected {
		diff := raw.Pitch - e
		if diff < 0 {
			diff = -diff
		}
		if (diff == 1 || diff == 2) && diff < bestDiff {
			bestPitch, bestDiff, found = e, diff, true
		}
	}
	if !found {
		return Result{}, false
	}
	return Result{Detection: snappedDetection(raw, bestPitch, music.FreqFromPitch(bestPitch), 0.75)}, true
}

func snappedDetection(raw pitch.Detection, snapPitch int, snapFreq float64, confidenceMultiplier float64) pitch.Detection {
	confidence := raw.Confidence * confidenceMultiplier
	if confidence > 1 {
		confidence = 1
	}
	return pitch.Detection{
		Pitch:      snapPitch,
		NoteName:   music.NameFromPitch(snapPitch),
		Frequency:  snapFreq,
		Confidence: confidence,
		Clarity:    raw.Clarity,
		RMS:        raw.RMS,
	}
}
