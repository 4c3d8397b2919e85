// Package music implements the pure pitch/name/frequency conversions that
// every other core package builds on: no state, no I/O.
package music

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedNoteName is returned when a note name cannot be parsed.
var ErrMalformedNoteName = errors.New("malformed note name")

// MinPitch and MaxPitch bound the piano range the detector and followers
// reason about (A0..C8).
const (
	MinPitch = 21
	MaxPitch = 108
)

var noteLetterSemitone = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// sharpNames is indexed by pitch class 0..11; emission is always sharps, never flats.
var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// PitchFromName parses a note name of the form L[A]O, e.g. "C4", "F#3", "Bb2",
// into a pitch integer. Both sharps and flats parse; NameFromPitch only emits sharps.
func PitchFromName(name string) (int, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedNoteName, name)
	}
	letter := s[0]
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	base, ok := noteLetterSemitone[letter]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMalformedNoteName, name)
	}

	rest := s[1:]
	accidental := 0
	if len(rest) > 0 {
		switch rest[0] {
		case '#':
			accidental = 1
			rest = rest[1:]
		case 'b', 'B':
			accidental = -1
			rest = rest[1:]
		}
	}
	if rest == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedNoteName, name)
	}

	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedNoteName, name)
	}

	return (octave+1)*12 + base + accidental, nil
}

// NameFromPitch renders a pitch integer as its canonical sharps-only note
// name. Deterministic; the exact inverse of PitchFromName on canonical input.
func NameFromPitch(pitch int) string {
	class := ((pitch % 12) + 12) % 12
	octave := floorDiv(pitch, 12) - 1
	return fmt.Sprintf("%s%d", sharpNames[class], octave)
}

// PitchClass returns the 0..11 pitch class of a pitch integer, ignoring octave.
func PitchClass(pitch int) int {
	return ((pitch % 12) + 12) % 12
}

// SamePitchClass reports whether two pitches are octave-equivalent.
func SamePitchClass(a, b int) bool {
	return PitchClass(a) == PitchClass(b)
}

// FreqFromPitch converts a pitch integer to frequency in Hz using A4=440Hz, 12-TET.
func FreqFromPitch(pitch int) float64 {
	return 440.0 * math.Pow(2, float64(pitch-69)/12.0)
}

// PitchFromFreq converts a frequency in Hz to the nearest pitch integer.
func PitchFromFreq(freq float64) int {
	if freq <= 0 {
		return 0
	}
	return int(math.Round(69 + 12*math.Log2(freq/440.0)))
}

// CentsError returns the signed error, in cents, of detected relative to
// expected: positive means detected is sharp of expected.
func CentsError(detectedHz, expectedHz float64) float64 {
	if detectedHz <= 0 || expectedHz <= 0 {
		return 0
	}
	return 1200 * math.Log2(detectedHz/expectedHz)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
