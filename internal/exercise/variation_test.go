package exercise

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func onePassage(names ...string) Passage {
	p := Passage{Name: "test", BPM: 120, BeatsPerBar: 4}
	for _, n := range names {
		p.Notes = append(p.Notes, NoteGroup{Names: []string{n}, Bar: 1})
	}
	return p
}

func TestApplyTransposeShiftsEveryNote(t *testing.T) {
	p := onePassage("C4", "E4", "G4")
	out := p.Apply(Variation{Transpose: 2}, nil)
	assert.Equal(t, []string{"D4"}, out.Notes[0].Names)
	assert.Equal(t, []string{"F#4"}, out.Notes[1].Names)
	assert.Equal(t, []string{"A4"}, out.Notes[2].Names)
}

func TestApplyZeroValueIsNoOp(t *testing.T) {
	p := onePassage("C4", "D4")
	out := p.Apply(Variation{}, nil)
	assert.Equal(t, p.Notes[0].Names, out.Notes[0].Names)
	assert.Equal(t, p.Notes[1].Names, out.Notes[1].Names)
}

func TestApplyRandomRangeIsBoundedAndReproducibleWithSameSeed(t *testing.T) {
	p := onePassage("C4")
	v := Variation{RandomRange: 5}

	rng1 := rand.New(rand.NewSource(42))
	out1 := p.Apply(v, rng1)

	rng2 := rand.New(rand.NewSource(42))
	out2 := p.Apply(v, rng2)

	assert.Equal(t, out1.Notes[0].Names, out2.Notes[0].Names)
	// rng.Intn(RandomRange+1) adds 0..5 semitones to C4.
	assert.Contains(t, []string{"C4", "C#4", "D4", "D#4", "E4", "F4"}, out1.Notes[0].Names[0])
}

func TestApplyScaleQuantizationSnapsToNearestScaleTone(t *testing.T) {
	// C#4 is not in C major; nearest scale tones are C4 and D4, both one
	// semitone away, so either is an acceptable quantization target.
	p := onePassage("C#4")
	out := p.Apply(Variation{Scale: "major", ScaleRoot: 0}, nil)
	assert.Contains(t, []string{"C4", "D4"}, out.Notes[0].Names[0])
}

func TestApplyMalformedNotePassesThrough(t *testing.T) {
	p := onePassage("not-a-note")
	out := p.Apply(Variation{Transpose: 5}, nil)
	assert.Equal(t, []string{"not-a-note"}, out.Notes[0].Names)
}

func TestApplyUnknownScaleNameIsNoQuantization(t *testing.T) {
	p := onePassage("C4")
	out := p.Apply(Variation{Scale: "dorian-typo"}, nil)
	assert.Equal(t, []string{"C4"}, out.Notes[0].Names)
}
