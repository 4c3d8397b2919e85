package exercise

import (
	"math/rand"

	"github.com/schollz/pianopractice/internal/music"
)

// Variation describes a practice-drill transform applied to a Passage before
// it is turned into follower note specs: transpose by a fixed interval,
// optionally add a bounded random offset, and optionally re-quantize the
// result onto a named scale. This is how a single authored passage (say, a
// C-major scale) gets drilled in other keys or with octave variety, without
// authoring a separate JSON file per key.
//
// Grounded on the teacher's internal/modulation, whose ModulateSettings
// applies the same add/random/scale-quantize chain to a tracker row's MIDI
// note; here the chain runs once per NoteGroup at passage-load time instead
// of once per playback step.
type Variation struct {
	Transpose   int    `json:"transpose"`   // semitones, applied to every note
	RandomRange int    `json:"randomRange"` // 0 disables; else adds rng.Intn(RandomRange+1)
	Scale       string `json:"scale"`       // "" or "all" disables quantization
	ScaleRoot   int    `json:"scaleRoot"`   // 0-11, only used when Scale is set
}

// Apply returns a copy of p with every note's pitch transformed by v, using
// rng for the random-range step. A zero-value Variation keeps every pitch,
// but each parsed name is written back in canonical sharps form (so "Bb4"
// comes back as "A#4"). Names that fail to parse pass through unchanged.
func (p Passage) Apply(v Variation, rng *rand.Rand) Passage {
	out := p
	out.Notes = make([]NoteGroup, len(p.Notes))
	for i, g := range p.Notes {
		ng := g
		ng.Names = make([]string, len(g.Names))
		for j, name := range g.Names {
			ng.Names[j] = v.transformName(name, rng)
		}
		out.Notes[i] = ng
	}
	return out
}

func (v Variation) transformName(name string, rng *rand.Rand) string {
	pitch, err := music.PitchFromName(name)
	if err != nil {
		return name
	}

	result := pitch + v.Transpose
	if v.RandomRange > 0 && rng != nil {
		result += rng.Intn(v.RandomRange + 1)
	}
	if v.Scale != "" && v.Scale != "all" {
		result = quantizeToScale(result, v.Scale, v.ScaleRoot)
	}
	return music.NameFromPitch(result)
}

// Scale is a set of semitone offsets within an octave that a quantized
// variation snaps onto.
type Scale struct {
	Name  string
	Notes []int
}

// Scales mirrors the teacher's fixed scale table, trimmed to the modes most
// useful for sight-reading drills that avoid the awkward fingerings a raw
// random transpose would introduce.
var Scales = map[string]Scale{
	"all":        {Name: "All Notes", Notes: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}},
	"major":      {Name: "Major", Notes: []int{0, 2, 4, 5, 7, 9, 11}},
	"minor":      {Name: "Minor", Notes: []int{0, 2, 3, 5, 7, 8, 10}},
	"pentatonic": {Name: "Pentatonic", Notes: []int{0, 2, 4, 7, 9}},
	"blues":      {Name: "Blues", Notes: []int{0, 3, 5, 6, 7, 10}},
}

// quantizeToScale snaps note to the nearest pitch class in the named scale,
// transposed so scaleRoot sits at scale degree 0.
func quantizeToScale(note int, scaleName string, scaleRoot int) int {
	scale, exists := Scales[scaleName]
	if !exists {
		return note
	}

	noteInOctave := note % 12
	if noteInOctave < 0 {
		noteInOctave += 12
	}
	transposed := (noteInOctave - scaleRoot + 12) % 12

	minDistance := 12
	closest := transposed
	for _, scaleNote := range scale.Notes {
		d := abs(transposed - scaleNote)
		if d > 6 {
			d = 12 - d
		}
		if d < minDistance {
			minDistance = d
			closest = scaleNote
		}
	}

	shift := (closest - transposed + 12) % 12
	if shift > 6 {
		shift -= 12
	}
	return note + shift
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
