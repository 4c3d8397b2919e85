package exercise

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePassage(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "passage.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAndDecode(t *testing.T) {
	path := writePassage(t, `{
		"name": "C major scale",
		"bpm": 120,
		"beatsPerBar": 4,
		"beatUnit": 4,
		"leadInMs": 0,
		"notes": [
			{"names": ["C4"], "hand": "right", "bar": 1},
			{"names": ["D4"], "hand": "right", "bar": 1},
			{"names": ["E4"], "hand": "right", "bar": 1},
			{"names": ["F4"], "hand": "right", "bar": 1}
		]
	}`)

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "C major scale", p.Name)
	assert.Equal(t, 120.0, p.BPM)
	assert.Len(t, p.Notes, 4)
}

func TestExpectedTimeMsDistributesUniformlyWithinBar(t *testing.T) {
	p := Passage{
		Name: "test", BPM: 120, BeatsPerBar: 4, LeadInMs: 100,
		Notes: []NoteGroup{
			{Names: []string{"C4"}, Bar: 1},
			{Names: []string{"D4"}, Bar: 1},
			{Names: []string{"E4"}, Bar: 1},
			{Names: []string{"F4"}, Bar: 1},
		},
	}
	specs := p.ExpectedNotes()
	require.Len(t, specs, 4)

	barDurationMs := 4 * (60000.0 / 120.0)
	for i, spec := range specs {
		expected := 100.0 + barDurationMs*float64(i)/4.0
		assert.InDelta(t, expected, spec.ExpectedTimeMs, 1e-9)
	}
}

func TestExpectedTimeMsAdvancesAcrossBars(t *testing.T) {
	p := Passage{
		Name: "test", BPM: 60, BeatsPerBar: 4, LeadInMs: 0,
		Notes: []NoteGroup{
			{Names: []string{"C4"}, Bar: 1},
			{Names: []string{"G4"}, Bar: 2},
		},
	}
	specs := p.ExpectedNotes()
	require.Len(t, specs, 2)

	barDurationMs := 4 * (60000.0 / 60.0)
	assert.InDelta(t, 0.0, specs[0].ExpectedTimeMs, 1e-9)
	assert.InDelta(t, barDurationMs, specs[1].ExpectedTimeMs, 1e-9)
}

func TestChordGroupSharesOneExpectedTime(t *testing.T) {
	p := Passage{
		Name: "chord", BPM: 120, BeatsPerBar: 4, LeadInMs: 0,
		Notes: []NoteGroup{
			{Names: []string{"C4", "E4", "G4"}, Bar: 1},
		},
	}
	specs := p.ExpectedNotes()
	require.Len(t, specs, 3)
	for _, s := range specs {
		assert.InDelta(t, 0.0, s.ExpectedTimeMs, 1e-9)
	}
}

func TestPatternSequencePreservesBarAndNoteOrder(t *testing.T) {
	p := Passage{
		Notes: []NoteGroup{
			{Names: []string{"G4"}, Bar: 2},
			{Names: []string{"C4", "E4"}, Bar: 1},
		},
	}
	seq := p.PatternSequence()
	assert.Equal(t, []string{"C4", "E4", "G4"}, seq)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
