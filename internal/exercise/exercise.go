// Package exercise parses a practice passage definition and computes each
// note's expectedTimeMs, the input the time-indexed follower is built from
// (spec §6, "Exercise definition consumed at follower construction").
//
// Like the teacher's internal/storage, decoding goes through jsoniter's
// encoding/json-compatible config rather than the standard library.
package exercise

import (
	"fmt"
	"log"
	"os"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/schollz/pianopractice/internal/followtime"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NoteGroup is one notated chord/note event: one or more simultaneous note
// names struck by one hand at one bar position.
type NoteGroup struct {
	Names  []string        `json:"names"`
	Hand   followtime.Hand `json:"hand,omitempty"`
	Bar    int             `json:"bar"`
	Finger int             `json:"finger,omitempty"`
}

// Passage is the exercise definition as authored, before expectedTimeMs has
// been computed.
type Passage struct {
	Name        string      `json:"name"`
	BPM         float64     `json:"bpm"`
	BeatsPerBar int         `json:"beatsPerBar"`
	BeatUnit    int         `json:"beatUnit"`
	LeadInMs    float64     `json:"leadInMs"`
	Notes       []NoteGroup `json:"notes"`
}

// Load reads and decodes a passage definition from path.
func Load(path string) (Passage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Passage{}, fmt.Errorf("read passage: %w", err)
	}
	var p Passage
	if err := json.Unmarshal(raw, &p); err != nil {
		return Passage{}, fmt.Errorf("decode passage: %w", err)
	}
	log.Printf("[EXERCISE] loaded %q: %d bars, %d note groups", p.Name, maxBar(p.Notes), len(p.Notes))
	return p, nil
}

// ExpectedNotes expands a Passage into the flat NoteSpec list the
// time-indexed follower is constructed from, computing each group's
// expectedTimeMs by distributing note groups uniformly within their bar.
//
// barStartMs(bar) = (bar-1) * beatsPerBar * (60000/bpm) + leadInMs
func (p Passage) ExpectedNotes() []followtime.NoteSpec {
	if p.BPM <= 0 || p.BeatsPerBar <= 0 {
		return nil
	}
	msPerBeat := 60000.0 / p.BPM
	barDurationMs := float64(p.BeatsPerBar) * msPerBeat

	groupsByBar := make(map[int][]int) // bar -> indexes into p.Notes, in file order
	var bars []int
	for i, g := range p.Notes {
		if _, seen := groupsByBar[g.Bar]; !seen {
			bars = append(bars, g.Bar)
		}
		groupsByBar[g.Bar] = append(groupsByBar[g.Bar], i)
	}
	sort.Ints(bars)

	var specs []followtime.NoteSpec
	index := 0
	for _, bar := range bars {
		groupIdxs := groupsByBar[bar]
		barStartMs := float64(bar-1)*barDurationMs + p.LeadInMs
		n := len(groupIdxs)
		for slot, gi := range groupIdxs {
			g := p.Notes[gi]
			offsetMs := barDurationMs * float64(slot) / float64(n)
			expectedTimeMs := barStartMs + offsetMs
			for _, name := range g.Names {
				specs = append(specs, followtime.NoteSpec{
					NoteName:       name,
					Hand:           g.Hand,
					Bar:            bar,
					Index:          index,
					ExpectedTimeMs: expectedTimeMs,
					Finger:         g.Finger,
				})
				index++
			}
		}
	}
	return specs
}

// PatternSequence flattens a Passage into the ordered, timing-free note
// name sequence the pattern-indexed follower expects, preserving each
// group's own note ordering and bar order.
func (p Passage) PatternSequence() []string {
	sorted := append([]NoteGroup(nil), p.Notes...)
	stableSortByBar(sorted)
	var names []string
	for _, g := range sorted {
		names = append(names, g.Names...)
	}
	return names
}

func stableSortByBar(groups []NoteGroup) {
	for i := 1; i < len(groups); i++ {
		for j := i; j > 0 && groups[j].Bar < groups[j-1].Bar; j-- {
			groups[j], groups[j-1] = groups[j-1], groups[j]
		}
	}
}

func maxBar(notes []NoteGroup) int {
	max := 0
	for _, n := range notes {
		if n.Bar > max {
			max = n.Bar
		}
	}
	return max
}
