// Package followtime implements the time-indexed score follower (spec
// §4.6): it walks a fixed list of timed expected notes, matching confirmed
// detections against the earliest still-pending note inside a timing
// window, sweeping missed notes on a cadence, and reporting progress.
package followtime

import (
	"errors"
	"fmt"
	"sort"

	"github.com/schollz/pianopractice/internal/music"
)

// ErrInvalidArgument is returned at construction for shape-invalid inputs
// (spec §4.8): an empty note list or a malformed note name.
var ErrInvalidArgument = errors.New("invalid argument")

// Status is a timed note's lifecycle stage. This follower moves a note from
// pending straight to hit or missed (it never assigns StatusActive); only
// Reset returns a note to pending.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusHit     Status = "hit"
	StatusMissed  Status = "missed"
)

// Hand names which hand a note is written for, when the exercise specifies
// one.
type Hand string

const (
	HandLeft  Hand = "left"
	HandRight Hand = "right"
	HandNone  Hand = ""
)

// TimingStatus classifies how early or late an accepted match landed
// relative to its expected time.
type TimingStatus string

const (
	TimingEarly  TimingStatus = "early"
	TimingOnTime TimingStatus = "on_time"
	TimingLate   TimingStatus = "late"
)

// NoteSpec is one entry in the exercise's timed note list, as supplied at
// construction.
type NoteSpec struct {
	NoteName      string
	Hand          Hand
	Bar           int
	Index         int
	ExpectedTimeMs float64
	Finger        int // 0 means unspecified
}

// note is the follower's live, mutable view of a NoteSpec.
type note struct {
	spec   NoteSpec
	status Status
}

// Tolerances configures the acceptance and timing-classification windows.
type Tolerances struct {
	OnTimeToleranceMs float64
	MaxTimingWindowMs float64
}

// DefaultTolerances matches spec §4.6's defaults.
var DefaultTolerances = Tolerances{OnTimeToleranceMs: 150, MaxTimingWindowMs: 500}

// MatchResult is emitted by ProcessDetection on a successful match.
type MatchResult struct {
	NoteIndex     int
	NoteName      string
	Matched       bool
	TimingStatus  TimingStatus
	TimingErrorMs float64
	Feedback      string
}

// Progress summarizes follower state for the renderer (spec §8 property 6).
type Progress struct {
	Total           int
	Matched         int
	Missed          int
	Pending         int
	Active          int
	PercentComplete float64
}

// OnWrongNote is invoked when a detected name matches no pending note
// inside the timing window. expectedNames lists the names currently within
// range, for UI hinting.
type OnWrongNote func(detectedName string, expectedNames []string)

// Follower tracks one exercise's timed expected-note list.
type Follower struct {
	notes      []*note
	tolerances Tolerances
	onMatch    func(MatchResult)
	onWrong    OnWrongNote
}

// New constructs a Follower from a validated note list. It fails
// synchronously on an empty list or a malformed note name, per spec §4.8.
func New(specs []NoteSpec, tolerances Tolerances, onMatch func(MatchResult), onWrong OnWrongNote) (*Follower, error) {
	if len(specs) == 0 {
		return nil, ErrInvalidArgument
	}
	notes := make([]*note, len(specs))
	for i, s := range specs {
		if _, err := music.PitchFromName(s.NoteName); err != nil {
			return nil, ErrInvalidArgument
		}
		notes[i] = &note{spec: s, status: StatusPending}
	}
	return &Follower{notes: notes, tolerances: tolerances, onMatch: onMatch, onWrong: onWrong}, nil
}

// ProcessDetection scans still-pending notes in expectedTimeMs order (ties
// broken by lower index) for the earliest one within the timing window
// whose name matches by pitch-class equivalence. The first such note is
// marked hit and a MatchResult returned; otherwise onWrong fires and nil is
// returned.
func (f *Follower) ProcessDetection(noteName string, elapsedMs float64) *MatchResult {
	detectedPitch, err := music.PitchFromName(noteName)
	if err != nil {
		return nil
	}

	candidates := f.pendingInOrder()
	for _, n := range candidates {
		diff := elapsedMs - n.spec.ExpectedTimeMs
		if diff < 0 {
			diff = -diff
		}
		if diff > f.tolerances.MaxTimingWindowMs {
			continue
		}
		if !namesMatchByPitchClass(detectedPitch, n.spec.NoteName) {
			continue
		}

		n.status = StatusHit
		errMs := elapsedMs - n.spec.ExpectedTimeMs
		status := classifyTiming(errMs, f.tolerances.OnTimeToleranceMs)
		result := MatchResult{
			NoteIndex:     n.spec.Index,
			NoteName:      n.spec.NoteName,
			Matched:       true,
			TimingStatus:  status,
			TimingErrorMs: errMs,
			Feedback:      feedbackFor(status, errMs),
		}
		if f.onMatch != nil {
			f.onMatch(result)
		}
		return &result
	}

	if f.onWrong != nil {
		f.onWrong(noteName, f.getExpectedNotesLocked(elapsedMs))
	}
	return nil
}

// AdvanceMissedNotes marks every pending note whose window has fully
// elapsed as missed and returns their indexes. Idempotent: a note already
// hit or missed is never re-marked (spec §8 property 10).
func (f *Follower) AdvanceMissedNotes(elapsedMs float64) []int {
	var missed []int
	for _, n := range f.notes {
		if n.status != StatusPending {
			continue
		}
		if elapsedMs > n.spec.ExpectedTimeMs+f.tolerances.MaxTimingWindowMs {
			n.status = StatusMissed
			missed = append(missed, n.spec.Index)
		}
	}
	return missed
}

// GetExpectedNotes returns up to three pending note names whose window
// contains elapsedMs, ordered by expected time.
func (f *Follower) GetExpectedNotes(elapsedMs float64) []string {
	return f.getExpectedNotesLocked(elapsedMs)
}

func (f *Follower) getExpectedNotesLocked(elapsedMs float64) []string {
	var names []string
	for _, n := range f.pendingInOrder() {
		low := n.spec.ExpectedTimeMs - f.tolerances.MaxTimingWindowMs
		high := n.spec.ExpectedTimeMs + f.tolerances.MaxTimingWindowMs
		if elapsedMs >= low && elapsedMs <= high {
			names = append(names, n.spec.NoteName)
			if len(names) == 3 {
				break
			}
		}
	}
	return names
}

// GetProgress reports aggregate counts and completion percentage.
func (f *Follower) GetProgress() Progress {
	p := Progress{Total: len(f.notes)}
	for _, n := range f.notes {
		switch n.status {
		case StatusHit:
			p.Matched++
		case StatusMissed:
			p.Missed++
		case StatusActive:
			p.Active++
		default:
			p.Pending++
		}
	}
	if p.Total > 0 {
		p.PercentComplete = 100 * float64(p.Matched) / float64(p.Total)
	}
	return p
}

// Reset restores every note to pending.
func (f *Follower) Reset() {
	for _, n := range f.notes {
		n.status = StatusPending
	}
}

// pendingInOrder returns all pending notes sorted by expected time, ties
// broken by the lower source index.
func (f *Follower) pendingInOrder() []*note {
	var pending []*note
	for _, n := range f.notes {
		if n.status == StatusPending {
			pending = append(pending, n)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if a.spec.ExpectedTimeMs != b.spec.ExpectedTimeMs {
			return a.spec.ExpectedTimeMs < b.spec.ExpectedTimeMs
		}
		return a.spec.Index < b.spec.Index
	})
	return pending
}

func classifyTiming(errMs, onTimeTolerance float64) TimingStatus {
	switch {
	case errMs < -onTimeTolerance:
		return TimingEarly
	case errMs > onTimeTolerance:
		return TimingLate
	default:
		return TimingOnTime
	}
}

// feedbackFor renders a short human-readable timing note (spec §3's Match
// result "feedback" field) alongside the machine-readable TimingStatus.
func feedbackFor(status TimingStatus, errMs float64) string {
	switch status {
	case TimingEarly:
		return fmt.Sprintf("early by %.0fms", -errMs)
	case TimingLate:
		return fmt.Sprintf("late by %.0fms", errMs)
	default:
		return "on time"
	}
}

func namesMatchByPitchClass(detectedPitch int, expectedName string) bool {
	expectedPitch, err := music.PitchFromName(expectedName)
	if err != nil {
		return false
	}
	return music.SamePitchClass(detectedPitch, expectedPitch)
}
