// Package session wires the whole pipeline together: ring buffer → pitch
// detector → score-aware snapper → confirmation engine (whose re-trigger
// gate applies the onset test) → one of the two followers, posting
// Core → UI messages on a channel and
// accepting UI → core commands, per spec §6.
//
// This is the one big owned-state struct every subsystem hangs off of,
// grounded on the teacher's internal/model.Model, which plays the same role
// for the tracker's song/chain/phrase state.
package session

import (
	"log"
	"time"

	"github.com/schollz/pianopractice/internal/confirm"
	"github.com/schollz/pianopractice/internal/exercise"
	"github.com/schollz/pianopractice/internal/followpattern"
	"github.com/schollz/pianopractice/internal/followtime"
	"github.com/schollz/pianopractice/internal/music"
	"github.com/schollz/pianopractice/internal/pitch"
	"github.com/schollz/pianopractice/internal/ringbuffer"
	"github.com/schollz/pianopractice/internal/snap"
)

// Mode selects which follower (if any) consumes confirmed notes.
type Mode string

const (
	ModeOff     Mode = "off"
	ModeTimed   Mode = "timed"
	ModePattern Mode = "pattern"
)

// lowNoteThresholdPitch is C3 (~130.8Hz), the pitch-integer counterpart of
// pitch.LowNoteFreqThreshold; any expected pitch below C3 switches the capture window to the wider low-note size
// (spec §6, setExpectedNotes).
const lowNoteThresholdPitch = 48 // C3

// Message is one Core → UI posted event (spec §6).
type Message struct {
	Kind        string
	Detection   confirm.Detection
	NoteName    string
	MatchResult *followtime.MatchResult
	Pattern     *followpattern.Result
	Stats       Stats
}

// Stats is the periodic telemetry message (posted every ~500ms by the
// caller's UI-context ticker, not by the audio context itself).
type Stats struct {
	UpdatesPerSec float64
	RMS           float64
	SmoothedRMS   float64
}

// Config bundles the construction-time parameters for a Session: sample
// rate and hop/window sizing. It is built once and copied into the Session;
// afterwards only SetExpectedNotes changes the copy, switching
// WindowSamples between the default and low-note window sizes.
type Config struct {
	SampleRate    float64
	HopSamples    int
	WindowSamples int
}

// DefaultConfig matches spec §4.5's fixed hop and the default pitch
// detector window.
var DefaultConfig = Config{
	SampleRate:    44100,
	HopSamples:    512,
	WindowSamples: pitch.DefaultWindowSamples,
}

// Session is the audio-context + UI-context aggregate. Per spec §5, the
// ring buffer's write end and everything downstream of it up to the
// confirmation engine live on the audio render context; the followers and
// message aggregation live on the UI/event context. In this single-process
// Go port both contexts run on whatever goroutine calls the corresponding
// method — callers are responsible for keeping audio-context calls (Ingest)
// off of anything that blocks.
type Session struct {
	cfg Config

	ring      *ringbuffer.Buffer
	detector  *pitch.Detector
	snapper   *snap.Snapper
	confirmer *confirm.Engine

	mode      Mode
	timed     *followtime.Follower
	pattern   *followpattern.Follower
	polyphony bool

	samplesWritten int64
	messages       chan Message

	hopCount      int
	lastRms       float64
	smoothedRms   float64
	lastStatsAtMs float64
}

// New constructs a Session. messages is the Core → UI channel; the caller
// owns draining it. A nil channel is valid for tests that only inspect
// follower/engine state directly.
func New(cfg Config, messages chan Message) *Session {
	return &Session{
		cfg:       cfg,
		ring:      ringbuffer.New(cfg.WindowSamples * 4),
		detector:  pitch.New(cfg.SampleRate),
		snapper:   snap.New(),
		confirmer: confirm.New(),
		mode:      ModeOff,
		messages:  messages,
	}
}

// LoadTimedExercise configures the time-indexed follower from a parsed
// passage and switches to timed-follower mode.
func (s *Session) LoadTimedExercise(p exercise.Passage) error {
	specs := p.ExpectedNotes()
	f, err := followtime.New(specs, followtime.DefaultTolerances,
		func(res followtime.MatchResult) { s.post(Message{Kind: "match", MatchResult: &res}) },
		func(name string, expected []string) { s.post(Message{Kind: "wrongNote", NoteName: name}) },
	)
	if err != nil {
		return err
	}
	s.timed = f
	s.mode = ModeTimed
	s.SetExpectedNotes(noteNames(specs))
	log.Printf("[SESSION] loaded timed exercise %q: %d notes", p.Name, len(specs))
	return nil
}

// LoadPatternExercise configures the pattern-indexed follower from a parsed
// passage and switches to pattern-follower mode.
func (s *Session) LoadPatternExercise(p exercise.Passage) error {
	seq := p.PatternSequence()
	f, err := followpattern.New(seq, followpattern.DefaultConfig)
	if err != nil {
		return err
	}
	s.pattern = f
	s.mode = ModePattern
	log.Printf("[SESSION] loaded pattern exercise %q: %d notes", p.Name, len(seq))
	return nil
}

// SetExpectedNotes is the UI→core setExpectedNotes command: it configures
// the score-aware snapper and selects the capture window size (spec §6).
func (s *Session) SetExpectedNotes(names []string) {
	pitches := make([]int, 0, len(names))
	lowNote := false
	for _, n := range names {
		p, err := music.PitchFromName(n)
		if err != nil {
			continue
		}
		pitches = append(pitches, p)
		if p < lowNoteThresholdPitch {
			lowNote = true
		}
	}
	s.snapper.SetExpected(pitches)

	window := pitch.DefaultWindowSamples
	if lowNote {
		window = pitch.LowNoteWindowSamples
	}
	// Window size and octave-disambiguation threshold are independent knobs
	// (spec §4.4 vs §6): the detector itself carries no window state, so
	// switching window sizes here must never touch s.detector or its
	// lowOctaveFreqThreshold.
	s.cfg.WindowSamples = window
}

// SetPolyphonyMode is the UI→core setPolyphonyMode command: when true, the
// confirmation engine suspends emission entirely (spec §6).
func (s *Session) SetPolyphonyMode(enabled bool) {
	s.polyphony = enabled
}

// Reset is the UI→core reset() command.
func (s *Session) Reset() {
	s.confirmer.Reset()
	s.ring.Clear()
	if s.timed != nil {
		s.timed.Reset()
	}
}

// SetGates is the UI→core setGates({minRms, maxCmnd, onsetRatio}) command:
// optional overrides for the confirmation engine's energy/confidence/onset
// gates (spec §6).
func (s *Session) SetGates(o confirm.GateOverrides) {
	s.confirmer.SetGates(o)
}

// SetTwoSpeed is the UI→core setTwoSpeed({confirmDelayMs, tentativeOnly})
// command: optional overrides for the confirmation engine's hysteresis
// window and confirmed-emission behavior (spec §6).
func (s *Session) SetTwoSpeed(o confirm.TwoSpeedOverrides) {
	s.confirmer.SetTwoSpeed(o)
}

// Stop is the UI→core stop() command: distinct from Reset, it ceases
// emission on the next hop rather than clearing state, cancelling any
// pending tentative and posting noteOff for any sustained confirmed note
// immediately (spec §5).
func (s *Session) Stop() {
	for _, ev := range s.confirmer.Stop() {
		s.dispatch(ev, 0)
	}
}

// Ingest appends captured samples to the ring buffer, this is the only
// operation the audio render context performs on its write end (spec §5).
func (s *Session) Ingest(samples []float32) {
	s.ring.Append(samples)
	s.samplesWritten += int64(len(samples))
}

// Hop runs one confirmation-engine hop: it reads the current window from
// the ring buffer, runs the pitch detector and snapper, feeds the result to
// the confirmation engine, and dispatches any resulting events to the
// followers and message channel. timestampMs is the hop's capture time.
func (s *Session) Hop(timestampMs float64) {
	if s.polyphony {
		return
	}
	if !s.ring.HasAtLeast(s.cfg.WindowSamples) {
		return
	}
	frame := s.ring.Latest(s.cfg.WindowSamples)

	raw, detected := s.detector.Detect(frame)
	var events []confirm.Event
	if detected {
		snapped := s.snapper.Snap(raw)
		events = s.confirmer.ProcessFrame(snapped.Detection, true, timestampMs)
		s.recordRms(raw.RMS)
	} else {
		events = s.confirmer.ProcessFrame(pitch.Detection{}, false, timestampMs)
		s.recordRms(0)
	}
	s.hopCount++

	for _, ev := range events {
		s.dispatch(ev, timestampMs)
	}
}

const rmsSmoothingAlpha = 0.2

func (s *Session) recordRms(rms float64) {
	s.lastRms = rms
	s.smoothedRms += rmsSmoothingAlpha * (rms - s.smoothedRms)
}

// EmitStats computes the periodic {updatesPerSec, rms, smoothedRms}
// telemetry message (spec §6) and posts it. The caller's UI-context ticker
// is expected to call this roughly every 500ms with the current elapsed
// time.
func (s *Session) EmitStats(nowMs float64) {
	elapsedSec := (nowMs - s.lastStatsAtMs) / 1000.0
	updatesPerSec := 0.0
	if elapsedSec > 0 {
		updatesPerSec = float64(s.hopCount) / elapsedSec
	}
	s.post(Message{Kind: "stats", Stats: Stats{
		UpdatesPerSec: updatesPerSec,
		RMS:           s.lastRms,
		SmoothedRMS:   s.smoothedRms,
	}})
	s.hopCount = 0
	s.lastStatsAtMs = nowMs
}

// TimedProgress reports the time-indexed follower's progress, for a UI
// progress bar. Returns the zero Progress when no timed exercise is loaded.
func (s *Session) TimedProgress() followtime.Progress {
	if s.timed == nil {
		return followtime.Progress{}
	}
	return s.timed.GetProgress()
}

// AdvanceMissedNotes drives the time-indexed follower's missed-note sweep;
// the UI context calls this at ~200ms cadence (spec §5).
func (s *Session) AdvanceMissedNotes(elapsedMs float64) {
	if s.timed == nil {
		return
	}
	missed := s.timed.AdvanceMissedNotes(elapsedMs)
	for range missed {
		s.post(Message{Kind: "missed"})
	}
}

func (s *Session) dispatch(ev confirm.Event, timestampMs float64) {
	switch ev.Kind {
	case confirm.EventTentative:
		s.post(Message{Kind: "tentative", Detection: ev.Detection})
	case confirm.EventCancelled:
		s.post(Message{Kind: "cancelled", NoteName: ev.NoteName})
	case confirm.EventFrame:
		s.post(Message{Kind: "frame", Detection: ev.Detection})
	case confirm.EventNoteOff:
		s.post(Message{Kind: "noteOff", NoteName: ev.NoteName})
	case confirm.EventConfirmed:
		s.post(Message{Kind: "confirmed", Detection: ev.Detection})
		s.routeConfirmed(ev.Detection, timestampMs)
	}
}

func (s *Session) routeConfirmed(det confirm.Detection, timestampMs float64) {
	switch s.mode {
	case ModeTimed:
		if s.timed != nil {
			s.timed.ProcessDetection(det.NoteName, timestampMs)
		}
	case ModePattern:
		if s.pattern != nil {
			res := s.pattern.ProcessNote(det.NoteName)
			s.post(Message{Kind: "pattern", Pattern: &res})
		}
	}
}

func (s *Session) post(msg Message) {
	if s.messages == nil {
		return
	}
	select {
	case s.messages <- msg:
	default:
		log.Printf("[SESSION] message channel full, dropping %s event", msg.Kind)
	}
}

// HopDuration is the wall-clock period of one confirmation-engine hop at
// the session's configured sample rate.
func (s *Session) HopDuration() time.Duration {
	seconds := float64(s.cfg.HopSamples) / s.cfg.SampleRate
	return time.Duration(seconds * float64(time.Second))
}

func noteNames(specs []followtime.NoteSpec) []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range specs {
		if !seen[s.NoteName] {
			seen[s.NoteName] = true
			names = append(names, s.NoteName)
		}
	}
	return names
}
