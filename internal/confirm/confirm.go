// Package confirm implements the two-speed confirmation engine (spec §4.5):
// it sits between the score-aware snapper and the two followers, turning a
// stream of raw per-hop detections into tentative/confirmed/cancelled/frame/
// noteOff events after energy, confidence, onset, octave-error, hysteresis,
// and stability gates all pass.
//
// The engine is driven one hop at a time by ProcessFrame; it keeps no
// goroutines and makes no blocking calls, matching the teacher's
// cooperative, single-threaded model for anything that runs on the audio
// render path.
package confirm

import (
	"github.com/schollz/pianopractice/internal/onset"
	"github.com/schollz/pianopractice/internal/pitch"
)

const (
	energyGateRMS        = 0.003
	confidenceGate       = 0.75
	octaveGraceMs        = 400.0
	silenceNoteOffFrames = 3

	octaveHysteresisFrames     = 8
	octaveHysteresisConfidence = 0.85
	semitoneHysteresisFrames   = 3
	defaultHysteresisFrames    = 2

	// DefaultHopMs is the spec's fixed hop: 512 samples at 44.1kHz.
	DefaultHopMs = 512.0 / 44100.0 * 1000.0

	noPitch = -1
)

// Kind tags a Detection as produced by the tentative or confirmed path.
type Kind string

const (
	KindTentative Kind = "tentative"
	KindConfirmed Kind = "confirmed"
)

// Detection is the spec §3 Detection entity: a raw pitch-detector (and
// snapper) result enriched with the timestamp and tentative/confirmed tag
// that only the confirmation engine can assign.
type Detection struct {
	Pitch       int
	NoteName    string
	Frequency   float64
	Confidence  float64
	Clarity     float64
	RMS         float64
	TimestampMs float64
	Kind        Kind
}

// EventKind names one of the five messages the engine posts to its caller.
type EventKind string

const (
	EventTentative EventKind = "tentative"
	EventConfirmed EventKind = "confirmed"
	EventCancelled EventKind = "cancelled"
	EventFrame     EventKind = "frame"
	EventNoteOff   EventKind = "noteOff"
)

// Event is one posted message (spec §6, Core → UI). Cancelled and NoteOff
// carry only a note name; the rest carry the full enriched Detection.
type Event struct {
	Kind      EventKind
	Detection Detection
	NoteName  string
}

type tentativeState struct {
	pitch          int
	noteName       string
	firstSeenMs    float64
	requiredFrames int
	confirmCount   int
	raw            pitch.Detection
}

// GateOverrides is the UI→core setGates({minRms, maxCmnd, onsetRatio})
// command's payload (spec §6): any nil field leaves that gate at its
// current value. maxCmnd overrides the confidence gate — this engine's
// Detection.Confidence already represents "1 − cmnd" (see DESIGN.md's
// confidence-gate wording decision), so a maximum cmnd of m becomes a
// confidence-gate minimum of 1 − m.
type GateOverrides struct {
	MinRms     *float64
	MaxCmnd    *float64
	OnsetRatio *float64
}

// TwoSpeedOverrides is the UI→core setTwoSpeed({confirmDelayMs,
// tentativeOnly}) command's payload (spec §6). A non-nil ConfirmDelayMs
// replaces the octave/semitone/default hysteresis tiers with one fixed
// delay (a nil one restores the tiers); TentativeOnly keeps the engine from
// escalating a tentative detection to confirmed until a later SetTwoSpeed
// call clears it.
type TwoSpeedOverrides struct {
	ConfirmDelayMs *float64
	TentativeOnly  bool
}

// Engine holds all confirmation-gate state for one capture session. It is
// not safe for concurrent use; spec §5 confines it to a single audio render
// context.
type Engine struct {
	hopMs float64

	energyGateRMS       float64
	confidenceGate      float64
	onsetRatioThreshold float64
	confirmDelayFrames  int // 0 means "use the tiered defaults"
	tentativeOnly       bool
	stopped             bool

	hasActiveConfirmed bool
	activeConfirmed    Detection

	tentative *tentativeState

	prevRms    float64
	hasPrevRms bool

	silenceFrames int

	hasRecentlyConfirmed bool
	recentlyConfirmedAt  float64
	recentlyConfirmed    int

	stableHistory [3]int
}

// New returns an Engine using the spec's default hop.
func New() *Engine {
	return NewWithHop(DefaultHopMs)
}

// NewWithHop returns an Engine using a caller-supplied hop duration, used by
// tests and any capture pipeline configured with a non-default hop size.
func NewWithHop(hopMs float64) *Engine {
	return &Engine{
		hopMs:               hopMs,
		energyGateRMS:       energyGateRMS,
		confidenceGate:      confidenceGate,
		onsetRatioThreshold: onset.DefaultStrengthThreshold,
		stableHistory:       [3]int{noPitch, noPitch, noPitch},
	}
}

// Reset clears all per-performance state (active/tentative notes, stability
// history, stopped flag) as the UI→core reset() command requires, but
// preserves any setGates/setTwoSpeed overrides already in effect — those
// are UI-chosen configuration, not session state.
func (e *Engine) Reset() {
	hop, energyGate, confGate, onsetGate := e.hopMs, e.energyGateRMS, e.confidenceGate, e.onsetRatioThreshold
	confirmDelay, tentativeOnly := e.confirmDelayFrames, e.tentativeOnly

	*e = *NewWithHop(hop)
	e.energyGateRMS = energyGate
	e.confidenceGate = confGate
	e.onsetRatioThreshold = onsetGate
	e.confirmDelayFrames = confirmDelay
	e.tentativeOnly = tentativeOnly
}

// SetGates applies the UI→core setGates override (spec §6).
func (e *Engine) SetGates(o GateOverrides) {
	if o.MinRms != nil {
		e.energyGateRMS = *o.MinRms
	}
	if o.MaxCmnd != nil {
		e.confidenceGate = 1 - *o.MaxCmnd
	}
	if o.OnsetRatio != nil {
		e.onsetRatioThreshold = *o.OnsetRatio
	}
}

// SetTwoSpeed applies the UI→core setTwoSpeed override (spec §6).
func (e *Engine) SetTwoSpeed(o TwoSpeedOverrides) {
	if o.ConfirmDelayMs != nil {
		frames := int(*o.ConfirmDelayMs/e.hopMs + 0.5)
		if frames < 1 {
			frames = 1
		}
		e.confirmDelayFrames = frames
	} else {
		e.confirmDelayFrames = 0
	}
	e.tentativeOnly = o.TentativeOnly
}

// Stop ceases emission on the next hop (spec §5): any pending tentative is
// cancelled and any sustained confirmed note gets a noteOff, both reported
// immediately rather than on the next ProcessFrame call.
func (e *Engine) Stop() []Event {
	var events []Event
	if e.tentative != nil {
		events = append(events, Event{Kind: EventCancelled, NoteName: e.tentative.noteName})
		e.tentative = nil
	}
	if e.hasActiveConfirmed {
		events = append(events, Event{Kind: EventNoteOff, NoteName: e.activeConfirmed.NoteName})
		e.hasActiveConfirmed = false
	}
	e.stopped = true
	return events
}

// ActiveNote reports the currently sustained confirmed note, if any.
func (e *Engine) ActiveNote() (Detection, bool) {
	return e.activeConfirmed, e.hasActiveConfirmed
}

// HasTentative reports whether a tentative detection is currently pending.
func (e *Engine) HasTentative() bool {
	return e.tentative != nil
}

// ProcessFrame runs one hop's worth of gates against raw (the pitch
// detector's output, already passed through the score-aware snapper by the
// caller). detected is false when the pitch detector found nothing this
// hop. timestampMs is the hop's capture timestamp.
func (e *Engine) ProcessFrame(raw pitch.Detection, detected bool, timestampMs float64) []Event {
	if e.stopped {
		return nil
	}

	var events []Event

	rms := 0.0
	if detected {
		rms = raw.RMS
	}

	// Gate 1: energy.
	if !detected || raw.RMS < e.energyGateRMS {
		e.silenceFrames++
		if e.silenceFrames >= silenceNoteOffFrames {
			if e.hasActiveConfirmed {
				events = append(events, Event{Kind: EventNoteOff, NoteName: e.activeConfirmed.NoteName})
				e.hasActiveConfirmed = false
			}
			e.tentative = nil
		}
		e.pushStability(noPitch)
		e.hasPrevRms = true
		e.prevRms = rms
		return events
	}
	e.silenceFrames = 0

	// Gate 2: confidence.
	if raw.Confidence < e.confidenceGate {
		e.pushStability(noPitch)
		e.hasPrevRms = true
		e.prevRms = rms
		return events
	}

	// Gate 3: onset re-trigger, delegated to the onset package's shared
	// strength/floor test rather than re-deriving it here.
	onsetResult := onset.FromRmsWithThreshold(e.prevRms, rms, e.hasPrevRms, e.onsetRatioThreshold)
	if onsetResult.IsOnset && e.hasActiveConfirmed {
		events = append(events, Event{Kind: EventNoteOff, NoteName: e.activeConfirmed.NoteName})
		e.hasActiveConfirmed = false
	}
	e.hasPrevRms = true
	e.prevRms = rms

	// Gate 4: octave-error rejection.
	if e.hasRecentlyConfirmed && timestampMs-e.recentlyConfirmedAt < octaveGraceMs {
		diff := raw.Pitch - e.recentlyConfirmed
		if diff == -12 || diff == -24 || diff == -19 || diff == -7 {
			e.pushStability(noPitch)
			return events
		}
	}

	// Stale-tentative timeout, independent of the current frame's pitch.
	if e.tentative != nil {
		age := timestampMs - e.tentative.firstSeenMs
		if age > 2*float64(e.tentative.requiredFrames)*e.hopMs {
			events = append(events, Event{Kind: EventCancelled, NoteName: e.tentative.noteName})
			e.tentative = nil
		}
	}

	// Two-speed path: sustained active note produces lightweight telemetry.
	if e.hasActiveConfirmed && raw.Pitch == e.activeConfirmed.Pitch {
		det := toDetection(raw, timestampMs, KindConfirmed)
		events = append(events, Event{Kind: EventFrame, Detection: det})
		e.pushStability(raw.Pitch)
		return events
	}

	if e.tentative == nil || e.tentative.pitch != raw.Pitch {
		if e.tentative != nil {
			events = append(events, Event{Kind: EventCancelled, NoteName: e.tentative.noteName})
		}
		e.tentative = &tentativeState{
			pitch:          raw.Pitch,
			noteName:       raw.NoteName,
			firstSeenMs:    timestampMs,
			requiredFrames: e.requiredFramesFor(raw.Pitch, raw.Confidence),
			raw:            raw,
		}
		events = append(events, Event{Kind: EventTentative, Detection: toDetection(raw, timestampMs, KindTentative)})
	}
	e.tentative.confirmCount++
	e.tentative.raw = raw
	e.pushStability(raw.Pitch)

	if !e.tentativeOnly && e.tentative.confirmCount >= e.tentative.requiredFrames && e.isStable(raw.Pitch) {
		if e.hasActiveConfirmed {
			events = append(events, Event{Kind: EventNoteOff, NoteName: e.activeConfirmed.NoteName})
		}
		confirmed := toDetection(e.tentative.raw, timestampMs, KindConfirmed)
		events = append(events, Event{Kind: EventConfirmed, Detection: confirmed})

		e.activeConfirmed = confirmed
		e.hasActiveConfirmed = true
		e.hasRecentlyConfirmed = true
		e.recentlyConfirmedAt = timestampMs
		e.recentlyConfirmed = confirmed.Pitch
		e.tentative = nil
	}

	return events
}

// requiredFramesFor picks the hysteresis window per spec §4.5: a longer
// window for an octave jump from the active note, a short flutter guard for
// a semitone wobble, and a minimal window otherwise.
func (e *Engine) requiredFramesFor(newPitch int, confidence float64) int {
	if e.confirmDelayFrames > 0 {
		return e.confirmDelayFrames
	}
	if !e.hasActiveConfirmed {
		return defaultHysteresisFrames
	}
	diff := newPitch - e.activeConfirmed.Pitch
	if diff < 0 {
		diff = -diff
	}
	if (diff == 12 || diff == 24) && confidence >= octaveHysteresisConfidence {
		return octaveHysteresisFrames
	}
	if diff == 1 || diff == 2 {
		return semitoneHysteresisFrames
	}
	return defaultHysteresisFrames
}

func (e *Engine) pushStability(p int) {
	e.stableHistory[0] = e.stableHistory[1]
	e.stableHistory[1] = e.stableHistory[2]
	e.stableHistory[2] = p
}

// isStable implements the two-of-three rule: p must appear at least twice in
// the last three accepted slots (noPitch entries are permitted but never
// count toward any pitch's stability).
func (e *Engine) isStable(p int) bool {
	count := 0
	for _, v := range e.stableHistory {
		if v == p {
			count++
		}
	}
	return count >= 2
}

func toDetection(raw pitch.Detection, timestampMs float64, kind Kind) Detection {
	return Detection{
		Pitch:       raw.Pitch,
		NoteName:    raw.NoteName,
		Frequency:   raw.Frequency,
		Confidence:  raw.Confidence,
		Clarity:     raw.Clarity,
		RMS:         raw.RMS,
		TimestampMs: timestampMs,
		Kind:        kind,
	}
}
