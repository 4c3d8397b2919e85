// Package followpattern implements the pattern-indexed score follower (spec
// §4.7): it has no notion of timing, only a sequence of expected note
// names. It starts by syncing a sliding buffer of recent detections against
// every possible alignment in the sequence, locks onto the best-scoring
// alignment once confident enough, and falls back to resyncing after too
// many consecutive mismatches.
package followpattern

import (
	"errors"

	"github.com/schollz/pianopractice/internal/music"
)

// ErrInvalidArgument is returned at construction for an empty or malformed
// expected-note sequence (spec §4.8).
var ErrInvalidArgument = errors.New("invalid argument")

// Mode is the follower's current synchronization state.
type Mode string

const (
	ModeSyncing Mode = "syncing"
	ModeLocked  Mode = "locked"
	ModeLost    Mode = "lost"
)

// Config holds the follower's tunable thresholds. DefaultConfig matches the
// spec's literal defaults.
type Config struct {
	BufferSize             int
	LockThreshold          float64
	MinMatchesForLock      int
	MaxConsecutiveErrors   int
	AllowOctaveEquivalence bool
	StrictMode             bool
}

// DefaultConfig is spec §4.7's owned configuration.
var DefaultConfig = Config{
	BufferSize:             5,
	LockThreshold:          0.7,
	MinMatchesForLock:      3,
	MaxConsecutiveErrors:   5,
	AllowOctaveEquivalence: true,
	StrictMode:             true,
}

// Result is ProcessNote's per-call outcome.
type Result struct {
	Detected          string
	Expected          string
	IsCorrect         bool
	Position          int
	Mode              Mode
	Confidence        float64
	ConsecutiveErrors int
	Message           string
}

// Follower tracks alignment against one ordered expected-note sequence.
type Follower struct {
	expected []string
	cfg      Config

	mode              Mode
	position          int
	confidence        float64
	consecutiveErrors int
	buffer            []string

	totalCorrect int
	totalWrong   int
}

// New validates expectedNames and returns a Follower starting in syncing
// mode. An empty sequence or any malformed note name fails synchronously.
func New(expectedNames []string, cfg Config) (*Follower, error) {
	if len(expectedNames) == 0 {
		return nil, ErrInvalidArgument
	}
	for _, n := range expectedNames {
		if _, err := music.PitchFromName(n); err != nil {
			return nil, ErrInvalidArgument
		}
	}
	return &Follower{
		expected: append([]string(nil), expectedNames...),
		cfg:      cfg,
		mode:     ModeSyncing,
		position: -1,
	}, nil
}

// ProcessNote feeds one detected note name through the state machine.
func (f *Follower) ProcessNote(detectedName string) Result {
	if f.mode == ModeLost {
		f.buffer = []string{detectedName}
		f.consecutiveErrors = 0
		f.mode = ModeSyncing
		return f.evaluateSync(detectedName)
	}
	if f.mode == ModeSyncing {
		f.pushBuffer(detectedName)
		return f.evaluateSync(detectedName)
	}
	return f.processLocked(detectedName)
}

// Mode, Position, Confidence, ConsecutiveErrors, TotalCorrect, and
// TotalWrong expose the follower's current state (spec §3 "Follower state
// (pattern)") without requiring a ProcessNote call.
func (f *Follower) Mode() Mode              { return f.mode }
func (f *Follower) Position() int           { return f.position }
func (f *Follower) Confidence() float64     { return f.confidence }
func (f *Follower) ConsecutiveErrors() int  { return f.consecutiveErrors }
func (f *Follower) TotalCorrect() int       { return f.totalCorrect }
func (f *Follower) TotalWrong() int         { return f.totalWrong }

func (f *Follower) pushBuffer(name string) {
	f.buffer = append(f.buffer, name)
	if len(f.buffer) > f.cfg.BufferSize {
		f.buffer = f.buffer[len(f.buffer)-f.cfg.BufferSize:]
	}
}

// evaluateSync scores every alignment of the current buffer inside the
// expected sequence, weighting more recent buffer entries higher (weights
// 1..len(buffer)), and locks on the best-scoring alignment once the buffer
// is long enough and that score clears lockThreshold.
func (f *Follower) evaluateSync(detectedName string) Result {
	n := len(f.buffer)
	bestScore, bestStart := -1.0, -1

	for startPos := 0; startPos+n <= len(f.expected); startPos++ {
		var weighted, total float64
		for i := 0; i < n; i++ {
			weight := float64(i + 1)
			total += weight
			if samePitchClassName(f.buffer[i], f.expected[startPos+i]) {
				weighted += weight
			}
		}
		score := 0.0
		if total > 0 {
			score = weighted / total
		}
		if score > 0.4 && score > bestScore {
			bestScore, bestStart = score, startPos
		}
	}

	locked := false
	if n >= f.cfg.MinMatchesForLock && bestStart >= 0 && bestScore >= f.cfg.LockThreshold {
		for i := 0; i < n; i++ {
			if samePitchClassName(f.buffer[i], f.expected[bestStart+i]) {
				f.totalCorrect++
			} else {
				f.totalWrong++
			}
		}
		f.position = bestStart + n - 1
		f.mode = ModeLocked
		f.consecutiveErrors = 0
		f.confidence = clamp01(bestScore)
		locked = true
	}

	expectedName := ""
	if f.position >= 0 && f.position < len(f.expected) {
		expectedName = f.expected[f.position]
	}
	message := "syncing"
	if locked {
		message = "locked"
		if f.position+1 == len(f.expected) {
			message = "complete"
		}
	}
	return Result{
		Detected:          detectedName,
		Expected:          expectedName,
		IsCorrect:         locked,
		Position:          f.position,
		Mode:              f.mode,
		Confidence:        f.confidence,
		ConsecutiveErrors: f.consecutiveErrors,
		Message:           message,
	}
}

func (f *Follower) processLocked(detectedName string) Result {
	nextPos := f.position + 1
	expectedName := ""
	inRange := nextPos < len(f.expected)
	if inRange {
		expectedName = f.expected[nextPos]
	}

	matched := inRange && f.namesEquivalent(detectedName, expectedName)

	if matched {
		f.position = nextPos
		f.consecutiveErrors = 0
		f.confidence = clamp01(f.confidence + 0.1)
		f.totalCorrect++
	} else {
		f.consecutiveErrors++
		f.confidence = clamp01(f.confidence - 0.15)
		f.totalWrong++
		if !f.cfg.StrictMode && inRange {
			f.position = nextPos
		}
	}

	if f.consecutiveErrors >= f.cfg.MaxConsecutiveErrors {
		f.mode = ModeLost
	}

	message := "mismatch"
	switch {
	case matched && f.position+1 == len(f.expected):
		message = "complete"
	case matched:
		message = "matched"
	case f.mode == ModeLost:
		message = "lost"
	}

	return Result{
		Detected:          detectedName,
		Expected:          expectedName,
		IsCorrect:         matched,
		Position:          f.position,
		Mode:              f.mode,
		Confidence:        f.confidence,
		ConsecutiveErrors: f.consecutiveErrors,
		Message:           message,
	}
}

func (f *Follower) namesEquivalent(detected, expected string) bool {
	if f.cfg.AllowOctaveEquivalence {
		return samePitchClassName(detected, expected)
	}
	return detected == expected
}

func samePitchClassName(a, b string) bool {
	pa, errA := music.PitchFromName(a)
	pb, errB := music.PitchFromName(b)
	if errA != nil || errB != nil {
		return false
	}
	return music.SamePitchClass(pa, pb)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
