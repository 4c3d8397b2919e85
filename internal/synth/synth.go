// Package synth is the deterministic testing harness spec §9 calls for:
// additive-sine tone generation with an ADSR envelope, a backing-track
// mixer, and a WAV fixture decoder for integration tests that exercise the
// pitch detector and confirmation engine without a microphone.
//
// The WAV decode path is grounded on the teacher's internal/getbpm, which
// uses the same go-audio/wav PCM-length walk to size an audio file.
package synth

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// ADSR describes an attack/decay/sustain/release envelope in milliseconds,
// with sustain expressed as a fraction of peak amplitude.
type ADSR struct {
	AttackMs   float64
	DecayMs    float64
	SustainLvl float64
	ReleaseMs  float64
}

// DefaultADSR is a fast, piano-like envelope: quick attack, moderate decay
// to a low sustain, short release.
var DefaultADSR = ADSR{AttackMs: 5, DecayMs: 80, SustainLvl: 0.35, ReleaseMs: 120}

// Tone generates durationMs worth of samples at sampleRate for a note at
// fundamentalHz, with the given harmonic amplitudes (index 0 = fundamental,
// already included; index i>0 = amplitude of the (i+1)th partial relative
// to the fundamental) shaped by env.
func Tone(fundamentalHz, sampleRate float64, durationMs float64, harmonics []float64, env ADSR) []float32 {
	n := int(durationMs / 1000 * sampleRate)
	if n <= 0 {
		return nil
	}
	if len(harmonics) == 0 {
		harmonics = []float64{1.0}
	}

	out := make([]float32, n)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		var sample float64
		for h, amp := range harmonics {
			partial := float64(h + 1)
			sample += amp * math.Sin(2*math.Pi*fundamentalHz*partial*t)
		}
		envelope := adsrGain(float64(i)/sampleRate*1000, durationMs, env)
		out[i] = float32(sample * envelope)
	}
	return out
}

// adsrGain computes the envelope gain at elapsedMs into a durationMs note.
func adsrGain(elapsedMs, durationMs float64, env ADSR) float64 {
	switch {
	case elapsedMs < env.AttackMs:
		if env.AttackMs <= 0 {
			return 1
		}
		return elapsedMs / env.AttackMs
	case elapsedMs < env.AttackMs+env.DecayMs:
		if env.DecayMs <= 0 {
			return env.SustainLvl
		}
		frac := (elapsedMs - env.AttackMs) / env.DecayMs
		return 1 - frac*(1-env.SustainLvl)
	case elapsedMs > durationMs-env.ReleaseMs:
		if env.ReleaseMs <= 0 {
			return 0
		}
		remaining := durationMs - elapsedMs
		if remaining < 0 {
			remaining = 0
		}
		return env.SustainLvl * (remaining / env.ReleaseMs)
	default:
		return env.SustainLvl
	}
}

// PianoHarmonics is a plausible additive approximation of a struck piano
// string: a strong fundamental with decaying partials.
var PianoHarmonics = []float64{1.0, 0.55, 0.30, 0.18, 0.10, 0.05}

// Overlay mixes tone into backing starting at sample offset atSample,
// extending backing if necessary. Used to build integration fixtures that
// place a user's note on top of a metronome or drone track.
func Overlay(backing []float32, tone []float32, atSample int) []float32 {
	need := atSample + len(tone)
	out := backing
	if need > len(out) {
		grown := make([]float32, need)
		copy(grown, out)
		out = grown
	} else {
		out = append([]float32(nil), out...)
	}
	for i, s := range tone {
		out[atSample+i] += s
	}
	return out
}

// DecodeWAV reads a PCM WAV fixture into float32 samples in [-1, 1], along
// with its sample rate. Mirrors the PCM-length walk in getbpm.Length.
func DecodeWAV(path string) (samples []float32, sampleRate int, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		err = fmt.Errorf("open: %w", openErr)
		return
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		err = fmt.Errorf("invalid WAV file")
		return
	}
	d.ReadInfo()

	buf, decodeErr := d.FullPCMBuffer()
	if decodeErr != nil {
		err = fmt.Errorf("decode PCM: %w", decodeErr)
		return
	}

	if buf.Format == nil || buf.Format.NumChannels < 1 {
		err = fmt.Errorf("invalid wav buffer: %s", path)
		return
	}

	sampleRate = buf.Format.SampleRate
	maxAmplitude := float64(int(1) << (uint(d.BitDepth) - 1))
	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	samples = make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		samples[i] = float32(sum / float64(channels) / maxAmplitude)
	}
	return
}

// Duration is a small convenience wrapper kept for symmetry with the
// teacher's getbpm.Length when only the length in time is needed.
func Duration(samples []float32, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	seconds := float64(len(samples)) / float64(sampleRate)
	return time.Duration(seconds * float64(time.Second))
}
