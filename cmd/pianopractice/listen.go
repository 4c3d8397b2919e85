package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/schollz/pianopractice/internal/dashboard"
	"github.com/schollz/pianopractice/internal/exercise"
	"github.com/schollz/pianopractice/internal/music"
	"github.com/schollz/pianopractice/internal/session"
	"github.com/schollz/pianopractice/internal/synth"
)

func newListenCmd() *cobra.Command {
	var (
		wavPath      string
		exercisePath string
		pattern      bool
		note         string
		durationMs   float64
		noDashboard  bool
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run a session against a WAV fixture or a synthetic tone and report events",
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, sampleRate, err := loadInput(wavPath, note, durationMs)
			if err != nil {
				return err
			}

			cfg := session.DefaultConfig
			cfg.SampleRate = float64(sampleRate)

			messages := make(chan session.Message, 256)
			sess := session.New(cfg, messages)

			if exercisePath != "" {
				passage, err := exercise.Load(exercisePath)
				if err != nil {
					return fmt.Errorf("load exercise: %w", err)
				}
				if pattern {
					err = sess.LoadPatternExercise(passage)
				} else {
					err = sess.LoadTimedExercise(passage)
				}
				if err != nil {
					return fmt.Errorf("configure follower: %w", err)
				}
			}

			go runPipeline(sess, samples, cfg, messages)

			if noDashboard {
				return printMessages(messages)
			}
			p := tea.NewProgram(dashboard.New(sess, messages))
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().StringVar(&wavPath, "wav", "", "PCM WAV fixture to play back (overrides --note)")
	cmd.Flags().StringVar(&exercisePath, "exercise", "", "exercise passage JSON to follow")
	cmd.Flags().BoolVar(&pattern, "pattern", false, "use the pattern-indexed follower instead of the time-indexed one")
	cmd.Flags().StringVar(&note, "note", "C4", "note name to synthesize when --wav is not given")
	cmd.Flags().Float64Var(&durationMs, "duration-ms", 2000, "duration of the synthesized tone in milliseconds")
	cmd.Flags().BoolVar(&noDashboard, "no-dashboard", false, "print events to stdout instead of launching the terminal dashboard")

	return cmd
}

func loadInput(wavPath, note string, durationMs float64) ([]float32, int, error) {
	if wavPath != "" {
		samples, sampleRate, err := synth.DecodeWAV(wavPath)
		if err != nil {
			return nil, 0, fmt.Errorf("decode wav: %w", err)
		}
		return samples, sampleRate, nil
	}

	pitch, err := music.PitchFromName(note)
	if err != nil {
		return nil, 0, fmt.Errorf("parse note: %w", err)
	}
	const sampleRate = 44100.0
	tone := synth.Tone(music.FreqFromPitch(pitch), sampleRate, durationMs, synth.PianoHarmonics, synth.DefaultADSR)
	return tone, sampleRate, nil
}

// runPipeline feeds samples into sess one hop at a time, paced to wall-clock
// time so a "listen" run behaves like a live capture session instead of
// replaying instantaneously.
func runPipeline(sess *session.Session, samples []float32, cfg session.Config, messages chan session.Message) {
	defer close(messages)

	hop := sess.HopDuration()
	elapsedMs := 0.0
	statsEvery := 500.0
	nextStats := statsEvery

	for offset := 0; offset < len(samples); offset += cfg.HopSamples {
		end := offset + cfg.HopSamples
		if end > len(samples) {
			end = len(samples)
		}
		sess.Ingest(samples[offset:end])
		sess.Hop(elapsedMs)
		if elapsedMs >= nextStats {
			sess.EmitStats(elapsedMs)
			nextStats += statsEvery
		}
		sess.AdvanceMissedNotes(elapsedMs)
		elapsedMs += hop.Seconds() * 1000
		time.Sleep(hop)
	}
}

func printMessages(messages chan session.Message) error {
	for msg := range messages {
		fmt.Fprintf(os.Stdout, "%s\n", describe(msg))
	}
	return nil
}

func describe(msg session.Message) string {
	switch msg.Kind {
	case "confirmed", "tentative", "frame":
		return fmt.Sprintf("%-10s %-4s conf=%.2f rms=%.4f", msg.Kind, msg.Detection.NoteName, msg.Detection.Confidence, msg.Detection.RMS)
	case "cancelled", "noteOff", "wrongNote":
		return fmt.Sprintf("%-10s %s", msg.Kind, msg.NoteName)
	case "match":
		if msg.MatchResult != nil {
			return fmt.Sprintf("%-10s %-4s %s", msg.Kind, msg.MatchResult.NoteName, msg.MatchResult.TimingStatus)
		}
	case "pattern":
		if msg.Pattern != nil {
			return fmt.Sprintf("%-10s pos=%d mode=%s", msg.Kind, msg.Pattern.Position, msg.Pattern.Mode)
		}
	case "stats":
		return fmt.Sprintf("%-10s %.1f hops/s", msg.Kind, msg.Stats.UpdatesPerSec)
	}
	return msg.Kind
}
