package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schollz/pianopractice/internal/confirm"
	"github.com/schollz/pianopractice/internal/followpattern"
	"github.com/schollz/pianopractice/internal/followtime"
	"github.com/schollz/pianopractice/internal/pitch"
)

func newBenchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Replay the scenario suite (spec §8) and report pass/fail",
		RunE: func(cmd *cobra.Command, args []string) error {
			results := []scenarioResult{
				scenarioA(),
				scenarioB(),
				scenarioC(),
				scenarioD(),
				scenarioE(),
				scenarioF(),
			}

			failures := 0
			for _, r := range results {
				status := "PASS"
				if !r.pass {
					status = "FAIL"
					failures++
				}
				fmt.Printf("[%s] %s: %s\n", status, r.name, r.detail)
			}
			if failures > 0 {
				return fmt.Errorf("%d scenario(s) failed", failures)
			}
			return nil
		},
	}
}

type scenarioResult struct {
	name   string
	pass   bool
	detail string
}

func scenarioA() scenarioResult {
	specs := []followtime.NoteSpec{
		{NoteName: "C4", Index: 0, ExpectedTimeMs: 0},
		{NoteName: "D4", Index: 1, ExpectedTimeMs: 500},
		{NoteName: "E4", Index: 2, ExpectedTimeMs: 1000},
		{NoteName: "F4", Index: 3, ExpectedTimeMs: 1500},
		{NoteName: "G4", Index: 4, ExpectedTimeMs: 2000},
	}
	f, err := followtime.New(specs, followtime.DefaultTolerances, nil, nil)
	if err != nil {
		return scenarioResult{"A: perfect scale", false, err.Error()}
	}
	inputs := []struct {
		name string
		ms   float64
	}{{"C4", 0}, {"D4", 500}, {"E4", 1000}, {"F4", 1500}, {"G4", 2000}}

	matched := 0
	for _, in := range inputs {
		if res := f.ProcessDetection(in.name, in.ms); res != nil && res.Matched && res.TimingStatus == followtime.TimingOnTime {
			matched++
		}
	}
	prog := f.GetProgress()
	pass := matched == 5 && prog.PercentComplete == 100
	return scenarioResult{"A: perfect scale", pass, fmt.Sprintf("matched=%d percentComplete=%.0f", matched, prog.PercentComplete)}
}

func scenarioB() scenarioResult {
	specs := []followtime.NoteSpec{{NoteName: "C4", Index: 0, ExpectedTimeMs: 500}}
	cases := []struct {
		ms       float64
		status   followtime.TimingStatus
		hasMatch bool
	}{
		{500, followtime.TimingOnTime, true},
		{400, followtime.TimingOnTime, true},
		{350, followtime.TimingOnTime, true},
		{300, followtime.TimingEarly, true},
		{1100, "", false},
	}

	ok := true
	var detail string
	for _, c := range cases {
		f, _ := followtime.New(specs, followtime.DefaultTolerances, nil, nil)
		res := f.ProcessDetection("C4", c.ms)
		got := res != nil
		if got != c.hasMatch || (got && res.TimingStatus != c.status) {
			ok = false
			detail += fmt.Sprintf("ms=%.0f unexpected result; ", c.ms)
		}
	}
	if ok {
		detail = "all timing windows classified correctly"
	}
	return scenarioResult{"B: timing windows", ok, detail}
}

func scenarioC() scenarioResult {
	specs := []followtime.NoteSpec{
		{NoteName: "C4", Index: 0, ExpectedTimeMs: 0},
		{NoteName: "D4", Index: 1, ExpectedTimeMs: 500},
		{NoteName: "E4", Index: 2, ExpectedTimeMs: 1000},
	}
	f, _ := followtime.New(specs, followtime.DefaultTolerances, nil, nil)
	f.AdvanceMissedNotes(1000)
	f.AdvanceMissedNotes(1500)
	prog := f.GetProgress()
	pass := prog.Missed == 3
	return scenarioResult{"C: missed sweep", pass, fmt.Sprintf("missed=%d", prog.Missed)}
}

func scenarioD() scenarioResult {
	seq := []string{"C4", "C4", "G4", "G4", "A4", "A4", "G4", "F4", "F4", "E4", "E4", "D4", "D4", "C4"}
	f, err := followpattern.New(seq, followpattern.DefaultConfig)
	if err != nil {
		return scenarioResult{"D: sync from middle", false, err.Error()}
	}
	feed := []string{"F4", "F4", "E4", "E4", "D4", "D4", "C4"}
	var last followpattern.Result
	for _, n := range feed {
		last = f.ProcessNote(n)
	}
	pass := last.Position == 13
	return scenarioResult{"D: sync from middle", pass, fmt.Sprintf("finalPosition=%d mode=%s", last.Position, last.Mode)}
}

func scenarioE() scenarioResult {
	seq := []string{"C4", "D4", "E4", "F4", "G4", "A4", "B4", "C5"}
	f, err := followpattern.New(seq, followpattern.DefaultConfig)
	if err != nil {
		return scenarioResult{"E: wrong-note handling", false, err.Error()}
	}
	feed := []string{"C4", "D4", "E4", "F#4", "F4", "G4", "A4", "B4", "C5"}
	var last followpattern.Result
	for _, n := range feed {
		last = f.ProcessNote(n)
	}
	pass := last.Position == 7 && f.TotalWrong() == 1 && f.TotalCorrect() == 8
	return scenarioResult{"E: wrong-note handling", pass, fmt.Sprintf("position=%d totalWrong=%d totalCorrect=%d", last.Position, f.TotalWrong(), f.TotalCorrect())}
}

func scenarioF() scenarioResult {
	e := confirm.NewWithHop(confirm.DefaultHopMs)
	c5 := pitch.Detection{Pitch: 72, NoteName: "C5", Frequency: 523.25, Confidence: 0.95, RMS: 0.1}
	confirmed := false
	for t := 0.0; t < 200; t += confirm.DefaultHopMs {
		for _, ev := range e.ProcessFrame(c5, true, t) {
			if ev.Kind == confirm.EventConfirmed {
				confirmed = true
			}
		}
	}
	if !confirmed {
		return scenarioResult{"F: octave-error rejection", false, "setup note C5 never confirmed"}
	}

	c4 := pitch.Detection{Pitch: 60, NoteName: "C4", Frequency: 261.63, Confidence: 0.95, RMS: 0.1}
	gotC4 := false
	for i, t := 0, 150.0; i < 3; i, t = i+1, t+confirm.DefaultHopMs {
		if t >= 400 {
			break
		}
		for _, ev := range e.ProcessFrame(c4, true, t) {
			if ev.Kind == confirm.EventConfirmed && ev.Detection.NoteName == "C4" {
				gotC4 = true
			}
		}
	}
	pass := !gotC4
	return scenarioResult{"F: octave-error rejection", pass, fmt.Sprintf("spuriousC4Confirmed=%v", gotC4)}
}
