// Package dashboard is a small bubbletea terminal demo of the session's
// posted Core → UI messages: a progress bar over the active follower's
// getProgress(), a scrolling event log, and a confidence meter. It plays the
// role the teacher's internal/views plays for the tracker grid — a thin
// consumer of posted state, not the renderer the spec leaves out of scope.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/termenv"

	"github.com/schollz/pianopractice/internal/session"
)

const maxLogLines = 12

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Model is the bubbletea model driving the dashboard. It owns no audio-path
// state of its own: everything it shows arrives on messages.
type Model struct {
	sess     *session.Session
	messages chan session.Message

	progress progress.Model

	log []string

	meterPos float64
	meterVel float64
	spring   harmonica.Spring
	profile termenv.Profile

	width int
}

// message wraps one session.Message as a tea.Msg so Update can switch on it.
type message session.Message

// New builds a Model that reads from messages as they're posted by sess.
func New(sess *session.Session, messages chan session.Message) Model {
	return Model{
		sess:     sess,
		messages: messages,
		progress: progress.New(progress.WithDefaultGradient()),
		spring:   harmonica.NewSpring(harmonica.FPS(60), 6.0, 0.8),
		profile:  termenv.ColorProfile(),
		width:    60,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForMessage(m.messages)
}

func waitForMessage(ch chan session.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return message(msg)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 8
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	case progress.FrameMsg:
		next, cmd := m.progress.Update(msg)
		if p, ok := next.(progress.Model); ok {
			m.progress = p
		}
		return m, cmd

	case message:
		return m.applyMessage(session.Message(msg))

	default:
		return m, nil
	}
}

func (m Model) applyMessage(msg session.Message) (tea.Model, tea.Cmd) {
	m.log = append(m.log, formatMessage(msg))
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}

	var cmds []tea.Cmd
	if msg.Kind == "confirmed" || msg.Kind == "tentative" || msg.Kind == "frame" {
		m.meterPos, m.meterVel = m.spring.Update(m.meterPos, m.meterVel, msg.Detection.Confidence)
	}
	if msg.MatchResult != nil || msg.Kind == "missed" {
		cmds = append(cmds, m.progress.SetPercent(progressFraction(m.sess)))
	}
	cmds = append(cmds, waitForMessage(m.messages))
	return m, tea.Batch(cmds...)
}

func progressFraction(sess *session.Session) float64 {
	prog := sess.TimedProgress()
	if prog.Total == 0 {
		return 0
	}
	return prog.PercentComplete / 100.0
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("piano practice — live session"))
	b.WriteString("\n\n")
	b.WriteString(m.progress.View())
	b.WriteString("\n\n")
	b.WriteString(m.renderMeter())
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("events:"))
	b.WriteString("\n")
	b.WriteString(borderStyle.Width(m.width - 4).Render(strings.Join(m.log, "\n")))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("q to quit"))
	return b.String()
}

// renderMeter draws a confidence bar colored from gray (low confidence) to
// green (high confidence), spring-animated toward the latest detection's
// confidence the same way the teacher's mixer meter eases toward a dB level.
func (m Model) renderMeter() string {
	const cells = 30
	lowColor, _ := colorful.Hex("#404040")
	highColor, _ := colorful.Hex("#2ECC71")

	filled := int(clamp01(m.meterPos) * cells)
	var bar strings.Builder
	bar.WriteString("confidence ")
	for i := 0; i < cells; i++ {
		t := float64(i) / float64(cells-1)
		color := lowColor.BlendLuv(highColor, t)
		cell := "░"
		if i < filled {
			cell = "█"
		}
		bar.WriteString(termenv.String(cell).Foreground(m.profile.Color(color.Hex())).String())
	}
	bar.WriteString(fmt.Sprintf(" %.0f%%", clamp01(m.meterPos)*100))
	return bar.String()
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

func formatMessage(msg session.Message) string {
	ts := time.Now().Format("15:04:05.000")
	switch msg.Kind {
	case "confirmed":
		return fmt.Sprintf("%s confirmed  %-4s conf=%.2f", ts, msg.Detection.NoteName, msg.Detection.Confidence)
	case "tentative":
		return fmt.Sprintf("%s tentative  %-4s conf=%.2f", ts, msg.Detection.NoteName, msg.Detection.Confidence)
	case "cancelled":
		return fmt.Sprintf("%s cancelled  %-4s", ts, msg.NoteName)
	case "noteOff":
		return fmt.Sprintf("%s noteOff    %-4s", ts, msg.NoteName)
	case "match":
		if msg.MatchResult != nil {
			return fmt.Sprintf("%s match      %-4s %s", ts, msg.MatchResult.NoteName, msg.MatchResult.Feedback)
		}
		return ts + " match"
	case "wrongNote":
		return fmt.Sprintf("%s wrong      %-4s", ts, msg.NoteName)
	case "missed":
		return ts + " missed note"
	case "pattern":
		if msg.Pattern != nil {
			return fmt.Sprintf("%s pattern    pos=%d mode=%s %s", ts, msg.Pattern.Position, msg.Pattern.Mode, msg.Pattern.Message)
		}
		return ts + " pattern"
	case "stats":
		return fmt.Sprintf("%s stats      %.1f hops/s rms=%.4f", ts, msg.Stats.UpdatesPerSec, msg.Stats.SmoothedRMS)
	default:
		return ts + " " + msg.Kind
	}
}
