package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/calib/internal/calib"
	"github.com/san-kum/calib/internal/storage"
	"github.com/san-kum/calib/internal/viz"
)

// mseFloor keeps log10 finite for an exact fit.
const mseFloor = 1e-300

func log10(v float64) float64 {
	return math.Log10(math.Max(v, mseFloor))
}

type tickMsg time.Time

func tick(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Replay steps through a stored run one iteration at a time.
type Replay struct {
	meta    *storage.RunMetadata
	steps   []calib.Step
	history []float64
	cursor  int
	playing bool
	speed   time.Duration

	width  int
	height int
}

func NewReplay(meta *storage.RunMetadata, trace *calib.Trace) Replay {
	r := Replay{
		meta:   meta,
		speed:  100 * time.Millisecond,
		width:  80,
		height: 24,
	}
	if trace != nil {
		r.steps = trace.Steps
	}
	r.history = make([]float64, len(r.steps))
	for i, s := range r.steps {
		r.history[i] = log10(s.MSE)
	}
	return r
}

// Run opens the replay full screen until the user quits.
func Run(meta *storage.RunMetadata, trace *calib.Trace) error {
	_, err := tea.NewProgram(NewReplay(meta, trace), tea.WithAltScreen()).Run()
	return err
}

func (m Replay) Cursor() int { return m.cursor }

func (m Replay) Playing() bool { return m.playing }

func (m Replay) Init() tea.Cmd { return nil }

func (m Replay) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if !m.playing {
			return m, nil
		}
		if m.cursor >= len(m.steps)-1 {
			m.playing = false
			return m, nil
		}
		m.cursor++
		return m, tick(m.speed)
	}
	return m, nil
}

func (m Replay) handleKey(msg tea.KeyMsg) (Replay, tea.Cmd) {
	last := max(len(m.steps)-1, 0)

	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "right", "l":
		m.cursor = min(m.cursor+1, last)
	case "left", "h":
		m.cursor = max(m.cursor-1, 0)
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = last
	case "+":
		m.speed = max(m.speed/2, 10*time.Millisecond)
	case "-":
		m.speed = min(m.speed*2, 2*time.Second)
	case " ":
		m.playing = !m.playing
		if m.playing {
			if m.cursor >= last {
				m.cursor = 0
			}
			return m, tick(m.speed)
		}
	}
	return m, nil
}

func (m Replay) View() string {
	var b strings.Builder

	b.WriteString(viz.HeaderStyle.Render(viz.Title.Render("replay  " + m.meta.Model)))
	b.WriteString("  ")
	b.WriteString(viz.StatusStyle(m.meta.Status).Render(m.meta.Status))
	b.WriteString("\n\n")

	if len(m.steps) == 0 {
		b.WriteString(viz.Subtle.Render("no iterations recorded"))
		b.WriteString("\n\n")
		b.WriteString(viz.KeyHint.Render("q quit"))
		return b.String()
	}

	s := m.steps[m.cursor]
	verdict := viz.Accepted.Render("accepted")
	switch {
	case s.RankDeficient:
		verdict = viz.Rejected.Render("rank deficient")
	case !s.Accepted:
		verdict = viz.Rejected.Render("rejected")
	}

	metric := func(label, value string) {
		b.WriteString(viz.MetricLabel.Render(fmt.Sprintf("%-14s", label)))
		b.WriteString(value)
		b.WriteString("\n")
	}
	metric("iteration", viz.MetricValue.Render(fmt.Sprintf("%d / %d", s.Iteration, len(m.steps))))
	metric("mse", viz.MetricValue.Render(fmt.Sprintf("%.6e", s.MSE)))
	metric("candidate mse", fmt.Sprintf("%.6e", s.CandidateMSE))
	metric("damping", fmt.Sprintf("%g", s.Damping))
	metric("step", verdict)
	b.WriteString("\n")

	for i, p := range s.Params {
		label := fmt.Sprintf("x%d", i)
		if i < len(m.meta.Solution) {
			label = fmt.Sprintf("%g", m.meta.Solution[i].Label)
		}
		metric(label, fmt.Sprintf("%14.8g", p.Value))
	}
	b.WriteString("\n")

	w := max(min(m.width-4, 80), 10)
	b.WriteString(viz.SparklineChart(m.history[:m.cursor+1], w))
	b.WriteString("\n")
	b.WriteString(viz.ProgressBar(float64(m.cursor+1)/float64(len(m.steps)), w))
	b.WriteString("\n\n")

	play := "space play"
	if m.playing {
		play = "space pause"
	}
	b.WriteString(viz.KeyHint.Render(fmt.Sprintf("←/→ step  home/end jump  %s  +/- speed (%s)  q quit", play, m.speed)))
	return b.String()
}
