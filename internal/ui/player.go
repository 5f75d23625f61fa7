// Package ui renders the terminal player: live lane bars for render sinks,
// probe readouts and frame statistics, driven by a channel of per-frame
// snapshots. The host owns the frame loop; the player only displays and
// sends transport commands back.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FrameUpdate is one frame's worth of display state. The host copies all
// slices before sending; the player owns them afterwards.
type FrameUpdate struct {
	Frame  uint64
	Time   float64
	Faults int     // faults reported this frame
	EvalMS float64 // frame evaluation cost in milliseconds
	Sinks  []SinkView
	Probes []ProbeView
}

// SinkView is the displayable slice of one render sink.
type SinkView struct {
	Name     string
	Topology string
	Blend    string
	Lanes    int
	Level    []float64    // per-lane magnitude, arbitrary scale
	Color    [][4]float64 // optional per-lane straight RGBA, 0..1
}

// ProbeView is one probe sink's current value.
type ProbeView struct {
	Name   string
	Values []float64
}

// Transport lets the player drive the host's frame loop. A nil transport
// leaves only quit available.
type Transport interface {
	SetPaused(paused bool)
	Step() // advance exactly one frame while paused
}

type frameMsg FrameUpdate
type closedMsg struct{}

var barLevels = []rune("▁▂▃▄▅▆▇█")

var titleCaser = cases.Title(language.English)

type playerModel struct {
	title     string
	frames    <-chan FrameUpdate
	transport Transport

	spinner  spinner.Model
	budget   progress.Model
	budgetMS float64

	last    FrameUpdate
	started bool
	paused  bool
	done    bool
	width   int
	faults  int // cumulative

	// levelMax holds a slowly decaying per-sink peak used to normalize
	// bar heights.
	levelMax map[string]float64
}

// NewPlayer returns a Bubble Tea model animating frame updates. budgetMS
// is the frame budget used by the cost bar, typically 1000/fps.
func NewPlayer(title string, budgetMS float64, frames <-chan FrameUpdate, transport Transport) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	if budgetMS <= 0 {
		budgetMS = 1000.0 / 60
	}
	return &playerModel{
		title:     title,
		frames:    frames,
		transport: transport,
		spinner:   sp,
		budget:    bar,
		budgetMS:  budgetMS,
		width:     80,
		levelMax:  make(map[string]float64),
	}
}

func (m *playerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForFrame())
}

func (m *playerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.applyFrame(FrameUpdate(msg))
		return m, m.listenForFrame()
	case closedMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		return m.applyKey(msg)
	case spinner.TickMsg:
		if m.done || m.paused {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.budget.Width = min(msg.Width-10, 60)
		}
		return m, nil
	case progress.FrameMsg:
		bar, cmd := m.budget.Update(msg)
		m.budget = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *playerModel) applyKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "q", "ctrl+c", "esc":
		m.done = true
		return m, tea.Quit
	case " ":
		if m.transport == nil {
			return m, nil
		}
		m.paused = !m.paused
		m.transport.SetPaused(m.paused)
		if !m.paused {
			return m, m.spinner.Tick
		}
		return m, nil
	case ".":
		if m.transport != nil && m.paused {
			m.transport.Step()
		}
		return m, nil
	}
	return m, nil
}

func (m *playerModel) applyFrame(f FrameUpdate) {
	m.last = f
	m.started = true
	m.faults += f.Faults
	for _, s := range f.Sinks {
		peak := m.levelMax[s.Name] * 0.995
		for _, v := range s.Level {
			if v > peak {
				peak = v
			}
		}
		if peak > 1e-12 {
			m.levelMax[s.Name] = peak
		}
	}
}

func (m *playerModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	faultStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	header := m.title
	switch {
	case m.done:
		header = fmt.Sprintf("done: %s", header)
	case m.paused:
		header = fmt.Sprintf("‖ %s (paused)", header)
	default:
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	if m.started {
		stats := fmt.Sprintf("  frame %d  t=%.2fs", m.last.Frame, m.last.Time)
		b.WriteString(dimStyle.Render(stats))
	}
	b.WriteString("\n")
	if m.faults > 0 {
		b.WriteString(faultStyle.Render(fmt.Sprintf("  %d fault(s), values held", m.faults)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if !m.started {
		b.WriteString(dimStyle.Render("  waiting for first frame..."))
		b.WriteString("\n")
		return b.String()
	}

	for _, s := range m.last.Sinks {
		label := fmt.Sprintf("%s  %d lanes", titleCaser.String(s.Name), s.Lanes)
		if s.Topology != "" {
			label += fmt.Sprintf("  %s/%s", s.Topology, s.Blend)
		}
		b.WriteString("  ")
		b.WriteString(labelStyle.Render(truncate(label, m.width-4)))
		b.WriteString("\n  ")
		b.WriteString(m.laneBars(s))
		b.WriteString("\n")
	}

	if len(m.last.Probes) > 0 {
		b.WriteString("\n")
		for _, p := range m.last.Probes {
			b.WriteString(fmt.Sprintf("  %s %s\n",
				labelStyle.Render(truncate(titleCaser.String(p.Name), 24)),
				fmtValues(p.Values)))
		}
	}

	b.WriteString("\n  ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("cost %.2fms ", m.last.EvalMS)))
	b.WriteString(m.budget.ViewAs(min(m.last.EvalMS/m.budgetMS, 1)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  space pause · . step · q quit"))
	b.WriteString("\n")
	return b.String()
}

// laneBars renders one block character per lane, height from the
// normalized level and foreground from the lane color when present.
func (m *playerModel) laneBars(s SinkView) string {
	peak := m.levelMax[s.Name]
	if peak <= 1e-12 {
		peak = 1
	}
	maxLanes := m.width - 6
	if maxLanes < 8 {
		maxLanes = 8
	}

	var b strings.Builder
	for lane := 0; lane < len(s.Level) && lane < maxLanes; lane++ {
		v := s.Level[lane] / peak
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		idx := int(v * float64(len(barLevels)-1))
		ch := string(barLevels[idx])
		if lane < len(s.Color) {
			b.WriteString(lipgloss.NewStyle().Foreground(colorHex(s.Color[lane])).Render(ch))
		} else {
			b.WriteString(ch)
		}
	}
	if len(s.Level) > maxLanes {
		b.WriteString("…")
	}
	return b.String()
}

func (m *playerModel) listenForFrame() tea.Cmd {
	return func() tea.Msg {
		f, ok := <-m.frames
		if !ok {
			return closedMsg{}
		}
		return frameMsg(f)
	}
}

func colorHex(c [4]float64) lipgloss.Color {
	to255 := func(v float64) int {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return int(v*255 + 0.5)
	}
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", to255(c[0]), to255(c[1]), to255(c[2])))
}

func fmtValues(vals []float64) string {
	if len(vals) == 1 {
		return fmt.Sprintf("%.4g", vals[0])
	}
	parts := make([]string, 0, len(vals))
	for i, v := range vals {
		if i == 4 {
			parts = append(parts, "…")
			break
		}
		parts = append(parts, fmt.Sprintf("%.4g", v))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
