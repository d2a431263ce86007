// Package viewer is a terminal front end that steps a Simulation and draws
// the grid after every tick.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/logrusorgru/aurora"

	"github.com/talgya/brains/internal/engine"
	"github.com/talgya/brains/internal/report"
)

// recentEvents is how many events the view lists.
const recentEvents = 5

// TickMsg asks the model to advance one tick.
type TickMsg time.Time

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Model is the bubbletea model. It owns an Engine whose tick callback steps
// the simulation; the world itself is only read through snapshots.
type Model struct {
	sim    *engine.Simulation
	eng    *engine.Engine
	au     aurora.Aurora
	paused bool
	done   bool
	snap   engine.Snapshot
	err    error
}

// New creates a model ticking sim every interval at speed 1.
func New(sim *engine.Simulation, au aurora.Aurora, interval time.Duration) *Model {
	m := &Model{
		sim: sim,
		eng: engine.NewEngine(),
		au:  au,
	}
	m.eng.Interval = interval
	m.eng.OnTick = func(tick uint64) {
		if err := sim.TickMinute(tick); err != nil && m.err == nil {
			m.err = err
		}
	}
	m.eng.OnReport = sim.TickReport
	m.snap = sim.Snapshot()
	return m
}

// Err returns the error that stopped the simulation, if any.
func (m *Model) Err() error { return m.err }

// Snapshot returns the state last drawn.
func (m *Model) Snapshot() engine.Snapshot { return m.snap }

// Paused reports whether ticking is suspended.
func (m *Model) Paused() bool { return m.paused }

func (m *Model) delay() time.Duration {
	return time.Duration(float64(m.eng.Interval) / m.eng.Speed)
}

func (m *Model) Init() tea.Cmd {
	return tickCmd(m.delay())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		case "+":
			m.eng.Speed = min(m.eng.Speed*2, 64)
		case "-":
			m.eng.Speed = max(m.eng.Speed/2, 1.0/64)
		case "s":
			if m.paused {
				m.step()
			}
		}
	case TickMsg:
		if !m.paused && !m.done {
			m.step()
		}
		if m.err != nil {
			return m, tea.Quit
		}
		return m, tickCmd(m.delay())
	}
	return m, nil
}

func (m *Model) step() {
	m.eng.Step()
	m.snap = m.sim.Snapshot()
	if m.snap.Stats.Population > 0 && m.snap.Stats.Alive == 0 {
		m.done = true
	}
}

func (m *Model) View() string {
	var b strings.Builder
	st := m.snap.Stats

	fmt.Fprintf(&b, "%s  tick %s  speed x%g\n",
		engine.SimTime(m.snap.Tick), humanize.Comma(int64(m.snap.Tick)), m.eng.Speed)
	fmt.Fprintf(&b, "alive %d/%d  deaths %d  avg age %.1f  hunger %.1f  thirst %.1f\n\n",
		st.Alive, st.Population, st.Deaths, st.AvgAge, st.AvgHunger, st.AvgThirst)

	b.WriteString(report.Grid(m.snap.Env, m.snap.Humans, m.au))

	if len(st.Actions) > 0 {
		b.WriteString("\nactions: " + report.ActionBreakdown(st.Actions) + "\n")
	}

	events := m.snap.Events
	if len(events) > recentEvents {
		events = events[len(events)-recentEvents:]
	}
	if len(events) > 0 {
		b.WriteString("\nRecent events:\n")
		for i := len(events) - 1; i >= 0; i-- {
			fmt.Fprintf(&b, "  %s  %s\n", engine.SimTime(events[i].Tick), events[i].Description)
		}
	}

	switch {
	case m.err != nil:
		fmt.Fprintf(&b, "\nerror: %v\n", m.err)
	case m.done:
		b.WriteString("\nEveryone has died.\n")
	case m.paused:
		b.WriteString("\nPaused.\n")
	}
	b.WriteString("\nspace pause · s step · +/- speed · q quit\n")
	return b.String()
}

// Run shows the model until the user quits or ctx is done.
func Run(ctx context.Context, m *Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("viewer: %w", err)
	}
	return m.Err()
}
