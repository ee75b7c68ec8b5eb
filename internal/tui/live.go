// Package tui renders a live terminal view of a closed-loop run: realized
// rotor speeds, body rates and the applied wrench for the probe instance.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/quadctl/internal/batch"
	"github.com/san-kum/quadctl/internal/sim"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const barWidth = 30

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(16*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type Model struct {
	runner   *sim.Runner
	commands *batch.Grid
	dt       float64
	omegaMax float64

	t      float64
	speed  int // control steps per frame
	paused bool
	err    error

	cmd        [4]float64
	lastWrench []float64
}

func NewModel(runner *sim.Runner, numInstances int, dt, omegaMax float64) *Model {
	return &Model{
		runner:     runner,
		commands:   batch.New(numInstances, 4),
		dt:         dt,
		omegaMax:   omegaMax,
		speed:      8,
		lastWrench: make([]float64, 4),
	}
}

func (m *Model) Init() tea.Cmd { return tick() }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		case "+", "=":
			if m.speed < 256 {
				m.speed *= 2
			}
		case "-":
			if m.speed > 1 {
				m.speed /= 2
			}
		case "up":
			m.cmd[0] = clamp1(m.cmd[0] + 0.05)
		case "down":
			m.cmd[0] = clamp1(m.cmd[0] - 0.05)
		case "a":
			m.cmd[1] = clamp1(m.cmd[1] - 0.05)
		case "d":
			m.cmd[1] = clamp1(m.cmd[1] + 0.05)
		case "w":
			m.cmd[2] = clamp1(m.cmd[2] + 0.05)
		case "s":
			m.cmd[2] = clamp1(m.cmd[2] - 0.05)
		case "left":
			m.cmd[3] = clamp1(m.cmd[3] - 0.05)
		case "right":
			m.cmd[3] = clamp1(m.cmd[3] + 0.05)
		case "0":
			m.cmd = [4]float64{}
		case "r":
			ids := make([]int, m.commands.Rows)
			for i := range ids {
				ids[i] = i
			}
			m.runner.Pipeline().Reset(ids)
			m.runner.Vehicle().Reset(ids)
			m.t = 0
			m.cmd = [4]float64{}
			m.err = nil
		}
		return m, nil
	case tickMsg:
		if !m.paused && m.err == nil {
			for i := 0; i < m.commands.Rows; i++ {
				copy(m.commands.Row(i), m.cmd[:])
			}
			for i := 0; i < m.speed; i++ {
				wrench, err := m.runner.Step(m.t, m.commands)
				if err != nil {
					m.err = err
					break
				}
				copy(m.lastWrench, wrench.Row(0))
				m.t += m.dt
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder

	mode := string(m.runner.Pipeline().Mode())
	status := green.Render("running")
	if m.paused {
		status = yellow.Render("paused")
	}
	if m.err != nil {
		status = red.Render(m.err.Error())
	}
	b.WriteString(fmt.Sprintf("%s  %s  %s  %s\n\n",
		cyan.Render("quadctl live"),
		dim.Render("mode="+mode),
		white.Render(fmt.Sprintf("t=%7.3fs", m.t)),
		status))

	b.WriteString(dim.Render("motors (rad/s)") + "\n")
	motor := m.runner.Pipeline().MotorSpeeds().Row(0)
	for j, w := range motor {
		b.WriteString(fmt.Sprintf(" m%d %s %7.0f\n", j+1, bar(w/m.omegaMax), w))
	}

	b.WriteString("\n" + dim.Render("command") + "\n")
	b.WriteString(fmt.Sprintf("  thr %+5.2f   roll %+5.2f   pitch %+5.2f   yaw %+5.2f\n",
		m.cmd[0], m.cmd[1], m.cmd[2], m.cmd[3]))

	rates := m.runner.Vehicle().Rates().Row(0)
	vert := m.runner.Vehicle().Vertical().Row(0)
	b.WriteString("\n" + dim.Render("body rates (rad/s)") + "\n")
	b.WriteString(fmt.Sprintf("  x %+8.3f   y %+8.3f   z %+8.3f\n", rates[0], rates[1], rates[2]))

	b.WriteString("\n" + dim.Render("wrench") + "\n")
	b.WriteString(fmt.Sprintf("  T %8.3f N   tx %+9.5f   ty %+9.5f   tz %+9.5f\n",
		m.lastWrench[0], m.lastWrench[1], m.lastWrench[2], m.lastWrench[3]))
	b.WriteString(fmt.Sprintf("  vz %+7.2f m/s   alt %+8.2f m\n", vert[0], vert[1]))

	b.WriteString("\n" + dim.Render(fmt.Sprintf(
		"[↑/↓] throttle  [a/d] roll  [w/s] pitch  [←/→] yaw  [0] zero  [space] pause  [r] reset  [+/-] speed (%d)  [q] quit", m.speed)))
	return b.String()
}

func clamp1(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func bar(frac float64) string {
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	filled := int(frac * barWidth)
	style := green
	if frac > 0.95 {
		style = red
	} else if frac > 0.75 {
		style = yellow
	}
	return style.Render(strings.Repeat("█", filled)) + dim.Render(strings.Repeat("░", barWidth-filled))
}

// Run starts the live view and blocks until it exits.
func Run(m *Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
