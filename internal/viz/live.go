package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/posesim/internal/dynamo"
	"github.com/san-kum/posesim/internal/integrators"
	"github.com/san-kum/posesim/internal/sim"
)

const (
	width           = 48
	height          = 16
	trailCapacity   = 2000
	historyCapacity = 120

	linearStep = 0.5
	rateStep   = 0.1
)

type TickMsg time.Time

// Model steps a Kinematic integrator once per tick and applies key presses
// as kinematic state updates.
type Model struct {
	integ   *integrators.Kinematic
	freq    float64
	dt      float64
	period  time.Duration
	command dynamo.KinematicState
	pose    dynamo.Pose
	step    int
	running bool

	plane    *Plane
	altitude []float64
	sinks    []sim.Sink
	lastErr  error
}

type ModelOption func(*Model)

// WithSinks delivers every stepped frame to sinks, such as a recorder.
func WithSinks(sinks ...sim.Sink) ModelOption {
	return func(m *Model) { m.sinks = append(m.sinks, sinks...) }
}

func NewModel(initial dynamo.Pose, freq float64, opts ...ModelOption) (Model, error) {
	period, err := sim.Period(freq)
	if err != nil {
		return Model{}, err
	}

	m := Model{
		integ:    integrators.NewKinematic(initial),
		freq:     freq,
		dt:       1 / freq,
		period:   period,
		pose:     initial,
		running:  true,
		plane:    NewPlane(width, height, trailCapacity),
		altitude: make([]float64, 0, historyCapacity),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.plane.Add(float64(initial.X), float64(initial.Y))
	return m, nil
}

func (m Model) Pose() dynamo.Pose              { return m.pose }
func (m Model) Command() dynamo.KinematicState { return m.command }
func (m Model) Steps() int                     { return m.step }
func (m Model) Running() bool                  { return m.running }

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.period, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.command.Vx += linearStep
		case "s":
			m.command.Vx -= linearStep
		case "a":
			m.command.YawRate += rateStep
		case "d":
			m.command.YawRate -= rateStep
		case "r":
			m.command.Vz += linearStep
		case "f":
			m.command.Vz -= linearStep
		case " ", "space":
			m.command = dynamo.KinematicState{}
		case "p":
			m.running = !m.running
			return m, nil
		case "c":
			m.plane.Reset()
			m.plane.Add(float64(m.pose.X), float64(m.pose.Y))
			return m, nil
		default:
			return m, nil
		}
		m.integ.SetKinematicState(m.command)
	case TickMsg:
		if m.running {
			m.advance()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) advance() {
	pose, state := m.integ.Advance(m.dt)
	m.step++
	m.pose = pose

	m.plane.Add(float64(pose.X), float64(pose.Y))
	if len(m.altitude) == historyCapacity {
		copy(m.altitude, m.altitude[1:])
		m.altitude = m.altitude[:len(m.altitude)-1]
	}
	m.altitude = append(m.altitude, float64(pose.Z))

	f := sim.Frame{Step: m.step, Time: float64(m.step) * m.dt, Pose: pose, State: state}
	for _, s := range m.sinks {
		if err := s.Publish(f); err != nil {
			m.lastErr = err
		}
	}
}

func (m Model) View() string {
	canvasView := canvasStyle.Render(m.plane.Render(float64(m.pose.Yaw)))

	var s strings.Builder
	s.WriteString(headerStyle.Render("POSESIM LIVE") + "\n")
	if m.running {
		s.WriteString(statusRunning.Render("RUNNING"))
	} else {
		s.WriteString(statusPaused.Render("PAUSED"))
	}
	s.WriteString(fmt.Sprintf("  %.0f Hz  t=%.2fs\n\n", m.freq, float64(m.step)*m.dt))

	row := func(label, format string, v ...any) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(fmt.Sprintf(format, v...)) + "\n")
	}
	row("pos", "%7.2f %7.2f %7.2f", m.pose.X, m.pose.Y, m.pose.Z)
	row("rpy", "%7.3f %7.3f %7.3f", m.pose.Roll, m.pose.Pitch, m.pose.Yaw)
	row("vel", "%7.2f %7.2f %7.2f", m.command.Vx, m.command.Vy, m.command.Vz)
	row("rates", "%7.3f %7.3f %7.3f", m.command.RollRate, m.command.PitchRate, m.command.YawRate)

	if len(m.altitude) > 1 {
		chart := asciigraph.Plot(m.altitude, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("z"))
		s.WriteString("\n" + graphStyle.Render(chart) + "\n")
	}
	if m.lastErr != nil {
		s.WriteString("\n" + errorStyle.Render("sink: "+m.lastErr.Error()) + "\n")
	}

	s.WriteString("\n" + Separator(36) + "\n")
	s.WriteString(keyHint.Render("w/s:vx  a/d:yaw  r/f:vz\nspace:stop  p:pause  c:clear  q:quit"))

	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
}
