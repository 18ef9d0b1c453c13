package console

import (
	"context"
	"fmt"
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nerrad567/fujitsu-bridge/internal/bridges/fujitsu"
	"github.com/nerrad567/fujitsu-bridge/internal/climate"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	refreshInterval = 500 * time.Millisecond
	controlTimeout  = 3 * time.Second

	// pendingTimeout drops a pending request the unit never confirmed.
	pendingTimeout = 10 * time.Second

	maxLogEntries = 8
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// Controller is what the console drives. *fujitsu.Bridge satisfies it.
type Controller interface {
	State() climate.State
	Traits() climate.Traits
	Control(ctx context.Context, req climate.Request) error
	GetMetrics() fujitsu.Metrics
}

type logEntry struct {
	at      time.Time
	message string
	isError bool
}

// Model is the Bubble Tea model for the console.
type Model struct {
	ctrl     Controller
	connInfo string
	traits   climate.Traits

	state   climate.State
	metrics fujitsu.Metrics

	// pending is the desired state of the last accepted request until the
	// unit reports it.
	pending      *climate.State
	pendingSince time.Time

	log      []logEntry
	width    int
	quitting bool
	now      func() time.Time
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type tickMsg time.Time

// controlResultMsg reports the outcome of a Control call.
type controlResultMsg struct {
	desc    string
	desired climate.State
	err     error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

// New returns a console model for ctrl. connInfo is shown in the header.
func New(ctrl Controller, connInfo string) Model {
	return Model{
		ctrl:     ctrl,
		connInfo: connInfo,
		traits:   ctrl.Traits(),
		state:    ctrl.State(),
		width:    80,
		now:      time.Now,
	}
}

// Run starts the program and blocks until the user quits or ctx ends.
func Run(ctx context.Context, ctrl Controller, connInfo string) error {
	p := tea.NewProgram(New(ctrl, connInfo), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.refresh()
		return m, tickCmd()

	case controlResultMsg:
		if msg.err != nil {
			m.addLog(fmt.Sprintf("%s failed: %v", msg.desc, msg.err), true)
			return m, nil
		}
		desired := msg.desired
		m.pending = &desired
		m.pendingSince = m.now()
		m.addLog(msg.desc+" accepted", false)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	base := m.desired()
	var (
		req  climate.Request
		desc string
	)

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "m":
		mode := next(m.traits.Modes, base.Mode)
		req.Mode = &mode
		desc = "mode " + string(mode)

	case "+", "=":
		target := max(base.TargetTemperature+m.step(), m.traits.MinTemperature)
		if target > m.traits.MaxTemperature {
			m.addLog(fmt.Sprintf("target already at maximum %.0f", m.traits.MaxTemperature), true)
			return m, nil
		}
		req.TargetTemperature = &target
		desc = fmt.Sprintf("target %.0f", target)

	case "-", "_":
		target := min(base.TargetTemperature-m.step(), m.traits.MaxTemperature)
		if target < m.traits.MinTemperature {
			m.addLog(fmt.Sprintf("target already at minimum %.0f", m.traits.MinTemperature), true)
			return m, nil
		}
		req.TargetTemperature = &target
		desc = fmt.Sprintf("target %.0f", target)

	case "f":
		fan := next(m.traits.FanModes, base.FanMode)
		req.FanMode = &fan
		desc = "fan " + string(fan)

	case "e":
		preset := climate.PresetEco
		if base.Preset == climate.PresetEco {
			preset = climate.PresetNone
		}
		req.Preset = &preset
		desc = "preset " + string(preset)

	default:
		return m, nil
	}

	return m, m.controlCmd(req, desc, overlay(base, req))
}

// controlCmd runs Control off the UI goroutine; it can wait on the
// shared-state lock.
func (m Model) controlCmd(req climate.Request, desc string, desired climate.State) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
		defer cancel()
		return controlResultMsg{desc: desc, desired: desired, err: ctrl.Control(ctx, req)}
	}
}

// refresh pulls the reported state and clears a pending request once the
// unit shows it, or once it has waited too long.
func (m *Model) refresh() {
	m.state = m.ctrl.State()
	m.metrics = m.ctrl.GetMetrics()

	if m.pending == nil {
		return
	}
	switch {
	case *m.pending == m.state:
		m.pending = nil
	case m.now().Sub(m.pendingSince) > pendingTimeout:
		m.addLog("unit did not confirm the last request", true)
		m.pending = nil
	}
}

// desired is the state the next key press builds on.
func (m Model) desired() climate.State {
	if m.pending != nil {
		return *m.pending
	}
	return m.state
}

func (m Model) step() float64 {
	if m.traits.TemperatureStep > 0 {
		return m.traits.TemperatureStep
	}
	return 1
}

func (m *Model) addLog(message string, isError bool) {
	m.log = append(m.log, logEntry{at: m.now(), message: message, isError: isError})
	if len(m.log) > maxLogEntries {
		m.log = m.log[len(m.log)-maxLogEntries:]
	}
}

// next returns the element after cur in values, wrapping. An unknown cur
// yields the first element.
func next[T comparable](values []T, cur T) T {
	var zero T
	if len(values) == 0 {
		return zero
	}
	i := slices.Index(values, cur)
	return values[(i+1)%len(values)]
}

func overlay(s climate.State, req climate.Request) climate.State {
	if req.Mode != nil {
		s.Mode = *req.Mode
	}
	if req.TargetTemperature != nil {
		s.TargetTemperature = *req.TargetTemperature
	}
	if req.Preset != nil {
		s.Preset = *req.Preset
	}
	if req.FanMode != nil {
		s.FanMode = *req.FanMode
	}
	return s
}
