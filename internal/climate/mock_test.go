package climate

import (
	"sync"
	"time"

	"github.com/nerrad567/fujitsu-bridge/internal/heatpump"
)

// mockProtocol records protocol calls for assertions.
type mockProtocol struct {
	mu sync.Mutex

	state     heatpump.State
	frames    []bool // scripted WaitForFrame results; false when exhausted
	sendErr   error
	sends     int
	waits     int
	setStates []heatpump.State
	setFans   []heatpump.FanMode
	calls     []string
}

func (m *mockProtocol) WaitForFrame() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waits++
	m.calls = append(m.calls, "WaitForFrame")
	if len(m.frames) == 0 {
		// Stand in for the transport read timeout.
		time.Sleep(time.Millisecond)
		return false
	}
	got := m.frames[0]
	m.frames = m.frames[1:]
	return got
}

func (m *mockProtocol) SendPendingFrame() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends++
	m.calls = append(m.calls, "SendPendingFrame")
	return m.sendErr
}

func (m *mockProtocol) CurrentState() heatpump.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "CurrentState")
	return m.state
}

func (m *mockProtocol) SetState(s heatpump.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "SetState")
	m.setStates = append(m.setStates, s)
}

func (m *mockProtocol) SetFanMode(f heatpump.FanMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "SetFanMode")
	m.setFans = append(m.setFans, f)
}

func (m *mockProtocol) setState(s heatpump.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// mockPublisher records published states.
type mockPublisher struct {
	mu     sync.Mutex
	states []State
}

func (p *mockPublisher) PublishState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, s)
}

func (p *mockPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.states)
}

func (p *mockPublisher) last() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.states) == 0 {
		return State{}
	}
	return p.states[len(p.states)-1]
}

func ptr[T any](v T) *T { return &v }
