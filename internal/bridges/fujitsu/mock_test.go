package fujitsu

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/fujitsu-bridge/internal/heatpump"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	unsubscribed  []string
	subscribeErr  map[string]error
	connected     bool
	handlers      map[string]func(topic string, payload []byte)
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.subscribeErr[topic]; err != nil {
		return err
	}
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribed = append(m.unsubscribed, topic)
	delete(m.handlers, topic)
	return nil
}

// FailSubscribe makes Subscribe to topic return err.
func (m *MockMQTTClient) FailSubscribe(topic string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr == nil {
		m.subscribeErr = make(map[string]error)
	}
	m.subscribeErr[topic] = err
}

func (m *MockMQTTClient) GetUnsubscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unsubscribed...)
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockSubscription(nil), m.subscriptions...)
}

// PublishedTo returns messages published on topic, oldest first.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockPublish
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// SimulateMessage delivers a message to the handler whose subscription
// matches topic. Only trailing "#" wildcards are supported.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	var handler func(string, []byte)
	for pattern, h := range m.handlers {
		if pattern == topic || (strings.HasSuffix(pattern, "/#") && strings.HasPrefix(topic, strings.TrimSuffix(pattern, "#"))) {
			handler = h
			break
		}
	}
	m.mu.Unlock()
	if handler != nil {
		handler(topic, payload)
	}
}

// mockProtocol stands in for the heat-pump protocol. SetState and
// SetFanMode are recorded and also applied, as the real protocol overlays
// pending changes on CurrentState.
type mockProtocol struct {
	mu        sync.Mutex
	state     heatpump.State
	setStates []heatpump.State
	setFans   []heatpump.FanMode
	lastFrame time.Time
}

func (m *mockProtocol) WaitForFrame() bool {
	time.Sleep(time.Millisecond)
	return false
}

func (m *mockProtocol) SendPendingFrame() error { return nil }

func (m *mockProtocol) CurrentState() heatpump.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockProtocol) SetState(s heatpump.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStates = append(m.setStates, s)
	m.state = s
}

func (m *mockProtocol) SetFanMode(f heatpump.FanMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setFans = append(m.setFans, f)
	m.state.FanMode = f
}

func (m *mockProtocol) Stats() heatpump.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return heatpump.Stats{FramesRx: 10, FramesTx: 9, LastFrame: m.lastFrame}
}

func (m *mockProtocol) getSetStates() []heatpump.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]heatpump.State(nil), m.setStates...)
}

func (m *mockProtocol) getSetFans() []heatpump.FanMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]heatpump.FanMode(nil), m.setFans...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func decode[T any](t *testing.T, payload []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		t.Fatalf("unmarshal %s: %v", payload, err)
	}
	return v
}
