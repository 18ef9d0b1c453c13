package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/fujitsu-bridge/internal/bridges/fujitsu"
	"github.com/nerrad567/fujitsu-bridge/internal/climate"
	"github.com/nerrad567/fujitsu-bridge/internal/history"
	"github.com/nerrad567/fujitsu-bridge/internal/infrastructure/config"
	"github.com/nerrad567/fujitsu-bridge/internal/infrastructure/logging"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// fakeBridge implements ClimateBridge. Control validates against the
// traits like the real bridge, then returns controlErr.
type fakeBridge struct {
	mu         sync.Mutex
	state      climate.State
	controlErr error
	requests   []climate.Request
	metrics    fujitsu.Metrics
	panicState bool
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		state: climate.State{
			CurrentTemperature: 20,
			TargetTemperature:  22,
			Mode:               climate.ModeHeat,
			FanMode:            climate.FanAuto,
			Preset:             climate.PresetNone,
		},
	}
}

func (f *fakeBridge) ID() string { return "lounge" }

func (f *fakeBridge) State() climate.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicState {
		panic("state exploded")
	}
	return f.state
}

func (f *fakeBridge) Traits() climate.Traits { return climate.DefaultTraits() }

func (f *fakeBridge) Control(_ context.Context, req climate.Request) error {
	if err := f.Traits().Validate(req); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.controlErr != nil {
		return f.controlErr
	}
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeBridge) GetMetrics() fujitsu.Metrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}

func (f *fakeBridge) getRequests() []climate.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]climate.Request(nil), f.requests...)
}

// fakeHistory implements HistoryReader.
type fakeHistory struct {
	mu        sync.Mutex
	entries   []history.Entry
	err       error
	lastLimit int
}

func (f *fakeHistory) List(_ context.Context, bridgeID string, limit int) ([]history.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	var out []history.Entry
	for _, e := range f.entries {
		if e.BridgeID == bridgeID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeMQTT struct {
	connected bool
	subs      int
}

func (f fakeMQTT) IsConnected() bool      { return f.connected }
func (f fakeMQTT) SubscriptionCount() int { return f.subs }

// testServer creates a Server over a fake bridge. Pass a secret to protect
// write routes.
func testServer(t *testing.T, secret string) (*Server, *fakeBridge) {
	t.Helper()

	bridge := newFakeBridge()
	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
			CORS:     config.CORSConfig{AllowedOrigins: []string{"http://panel.local"}},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{JWT: config.JWTConfig{Secret: secret}},
		Logger:   logging.Discard(),
		Bridge:   bridge,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, bridge
}

func doRequest(t *testing.T, srv *Server, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return v
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_Validation(t *testing.T) {
	if _, err := New(Deps{Bridge: newFakeBridge()}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without bridge should fail")
	}
}

func TestServer_StartClose(t *testing.T) {
	srv, _ := testServer(t, "")

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Close()

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/health", srv.Addr()))
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// =============================================================================
// Read endpoints
// =============================================================================

func TestHandleHealth(t *testing.T) {
	srv, _ := testServer(t, "")
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["status"] != "ok" || body["version"] != "test" || body["bridge_id"] != "lounge" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleGetClimate(t *testing.T) {
	srv, bridge := testServer(t, "")
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/climate", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := decodeBody[ClimateResponse](t, rec)
	if got.BridgeID != "lounge" || got.State != bridge.state {
		t.Errorf("response = %+v, want state %+v", got, bridge.state)
	}
}

func TestHandleGetTraits(t *testing.T) {
	srv, _ := testServer(t, "")
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/climate/traits", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := decodeBody[climate.Traits](t, rec)
	if got.MinTemperature != 16 || got.MaxTemperature != 30 {
		t.Errorf("temperature range = %.0f-%.0f, want 16-30", got.MinTemperature, got.MaxTemperature)
	}
}

// =============================================================================
// Control
// =============================================================================

func TestHandleSetClimate_Accepted(t *testing.T) {
	srv, bridge := testServer(t, "")
	rec := doRequest(t, srv, http.MethodPut, "/api/v1/climate",
		`{"mode":"cool","target_temperature":19,"fan_mode":"high"}`, nil)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", rec.Code, rec.Body)
	}
	got := decodeBody[ControlResponse](t, rec)
	if got.Status != "accepted" || got.Desired.Mode != climate.ModeCool || got.Desired.TargetTemperature != 19 {
		t.Errorf("response = %+v", got)
	}
	if got.Desired.Preset != climate.PresetNone {
		t.Errorf("Desired.Preset = %s, want unchanged none", got.Desired.Preset)
	}

	reqs := bridge.getRequests()
	if len(reqs) != 1 {
		t.Fatalf("bridge received %d requests, want 1", len(reqs))
	}
	if *reqs[0].Mode != climate.ModeCool || *reqs[0].FanMode != climate.FanHigh || reqs[0].Preset != nil {
		t.Errorf("request = %+v", reqs[0])
	}
}

func TestHandleSetClimate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		controlErr error
		wantStatus int
		wantCode   string
	}{
		{name: "malformed json", body: `{"mode":`, wantStatus: http.StatusBadRequest, wantCode: ErrCodeBadRequest},
		{name: "unknown field", body: `{"swing":true}`, wantStatus: http.StatusBadRequest, wantCode: ErrCodeBadRequest},
		{name: "unknown mode", body: `{"mode":"turbo"}`, wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{name: "temperature out of range", body: `{"target_temperature":40}`, wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{name: "empty request", body: `{}`, wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{
			name:       "lock timeout",
			body:       `{"preset":"eco"}`,
			controlErr: climate.ErrLockTimeout,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrCodeLockTimeout,
		},
		{
			name:       "bridge failure",
			body:       `{"preset":"eco"}`,
			controlErr: errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, bridge := testServer(t, "")
			bridge.controlErr = tt.controlErr

			rec := doRequest(t, srv, http.MethodPut, "/api/v1/climate", tt.body, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tt.wantStatus, rec.Body)
			}
			got := decodeBody[Error](t, rec)
			if got.Code != tt.wantCode || got.Status != tt.wantStatus {
				t.Errorf("error = %+v, want code %s", got, tt.wantCode)
			}
			if len(bridge.getRequests()) != 0 {
				t.Error("rejected request reached the bridge")
			}
		})
	}
}

func TestHandleSetClimate_Auth(t *testing.T) {
	valid, err := IssueToken(testSecret, "automation", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	foreign, err := IssueToken("another-secret-key-at-least-32-characters", "automation", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "missing", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic YWRtaW46YWRtaW4=", wantStatus: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-token", wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + valid, wantStatus: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t, testSecret)
			header := http.Header{}
			if tt.header != "" {
				header.Set("Authorization", tt.header)
			}

			rec := doRequest(t, srv, http.MethodPut, "/api/v1/climate", `{"mode":"heat"}`, header)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate header")
			}
		})
	}
}

func TestReadRoutesOpenWithSecret(t *testing.T) {
	srv, _ := testServer(t, testSecret)
	for _, path := range []string{"/api/v1/climate", "/api/v1/climate/traits", "/api/v1/metrics"} {
		if rec := doRequest(t, srv, http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}

// =============================================================================
// History
// =============================================================================

func TestHandleGetHistory(t *testing.T) {
	srv, _ := testServer(t, "")
	store := &fakeHistory{entries: []history.Entry{
		{ID: 2, BridgeID: "lounge", Source: history.SourceUnit},
		{ID: 1, BridgeID: "lounge", Source: history.SourceControl},
		{ID: 3, BridgeID: "bedroom", Source: history.SourceUnit},
	}}
	srv.history = store

	tests := []struct {
		query     string
		wantLimit int
	}{
		{query: "", wantLimit: history.DefaultLimit},
		{query: "?limit=10", wantLimit: 10},
		{query: "?limit=5000", wantLimit: history.MaxLimit},
	}

	for _, tt := range tests {
		t.Run("limit"+tt.query, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodGet, "/api/v1/climate/history"+tt.query, "", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			body := decodeBody[struct {
				BridgeID string          `json:"bridge_id"`
				History  []history.Entry `json:"history"`
				Count    int             `json:"count"`
			}](t, rec)
			if body.Count != 2 || len(body.History) != 2 || body.BridgeID != "lounge" {
				t.Errorf("body = %+v, want 2 lounge entries", body)
			}
			if store.lastLimit != tt.wantLimit {
				t.Errorf("List limit = %d, want %d", store.lastLimit, tt.wantLimit)
			}
		})
	}
}

func TestHandleGetHistory_Errors(t *testing.T) {
	srv, _ := testServer(t, "")

	if rec := doRequest(t, srv, http.MethodGet, "/api/v1/climate/history", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("without store status = %d, want 503", rec.Code)
	}

	srv.history = &fakeHistory{}
	for _, q := range []string{"?limit=abc", "?limit=0", "?limit=-3"} {
		if rec := doRequest(t, srv, http.MethodGet, "/api/v1/climate/history"+q, "", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("GET history%s status = %d, want 400", q, rec.Code)
		}
	}

	srv.history = &fakeHistory{err: errors.New("disk gone")}
	if rec := doRequest(t, srv, http.MethodGet, "/api/v1/climate/history", "", nil); rec.Code != http.StatusInternalServerError {
		t.Errorf("store failure status = %d, want 500", rec.Code)
	}
}

// =============================================================================
// Metrics
// =============================================================================

func TestHandleMetrics(t *testing.T) {
	srv, bridge := testServer(t, "")
	srv.mqtt = fakeMQTT{connected: true, subs: 2}
	bridge.metrics = fujitsu.Metrics{
		BridgeID: "lounge",
		Status:   fujitsu.HealthHealthy,
		Climate: climate.Stats{
			UpdateSkips:     4,
			ControlTimeouts: 2,
			Pump:            climate.PumpStats{LockSkips: 7},
		},
		Commands: 9,
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := decodeBody[SystemMetrics](t, rec)

	want := LockMetrics{PumpSkips: 7, UpdateSkips: 4, ControlTimeouts: 2}
	if got.Locks != want {
		t.Errorf("Locks = %+v, want %+v", got.Locks, want)
	}
	if got.Bridge.Commands != 9 || got.Bridge.Status != fujitsu.HealthHealthy {
		t.Errorf("Bridge = %+v", got.Bridge)
	}
	if !got.MQTT.Enabled || !got.MQTT.Connected || got.MQTT.Subscriptions != 2 {
		t.Errorf("MQTT = %+v, want enabled, connected, 2 subscriptions", got.MQTT)
	}
	if got.Database != nil {
		t.Error("Database metrics present without a database")
	}
	if got.Runtime.Goroutines == 0 {
		t.Error("Runtime.Goroutines = 0")
	}
}

// =============================================================================
// Middleware
// =============================================================================

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t, "")

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	header := http.Header{}
	header.Set("X-Request-ID", "trace-42")
	rec = doRequest(t, srv, http.MethodGet, "/api/v1/health", "", header)
	if got := rec.Header().Get("X-Request-ID"); got != "trace-42" {
		t.Errorf("X-Request-ID = %q, want trace-42 echoed", got)
	}
}

func TestCORS(t *testing.T) {
	srv, _ := testServer(t, "")

	header := http.Header{}
	header.Set("Origin", "http://panel.local")
	rec := doRequest(t, srv, http.MethodOptions, "/api/v1/climate", "", header)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://panel.local" {
		t.Errorf("Allow-Origin = %q", got)
	}

	header.Set("Origin", "http://evil.example")
	rec = doRequest(t, srv, http.MethodGet, "/api/v1/health", "", header)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q for a foreign origin, want empty", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, bridge := testServer(t, "")
	bridge.panicState = true

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/climate", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decodeBody[Error](t, rec); got.Code != ErrCodeInternal {
		t.Errorf("code = %s, want %s", got.Code, ErrCodeInternal)
	}
}

func TestBodySizeLimit(t *testing.T) {
	srv, _ := testServer(t, "")
	body := `{"mode":"` + strings.Repeat("x", maxRequestBodySize) + `"}`

	rec := doRequest(t, srv, http.MethodPut, "/api/v1/climate", body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for oversized body", rec.Code)
	}
}

func TestNotFoundAndMethod(t *testing.T) {
	srv, _ := testServer(t, "")

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/devices", "", nil)
	if rec.Code != http.StatusNotFound || decodeBody[Error](t, rec).Code != ErrCodeNotFound {
		t.Errorf("unknown route status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/climate/traits", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE traits status = %d, want 405", rec.Code)
	}
}
