package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/fujitsu-bridge/internal/bridges/fujitsu"
	"github.com/nerrad567/fujitsu-bridge/internal/climate"
	"github.com/nerrad567/fujitsu-bridge/internal/heatpump"
	"github.com/nerrad567/fujitsu-bridge/internal/infrastructure/config"
	"github.com/nerrad567/fujitsu-bridge/internal/infrastructure/database"
)

// TestGetConfigPath verifies flag, environment and default precedence.
func TestGetConfigPath(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{name: "default", want: config.DefaultPath},
		{name: "environment", env: "/etc/fujibridge.yaml", want: "/etc/fujibridge.yaml"},
		{name: "flag wins", flag: "./local.yaml", env: "/etc/fujibridge.yaml", want: "./local.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(configEnv, tt.env)
			configFlag = tt.flag
			t.Cleanup(func() { configFlag = "" })

			if got := getConfigPath(); got != tt.want {
				t.Errorf("getConfigPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want a config loading error", err)
	}
}

// TestRun_NoTransport verifies run fails before touching infrastructure
// when the heat pump port cannot be opened.
func TestRun_NoTransport(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
bridge:
  id: test-unit

heatpump:
  port: ` + filepath.Join(tmpDir, "no-such-tty") + `

database:
  path: ` + filepath.Join(tmpDir, "test.db") + `

mqtt:
  enabled: false

api:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, configPath)
	if err == nil {
		t.Fatal("run() should fail when the serial port does not exist")
	}
	if !strings.Contains(err.Error(), "opening heat pump transport") {
		t.Errorf("run() error = %v, want a transport error", err)
	}
	if _, statErr := os.Stat(filepath.Join(tmpDir, "test.db")); !os.IsNotExist(statErr) {
		t.Error("database should not be created when the transport fails")
	}
}

func TestClimateTiming(t *testing.T) {
	in := config.TimingConfig{
		SettleDelay:        70 * time.Millisecond,
		PumpLockTimeout:    300 * time.Millisecond,
		UpdateLockTimeout:  400 * time.Millisecond,
		ControlLockTimeout: 2 * time.Second,
	}

	got := climateTiming(in)
	if got.SettleDelay != in.SettleDelay || got.PumpLockTimeout != in.PumpLockTimeout ||
		got.UpdateLockTimeout != in.UpdateLockTimeout || got.ControlLockTimeout != in.ControlLockTimeout {
		t.Errorf("climateTiming() = %+v, want fields copied from %+v", got, in)
	}
}

func TestFormatFrame(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 30, 45, 123_000_000, time.Local)

	tests := []struct {
		name  string
		frame heatpump.Frame
		want  []string
	}{
		{
			name: "unit status",
			frame: heatpump.Frame{
				Source: heatpump.AddrUnit,
				Dest:   heatpump.AddrPrimary,
				Type:   heatpump.MessageStatus,
				State: heatpump.State{
					Temperature:    22,
					ControllerTemp: 21,
					ACMode:         heatpump.ModeHeat,
					FanMode:        heatpump.FanLow,
					OnOff:          true,
					EconomyMode:    true,
				},
			},
			want: []string{"[12:30:45.123]", "unit -> primary", "STATUS", "power=ON", "mode=HEAT", "fan=FAN_LOW", "setpoint=21", "ambient=22", "[eco]"},
		},
		{
			name: "controller write",
			frame: heatpump.Frame{
				Source: heatpump.AddrSecondary,
				Dest:   heatpump.AddrUnit,
				Type:   heatpump.MessageStatus,
				Write:  true,
				State:  heatpump.State{ControllerPresent: true, ACMode: heatpump.ModeCool, UpdateMagic: 10},
			},
			want: []string{"secondary -> unit", "WRITE", "power=OFF", "mode=COOL", "[present,magic=10]"},
		},
		{
			name:  "unknown address",
			frame: heatpump.Frame{Source: 0x10, Dest: heatpump.AddrUnit, Type: heatpump.MessageLogin},
			want:  []string{"0x10 -> unit", "LOGIN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatFrame(at, tt.frame)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("formatFrame() = %q, missing %q", got, w)
				}
			}
		})
	}
}

type fakeStateWriter struct {
	bridgeIDs []string
	states    []climate.State
}

func (f *fakeStateWriter) WriteClimateState(bridgeID string, state climate.State) {
	f.bridgeIDs = append(f.bridgeIDs, bridgeID)
	f.states = append(f.states, state)
}

// TestTelemetryObserver_UnitStatesOnly keeps desired states out of the
// telemetry series.
func TestTelemetryObserver_UnitStatesOnly(t *testing.T) {
	w := &fakeStateWriter{}
	observe := telemetryObserver(w, "lounge")

	desired := climate.State{Mode: climate.ModeCool, TargetTemperature: 18}
	reported := climate.State{Mode: climate.ModeHeat, TargetTemperature: 22}

	observe(desired, fujitsu.SourceControl)
	observe(reported, fujitsu.SourceUnit)

	if len(w.states) != 1 {
		t.Fatalf("wrote %d states, want 1", len(w.states))
	}
	if w.states[0] != reported {
		t.Errorf("wrote %+v, want the unit-reported state", w.states[0])
	}
	if w.bridgeIDs[0] != "lounge" {
		t.Errorf("bridge id = %q, want lounge", w.bridgeIDs[0])
	}
}

func TestWriteMigrationStatus(t *testing.T) {
	tests := []struct {
		name   string
		status database.MigrationStatus
		want   []string
	}{
		{
			name: "empty",
			want: []string{"No migrations"},
		},
		{
			name: "applied and pending",
			status: database.MigrationStatus{
				Applied: []database.AppliedMigration{{Version: "20260301_120000", AppliedAt: time.Now()}},
				Pending: []database.Migration{{Version: "20260401_090000", Name: "presets"}},
			},
			want: []string{"VERSION", "20260301_120000  applied", "20260401_090000  pending"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			if err := writeMigrationStatus(&out, tt.status); err != nil {
				t.Fatalf("writeMigrationStatus() error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("output %q missing %q", out.String(), w)
				}
			}
		})
	}
}
