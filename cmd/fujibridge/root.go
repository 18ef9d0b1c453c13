package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/fujitsu-bridge/internal/climate"
	"github.com/nerrad567/fujitsu-bridge/internal/infrastructure/config"
)

// configEnv selects the config file when --config is not given.
const configEnv = "FUJIBRIDGE_CONFIG"

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "fujibridge",
	Short: "Fujitsu heat pump controller bridge",
	Long: `Fujibridge - A wired-controller emulator for Fujitsu indoor units.

Runs the climate controller against the unit's controller bus and exposes it
over MQTT, an HTTP API and a WebSocket push feed. Without a subcommand it runs
the full bridge.

Connection modes (config heatpump section):
  Serial:    port: /dev/ttyUSB0
  WebSocket: url: ws://host/path [username: user]

For WebSocket authentication, the password is read from FUJIBRIDGE_HEATPUMP_PASSWORD
or prompted interactively if not set.`,
	SilenceUsage: true,
	RunE:         runBridge,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "",
		fmt.Sprintf("Config file (default $%s or %s)", configEnv, config.DefaultPath))
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}

// getConfigPath returns the configuration file path.
// The --config flag wins over FUJIBRIDGE_CONFIG, which wins over the default.
func getConfigPath() string {
	if configFlag != "" {
		return configFlag
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return config.DefaultPath
}

func loadConfig() (*config.Config, string, error) {
	path := getConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// climateTiming converts the heatpump.timing config section. Zero values
// fall back to the controller defaults.
func climateTiming(t config.TimingConfig) climate.Timing {
	return climate.Timing{
		SettleDelay:        t.SettleDelay,
		PumpLockTimeout:    t.PumpLockTimeout,
		UpdateLockTimeout:  t.UpdateLockTimeout,
		ControlLockTimeout: t.ControlLockTimeout,
	}
}
