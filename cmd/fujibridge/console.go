package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nerrad567/fujitsu-bridge/internal/bridges/fujitsu"
	"github.com/nerrad567/fujitsu-bridge/internal/console"
	"github.com/nerrad567/fujitsu-bridge/internal/heatpump"
	"github.com/nerrad567/fujitsu-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/fujitsu-bridge/internal/transport"
)

var consoleLogFile string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive climate console",
	Long: `Run the climate controller locally against the heat pump and drive it from
an interactive terminal UI. MQTT, the database and the HTTP API are not used.

Keys:
  m      Cycle mode
  + / -  Raise / lower target temperature
  f      Cycle fan mode
  e      Toggle eco preset
  q      Quit`,
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().StringVar(&consoleLogFile, "log-file", "", "Write bridge logs to this file (default: discard)")
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	// The alternate screen owns the terminal, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if consoleLogFile != "" {
		f, err := os.OpenFile(consoleLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	log := logging.NewWriter(cfg.Logging, version, logOut)

	conn, connInfo, err := transport.Open(ctx, cfg.HeatPump)
	if err != nil {
		return fmt.Errorf("opening heat pump transport: %w", err)
	}
	defer conn.Close()

	hp := heatpump.New()
	hp.Connect(conn, cfg.HeatPump.Secondary)

	bridge, err := fujitsu.NewBridge(fujitsu.BridgeOptions{
		BridgeID:       cfg.Bridge.ID,
		Version:        version,
		Protocol:       hp,
		Timing:         climateTiming(cfg.HeatPump.Timing),
		UpdateInterval: cfg.Bridge.UpdateInterval,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer bridge.Stop()

	err = console.Run(ctx, bridge, connInfo)
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
