package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/fujitsu-bridge/internal/heatpump"
	"github.com/nerrad567/fujitsu-bridge/internal/transport"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display decoded bus frames",
	Long: `Continuously decode and display controller bus frames as they arrive.

The monitor only listens: it never answers the indoor unit, so it can run
alongside a wall controller. Each line shows the time, addresses, message
type and the decoded state.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	conn, connInfo, err := transport.Open(ctx, cfg.HeatPump)
	if err != nil {
		return fmt.Errorf("opening heat pump transport: %w", err)
	}
	defer conn.Close()

	fmt.Printf("Fujibridge - Bus Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	hp := heatpump.New()
	hp.Connect(conn, cfg.HeatPump.Secondary)
	hp.OnFrame(func(f heatpump.Frame) {
		fmt.Println(formatFrame(time.Now(), f))
	})

	// WaitForFrame is bounded by the transport read timeout, so the loop
	// notices cancellation promptly. Pending answers are never sent.
	for ctx.Err() == nil {
		hp.WaitForFrame()
	}

	s := hp.Stats()
	fmt.Printf("\n%d frames, %d decode errors, %d read errors\n", s.FramesRx, s.DecodeErrors, s.ReadErrors)
	return nil
}

// formatFrame renders one frame as a single log line.
func formatFrame(at time.Time, f heatpump.Frame) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s -> %s %-7s", at.Format("15:04:05.000"), addrName(f.Source), addrName(f.Dest), f.Type)
	if f.Write {
		b.WriteString(" WRITE")
	}

	s := f.State
	power := "OFF"
	if s.OnOff {
		power = "ON"
	}
	fmt.Fprintf(&b, " power=%s mode=%s fan=%s setpoint=%d ambient=%d", power, s.ACMode, s.FanMode, s.ControllerTemp, s.Temperature)

	var flags []string
	if s.EconomyMode {
		flags = append(flags, "eco")
	}
	if s.SwingMode {
		flags = append(flags, "swing")
	}
	if s.SwingStep {
		flags = append(flags, "swing_step")
	}
	if s.ControllerPresent {
		flags = append(flags, "present")
	}
	if s.Error {
		flags = append(flags, "ERROR")
	}
	if s.UpdateMagic != 0 {
		flags = append(flags, fmt.Sprintf("magic=%d", s.UpdateMagic))
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(flags, ","))
	}

	return b.String()
}

func addrName(addr uint8) string {
	switch addr {
	case heatpump.AddrUnit:
		return "unit"
	case heatpump.AddrPrimary:
		return "primary"
	case heatpump.AddrSecondary:
		return "secondary"
	default:
		return fmt.Sprintf("0x%02x", addr)
	}
}
