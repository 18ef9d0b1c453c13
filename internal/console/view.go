package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nerrad567/fujitsu-bridge/internal/climate"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("FUJITSU CONSOLE"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | m=mode +/-=target f=fan e=eco q=quit", m.connInfo)))
	s.WriteString("\n\n")

	panelWidth := min(max(m.width-4, 30), 60)
	s.WriteString(boxStyle.Width(panelWidth).Render(m.renderState()))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(panelWidth).Render(m.renderStats()))
	s.WriteString("\n")
	if len(m.log) > 0 {
		s.WriteString(boxStyle.Width(panelWidth).Render(m.renderLog()))
		s.WriteString("\n")
	}

	return s.String()
}

func (m Model) renderState() string {
	var pending climate.State
	if m.pending != nil {
		pending = *m.pending
	}

	rows := []struct {
		label    string
		reported string
		desired  string
	}{
		{"Current", fmt.Sprintf("%.0f°C", m.state.CurrentTemperature), ""},
		{"Target", fmt.Sprintf("%.0f°C", m.state.TargetTemperature), fmt.Sprintf("%.0f°C", pending.TargetTemperature)},
		{"Mode", string(m.state.Mode), string(pending.Mode)},
		{"Fan", orDash(string(m.state.FanMode)), orDash(string(pending.FanMode))},
		{"Preset", string(m.state.Preset), string(pending.Preset)},
	}

	var s strings.Builder
	for i, r := range rows {
		fmt.Fprintf(&s, "%s %s", labelStyle.Render(fmt.Sprintf("%-8s", r.label+":")), valueStyle.Render(r.reported))
		if m.pending != nil && r.desired != "" && r.desired != r.reported {
			s.WriteString(pendingStyle.Render(" → " + r.desired + " (pending)"))
		}
		if i < len(rows)-1 {
			s.WriteString("\n")
		}
	}
	return s.String()
}

func (m Model) renderStats() string {
	p := m.metrics.Protocol
	c := m.metrics.Climate

	last := "never"
	if !p.LastFrame.IsZero() {
		last = p.LastFrame.Format("15:04:05")
	}

	return fmt.Sprintf("%s rx %d  tx %d  decode errors %d  last %s\n%s pump %d  update %d  control %d",
		labelStyle.Render("Frames:"), p.FramesRx, p.FramesTx, p.DecodeErrors, last,
		labelStyle.Render("Lock skips:"), c.Pump.LockSkips, c.UpdateSkips, c.ControlTimeouts,
	)
}

func (m Model) renderLog() string {
	lines := make([]string, 0, len(m.log))
	for _, e := range m.log {
		line := e.at.Format("15:04:05") + " " + e.message
		if e.isError {
			line = errorStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
