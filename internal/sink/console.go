package sink

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
)

// Semantic colors for the console line.
const (
	colorOK      lipgloss.Color = "2" // Green
	colorAlarm   lipgloss.Color = "1" // Red
	colorWarning lipgloss.Color = "3" // Yellow
	colorMode    lipgloss.Color = "4" // Blue
	colorMuted   lipgloss.Color = "8" // Gray
)

//nolint:gochecknoglobals // Read-only styles.
var (
	okStyle      = lipgloss.NewStyle().Foreground(colorOK)
	alarmStyle   = lipgloss.NewStyle().Foreground(colorAlarm).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	modeStyle    = lipgloss.NewStyle().Foreground(colorMode)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
)

// Console renders snapshots as one styled line each, skipping repeats.
type Console struct {
	// w receives the rendered lines.
	w io.Writer
	// mu protects last and serializes writes.
	mu sync.Mutex
	// last is the previously written line.
	last string
}

// NewConsole creates a console sink writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Publish implements Sink.
func (c *Console) Publish(snap pump.Snapshot) {
	line := Render(snap)

	c.mu.Lock()
	defer c.mu.Unlock()

	if line == c.last {
		return
	}

	c.last = line
	_, _ = fmt.Fprintln(c.w, line)
}

// Render formats a snapshot for a terminal.
func Render(snap pump.Snapshot) string {
	parts := []string{
		renderConnection(snap.Connection),
		modeStyle.Render("Mode: " + snap.Mode.String()),
		"Flow: " + snap.Flow.String() + " mL/min",
		fmt.Sprintf("Power: %s (set %d)", snap.Power.String(), snap.Setpoint),
		renderStatus(snap),
		renderBattery(snap),
	}

	if snap.Alarm != pump.AlarmNone {
		alarm := "ALARM " + snap.Alarm.String()
		if snap.Silenced {
			alarm += " (silenced)"
		}

		parts = append(parts, alarmStyle.Render(alarm))
	}

	if snap.Warning != "" {
		parts = append(parts, warningStyle.Render(snap.Warning))
	}

	return strings.Join(parts, mutedStyle.Render(" | "))
}

// renderConnection colors the link state.
func renderConnection(conn pump.Connection) string {
	text := "[" + conn.String() + "]"
	if conn.IsConnected() {
		return okStyle.Render(text)
	}

	return alarmStyle.Render(text)
}

// renderStatus shows latched statuses in red.
func renderStatus(snap pump.Snapshot) string {
	text := "Status: " + snap.Status
	if snap.BloodDetected || snap.OcclusionDetected {
		return alarmStyle.Render(text)
	}

	return okStyle.Render(text)
}

// renderBattery uses the two-tier battery thresholds.
func renderBattery(snap pump.Snapshot) string {
	text := fmt.Sprintf("Battery: %d%%", int(snap.Battery))

	switch {
	case snap.Battery < pump.LowBatteryAlarm:
		return alarmStyle.Render(text)
	case snap.BatteryWarning:
		return warningStyle.Render(text)
	default:
		return text
	}
}
