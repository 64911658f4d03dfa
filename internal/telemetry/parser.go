package telemetry

import (
	"strconv"
	"strings"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
)

// Markers and field prefixes of the pump wire format.
const (
	bloodLeakageMarker = "BLOOD LEAKAGE DETECTED"
	autoModeMarker     = "Switched to AUTO mode"
	manualModeMarker   = "Manual Mode: Speed Set To"
	statusMarker       = "Status:"
	fieldSeparator     = "|"

	statusPrefix = "Status: "
	powerPrefix  = "Pump Speed: "
	flowPrefix   = "Flow Rate: "

	// statusFields is the number of "|"-separated fields of a status line.
	statusFields = 3
)

// Parse converts one telemetry line into an event.
func Parse(line string) pump.Event {
	line = strings.TrimSpace(line)

	switch {
	case strings.Contains(line, bloodLeakageMarker):
		return pump.BloodLeakage{}
	case strings.Contains(line, statusMarker) && strings.Count(line, fieldSeparator) >= statusFields-1:
		return parseStatus(line)
	case strings.Contains(line, autoModeMarker):
		return pump.ModeChanged{Mode: pump.ModeAuto}
	case strings.Contains(line, manualModeMarker):
		return pump.ModeChanged{Mode: pump.ModeManual}
	default:
		return pump.Malformed{Raw: line}
	}
}

// parseStatus splits "Status: X | Pump Speed: N | Flow Rate: F unit".
func parseStatus(line string) pump.StatusLine {
	parts := strings.SplitN(line, fieldSeparator, statusFields+1)

	status := strings.TrimPrefix(strings.TrimSpace(parts[0]), statusPrefix)
	power := strings.TrimPrefix(strings.TrimSpace(parts[1]), powerPrefix)
	flow := strings.TrimPrefix(strings.TrimSpace(parts[2]), flowPrefix)

	return pump.StatusLine{
		Status: strings.TrimSpace(status),
		Power:  parsePower(power),
		Flow:   parseFlow(flow),
	}
}

// parsePower reads the pump speed as an integer.
func parsePower(s string) pump.Reading[int] {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return pump.Reading[int]{}
	}

	return pump.ValidReading(v)
}

// parseFlow reads the first whitespace-delimited token as a float.
func parseFlow(s string) pump.Reading[float64] {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return pump.Reading[float64]{}
	}

	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return pump.Reading[float64]{}
	}

	return pump.ValidReading(v)
}
