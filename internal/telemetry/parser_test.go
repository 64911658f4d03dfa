package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
)

// TestParse_StatusLine checks a well-formed status report.
func TestParse_StatusLine(t *testing.T) {
	t.Parallel()

	ev := Parse("Status: NORMAL | Pump Speed: 120 | Flow Rate: 3.2 mL/min\r\n")

	require.Equal(t, pump.StatusLine{
		Status: "NORMAL",
		Power:  pump.ValidReading(120),
		Flow:   pump.ValidReading(3.2),
	}, ev)
}

// TestParse_StatusLineBadNumbers ensures numeric failures only invalidate the field.
func TestParse_StatusLineBadNumbers(t *testing.T) {
	t.Parallel()

	ev := Parse("Status: MANUAL | Pump Speed: fast | Flow Rate: ?? mL/min")

	line, ok := ev.(pump.StatusLine)
	require.True(t, ok)
	require.Equal(t, "MANUAL", line.Status)
	require.False(t, line.Power.Valid)
	require.False(t, line.Flow.Valid)

	ev = Parse("Status: NORMAL | Pump Speed: 80 | Flow Rate: ")

	line, ok = ev.(pump.StatusLine)
	require.True(t, ok)
	require.Equal(t, pump.ValidReading(80), line.Power)
	require.False(t, line.Flow.Valid)
}

// TestParse_OutOfRangeStillParses leaves range validation to the device state.
func TestParse_OutOfRangeStillParses(t *testing.T) {
	t.Parallel()

	line, ok := Parse("Status: NORMAL | Pump Speed: 300 | Flow Rate: 650.0 mL/min").(pump.StatusLine)
	require.True(t, ok)
	require.Equal(t, pump.ValidReading(300), line.Power)
	require.Equal(t, pump.ValidReading(650.0), line.Flow)
}

// TestParse_Sentinels covers blood leakage and mode change lines.
func TestParse_Sentinels(t *testing.T) {
	t.Parallel()

	cases := map[string]pump.Event{
		"BLOOD LEAKAGE DETECTED":                 pump.BloodLeakage{},
		"!! BLOOD LEAKAGE DETECTED !!":           pump.BloodLeakage{},
		"Switched to AUTO mode":                  pump.ModeChanged{Mode: pump.ModeAuto},
		"Manual Mode: Speed Set To 200":          pump.ModeChanged{Mode: pump.ModeManual},
		"Status: BLOOD LEAKAGE DETECTED | x | y": pump.BloodLeakage{},
	}
	for line, want := range cases {
		require.Equal(t, want, Parse(line), line)
	}
}

// TestParse_Malformed ensures unknown input becomes data, not an error.
func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	for _, line := range []string{
		"",
		"garbage",
		"Status: NORMAL | Pump Speed: 120",
		"Pump Speed: 120 | Flow Rate: 3.2 | x",
	} {
		ev := Parse(line)
		require.IsType(t, pump.Malformed{}, ev, line)
	}

	require.Equal(t, pump.Malformed{Raw: "garbage"}, Parse("  garbage \n"))
}
