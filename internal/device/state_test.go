package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
	"github.com/oshokin/pump-monitor/internal/telemetry"
)

// status builds a status line event with valid readings.
func status(text string, power int, flow float64) pump.StatusLine {
	return pump.StatusLine{
		Status: text,
		Power:  pump.ValidReading(power),
		Flow:   pump.ValidReading(flow),
	}
}

// TestApply_NormalStatusLine is the end-to-end NORMAL scenario.
func TestApply_NormalStatusLine(t *testing.T) {
	t.Parallel()

	ts := time.Unix(100, 0)
	s := New(WithClock(func() time.Time { return ts }))

	snap := s.Apply(telemetry.Parse("Status: NORMAL | Pump Speed: 120 | Flow Rate: 3.2 mL/min"))

	require.Equal(t, "NORMAL", snap.Status)
	require.Equal(t, pump.ValidReading(120), snap.Power)
	require.Equal(t, pump.ValidReading(3.2), snap.Flow)
	require.False(t, snap.OcclusionDetected)
	require.False(t, snap.BloodDetected)
	require.Equal(t, ts, snap.Timestamp)
	require.Equal(t, uint64(1), snap.Seq)
}

// TestApply_InvalidReadings ensures out-of-range or unparsable values are Invalid, never clamped.
func TestApply_InvalidReadings(t *testing.T) {
	t.Parallel()

	s := New()

	snap := s.Apply(status("NORMAL", 300, 500))
	require.False(t, snap.Power.Valid)
	require.False(t, snap.Flow.Valid)
	require.Equal(t, pump.InvalidText, snap.Flow.String())

	snap = s.Apply(pump.StatusLine{Status: "NORMAL", Power: pump.ValidReading(10)})
	require.True(t, snap.Power.Valid)
	require.False(t, snap.Flow.Valid)
}

// TestApply_OcclusionHysteresis walks the set/clear/no-set sequence.
func TestApply_OcclusionHysteresis(t *testing.T) {
	t.Parallel()

	s := New()

	snap := s.Apply(status("NORMAL", 100, 0.5))
	require.True(t, snap.OcclusionDetected)
	require.Equal(t, pump.StatusOcclusion, snap.Status)

	snap = s.Apply(status("NORMAL", 100, 2.0))
	require.False(t, snap.OcclusionDetected)
	require.Equal(t, "NORMAL", snap.Status)

	snap = s.Apply(status("NORMAL", 30, 0.5))
	require.False(t, snap.OcclusionDetected)
}

// TestApply_OcclusionInvalidFlowKeepsLatch checks that an invalid flow changes nothing.
func TestApply_OcclusionInvalidFlowKeepsLatch(t *testing.T) {
	t.Parallel()

	s := New()

	require.True(t, s.Apply(status("NORMAL", 100, 1.0)).OcclusionDetected)

	snap := s.Apply(pump.StatusLine{Status: "NORMAL", Power: pump.ValidReading(100)})
	require.True(t, snap.OcclusionDetected)

	// Between the thresholds with low power the latch stays as it was.
	snap = s.Apply(status("NORMAL", 20, 0.8))
	require.True(t, snap.OcclusionDetected)
}

// TestApply_BloodLatch verifies the latch survives unrelated status lines until SetAuto.
func TestApply_BloodLatch(t *testing.T) {
	t.Parallel()

	s := New()

	snap := s.Apply(telemetry.Parse("BLOOD LEAKAGE DETECTED"))
	require.True(t, snap.BloodDetected)
	require.Equal(t, pump.StatusBloodLeakage, snap.Status)
	require.Equal(t, pump.ValidReading(0.0), snap.Flow)
	require.Equal(t, pump.ValidReading(0), snap.Power)

	for range 3 {
		snap = s.Apply(status("NORMAL", 120, 3.2))
		require.Equal(t, pump.StatusBloodLeakage, snap.Status)
	}

	// Incoming AUTO telemetry does not clear the latch.
	snap = s.Apply(pump.ModeChanged{Mode: pump.ModeAuto})
	require.True(t, snap.BloodDetected)
	require.Equal(t, pump.StatusBloodLeakage, snap.Status)

	snap = s.RequestCommand(pump.SetAuto())
	require.False(t, snap.BloodDetected)
	require.Equal(t, pump.StatusNormal, snap.Status)
	require.Equal(t, pump.ModeAuto, snap.Mode)
	require.NotEmpty(t, snap.Notice)
}

// TestApply_BloodInStatusText latches when the status word reports blood leakage.
func TestApply_BloodInStatusText(t *testing.T) {
	t.Parallel()

	s := New()

	snap := s.Apply(status("BLOOD LEAKAGE", 0, 0))
	require.True(t, snap.BloodDetected)
	require.Equal(t, pump.StatusBloodLeakage, snap.Status)
}

// TestApply_BloodOverridesOcclusion checks status text priority.
func TestApply_BloodOverridesOcclusion(t *testing.T) {
	t.Parallel()

	s := New()
	s.Apply(status("NORMAL", 100, 0.5))
	s.Apply(pump.BloodLeakage{})

	snap := s.Apply(status("NORMAL", 100, 0.5))
	require.True(t, snap.OcclusionDetected)
	require.Equal(t, pump.StatusBloodLeakage, snap.Status)

	snap = s.RequestCommand(pump.SetAuto())
	require.False(t, snap.OcclusionDetected)
	require.False(t, snap.BloodDetected)
}

// TestApply_ModeAndMalformed covers mode changes and the diagnostic counter.
func TestApply_ModeAndMalformed(t *testing.T) {
	t.Parallel()

	s := New()

	snap := s.Apply(pump.ModeChanged{Mode: pump.ModeManual})
	require.Equal(t, pump.ModeManual, snap.Mode)

	before := snap
	snap = s.Apply(pump.Malformed{Raw: "noise"})
	require.Equal(t, uint64(1), snap.MalformedLines)
	require.Equal(t, before.Mode, snap.Mode)
	require.Equal(t, before.Status, snap.Status)
	require.Equal(t, before.Power, snap.Power)
}

// TestApply_SetpointFollowsManualTelemetry respects the user-adjusting flag.
func TestApply_SetpointFollowsManualTelemetry(t *testing.T) {
	t.Parallel()

	s := New()
	require.Equal(t, DefaultSetpoint, s.Snapshot().Setpoint)

	snap := s.Apply(status("MANUAL", 90, 5))
	require.Equal(t, 90, snap.Setpoint)

	s.SetUserAdjusting(true)

	snap = s.Apply(status("MANUAL", 150, 5))
	require.Equal(t, 90, snap.Setpoint)
	require.Equal(t, pump.ValidReading(150), snap.Power)

	s.SetUserAdjusting(false)

	snap = s.Apply(status("NORMAL", 200, 5))
	require.Equal(t, 90, snap.Setpoint)
}

// TestRequestCommand_SetPower switches to manual and clears an input fault.
func TestRequestCommand_SetPower(t *testing.T) {
	t.Parallel()

	s := New()

	snap := s.RejectCommand("Power must be between 0 and 255")
	require.True(t, snap.Faults.Input)

	snap = s.RequestCommand(pump.SetPower(42))
	require.False(t, snap.Faults.Input)
	require.Equal(t, pump.ModeManual, snap.Mode)
	require.Equal(t, 42, snap.Setpoint)
}

// TestConnectionFaults checks that reconnecting resets connection fields.
func TestConnectionFaults(t *testing.T) {
	t.Parallel()

	s := New()

	snap := s.MarkConnectionFault("no port")
	require.True(t, snap.Faults.Connection)
	require.Equal(t, pump.Disconnected, snap.Connection.Status)

	snap = s.SetConnection(pump.Connection{Status: pump.Connecting, PortID: "ignored"})
	require.False(t, snap.Faults.Connection)
	require.Empty(t, snap.Connection.PortID)

	snap = s.SetConnection(pump.Connection{Status: pump.Connected, PortID: "COM4"})
	require.True(t, snap.Connection.IsConnected())
	require.Equal(t, "COM4", snap.Connection.PortID)

	snap = s.MarkCommunicationFault("serial error")
	require.True(t, snap.Faults.Communication)
	require.False(t, snap.Connection.IsConnected())
	require.False(t, snap.Monitoring)
}

// TestFaultDetails keeps each fault's text with the fault that owns it.
func TestFaultDetails(t *testing.T) {
	t.Parallel()

	s := New()

	s.RejectCommand("Invalid power value")
	s.MarkCommunicationFault("read: broken pipe")

	snap := s.SetConnection(pump.Connection{Status: pump.Connecting})
	require.True(t, snap.Faults.Input)
	require.Equal(t, "Invalid power value", snap.Faults.InputDetail)
	require.False(t, snap.Faults.Communication)
	require.Empty(t, snap.Faults.CommunicationDetail)

	snap = s.MarkConnectionFault("no candidates")
	require.Equal(t, "no candidates", snap.Faults.ConnectionDetail)
	require.Equal(t, "Invalid power value", snap.Faults.InputDetail)

	snap = s.RequestCommand(pump.SetAuto())
	require.False(t, snap.Faults.Input)
	require.Empty(t, snap.Faults.InputDetail)
	require.Equal(t, "no candidates", snap.Faults.ConnectionDetail)
}

// TestDrainBattery verifies drain rates, the floor and the warning flag.
func TestDrainBattery(t *testing.T) {
	t.Parallel()

	s := New(WithBattery(20.5))

	snap := s.DrainBattery()
	require.InDelta(t, 20.3, snap.Battery, 1e-9)
	require.False(t, snap.BatteryWarning)

	s.SetMonitoring(true)

	snap = s.DrainBattery()
	require.InDelta(t, 19.3, snap.Battery, 1e-9)
	require.True(t, snap.BatteryWarning)

	s = New(WithBattery(0.5))
	s.SetMonitoring(true)
	require.Zero(t, s.DrainBattery().Battery)
	require.Zero(t, s.DrainBattery().Battery)

	require.InDelta(t, pump.FullBattery, s.ResetBattery(150).Battery, 1e-9)
}
