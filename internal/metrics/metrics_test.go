package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
)

// TestMetrics_Publish mirrors the snapshot into gauges.
func TestMetrics_Publish(t *testing.T) {
	t.Parallel()

	m := New()
	m.Publish(pump.Snapshot{
		Alarm:          pump.AlarmOcclusion,
		Battery:        42.5,
		Connection:     pump.Connection{Status: pump.Connected, PortID: "COM3"},
		MalformedLines: 3,
		Flow:           pump.ValidReading(0.5),
		Power:          pump.Reading[int]{},
	})

	require.InDelta(t, 1, testutil.ToFloat64(m.alarm.WithLabelValues("occlusion")), 0)
	require.InDelta(t, 0, testutil.ToFloat64(m.alarm.WithLabelValues("blood_leakage")), 0)
	require.InDelta(t, 42.5, testutil.ToFloat64(m.battery), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.connected), 0)
	require.InDelta(t, 3, testutil.ToFloat64(m.malformed), 0)
	require.InDelta(t, 0.5, testutil.ToFloat64(m.flow), 0)

	m.Publish(pump.Snapshot{})
	require.InDelta(t, 0, testutil.ToFloat64(m.alarm.WithLabelValues("occlusion")), 0)
	require.InDelta(t, 0, testutil.ToFloat64(m.connected), 0)
}

// TestMetrics_Counters counts lines and commands by label.
func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveLine(pump.Malformed{Raw: "x"})
	m.ObserveLine(pump.Malformed{Raw: "y"})
	m.ObserveLine(pump.BloodLeakage{})
	m.ObserveCommand("set_power", ResultRejected)

	require.InDelta(t, 2, testutil.ToFloat64(m.lines.WithLabelValues("malformed")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.lines.WithLabelValues("blood_leakage")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.commands.WithLabelValues("set_power", ResultRejected)), 0)
}

// TestMetrics_NilIsNoop allows running without metrics.
func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics

	require.NotPanics(t, func() {
		m.ObserveLine(pump.BloodLeakage{})
		m.ObserveCommand("set_auto", ResultAccepted)
		m.Publish(pump.Snapshot{})
	})
}

// TestMetrics_Handler serves the exposition format.
func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := New()
	m.Publish(pump.Snapshot{Battery: 80})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL) //nolint:noctx // Test server.
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "pump_monitor_battery_percent 80")
	require.Contains(t, string(body), `pump_monitor_alarm_active{alarm="low_battery"} 0`)
}
