package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
)

const namespace = "pump_monitor"

// Command results.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// registry owns every collector below.
	registry *prometheus.Registry
	// lines counts parsed lines by event kind.
	lines *prometheus.CounterVec
	// commands counts operator commands by kind and result.
	commands *prometheus.CounterVec
	// alarm is 1 for the currently surfaced alarm kind.
	alarm *prometheus.GaugeVec
	// battery is the battery level in percent.
	battery prometheus.Gauge
	// connected is 1 while the serial link is up.
	connected prometheus.Gauge
	// malformed mirrors the malformed line counter of the state.
	malformed prometheus.Gauge
	// flow is the last valid flow rate.
	flow prometheus.Gauge
	// power is the last valid pump power.
	power prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Telemetry lines received, by parsed kind.",
		}, []string{"kind"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Operator commands, by command and result.",
		}, []string{"command", "result"}),
		alarm: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alarm_active",
			Help:      "1 for the alarm kind currently surfaced.",
		}, []string{"alarm"}),
		battery: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_percent",
			Help:      "Battery level in percent.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the serial link is connected.",
		}),
		malformed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "malformed_lines",
			Help:      "Unrecognized telemetry lines since start.",
		}),
		flow: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flow_rate_ml_per_min",
			Help:      "Last valid flow rate.",
		}),
		power: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power",
			Help:      "Last valid pump power.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.lines,
		m.commands,
		m.alarm,
		m.battery,
		m.connected,
		m.malformed,
		m.flow,
		m.power,
	)

	for _, kind := range pump.AlarmsByPriority {
		m.alarm.WithLabelValues(kind.String()).Set(0)
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveLine counts one parsed line.
func (m *Metrics) ObserveLine(event pump.Event) {
	if m == nil {
		return
	}

	m.lines.WithLabelValues(event.Kind()).Inc()
}

// ObserveCommand counts one operator command.
func (m *Metrics) ObserveCommand(command, result string) {
	if m == nil {
		return
	}

	m.commands.WithLabelValues(command, result).Inc()
}

// Publish implements sink.Sink.
func (m *Metrics) Publish(snap pump.Snapshot) {
	if m == nil {
		return
	}

	for _, kind := range pump.AlarmsByPriority {
		m.alarm.WithLabelValues(kind.String()).Set(boolToFloat(kind == snap.Alarm))
	}

	m.battery.Set(snap.Battery)
	m.connected.Set(boolToFloat(snap.Connection.IsConnected()))
	m.malformed.Set(float64(snap.MalformedLines))

	if snap.Flow.Valid {
		m.flow.Set(snap.Flow.Value)
	}

	if snap.Power.Valid {
		m.power.Set(float64(snap.Power.Value))
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}

	return 0
}
