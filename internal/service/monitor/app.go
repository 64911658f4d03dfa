package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oshokin/pump-monitor/internal/alarm"
	"github.com/oshokin/pump-monitor/internal/api/grpc/health"
	"github.com/oshokin/pump-monitor/internal/api/rest"
	"github.com/oshokin/pump-monitor/internal/config"
	"github.com/oshokin/pump-monitor/internal/device"
	"github.com/oshokin/pump-monitor/internal/domain/pump"
	"github.com/oshokin/pump-monitor/internal/logger"
	"github.com/oshokin/pump-monitor/internal/metrics"
	"github.com/oshokin/pump-monitor/internal/port"
	"github.com/oshokin/pump-monitor/internal/repository/battery"
	"github.com/oshokin/pump-monitor/internal/session"
	"github.com/oshokin/pump-monitor/internal/sink"
	"github.com/oshokin/pump-monitor/internal/sink/mqtt"
)

// app holds the wired components of a running monitor.
type app struct {
	// ctx carries the logger.
	ctx context.Context //nolint:containedctx // Only used for logging from callbacks.
	// session owns the serial link.
	session *session.Session
	// arbiter sounds the alarms.
	arbiter *alarm.Arbiter
	// battery persists the battery level.
	battery battery.Repository
	// metrics collects diagnostics.
	metrics *metrics.Metrics
	// health reports connectivity over gRPC.
	health *health.Server
	// console prints the status line.
	console *sink.Queue
	// mqtt publishes snapshots when a broker is configured.
	mqtt *mqtt.Publisher
	// mqttQueue decouples broker round trips from dispatch.
	mqttQueue *sink.Queue
	// router is the HTTP API.
	router http.Handler
}

// newApp builds every component from settings. Output receives the console
// status line and the terminal bell.
func newApp(ctx context.Context, settings *config.Config, opener port.Opener, output io.Writer) (*app, error) {
	a := &app{
		ctx:     ctx,
		battery: battery.NewFileRepository(settings.BatteryFile),
		metrics: metrics.New(),
		health:  health.NewServer(),
		console: sink.NewQueue(sink.NewConsole(output), sink.DefaultQueueSize),
	}

	sinks := sink.Fanout{a.metrics, a.health, a.console}

	if settings.MQTT.Broker != "" {
		publisher, err := mqtt.Dial(ctx, mqtt.Config{
			Broker:   settings.MQTT.Broker,
			Topic:    settings.MQTT.Topic,
			ClientID: settings.MQTT.ClientID,
			Username: settings.MQTT.Username,
			Password: settings.MQTT.Password,
			Timeout:  settings.MQTT.Timeout,
		})

		switch {
		case err != nil:
			logger.WarnKV(ctx, "Snapshots will not be published over MQTT", "error", err)
		default:
			a.mqtt = publisher
			a.mqttQueue = sink.NewQueue(publisher, sink.DefaultQueueSize)
			sinks = append(sinks, a.mqttQueue)
		}
	}

	level := a.restoreBattery(ctx)

	a.arbiter = alarm.NewArbiter(ctx, alarm.NewBell(ctx, output), settings.CuePeriod)

	sess, err := session.New(ctx, session.Options{
		Opener:          opener,
		State:           device.New(device.WithBattery(level)),
		Arbiter:         a.arbiter,
		Sink:            sinks,
		Metrics:         a.metrics,
		BatteryInterval: settings.BatteryInterval,
		RefreshInterval: settings.RefreshInterval,
		OnBattery:       a.saveBattery,
	})
	if err != nil {
		a.closeSinks()
		return nil, fmt.Errorf("create session: %w", err)
	}

	a.session = sess
	a.router = rest.NewRouter(ctx, rest.Options{
		Controller: sess,
		Ports:      settings.Ports,
		Metrics:    a.metrics.Handler(),
		Battery:    a.battery,
	})

	return a, nil
}

// restoreBattery returns the persisted battery level or a full battery.
func (a *app) restoreBattery(ctx context.Context) float64 {
	record, err := a.battery.Load(ctx)

	switch {
	case errors.Is(err, battery.ErrNotFound):
		return pump.FullBattery
	case err != nil:
		logger.WarnKV(ctx, "Battery level not restored, assuming full", "error", err)
		return pump.FullBattery
	}

	logger.InfoKV(ctx, "Battery level restored", "level", record.Level, "recorded_at", record.Timestamp)

	return record.Level
}

// saveBattery persists the level after a drain tick.
func (a *app) saveBattery(level float64) {
	record := &battery.Record{
		Level:     level,
		Timestamp: time.Now(),
	}

	if err := a.battery.Save(a.ctx, record); err != nil {
		logger.WarnKV(a.ctx, "Battery level not persisted", "error", err)
	}
}

// close stops the session and flushes every sink.
func (a *app) close(ctx context.Context) {
	a.session.Close()
	a.saveBattery(a.session.Snapshot().Battery)
	a.closeSinks()

	logger.DebugKV(ctx, "Monitor components closed")
}

// closeSinks flushes the queues and disconnects from the broker.
func (a *app) closeSinks() {
	a.console.Close()

	if a.mqttQueue != nil {
		a.mqttQueue.Close()
	}

	if a.mqtt != nil {
		a.mqtt.Close()
	}
}
