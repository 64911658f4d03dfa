package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/pump-monitor/internal/alarm"
	"github.com/oshokin/pump-monitor/internal/device"
	"github.com/oshokin/pump-monitor/internal/domain/pump"
	"github.com/oshokin/pump-monitor/internal/logger"
	"github.com/oshokin/pump-monitor/internal/metrics"
	"github.com/oshokin/pump-monitor/internal/port"
	"github.com/oshokin/pump-monitor/internal/sink"
)

// Timer defaults.
const (
	DefaultBatteryInterval = 10 * time.Second
	DefaultRefreshInterval = time.Second
)

// Operator-facing input fault details.
const (
	detailInvalidPower    = "Invalid power value"
	detailPowerOutOfRange = "Power must be between 0 and 255"
	detailNoPort          = "no candidate port could be opened"
)

var (
	// ErrNoPortAvailable is returned when every candidate port failed to open.
	ErrNoPortAvailable = errors.New("no serial port available")
	// ErrNotConnected is returned when a command is sent without a link.
	ErrNotConnected = errors.New("not connected to pump")
	// ErrAlreadyConnected is returned by Connect while a link is up.
	ErrAlreadyConnected = errors.New("already connected to pump")
	// ErrInvalidPower is returned for power text that is not an integer.
	ErrInvalidPower = errors.New("power is not an integer")

	// errOpenerRequired is returned by New without a port opener.
	errOpenerRequired = errors.New("port opener must be provided")
	// errStateRequired is returned by New without a device state.
	errStateRequired = errors.New("device state must be provided")
	// errArbiterRequired is returned by New without an alarm arbiter.
	errArbiterRequired = errors.New("alarm arbiter must be provided")
)

// Options configures a Session.
type Options struct {
	// Opener opens candidate ports.
	Opener port.Opener
	// State is the device state machine.
	State *device.State
	// Arbiter evaluates and sounds alarms.
	Arbiter *alarm.Arbiter
	// Sink receives every published snapshot; nil discards them.
	Sink sink.Sink
	// Metrics records diagnostics; nil disables them.
	Metrics *metrics.Metrics
	// BatteryInterval is the battery drain period.
	BatteryInterval time.Duration
	// RefreshInterval is the display refresh period.
	RefreshInterval time.Duration
	// OnBattery is called with the level after every drain tick, outside
	// the dispatch mutex.
	OnBattery func(level float64)
}

// Session is the serial session with the pump.
type Session struct {
	// ctx carries the logger.
	ctx context.Context //nolint:containedctx // Only used for logging from the read loop.
	// id identifies the session in logs.
	id string
	// open opens candidate ports.
	open port.Opener
	// state is the device state machine.
	state *device.State
	// arbiter evaluates and sounds alarms.
	arbiter *alarm.Arbiter
	// sink receives published snapshots.
	sink sink.Sink
	// metrics records diagnostics.
	metrics *metrics.Metrics
	// batteryInterval is the battery drain period.
	batteryInterval time.Duration
	// refreshInterval is the display refresh period.
	refreshInterval time.Duration
	// onBattery persists the battery level.
	onBattery func(level float64)

	// connectMu serializes Connect calls; ports are opened without mu held.
	connectMu sync.Mutex

	// mu is the dispatch mutex; it guards the fields below and serializes
	// mutation, arbitration and publication.
	mu sync.Mutex
	// link is the open port, nil when disconnected.
	link *link
	// last is the most recently published snapshot.
	last pump.Snapshot
}

// link is one open port with its read loop.
type link struct {
	// port is the open serial port.
	port port.Port
	// id is the port identifier.
	id string
	// monitoring keeps the read loop running.
	monitoring atomic.Bool
	// done is closed when the read loop exits.
	done chan struct{}
	// closeOnce guards port.Close.
	closeOnce sync.Once
}

// New creates a disconnected session and publishes the initial snapshot.
func New(ctx context.Context, opts Options) (*Session, error) {
	switch {
	case opts.Opener == nil:
		return nil, errOpenerRequired
	case opts.State == nil:
		return nil, errStateRequired
	case opts.Arbiter == nil:
		return nil, errArbiterRequired
	}

	if opts.BatteryInterval <= 0 {
		opts.BatteryInterval = DefaultBatteryInterval
	}

	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}

	publisher := opts.Sink
	if publisher == nil {
		publisher = sink.Func(func(pump.Snapshot) {})
	}

	id := uuid.NewString()

	s := &Session{
		ctx:             logger.WithKV(logger.WithName(ctx, "session"), "session_id", id),
		id:              id,
		open:            opts.Opener,
		state:           opts.State,
		arbiter:         opts.Arbiter,
		sink:            publisher,
		metrics:         opts.Metrics,
		batteryInterval: opts.BatteryInterval,
		refreshInterval: opts.RefreshInterval,
		onBattery:       opts.OnBattery,
	}

	s.mu.Lock()
	s.publish(s.state.Snapshot())
	s.mu.Unlock()

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Connect tries candidates in order and keeps the first port that opens.
// Later candidates are not tried. When every candidate fails the connection
// alarm is raised and ErrNoPortAvailable returned; there is no automatic retry.
func (s *Session) Connect(ctx context.Context, candidates []string) (string, error) {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.mu.Lock()
	if s.link != nil {
		s.mu.Unlock()
		return "", ErrAlreadyConnected
	}

	s.publish(s.state.SetConnection(pump.Connection{Status: pump.Connecting}))
	s.mu.Unlock()

	p, id, errs := s.openFirst(ctx, candidates)

	s.mu.Lock()
	defer s.mu.Unlock()

	if p == nil {
		s.publish(s.state.MarkConnectionFault(detailNoPort))

		logger.WarnKV(s.ctx, "Failed to connect to pump", "candidates", candidates)

		if len(errs) == 0 {
			return "", fmt.Errorf("%w: no candidates", ErrNoPortAvailable)
		}

		return "", fmt.Errorf("%w: tried %s: %w", ErrNoPortAvailable, strings.Join(candidates, ", "), errors.Join(errs...))
	}

	l := &link{
		port: p,
		id:   id,
		done: make(chan struct{}),
	}
	l.monitoring.Store(true)

	s.link = l
	s.state.SetConnection(pump.Connection{Status: pump.Connected, PortID: id})
	s.publish(s.state.SetMonitoring(true))

	go s.readLoop(l)

	logger.InfoKV(s.ctx, "Connected to pump", "port", id)

	return id, nil
}

// openFirst opens candidates in order and returns the first port that opens
// along with the errors of the ones that did not.
func (s *Session) openFirst(ctx context.Context, candidates []string) (port.Port, string, []error) {
	var errs []error

	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, "", append(errs, err)
		}

		p, err := s.open(id)
		if err == nil {
			return p, id, errs
		}

		logger.DebugKV(s.ctx, "Port did not open", "port", id, "error", err)
		errs = append(errs, err)
	}

	return nil, "", errs
}

// Disconnect stops the read loop and closes the port. Calling it while
// disconnected does nothing.
func (s *Session) Disconnect() {
	s.mu.Lock()

	l := s.link
	if l == nil {
		s.mu.Unlock()
		return
	}

	s.link = nil
	l.monitoring.Store(false)
	s.state.SetMonitoring(false)
	s.publish(s.state.SetConnection(pump.Connection{Status: pump.Disconnected}))
	s.mu.Unlock()

	if err := l.close(); err != nil {
		logger.WarnKV(s.ctx, "Port close failed", "port", l.id, "error", err)
	}

	<-l.done

	logger.InfoKV(s.ctx, "Disconnected from pump", "port", l.id)
}

// Close disconnects and silences the cue for good.
func (s *Session) Close() {
	s.Disconnect()
	s.arbiter.Close()
}

// SendCommand validates cmd, writes it to the pump and applies its local
// effects. A command that fails validation raises the input alarm and is
// never written. A failed write is treated as a communication failure.
func (s *Session) SendCommand(ctx context.Context, cmd pump.Command) error {
	if err := cmd.Validate(); err != nil {
		s.reject(cmd, detailPowerOutOfRange)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.link
	if l == nil {
		s.metrics.ObserveCommand(cmd.Kind.String(), metrics.ResultFailed)
		return ErrNotConnected
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := l.port.Write([]byte(cmd.Encode())); err != nil {
		s.metrics.ObserveCommand(cmd.Kind.String(), metrics.ResultFailed)
		s.dropLocked(l, err)

		return fmt.Errorf("write %s: %w", cmd, err)
	}

	s.metrics.ObserveCommand(cmd.Kind.String(), metrics.ResultAccepted)
	s.publish(s.state.RequestCommand(cmd))

	logger.InfoKV(s.ctx, "Command sent", "command", cmd.String(), "port", l.id)

	return nil
}

// SubmitPower parses operator-typed power text and sends it as SetPower.
func (s *Session) SubmitPower(ctx context.Context, text string) error {
	power, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		s.reject(pump.SetPower(0), detailInvalidPower)
		return fmt.Errorf("%w: %q", ErrInvalidPower, text)
	}

	return s.SendCommand(ctx, pump.SetPower(power))
}

// SetAuto switches the pump to automatic mode and clears the latches.
func (s *Session) SetAuto(ctx context.Context) error {
	return s.SendCommand(ctx, pump.SetAuto())
}

// Silence suppresses the cue of the active alarm. It reports whether there
// was an alarm to silence.
func (s *Session) Silence() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.arbiter.Silence()
	if ok {
		s.publish(s.state.Snapshot())
	}

	return ok
}

// SetUserAdjusting marks the power control as held by the operator.
func (s *Session) SetUserAdjusting(adjusting bool) pump.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.publish(s.state.SetUserAdjusting(adjusting))
}

// ResetBattery sets the battery level from an external source.
func (s *Session) ResetBattery(level float64) pump.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.publish(s.state.ResetBattery(level))
}

// Snapshot returns the last published snapshot.
func (s *Session) Snapshot() pump.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.last
}

// RunTimers drains the battery and refreshes the display until ctx is done.
// It never waits on serial I/O.
func (s *Session) RunTimers(ctx context.Context) {
	battery := time.NewTicker(s.batteryInterval)
	defer battery.Stop()

	refresh := time.NewTicker(s.refreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-battery.C:
			s.drainBattery()
		case <-refresh.C:
			s.refresh()
		}
	}
}

// drainBattery runs one battery tick.
func (s *Session) drainBattery() {
	s.mu.Lock()
	snap := s.publish(s.state.DrainBattery())
	s.mu.Unlock()

	if s.onBattery != nil {
		s.onBattery(snap.Battery)
	}
}

// refresh republishes the current state so time-based annotations and
// sinks stay current.
func (s *Session) refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publish(s.state.Snapshot())
}

// reject records a command that failed validation.
func (s *Session) reject(cmd pump.Command, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.ObserveCommand(cmd.Kind.String(), metrics.ResultRejected)
	s.publish(s.state.RejectCommand(detail))

	logger.WarnKV(s.ctx, "Command rejected", "command", cmd.Kind.String(), "reason", detail)
}

// publish arbitrates snap and hands it to the sink. Callers hold mu.
func (s *Session) publish(snap pump.Snapshot) pump.Snapshot {
	snap = s.arbiter.Update(snap)
	s.last = snap
	s.sink.Publish(snap)

	return snap
}

// dropLocked tears down a failed link and raises the communication alarm.
// Callers hold mu.
func (s *Session) dropLocked(l *link, cause error) {
	if s.link != l {
		return
	}

	s.link = nil
	l.monitoring.Store(false)
	s.publish(s.state.MarkCommunicationFault(cause.Error()))

	if err := l.close(); err != nil {
		logger.DebugKV(s.ctx, "Port close failed", "port", l.id, "error", err)
	}

	logger.ErrorKV(s.ctx, "Serial communication failed", "port", l.id, "error", cause)
}

// close closes the port once.
func (l *link) close() error {
	var err error

	l.closeOnce.Do(func() {
		err = l.port.Close()
	})

	return err
}
