package device

import (
	"strings"
	"sync"
	"time"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
)

// Occlusion thresholds: the latch sets when flow is at or below
// occlusionFlowLimit while power is above occlusionPowerLimit and clears
// once flow rises above occlusionFlowLimit.
const (
	occlusionFlowLimit  = 1.0
	occlusionPowerLimit = 50
)

// Battery drain per tick in percent.
const (
	monitoringDrain = 1.0
	idleDrain       = 0.2
)

// Operator-facing notices.
const (
	noticeAutoMode = "Switched to automatic mode"
)

// State is the single mutable aggregate describing the pump.
type State struct {
	// mu serializes every mutation and projection.
	mu sync.Mutex
	// now returns the snapshot timestamp.
	now func() time.Time

	// seq is bumped on every change.
	seq uint64
	// mode is the current operating mode.
	mode pump.Mode
	// flow is the last validated flow rate.
	flow pump.Reading[float64]
	// power is the last validated pump power.
	power pump.Reading[int]
	// setpoint is the power indicator shown to the operator.
	setpoint int
	// userAdjusting blocks telemetry from moving the setpoint.
	userAdjusting bool
	// statusText is the last status reported by the pump.
	statusText string
	// bloodDetected is the blood leakage latch.
	bloodDetected bool
	// occlusionDetected is the occlusion latch.
	occlusionDetected bool
	// battery is the battery level in percent.
	battery float64
	// connection is the serial link state.
	connection pump.Connection
	// monitoring mirrors the read loop flag.
	monitoring bool
	// faults holds the non-latched error conditions.
	faults pump.Faults
	// malformed counts unrecognized lines.
	malformed uint64
	// notice is an informational message.
	notice string
}

// Option customizes a State.
type Option func(*State)

// WithClock overrides the clock used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBattery sets the initial battery level.
func WithBattery(level float64) Option {
	return func(s *State) {
		s.battery = clampBattery(level)
	}
}

// DefaultSetpoint is the initial manual power indicator, matching the
// firmware default speed.
const DefaultSetpoint = 180

// New creates the state with defaults: auto mode, NORMAL status, full battery,
// disconnected.
func New(opts ...Option) *State {
	s := &State{
		now:        time.Now,
		mode:       pump.ModeAuto,
		flow:       pump.ValidReading(0.0),
		power:      pump.ValidReading(0),
		setpoint:   DefaultSetpoint,
		statusText: pump.StatusNormal,
		battery:    pump.FullBattery,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Apply folds one telemetry event into the state.
func (s *State) Apply(event pump.Event) pump.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev := event.(type) {
	case pump.StatusLine:
		s.applyStatus(ev)
	case pump.BloodLeakage:
		s.bloodDetected = true
		s.flow = pump.ValidReading(0.0)
		s.power = pump.ValidReading(0)
	case pump.ModeChanged:
		// An incoming AUTO report does not clear latches; only the operator command does.
		s.mode = ev.Mode
	case pump.Malformed:
		s.malformed++
	}

	return s.commit()
}

// applyStatus updates readings, occlusion hysteresis and status text.
func (s *State) applyStatus(ev pump.StatusLine) {
	s.flow = pump.FlowRate(ev.Flow)
	s.power = pump.Power(ev.Power)

	if s.flow.Valid {
		switch {
		case s.flow.Value > occlusionFlowLimit:
			s.occlusionDetected = false
		case s.power.Valid && s.power.Value > occlusionPowerLimit:
			s.occlusionDetected = true
		}
	}

	if strings.Contains(ev.Status, pump.StatusBloodLeakage) {
		s.bloodDetected = true
	}

	s.statusText = ev.Status

	if strings.Contains(ev.Status, pump.ModeManual.String()) && s.power.Valid && !s.userAdjusting {
		s.setpoint = s.power.Value
	}
}

// RequestCommand applies the local effects of an accepted operator command.
// Validation and the serial write happen before this is called.
func (s *State) RequestCommand(cmd pump.Command) pump.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.faults.Input = false
	s.faults.InputDetail = ""

	switch cmd.Kind {
	case pump.CommandSetPower:
		s.mode = pump.ModeManual
		s.setpoint = cmd.Power
		s.notice = ""
	case pump.CommandSetAuto:
		s.mode = pump.ModeAuto
		s.bloodDetected = false
		s.occlusionDetected = false
		s.statusText = pump.StatusNormal
		s.notice = noticeAutoMode
	}

	return s.commit()
}

// RejectCommand records a command that failed local validation.
func (s *State) RejectCommand(detail string) pump.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.faults.Input = true
	s.faults.InputDetail = detail

	return s.commit()
}

// SetConnection updates the link state. Connecting clears previous
// connection and communication faults. An input fault is left alone.
func (s *State) SetConnection(conn pump.Connection) pump.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conn.Status != pump.Connected {
		conn.PortID = ""
	}

	if conn.Status == pump.Connecting {
		s.faults.Connection = false
		s.faults.ConnectionDetail = ""
		s.faults.Communication = false
		s.faults.CommunicationDetail = ""
	}

	s.connection = conn

	return s.commit()
}

// MarkConnectionFault records that no candidate port could be opened.
func (s *State) MarkConnectionFault(detail string) pump.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connection = pump.Connection{Status: pump.Disconnected}
	s.monitoring = false
	s.faults.Connection = true
	s.faults.ConnectionDetail = detail

	return s.commit()
}

// MarkCommunicationFault records an I/O or decode failure mid-session.
func (s *State) MarkCommunicationFault(detail string) pump.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connection = pump.Connection{Status: pump.Disconnected}
	s.monitoring = false
	s.faults.Communication = true
	s.faults.CommunicationDetail = detail

	return s.commit()
}

// SetMonitoring mirrors the read loop flag.
func (s *State) SetMonitoring(monitoring bool) pump.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.monitoring = monitoring

	return s.commit()
}

// SetUserAdjusting is set by the presentation layer while the operator drags
// the power control, so telemetry does not move it under their hand.
func (s *State) SetUserAdjusting(adjusting bool) pump.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userAdjusting = adjusting

	return s.commit()
}

// DrainBattery lowers the battery level by one tick.
// The level never increases here.
func (s *State) DrainBattery() pump.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	drain := idleDrain
	if s.monitoring {
		drain = monitoringDrain
	}

	s.battery = clampBattery(s.battery - drain)

	return s.commit()
}

// ResetBattery is the external reset of the battery level.
func (s *State) ResetBattery(level float64) pump.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.battery = clampBattery(level)

	return s.commit()
}

// Snapshot returns the current projection without changing the state.
func (s *State) Snapshot() pump.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.project()
}

// commit bumps the sequence number and projects the state.
func (s *State) commit() pump.Snapshot {
	s.seq++

	return s.project()
}

// project builds the snapshot. Latches override the reported status.
func (s *State) project() pump.Snapshot {
	status := s.statusText

	switch {
	case s.bloodDetected:
		status = pump.StatusBloodLeakage
	case s.occlusionDetected:
		status = pump.StatusOcclusion
	}

	return pump.Snapshot{
		Seq:               s.seq,
		Timestamp:         s.now(),
		Status:            status,
		Mode:              s.mode,
		Flow:              s.flow,
		Power:             s.power,
		Setpoint:          s.setpoint,
		UserAdjusting:     s.userAdjusting,
		Battery:           s.battery,
		BatteryWarning:    s.battery < pump.LowBatteryWarning,
		BloodDetected:     s.bloodDetected,
		OcclusionDetected: s.occlusionDetected,
		Connection:        s.connection,
		Monitoring:        s.monitoring,
		Faults:            s.faults,
		MalformedLines:    s.malformed,
		Notice:            s.notice,
	}
}

// clampBattery keeps the level within [0, 100].
func clampBattery(level float64) float64 {
	switch {
	case level < 0:
		return 0
	case level > pump.FullBattery:
		return pump.FullBattery
	default:
		return level
	}
}
