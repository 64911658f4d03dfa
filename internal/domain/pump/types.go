package pump

// Mode is the pump operating mode.
type Mode int

const (
	// ModeAuto lets the pump firmware regulate its own speed.
	ModeAuto Mode = iota
	// ModeManual runs the pump at an operator-selected power.
	ModeManual
)

// String returns the mode as printed by the pump firmware.
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "AUTO"
	case ModeManual:
		return "MANUAL"
	default:
		return "UNKNOWN"
	}
}

// ConnectionStatus is the lifecycle stage of the serial link.
type ConnectionStatus int

const (
	// Disconnected means no port is open.
	Disconnected ConnectionStatus = iota
	// Connecting means candidates are being tried.
	Connecting
	// Connected means a port is open and the read loop may run.
	Connected
)

// String returns a human-readable connection status.
func (s ConnectionStatus) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Connection describes the serial link state.
type Connection struct {
	// Status is the current connection lifecycle stage.
	Status ConnectionStatus
	// PortID is the identifier of the open port, empty unless Connected.
	PortID string
}

// IsConnected reports whether the link is up.
func (c Connection) IsConnected() bool {
	return c.Status == Connected
}

// String renders the connection for display.
func (c Connection) String() string {
	if c.Status == Connected {
		return "connected to " + c.PortID
	}

	return c.Status.String()
}

// Alarm is a kind of alarm signal.
//
// The numeric order is the arbitration priority: a lower non-zero value wins.
type Alarm int

const (
	// AlarmNone means no alarm condition is present.
	AlarmNone Alarm = iota
	// AlarmBloodLeakage is raised by the blood leakage latch.
	AlarmBloodLeakage
	// AlarmOcclusion is raised by the occlusion latch.
	AlarmOcclusion
	// AlarmCommunication is raised when the link failed mid-session.
	AlarmCommunication
	// AlarmConnection is raised when no candidate port could be opened.
	AlarmConnection
	// AlarmLowBattery is raised when the battery drops below LowBatteryAlarm.
	AlarmLowBattery
	// AlarmInput is raised when a command was rejected locally.
	AlarmInput
)

// AlarmsByPriority lists every alarm kind, highest priority first.
//
//nolint:gochecknoglobals // Fixed table, read-only.
var AlarmsByPriority = []Alarm{
	AlarmBloodLeakage,
	AlarmOcclusion,
	AlarmCommunication,
	AlarmConnection,
	AlarmLowBattery,
	AlarmInput,
}

// String returns a stable identifier used in logs, metrics and JSON.
func (a Alarm) String() string {
	switch a {
	case AlarmNone:
		return "none"
	case AlarmBloodLeakage:
		return "blood_leakage"
	case AlarmOcclusion:
		return "occlusion"
	case AlarmCommunication:
		return "communication_error"
	case AlarmConnection:
		return "connection_failure"
	case AlarmLowBattery:
		return "low_battery"
	case AlarmInput:
		return "input_error"
	default:
		return "unknown"
	}
}

// Battery thresholds in percent.
const (
	// LowBatteryWarning turns the battery indicator into a warning.
	LowBatteryWarning = 20.0
	// LowBatteryAlarm raises AlarmLowBattery.
	LowBatteryAlarm = 10.0
	// FullBattery is the level after an external reset.
	FullBattery = 100.0
)
