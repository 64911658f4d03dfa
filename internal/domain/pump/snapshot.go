package pump

import "time"

// Status texts that override the status reported by the pump.
const (
	StatusBloodLeakage = "BLOOD LEAKAGE"
	StatusOcclusion    = "OCCLUSION"
	StatusNormal       = "NORMAL"
)

// Faults are the non-latched error conditions tracked by the device state.
type Faults struct {
	// Communication is set when the link failed mid-session.
	Communication bool
	// Connection is set when no candidate port could be opened.
	Connection bool
	// Input is set when the last operator command was rejected locally.
	Input bool
	// CommunicationDetail describes the link failure.
	CommunicationDetail string
	// ConnectionDetail describes why no port could be opened.
	ConnectionDetail string
	// InputDetail is the rejection reason shown to the operator.
	InputDetail string
}

// Snapshot is an immutable projection of the device state, annotated by the
// alarm arbiter. Sinks receive it by value and must not expect it to change.
type Snapshot struct {
	// Seq increases by one with every state change.
	Seq uint64
	// Timestamp is when the snapshot was taken.
	Timestamp time.Time
	// Status is the resolved status text (latches take precedence).
	Status string
	// Mode is the current operating mode.
	Mode Mode
	// Flow is the last flow rate reading.
	Flow Reading[float64]
	// Power is the last pump power reading.
	Power Reading[int]
	// Setpoint is the power indicator an operator control should show.
	Setpoint int
	// UserAdjusting reports an operator drag in progress.
	UserAdjusting bool
	// Battery is the battery level in percent.
	Battery float64
	// BatteryWarning is set below LowBatteryWarning.
	BatteryWarning bool
	// BloodDetected is the blood leakage latch.
	BloodDetected bool
	// OcclusionDetected is the occlusion latch.
	OcclusionDetected bool
	// Connection is the serial link state.
	Connection Connection
	// Monitoring reports whether the read loop is running.
	Monitoring bool
	// Faults holds the non-latched error conditions.
	Faults Faults
	// MalformedLines counts lines that matched no known format.
	MalformedLines uint64
	// Notice is an informational message without an alarm.
	Notice string

	// Alarm is the single active alarm chosen by the arbiter.
	Alarm Alarm
	// Silenced reports that the cue of the active alarm is suppressed.
	Silenced bool
	// SilenceEnabled reports whether a silence action would have an effect.
	SilenceEnabled bool
	// Warning is the text of the warning line.
	Warning string
}
