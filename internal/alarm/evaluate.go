package alarm

import "github.com/oshokin/pump-monitor/internal/domain/pump"

// Conditions returns the set of alarm kinds whose condition holds in snap.
func Conditions(snap pump.Snapshot) map[pump.Alarm]bool {
	return map[pump.Alarm]bool{
		pump.AlarmBloodLeakage:  snap.BloodDetected,
		pump.AlarmOcclusion:     snap.OcclusionDetected,
		pump.AlarmCommunication: snap.Faults.Communication,
		pump.AlarmConnection:    snap.Faults.Connection,
		pump.AlarmLowBattery:    snap.Battery < pump.LowBatteryAlarm,
		pump.AlarmInput:         snap.Faults.Input,
	}
}

// Evaluate returns the highest-priority active alarm, or pump.AlarmNone.
func Evaluate(snap pump.Snapshot) pump.Alarm {
	conditions := Conditions(snap)

	for _, kind := range pump.AlarmsByPriority {
		if conditions[kind] {
			return kind
		}
	}

	return pump.AlarmNone
}

// silencedSuffix is appended to the warning of a silenced alarm.
const silencedSuffix = " (Alarm silenced)"

// warningText returns the operator warning for an alarm kind.
func warningText(kind pump.Alarm, faults pump.Faults) string {
	switch kind {
	case pump.AlarmBloodLeakage:
		return "WARNING: Blood leakage detected!"
	case pump.AlarmOcclusion:
		return "WARNING: Occlusion detected!"
	case pump.AlarmCommunication:
		return "Serial error: " + faults.CommunicationDetail
	case pump.AlarmConnection:
		return "Failed to connect to pump. Check connections."
	case pump.AlarmLowBattery:
		return "WARNING: Battery critically low!"
	case pump.AlarmInput:
		return faults.InputDetail
	default:
		return ""
	}
}
