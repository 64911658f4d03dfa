package pump

// Event is one parsed telemetry line.
//
// The concrete types are StatusLine, BloodLeakage, ModeChanged and Malformed.
type Event interface {
	// Kind returns a short identifier for logs and metrics.
	Kind() string

	isEvent()
}

// StatusLine is a periodic status report:
// "Status: <STATUS> | Pump Speed: <int> | Flow Rate: <float> <unit>".
type StatusLine struct {
	// Status is the status word reported by the pump, e.g. NORMAL or MANUAL.
	Status string
	// Power is the reported pump speed; Valid is false if it did not parse.
	Power Reading[int]
	// Flow is the reported flow rate; Valid is false if it did not parse.
	Flow Reading[float64]
}

// BloodLeakage is the "BLOOD LEAKAGE DETECTED" sentinel.
type BloodLeakage struct{}

// ModeChanged reports a mode switch performed by the pump.
type ModeChanged struct {
	// Mode is the mode the pump switched to.
	Mode Mode
}

// Malformed is a line that matched no known format.
type Malformed struct {
	// Raw is the offending line.
	Raw string
}

// Kind implements Event.
func (StatusLine) Kind() string { return "status" }

// Kind implements Event.
func (BloodLeakage) Kind() string { return "blood_leakage" }

// Kind implements Event.
func (ModeChanged) Kind() string { return "mode_changed" }

// Kind implements Event.
func (Malformed) Kind() string { return "malformed" }

func (StatusLine) isEvent()   {}
func (BloodLeakage) isEvent() {}
func (ModeChanged) isEvent()  {}
func (Malformed) isEvent()    {}
