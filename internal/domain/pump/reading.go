package pump

import (
	"math"
	"strconv"
)

// InvalidText is what a display shows for a reading that is not valid.
const InvalidText = "----"

// Valid ranges of the pump readings.
const (
	// MinFlowRate is the lowest valid flow rate in mL/min (inclusive).
	MinFlowRate = 0.0
	// MaxFlowRate is the upper flow rate bound in mL/min (exclusive).
	MaxFlowRate = 500.0
	// MinPower is the lowest valid pump power value.
	MinPower = 0
	// MaxPower is the highest valid pump power value.
	MaxPower = 255
)

// Reading is a numeric value that may be invalid.
// Invalid readings are shown as "----" and never clamped into range.
type Reading[T int | float64] struct {
	// Value is the parsed number; meaningless when Valid is false.
	Value T
	// Valid reports whether Value holds a usable number.
	Valid bool
}

// ValidReading wraps v as a valid reading.
func ValidReading[T int | float64](v T) Reading[T] {
	return Reading[T]{Value: v, Valid: true}
}

// FlowRate keeps r valid only when it lies in [0, 500).
func FlowRate(r Reading[float64]) Reading[float64] {
	if !r.Valid || math.IsNaN(r.Value) || r.Value < MinFlowRate || r.Value >= MaxFlowRate {
		return Reading[float64]{}
	}

	return r
}

// Power keeps r valid only when it lies in [0, 255].
func Power(r Reading[int]) Reading[int] {
	if !r.Valid || r.Value < MinPower || r.Value > MaxPower {
		return Reading[int]{}
	}

	return r
}

// String renders the reading for display. Floats use one decimal place.
func (r Reading[T]) String() string {
	if !r.Valid {
		return InvalidText
	}

	switch v := any(r.Value).(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', 1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return InvalidText
	}
}
