package sink

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
)

// Encode renders a snapshot as a JSON document.
// Invalid readings are encoded as null.
func Encode(snap pump.Snapshot) ([]byte, error) {
	doc, err := structpb.NewStruct(toMap(snap))
	if err != nil {
		return nil, fmt.Errorf("build snapshot document: %w", err)
	}

	data, err := protojson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	return data, nil
}

// toMap flattens a snapshot into structpb-compatible values.
func toMap(snap pump.Snapshot) map[string]any {
	return map[string]any{
		"seq":                snap.Seq,
		"timestamp":          snap.Timestamp.UTC().Format(time.RFC3339Nano),
		"status":             snap.Status,
		"mode":               snap.Mode.String(),
		"flow":               readingValue(snap.Flow),
		"flow_text":          snap.Flow.String(),
		"power":              readingValue(snap.Power),
		"power_text":         snap.Power.String(),
		"setpoint":           snap.Setpoint,
		"user_adjusting":     snap.UserAdjusting,
		"battery":            snap.Battery,
		"battery_warning":    snap.BatteryWarning,
		"blood_detected":     snap.BloodDetected,
		"occlusion_detected": snap.OcclusionDetected,
		"connection": map[string]any{
			"status": snap.Connection.Status.String(),
			"port":   snap.Connection.PortID,
		},
		"monitoring": snap.Monitoring,
		"faults": map[string]any{
			"communication":        snap.Faults.Communication,
			"communication_detail": snap.Faults.CommunicationDetail,
			"connection":           snap.Faults.Connection,
			"connection_detail":    snap.Faults.ConnectionDetail,
			"input":                snap.Faults.Input,
			"input_detail":         snap.Faults.InputDetail,
		},
		"malformed_lines": snap.MalformedLines,
		"alarm":           snap.Alarm.String(),
		"silenced":        snap.Silenced,
		"silence_enabled": snap.SilenceEnabled,
		"warning":         snap.Warning,
		"notice":          snap.Notice,
	}
}

// readingValue returns the reading value or nil when invalid.
func readingValue[T int | float64](r pump.Reading[T]) any {
	if !r.Valid {
		return nil
	}

	return r.Value
}
