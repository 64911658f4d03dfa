package alarm

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
	"github.com/oshokin/pump-monitor/internal/logger"
)

// SoundSink plays one beat of the audible cue of an alarm.
// It is called from the cue goroutine every cue period.
type SoundSink interface {
	Cue(kind pump.Alarm)
}

// Tone describes the beep used for an alarm kind.
type Tone struct {
	// Frequency is the pitch in hertz.
	Frequency int
	// Duration is how long the beep lasts.
	Duration time.Duration
}

// beepDuration is the length of every beep.
const beepDuration = 200 * time.Millisecond

// ToneFor returns the tone of an alarm kind. Higher priority alarms use a higher pitch.
func ToneFor(kind pump.Alarm) Tone {
	switch kind {
	case pump.AlarmBloodLeakage:
		return Tone{Frequency: 1500, Duration: beepDuration}
	case pump.AlarmOcclusion:
		return Tone{Frequency: 1350, Duration: beepDuration}
	case pump.AlarmLowBattery:
		return Tone{Frequency: 900, Duration: beepDuration}
	default:
		return Tone{Frequency: 1000, Duration: beepDuration}
	}
}

// Bell is a SoundSink that rings the terminal bell and logs the tone.
// Actual audio playback is left to whatever renders the terminal.
type Bell struct {
	// ctx carries the logger.
	ctx context.Context //nolint:containedctx // Only used for logging from the cue goroutine.
	// w receives the BEL character.
	w io.Writer
	// mu serializes writes to w.
	mu sync.Mutex
}

// NewBell creates a bell writing to w. A nil w only logs.
func NewBell(ctx context.Context, w io.Writer) *Bell {
	return &Bell{
		ctx: logger.WithName(ctx, "bell"),
		w:   w,
	}
}

// Cue implements SoundSink.
func (b *Bell) Cue(kind pump.Alarm) {
	tone := ToneFor(kind)
	logger.DebugKV(b.ctx, "Alarm cue", "alarm", kind.String(), "frequency_hz", tone.Frequency)

	if b.w == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, _ = io.WriteString(b.w, "\a")
}
