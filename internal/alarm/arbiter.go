package alarm

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
	"github.com/oshokin/pump-monitor/internal/logger"
)

// DefaultCuePeriod is the repetition period of the audible cue.
const DefaultCuePeriod = 500 * time.Millisecond

// Arbiter owns the effectful side of alarm handling.
type Arbiter struct {
	// ctx carries the logger.
	ctx context.Context //nolint:containedctx // Only used for logging.
	// sound plays the cue beats.
	sound SoundSink
	// period is the cue repetition period.
	period time.Duration

	// mu protects the fields below.
	mu sync.Mutex
	// active is the alarm currently surfaced.
	active pump.Alarm
	// silenced is the alarm whose cue the operator suppressed.
	silenced pump.Alarm
	// stopCue stops the running cue goroutine; nil when no cue runs.
	stopCue chan struct{}
}

// NewArbiter creates an arbiter. A non-positive period uses DefaultCuePeriod.
func NewArbiter(ctx context.Context, sound SoundSink, period time.Duration) *Arbiter {
	if period <= 0 {
		period = DefaultCuePeriod
	}

	return &Arbiter{
		ctx:    logger.WithName(ctx, "arbiter"),
		sound:  sound,
		period: period,
	}
}

// Update evaluates snap, starts or stops the cue accordingly and returns snap
// annotated with the arbitration result.
func (a *Arbiter) Update(snap pump.Snapshot) pump.Snapshot {
	conditions := Conditions(snap)
	top := Evaluate(snap)

	a.mu.Lock()
	defer a.mu.Unlock()

	// Re-arm silence when its condition cleared or a different alarm took over.
	if a.silenced != pump.AlarmNone && (!conditions[a.silenced] || top != a.silenced) {
		a.silenced = pump.AlarmNone
	}

	switch {
	case top == pump.AlarmNone:
		if a.active != pump.AlarmNone {
			logger.InfoKV(a.ctx, "Alarm cleared", "alarm", a.active.String())
		}

		a.stop()
		a.active = pump.AlarmNone
	case top == a.silenced:
		a.active = top
	default:
		a.trigger(top)
	}

	return a.annotate(snap)
}

// Trigger starts the cue for kind. Triggering the alarm that is already
// sounding or silenced does nothing.
func (a *Arbiter) Trigger(kind pump.Alarm) {
	if kind == pump.AlarmNone {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.trigger(kind)
}

// Silence suppresses the cue of the active alarm occurrence. The underlying
// condition is untouched. It reports whether anything was silenced.
func (a *Arbiter) Silence() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active == pump.AlarmNone || a.silenced == a.active {
		return false
	}

	a.silenced = a.active
	a.stop()

	logger.InfoKV(a.ctx, "Alarm silenced", "alarm", a.active.String())

	return true
}

// Active returns the alarm currently surfaced.
func (a *Arbiter) Active() pump.Alarm {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.active
}

// Sounding reports whether a cue is running.
func (a *Arbiter) Sounding() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.stopCue != nil
}

// Close stops any running cue.
func (a *Arbiter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stop()
}

// trigger must be called with mu held.
func (a *Arbiter) trigger(kind pump.Alarm) {
	if a.active == kind && (a.stopCue != nil || a.silenced == kind) {
		return
	}

	a.stop()
	a.active = kind

	logger.WarnKV(a.ctx, "Alarm triggered", "alarm", kind.String())

	if a.sound == nil {
		return
	}

	stop := make(chan struct{})
	a.stopCue = stop

	go a.cue(kind, stop)
}

// stop must be called with mu held. Stopping a stopped cue is a no-op.
func (a *Arbiter) stop() {
	if a.stopCue == nil {
		return
	}

	close(a.stopCue)
	a.stopCue = nil
}

// cue plays the first beat at once, then one beat per period until stopped.
func (a *Arbiter) cue(kind pump.Alarm, stop <-chan struct{}) {
	ticker := time.NewTicker(a.period)
	defer ticker.Stop()

	a.sound.Cue(kind)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
				a.sound.Cue(kind)
			}
		}
	}
}

// annotate must be called with mu held.
func (a *Arbiter) annotate(snap pump.Snapshot) pump.Snapshot {
	snap.Alarm = a.active
	snap.Silenced = a.active != pump.AlarmNone && a.silenced == a.active
	snap.SilenceEnabled = a.active != pump.AlarmNone && !snap.Silenced

	switch {
	case a.active == pump.AlarmNone:
		snap.Warning = snap.Notice
	case snap.Silenced:
		snap.Warning = warningText(a.active, snap.Faults) + silencedSuffix
	default:
		snap.Warning = warningText(a.active, snap.Faults)
	}

	return snap
}
