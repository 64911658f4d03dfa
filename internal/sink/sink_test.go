package sink

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
)

// recorder collects published snapshots.
type recorder struct {
	// mu protects got.
	mu sync.Mutex
	// got holds every snapshot in arrival order.
	got []pump.Snapshot
	// gate, when set, blocks each Publish until it receives a value.
	gate chan struct{}
}

// Publish implements Sink.
func (r *recorder) Publish(snap pump.Snapshot) {
	if r.gate != nil {
		<-r.gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.got = append(r.got, snap)
}

// seqs returns the sequence numbers received so far.
func (r *recorder) seqs() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]uint64, 0, len(r.got))
	for _, s := range r.got {
		out = append(out, s.Seq)
	}

	return out
}

// TestFanout delivers to all sinks and skips nil ones.
func TestFanout(t *testing.T) {
	t.Parallel()

	var (
		rec    recorder
		called int
	)

	fan := Fanout{&rec, nil, Func(func(pump.Snapshot) { called++ })}
	fan.Publish(pump.Snapshot{Seq: 1})
	fan.Publish(pump.Snapshot{Seq: 2})

	require.Equal(t, []uint64{1, 2}, rec.seqs())
	require.Equal(t, 2, called)
}

// TestQueue_PreservesOrder delivers everything when the consumer keeps up.
func TestQueue_PreservesOrder(t *testing.T) {
	t.Parallel()

	rec := new(recorder)
	q := NewQueue(rec, 4)

	for i := 1; i <= 3; i++ {
		q.Publish(pump.Snapshot{Seq: uint64(i)})
	}

	q.Close()
	q.Close()

	require.Equal(t, []uint64{1, 2, 3}, rec.seqs())
}

// TestQueue_DropsOldestWhenFull never blocks the producer and keeps the newest snapshot.
func TestQueue_DropsOldestWhenFull(t *testing.T) {
	t.Parallel()

	rec := &recorder{gate: make(chan struct{})}
	q := NewQueue(rec, 2)

	for i := 1; i <= 10; i++ {
		q.Publish(pump.Snapshot{Seq: uint64(i)})
	}

	close(rec.gate)
	q.Close()

	seqs := rec.seqs()
	require.NotEmpty(t, seqs)
	require.LessOrEqual(t, len(seqs), 3)
	require.Equal(t, uint64(10), seqs[len(seqs)-1])

	for i := 1; i < len(seqs); i++ {
		require.Less(t, seqs[i-1], seqs[i])
	}
}

// TestConsole_RendersAndSkipsRepeats prints only changed lines.
func TestConsole_RendersAndSkipsRepeats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	c := NewConsole(&buf)

	snap := pump.Snapshot{
		Status:     "NORMAL",
		Flow:       pump.ValidReading(3.2),
		Power:      pump.ValidReading(120),
		Setpoint:   180,
		Battery:    87,
		Connection: pump.Connection{Status: pump.Connected, PortID: "COM3"},
	}

	c.Publish(snap)
	snap.Seq++
	c.Publish(snap)

	snap.Alarm = pump.AlarmBloodLeakage
	snap.Silenced = true
	snap.Warning = "WARNING: Blood leakage detected! (Alarm silenced)"
	c.Publish(snap)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "connected to COM3")
	require.Contains(t, lines[0], "Flow: 3.2 mL/min")
	require.Contains(t, lines[0], "Power: 120 (set 180)")
	require.Contains(t, lines[0], "Battery: 87%")
	require.Contains(t, lines[1], "ALARM blood_leakage (silenced)")
}

// TestRender_InvalidReadings shows dashes for invalid values.
func TestRender_InvalidReadings(t *testing.T) {
	t.Parallel()

	line := Render(pump.Snapshot{Status: "NORMAL"})
	require.Contains(t, line, "Flow: ---- mL/min")
	require.Contains(t, line, "Power: ----")
	require.Contains(t, line, "disconnected")
}
