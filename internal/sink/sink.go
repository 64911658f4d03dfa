package sink

import "github.com/oshokin/pump-monitor/internal/domain/pump"

// Sink consumes display snapshots.
type Sink interface {
	Publish(snap pump.Snapshot)
}

// Func adapts a function to Sink.
type Func func(snap pump.Snapshot)

// Publish implements Sink.
func (f Func) Publish(snap pump.Snapshot) {
	f(snap)
}

// Fanout publishes to every sink in order.
type Fanout []Sink

// Publish implements Sink.
func (f Fanout) Publish(snap pump.Snapshot) {
	for _, s := range f {
		if s != nil {
			s.Publish(snap)
		}
	}
}
