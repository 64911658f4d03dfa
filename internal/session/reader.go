package session

import (
	"errors"
	"strings"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
	"github.com/oshokin/pump-monitor/internal/logger"
	"github.com/oshokin/pump-monitor/internal/port"
	"github.com/oshokin/pump-monitor/internal/telemetry"
)

// readLoop reads lines from l until monitoring stops or the port fails.
// A timeout only re-checks the monitoring flag; any other error ends the
// session with a communication fault.
func (s *Session) readLoop(l *link) {
	defer close(l.done)

	lines := port.NewLineReader(l.port)

	for l.monitoring.Load() {
		line, err := lines.ReadLine()

		switch {
		case errors.Is(err, port.ErrTimeout):
			continue
		case err != nil:
			s.readFailed(l, err)
			return
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		s.dispatchLine(l, line)
	}
}

// dispatchLine parses and applies one line while l is the current link.
func (s *Session) dispatchLine(l *link, line string) {
	event := telemetry.Parse(line)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.link != l {
		return
	}

	if malformed, ok := event.(pump.Malformed); ok {
		logger.DebugKV(s.ctx, "Unrecognized line", "port", l.id, "line", malformed.Raw)
	}

	s.metrics.ObserveLine(event)
	s.publish(s.state.Apply(event))
}

// readFailed handles a read error. Errors after a requested disconnect are
// expected and ignored.
func (s *Session) readFailed(l *link, err error) {
	if !l.monitoring.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropLocked(l, err)
}
