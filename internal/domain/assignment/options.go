package assignment

import (
	"time"

	"github.com/okian/matchmaker/pkg/logger"
)

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithClock replaces time.Now; tests use it to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRecorder receives every completion for performance aggregation.
func WithRecorder(r Recorder) Option {
	return func(m *Machine) {
		m.recorder = r
	}
}

// WithEmitter publishes completion events (leaderboard feed).
func WithEmitter(e Emitter) Option {
	return func(m *Machine) {
		m.emitter = e
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}
