package performance

import "github.com/okian/matchmaker/internal/domain/model"

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithPriorityWeights overrides the per-priority weights used by Score.
// Non-positive weights are ignored.
func WithPriorityWeights(weights map[model.Priority]float64) Option {
	return func(t *Tracker) {
		for p, w := range weights {
			if w > 0 {
				t.weights[p] = w
			}
		}
	}
}
