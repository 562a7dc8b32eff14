package scoring

import "github.com/okian/matchmaker/internal/domain/model"

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithAvailabilityFactors overrides tier multipliers. Non-positive values are ignored.
func WithAvailabilityFactors(factors map[model.Availability]float64) Option {
	return func(s *Scorer) {
		for a, f := range factors {
			if f > 0 {
				s.availability[a] = f
			}
		}
	}
}

// WithExperienceFactors replaces the experience multipliers and the factor
// used for tiers missing from the map.
func WithExperienceFactors(factors map[string]float64, defaultFactor float64) Option {
	return func(s *Scorer) {
		s.experience = make(map[string]float64, len(factors))
		for tier, f := range factors {
			if f > 0 {
				s.experience[tier] = f
			}
		}
		if defaultFactor > 0 {
			s.defaultExperience = defaultFactor
		}
	}
}

// WithPreferenceBoost scales the learned affinity contribution.
func WithPreferenceBoost(boost float64) Option {
	return func(s *Scorer) {
		if boost >= 0 {
			s.preferenceBoost = boost
		}
	}
}

// WithManualBase sets the constant added to the mean manual preference level.
func WithManualBase(base float64) Option {
	return func(s *Scorer) {
		if base >= 0 {
			s.manualBase = base
		}
	}
}
