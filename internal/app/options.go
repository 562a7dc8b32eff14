package service

import (
	"time"

	"github.com/okian/matchmaker/internal/config"
	"github.com/okian/matchmaker/internal/domain/model"
	"github.com/okian/matchmaker/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithEmployees seeds the roster directly instead of reading the dataset
// file. Nothing is written back in that mode.
func WithEmployees(employees []model.Employee) Option {
	return func(s *Service) {
		if employees == nil {
			employees = []model.Employee{}
		}
		s.employees = employees
	}
}

// WithClock replaces time.Now for task timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.clock = now
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
