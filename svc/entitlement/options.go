package entitlement

import (
	"log/slog"

	"github.com/dmitrymomot/labgrid/pkg/trial"
)

// ServiceOption configures the entitlement service.
type ServiceOption func(*service)

// WithClock sets the trial clock used by signup and status.
func WithClock(c trial.Clock) ServiceOption {
	return func(s *service) {
		s.clock = c
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithIDGenerator overrides the account and transaction id generator.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *service) {
		if fn != nil {
			s.newID = fn
		}
	}
}
