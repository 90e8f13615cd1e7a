// Package trial computes the promotional trial window.
//
// The window length is a single configuration value (TRIAL_DAYS) shared by the
// signup flow, the UI status endpoint and the trial sweeper.
package trial

import "time"

const day = 24 * time.Hour

// DefaultDays is the promotional trial length granted at signup.
const DefaultDays = 30

// Config holds trial settings.
type Config struct {
	Days int `env:"TRIAL_DAYS" envDefault:"30"`
}

// Window returns the configured trial length, falling back to DefaultDays.
func (c Config) Window() time.Duration {
	if c.Days <= 0 {
		return DefaultDays * day
	}
	return time.Duration(c.Days) * day
}

// Clock answers trial questions relative to the current time.
type Clock struct {
	window time.Duration
	now    func() time.Time
}

// Option configures a Clock.
type Option func(*Clock)

// WithNow overrides the time source.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		if now != nil {
			c.now = now
		}
	}
}

// New returns a Clock for the given window.
func New(window time.Duration, opts ...Option) Clock {
	if window <= 0 {
		window = DefaultDays * day
	}
	c := Clock{window: window, now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// NewFromConfig returns a Clock for cfg.
func NewFromConfig(cfg Config, opts ...Option) Clock {
	return New(cfg.Window(), opts...)
}

// Window returns the trial length.
func (c Clock) Window() time.Duration { return c.window }

// Now returns the clock's current time in UTC.
func (c Clock) Now() time.Time { return c.now().UTC() }

// EndsAt returns when a trial started at start ends.
func (c Clock) EndsAt(start time.Time) time.Time {
	return start.Add(c.window).UTC()
}

// IsExpired reports whether more than the window has elapsed since start.
// Exactly one window after start is still inside the trial.
func (c Clock) IsExpired(start time.Time) bool {
	return c.now().Sub(start) > c.window
}

// RemainingDays returns whole days left, rounded up, never negative.
func (c Clock) RemainingDays(start time.Time) int {
	left := c.EndsAt(start).Sub(c.now())
	if left <= 0 {
		return 0
	}
	return int((left + day - 1) / day)
}
