package billing

import (
	"log/slog"
	"time"
)

// ServiceOption configures the billing service.
type ServiceOption func(*service)

// WithStripe enables Stripe checkout and webhooks.
func WithStripe(c StripeClient, webhookSecret string) ServiceOption {
	return func(s *service) {
		s.stripe = c
		s.stripeSecret = webhookSecret
	}
}

// WithPayPal enables PayPal subscriptions, orders and webhooks.
func WithPayPal(c PayPalClient) ServiceOption {
	return func(s *service) {
		s.paypal = c
	}
}

// WithNotifier sends user notifications for billing events.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithArchiver stores raw verified webhook payloads.
func WithArchiver(a Archiver) ServiceOption {
	return func(s *service) {
		if a != nil {
			s.archiver = a
		}
	}
}

// WithURLs sets the checkout return and cancel URLs.
func WithURLs(success, cancel string) ServiceOption {
	return func(s *service) {
		s.successURL = success
		s.cancelURL = cancel
	}
}

// WithClaimTTL sets how long a processed event id is remembered.
func WithClaimTTL(ttl time.Duration) ServiceOption {
	return func(s *service) {
		if ttl > 0 {
			s.claimTTL = ttl
		}
	}
}

// WithInFlightTTL sets how long an event id stays claimed while it is being
// processed. A process that dies mid-event frees the id after this long.
func WithInFlightTTL(ttl time.Duration) ServiceOption {
	return func(s *service) {
		if ttl > 0 {
			s.inFlightTTL = ttl
		}
	}
}

// WithProviderTimeout bounds each outbound provider call.
func WithProviderTimeout(d time.Duration) ServiceOption {
	return func(s *service) {
		if d > 0 {
			s.timeout = d
		}
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

// WithNow overrides the clock used for verification downgrades.
func WithNow(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}
