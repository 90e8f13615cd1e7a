package billing

import "time"

// Config holds provider credentials and checkout settings.
type Config struct {
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	PayPalClientID     string `env:"PAYPAL_CLIENT_ID"`
	PayPalClientSecret string `env:"PAYPAL_CLIENT_SECRET"`
	PayPalWebhookID    string `env:"PAYPAL_WEBHOOK_ID"`
	PayPalBaseURL      string `env:"PAYPAL_BASE_URL" envDefault:"https://api-m.sandbox.paypal.com"`

	SuccessURL string `env:"BILLING_SUCCESS_URL" envDefault:"http://localhost:3000/billing/success"`
	CancelURL  string `env:"BILLING_CANCEL_URL" envDefault:"http://localhost:3000/billing/cancel"`

	CatalogPath     string        `env:"BILLING_CATALOG_PATH" envDefault:"config/plans.yaml"`
	ProviderTimeout time.Duration `env:"BILLING_PROVIDER_TIMEOUT" envDefault:"15s"`
	MaxWebhookBytes int64         `env:"BILLING_WEBHOOK_MAX_BYTES" envDefault:"1048576"`
}

// StripeEnabled reports whether Stripe credentials are configured.
func (c Config) StripeEnabled() bool {
	return c.StripeSecretKey != "" && c.StripeWebhookSecret != ""
}

// PayPalEnabled reports whether PayPal credentials are configured.
func (c Config) PayPalEnabled() bool {
	return c.PayPalClientID != "" && c.PayPalClientSecret != "" && c.PayPalWebhookID != ""
}
