package email

// Config holds email service configuration.
// Without a Postmark server token, FromConfig falls back to DevSender.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"noreply@labgrid.local"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@labgrid.local"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

// PostmarkEnabled reports whether Postmark credentials are configured.
func (c Config) PostmarkEnabled() bool { return c.PostmarkServerToken != "" }
