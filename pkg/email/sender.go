package email

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
)

// EmailSender sends one message.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

// Validate checks the recipient address, subject and body.
func (p SendEmailParams) Validate() error {
	if !validAddress(p.SendTo) {
		return fmt.Errorf("%w: invalid recipient %q", ErrInvalidParams, p.SendTo)
	}
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	}
	if strings.TrimSpace(p.BodyHTML) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}

func validAddress(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// FromConfig returns the Postmark client when it is configured and a DevSender otherwise.
func FromConfig(cfg Config) (EmailSender, error) {
	if cfg.PostmarkEnabled() {
		return NewPostmarkClient(cfg)
	}
	dev := NewDevSender(cfg.DevDir)
	if cfg.SenderEmail != "" {
		dev.from = cfg.SenderEmail
	}
	return dev, nil
}
