// Package notify emails account holders about plan events.
// It satisfies the notifier interfaces of the billing and trial sweep services.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/labgrid/pkg/email"
	"github.com/dmitrymomot/labgrid/pkg/email/templates"
	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/pkg/plan"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

const (
	tagTrialExpired  = "trial-expired"
	tagPaymentFailed = "payment-failed"
)

// Config holds the links rendered into messages.
type Config struct {
	BillingURL string `env:"NOTIFY_BILLING_URL" envDefault:"http://localhost:8080/billing"`
}

// Mailer renders and sends plan notifications.
type Mailer struct {
	sender    email.EmailSender
	cfg       Config
	trialDays int
	log       *slog.Logger
}

// Option configures the Mailer.
type Option func(*Mailer)

// WithTrialDays sets the trial length mentioned in the trial-expired message.
func WithTrialDays(days int) Option {
	return func(m *Mailer) {
		m.trialDays = days
	}
}

// WithLogger sets the mailer logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mailer) {
		if l != nil {
			m.log = l
		}
	}
}

// New creates a Mailer. Panics if sender is nil.
func New(sender email.EmailSender, cfg Config, opts ...Option) *Mailer {
	if sender == nil {
		panic("notify: email sender is required")
	}
	m := &Mailer{
		sender:    sender,
		cfg:       cfg,
		trialDays: 30,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Component("notify"))
	return m
}

type messageData struct {
	Name       string
	Plan       plan.Type
	Limits     plan.Limits
	TrialDays  int
	Date       string
	BillingURL string
}

func (m *Mailer) send(ctx context.Context, tag string, acc *entitlement.Account, subject string, body templ.Component) error {
	html, err := templates.Render(ctx, layout(body))
	if err != nil {
		return fmt.Errorf("notify: render %s: %w", tag, err)
	}

	err = m.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   acc.Email,
		Subject:  subject,
		BodyHTML: html,
		Tag:      tag,
	})
	if err != nil {
		m.log.ErrorContext(ctx, "notification not sent",
			logger.UserID(acc.ID),
			slog.String("tag", tag),
			logger.Error(err),
		)
		return err
	}
	m.log.InfoContext(ctx, "notification sent", logger.UserID(acc.ID), slog.String("tag", tag))
	return nil
}

// TrialExpired tells a main account its trial ended and it is now on the free plan.
func (m *Mailer) TrialExpired(ctx context.Context, acc *entitlement.Account) error {
	ended := time.Now()
	if acc.PlanEndDate != nil {
		ended = *acc.PlanEndDate
	}
	return m.send(ctx, tagTrialExpired, acc, "Your LabGrid trial has ended", trialExpiredBody(messageData{
		Name:       acc.Name,
		Plan:       acc.PlanType,
		Limits:     plan.LimitsFor(plan.Free),
		TrialDays:  m.trialDays,
		Date:       ended.UTC().Format("January 2, 2006"),
		BillingURL: m.cfg.BillingURL,
	}))
}

// PaymentFailed tells a subscriber their last renewal charge failed.
func (m *Mailer) PaymentFailed(ctx context.Context, acc *entitlement.Account) error {
	return m.send(ctx, tagPaymentFailed, acc, "We could not process your LabGrid payment", paymentFailedBody(messageData{
		Name:       acc.Name,
		Plan:       acc.PlanType,
		Limits:     acc.Limits(),
		BillingURL: m.cfg.BillingURL,
	}))
}
