package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/labgrid/pkg/email"
	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/pkg/plan"
	"github.com/dmitrymomot/labgrid/svc/billing"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
	"github.com/dmitrymomot/labgrid/svc/notify"
	"github.com/dmitrymomot/labgrid/svc/trialsweep"
)

var (
	_ billing.Notifier    = (*notify.Mailer)(nil)
	_ trialsweep.Notifier = (*notify.Mailer)(nil)
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendEmail(ctx context.Context, p email.SendEmailParams) error {
	return m.Called(ctx, p).Error(0)
}

func newMailer(t *testing.T, sender email.EmailSender) *notify.Mailer {
	t.Helper()
	return notify.New(sender, notify.Config{BillingURL: "https://labgrid.test/billing"},
		notify.WithTrialDays(30),
		notify.WithLogger(logger.Noop()),
	)
}

func TestTrialExpired(t *testing.T) {
	t.Parallel()

	ended := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	acc := &entitlement.Account{ID: "u1", Email: "owner@lab.test", Name: "Ada", PlanType: plan.Free, PlanEndDate: &ended}

	sender := &mockSender{}
	sender.On("SendEmail", mock.Anything, mock.MatchedBy(func(p email.SendEmailParams) bool {
		return p.SendTo == "owner@lab.test" &&
			p.Tag == "trial-expired" &&
			p.Subject == "Your LabGrid trial has ended" &&
			assert.Contains(t, p.BodyHTML, "Hi Ada") &&
			assert.Contains(t, p.BodyHTML, "June 1, 2026") &&
			assert.Contains(t, p.BodyHTML, "30-day") &&
			assert.Contains(t, p.BodyHTML, "up to 2 grids and 162 tubes") &&
			assert.Contains(t, p.BodyHTML, "https://labgrid.test/billing")
	})).Return(nil).Once()

	require.NoError(t, newMailer(t, sender).TrialExpired(context.Background(), acc))
	sender.AssertExpectations(t)
}

func TestPaymentFailed(t *testing.T) {
	t.Parallel()

	acc := &entitlement.Account{ID: "u1", Email: "owner@lab.test", Name: "<Ada>", PlanType: plan.Standard}

	t.Run("escapes user input", func(t *testing.T) {
		t.Parallel()
		sender := &mockSender{}
		sender.On("SendEmail", mock.Anything, mock.MatchedBy(func(p email.SendEmailParams) bool {
			return p.Tag == "payment-failed" &&
				assert.Contains(t, p.BodyHTML, "&lt;Ada&gt;") &&
				assert.Contains(t, p.BodyHTML, "standard plan")
		})).Return(nil).Once()

		require.NoError(t, newMailer(t, sender).PaymentFailed(context.Background(), acc))
		sender.AssertExpectations(t)
	})

	t.Run("sender failure is returned", func(t *testing.T) {
		t.Parallel()
		sender := &mockSender{}
		sender.On("SendEmail", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

		assert.EqualError(t, newMailer(t, sender).PaymentFailed(context.Background(), acc), "smtp down")
	})
}

func TestMessageLinks(t *testing.T) {
	t.Parallel()

	acc := &entitlement.Account{ID: "u1", Email: "owner@lab.test", Name: "Ada", PlanType: plan.Premium}

	sender := &mockSender{}
	sender.On("SendEmail", mock.Anything, mock.MatchedBy(func(p email.SendEmailParams) bool {
		return assert.NotContains(t, p.BodyHTML, "javascript:") &&
			assert.Contains(t, p.BodyHTML, "about:invalid#TemplFailedSanitizationURL") &&
			assert.Contains(t, p.BodyHTML, "LabGrid</p></div>")
	})).Return(nil).Once()

	m := notify.New(sender, notify.Config{BillingURL: "javascript:alert(1)"}, notify.WithLogger(logger.Noop()))
	require.NoError(t, m.PaymentFailed(context.Background(), acc))
	sender.AssertExpectations(t)
}
