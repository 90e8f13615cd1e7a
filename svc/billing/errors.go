package billing

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/labgrid/pkg/apperr"
)

var (
	ErrProviderUnavailable  = apperr.New(apperr.ErrProviderUnavailable, "billing provider is unavailable, try again later")
	ErrProviderNotFound     = errors.New("provider resource not found")
	ErrProviderDisabled     = apperr.New(apperr.ErrProviderUnavailable, "billing provider is not configured")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrVerificationFailed   = errors.New("webhook signature verification call failed")
	ErrMalformedEvent       = errors.New("malformed webhook event")
	ErrPaymentNotCompleted  = apperr.New(apperr.ErrConflict, "payment is not completed")
	ErrOrderAlreadyCaptured = apperr.New(apperr.ErrConflict, "order has already been captured")
	ErrOrderNotOwned        = fmt.Errorf("order %w", apperr.ErrNotFound)
	ErrPaidPlanRequired     = apperr.New(apperr.ErrInvalid, "only standard and premium plans can be purchased")
)
