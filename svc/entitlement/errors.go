package entitlement

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/labgrid/pkg/apperr"
)

var (
	ErrAccountNotFound    = fmt.Errorf("account %w", apperr.ErrNotFound)
	ErrEmailTaken         = apperr.New(apperr.ErrConflict, "email is already registered")
	ErrSecondaryLimit     = apperr.New(apperr.ErrLimitReached, "secondary user limit reached")
	ErrInvalidCredentials = apperr.New(apperr.ErrUnauthorized, "invalid email or password")

	// ErrStaleEvent: a newer event has already been applied to the account.
	ErrStaleEvent = errors.New("plan event is older than the last applied one")
	// ErrStateMismatch: the account is not in a state the event may fire from.
	ErrStateMismatch = errors.New("account state does not permit the plan event")
	// ErrSlotNotReleased: a failed secondary insert could not give back its
	// reserved slot, so the main account's counter is one too high.
	ErrSlotNotReleased = errors.New("secondary slot not released")

	ErrFailedToCreateAccount = errors.New("failed to create account")
	ErrFailedToLoadAccount   = errors.New("failed to load account")
	ErrFailedToApplyPlan     = errors.New("failed to apply plan transition")
	ErrFailedToRecordPayment = errors.New("failed to record payment")
	ErrFailedToUpdateAccount = errors.New("failed to update account")
)
