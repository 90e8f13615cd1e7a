package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/labgrid/pkg/apperr"
	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/pkg/plan"
	"github.com/dmitrymomot/labgrid/pkg/trial"
)

const minPasswordLength = 8

// Service manages accounts, their plan state and billing log.
type Service interface {
	// Accounts
	Signup(ctx context.Context, p SignupParams) (*Account, error)
	Authenticate(ctx context.Context, email, password string) (*Account, error)
	Get(ctx context.Context, id string) (*Account, error)
	Status(ctx context.Context, id string) (*Status, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByStripeCustomer(ctx context.Context, customerID string) (*Account, error)
	FindByProvider(ctx context.Context, ref ProviderRef) (*Account, error)
	ListByState(ctx context.Context, s State) ([]*Account, error)

	// Billing
	ApplyPlanTransition(ctx context.Context, id string, t Transition) (*Account, error)
	BindStripeCustomer(ctx context.Context, id, customerID string) error
	MarkPaymentFailed(ctx context.Context, id string) error
	ClearPaymentFailed(ctx context.Context, id string) error
	ListTransactions(ctx context.Context, id string) ([]*Transaction, error)

	// Secondary users
	CreateSecondary(ctx context.Context, mainID string, p SignupParams) (*Account, error)
	ListSecondaries(ctx context.Context, mainID string) ([]*Account, error)
	DeleteSecondary(ctx context.Context, mainID, id string) error
}

// SignupParams holds the user-supplied fields of a new account.
type SignupParams struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Validate normalizes the email and checks the fields.
func (p *SignupParams) Validate() error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Name = strings.TrimSpace(p.Name)
	if _, err := mail.ParseAddress(p.Email); err != nil || p.Email == "" {
		return apperr.Invalidf("invalid email address %q", p.Email)
	}
	if p.Name == "" {
		return apperr.Invalidf("name is required")
	}
	if len(p.Password) < minPasswordLength {
		return apperr.Invalidf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// Status is an account with the fields the UI derives from it.
type Status struct {
	Account            *Account    `json:"account"`
	State              State       `json:"state"`
	Limits             plan.Limits `json:"limits"`
	OnTrial            bool        `json:"onTrial"`
	TrialEndsAt        *time.Time  `json:"trialEndsAt,omitempty"`
	TrialRemainingDays int         `json:"trialRemainingDays"`
	TrialExpired       bool        `json:"trialExpired"`
}

type service struct {
	store Store
	clock trial.Clock
	log   *slog.Logger
	newID func() string
}

var tracer = otel.Tracer("github.com/dmitrymomot/labgrid/svc/entitlement")

// NewService creates the entitlement service. Panics if store is nil.
func NewService(store Store, opts ...ServiceOption) Service {
	if store == nil {
		panic("entitlement: Store is required")
	}
	s := &service{
		store: store,
		clock: trial.New(trial.DefaultDays * 24 * time.Hour),
		log:   slog.Default(),
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("entitlement"))
	return s
}

func (s *service) Signup(ctx context.Context, p SignupParams) (*Account, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	hash, err := HashPassword(p.Password)
	if err != nil {
		return nil, errors.Join(ErrFailedToCreateAccount, err)
	}

	now := s.clock.Now()
	trialEnds := s.clock.EndsAt(now)
	acc := &Account{
		ID:            s.newID(),
		Email:         p.Email,
		Name:          p.Name,
		PasswordHash:  hash,
		PlanStartDate: now,
		TrialEndsAt:   &trialEnds,
		IsMainUser:    true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	acc.setPlan(plan.Premium)

	if err := s.store.Create(ctx, acc); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, errors.Join(ErrFailedToCreateAccount, err)
	}

	s.log.InfoContext(ctx, "account created", logger.UserID(acc.ID), slog.Time("trial_ends_at", trialEnds))
	return acc, nil
}

func (s *service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	acc, err := s.store.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Join(ErrFailedToLoadAccount, err)
	}
	if !acc.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

func (s *service) Get(ctx context.Context, id string) (*Account, error) {
	return s.load(func() (*Account, error) { return s.store.Get(ctx, id) })
}

func (s *service) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return s.load(func() (*Account, error) {
		return s.store.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	})
}

func (s *service) FindByStripeCustomer(ctx context.Context, customerID string) (*Account, error) {
	return s.load(func() (*Account, error) { return s.store.FindByStripeCustomer(ctx, customerID) })
}

func (s *service) FindByProvider(ctx context.Context, ref ProviderRef) (*Account, error) {
	return s.load(func() (*Account, error) { return s.store.FindByProvider(ctx, ref) })
}

// load keeps not-found distinguishable from storage failures.
func (s *service) load(fn func() (*Account, error)) (*Account, error) {
	acc, err := fn()
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Join(ErrFailedToLoadAccount, err)
	}
	return acc, nil
}

func (s *service) Status(ctx context.Context, id string) (*Status, error) {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	st := &Status{Account: acc, State: acc.State(), Limits: acc.Limits()}
	if st.State == StateTrial {
		st.OnTrial = true
		ends := s.clock.EndsAt(acc.PlanStartDate)
		if acc.TrialEndsAt != nil {
			ends = *acc.TrialEndsAt
		}
		st.TrialEndsAt = &ends
		st.TrialRemainingDays = s.clock.RemainingDays(acc.PlanStartDate)
		st.TrialExpired = s.clock.IsExpired(acc.PlanStartDate)
	}
	return st, nil
}

func (s *service) ListByState(ctx context.Context, st State) ([]*Account, error) {
	accs, err := s.store.ListByState(ctx, st)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadAccount, err)
	}
	return accs, nil
}

func (s *service) ApplyPlanTransition(ctx context.Context, id string, t Transition) (*Account, error) {
	ctx, span := tracer.Start(ctx, "ApplyPlanTransition", trace.WithAttributes(
		attribute.String("user.id", id),
		attribute.String("plan.event", string(t.Event)),
		attribute.String("plan.type", string(t.Plan)),
	))
	defer span.End()

	if err := t.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid transition")
		return nil, err
	}

	acc, err := s.store.ApplyUpdate(ctx, id, t.update())
	switch {
	case err == nil:
	case errors.Is(err, ErrAccountNotFound):
		span.SetStatus(codes.Error, "account not found")
		return nil, ErrAccountNotFound
	case errors.Is(err, ErrStaleEvent), errors.Is(err, ErrStateMismatch):
		span.SetStatus(codes.Ok, "transition skipped")
		s.log.InfoContext(ctx, "plan transition skipped",
			logger.UserID(id),
			slog.String("event", string(t.Event)),
			logger.Error(err),
		)
		return nil, err
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "store update failed")
		return nil, errors.Join(ErrFailedToApplyPlan, err)
	}

	if t.Record != nil {
		if err := s.record(ctx, acc, t); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "payment record failed")
			return nil, err
		}
	}

	s.log.InfoContext(ctx, "plan transition applied",
		logger.UserID(id),
		slog.String("event", string(t.Event)),
		logger.Plan(string(acc.PlanType)),
		slog.String("provider", string(acc.Provider.Kind)),
	)
	span.SetStatus(codes.Ok, "transition applied")
	return acc, nil
}

func (s *service) record(ctx context.Context, acc *Account, t Transition) error {
	tx := &Transaction{
		ID:          s.newID(),
		UserID:      acc.ID,
		PlanType:    t.Plan,
		Status:      TransactionStatusCompleted,
		Date:        t.EventAt.UTC(),
		Provider:    t.Provider,
		PeriodStart: acc.PlanStartDate,
		PeriodEnd:   t.PeriodEnd,
		Amount:      t.Record.Amount,
		Currency:    strings.ToUpper(t.Record.Currency),
		EventID:     t.Record.EventID,
		Metadata:    t.Record.Metadata,
	}
	inserted, err := s.store.AppendTransaction(ctx, tx)
	if err != nil {
		return errors.Join(ErrFailedToRecordPayment, err)
	}
	if !inserted {
		s.log.DebugContext(ctx, "transaction already recorded", logger.UserID(acc.ID), slog.String("key", tx.Key()))
	}
	return nil
}

func (s *service) BindStripeCustomer(ctx context.Context, id, customerID string) error {
	if customerID == "" {
		return nil
	}
	if err := s.store.SetStripeCustomer(ctx, id, customerID); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return errors.Join(ErrFailedToUpdateAccount, err)
	}
	return nil
}

func (s *service) MarkPaymentFailed(ctx context.Context, id string) error {
	return s.setPaymentFailed(ctx, id, true)
}

func (s *service) ClearPaymentFailed(ctx context.Context, id string) error {
	return s.setPaymentFailed(ctx, id, false)
}

func (s *service) setPaymentFailed(ctx context.Context, id string, failed bool) error {
	if err := s.store.SetPaymentFailed(ctx, id, failed); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return errors.Join(ErrFailedToUpdateAccount, err)
	}
	return nil
}

func (s *service) ListTransactions(ctx context.Context, id string) ([]*Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, id)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadAccount, err)
	}
	return txs, nil
}

func (s *service) CreateSecondary(ctx context.Context, mainID string, p SignupParams) (*Account, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	main, err := s.Get(ctx, mainID)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(p.Password)
	if err != nil {
		return nil, errors.Join(ErrFailedToCreateAccount, err)
	}

	now := s.clock.Now()
	acc := &Account{
		ID:            s.newID(),
		Email:         p.Email,
		Name:          p.Name,
		PasswordHash:  hash,
		PlanStartDate: now,
		IsMainUser:    false,
		MainUserID:    main.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	acc.setPlan(plan.Free)

	if err := s.store.CreateSecondary(ctx, acc, MaxSecondaryUsers); err != nil {
		if errors.Is(err, ErrSlotNotReleased) {
			s.log.ErrorContext(ctx, "secondary slot leaked after failed insert", logger.UserID(mainID), logger.Error(err))
		}
		switch {
		case errors.Is(err, ErrSecondaryLimit):
			return nil, ErrSecondaryLimit
		case errors.Is(err, ErrEmailTaken):
			return nil, ErrEmailTaken
		}
		return nil, errors.Join(ErrFailedToCreateAccount, err)
	}
	return acc, nil
}

func (s *service) ListSecondaries(ctx context.Context, mainID string) ([]*Account, error) {
	accs, err := s.store.ListSecondaries(ctx, mainID)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadAccount, err)
	}
	return accs, nil
}

func (s *service) DeleteSecondary(ctx context.Context, mainID, id string) error {
	if err := s.store.DeleteSecondary(ctx, mainID, id); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return errors.Join(ErrFailedToUpdateAccount, err)
	}
	return nil
}
