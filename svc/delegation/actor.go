package delegation

import (
	"context"
	"errors"

	"github.com/dmitrymomot/labgrid/pkg/audit"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

// Actor is the resolved identity of a mutating request.
type Actor struct {
	// Session is the authenticated account.
	Session *entitlement.Account
	// Main is the billing account of the family.
	Main *entitlement.Account
	// Active is the account the action is attributed to.
	Active *entitlement.Account
}

// MainID returns the family's main account id.
func (a *Actor) MainID() string { return a.Main.ID }

// IsMain reports whether the action is performed by the main account itself.
func (a *Actor) IsMain() bool { return a.Active.IsMainUser }

// AuditUser describes the active user for audit records.
func (a *Actor) AuditUser() audit.ActiveUser {
	return audit.ActiveUser{
		ID:         a.Active.ID,
		Name:       a.Active.Name,
		Email:      a.Active.Email,
		IsMainUser: a.Active.IsMainUser,
	}
}

// Accounts is the part of the entitlement service the resolver reads.
type Accounts interface {
	Get(ctx context.Context, id string) (*entitlement.Account, error)
}

// Resolver turns a session user id and an optional active user id into an Actor.
type Resolver struct {
	accounts Accounts
}

func NewResolver(accounts Accounts) *Resolver {
	if accounts == nil {
		panic("delegation: accounts are required")
	}
	return &Resolver{accounts: accounts}
}

// Resolve returns the Actor for a request.
// An empty activeUserID acts as the session user.
func (r *Resolver) Resolve(ctx context.Context, sessionUserID, activeUserID string) (*Actor, error) {
	if sessionUserID == "" {
		return nil, ErrNoSession
	}
	session, err := r.accounts.Get(ctx, sessionUserID)
	if err != nil {
		if errors.Is(err, entitlement.ErrAccountNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}

	main := session
	if !session.IsMainUser {
		if main, err = r.accounts.Get(ctx, session.MainUserID); err != nil {
			if errors.Is(err, entitlement.ErrAccountNotFound) {
				// The secondary outlived its main account; its session is no longer valid.
				return nil, ErrNoSession
			}
			return nil, err
		}
	}

	actor := &Actor{Session: session, Main: main, Active: session}
	if activeUserID == "" || activeUserID == session.ID {
		return actor, nil
	}
	if activeUserID == main.ID {
		actor.Active = main
		return actor, nil
	}

	active, err := r.accounts.Get(ctx, activeUserID)
	if err != nil {
		if errors.Is(err, entitlement.ErrAccountNotFound) {
			return nil, ErrActiveUserNotFound
		}
		return nil, err
	}
	if active.IsMainUser || active.MainUserID != main.ID {
		return nil, ErrActiveUserNotFound
	}
	actor.Active = active
	return actor, nil
}

type actorKey struct{}

// WithActor stores a in ctx.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the Actor stored by the middleware.
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(*Actor)
	return a, ok && a != nil
}

// RequireActor returns the Actor stored by the middleware or ErrNoActor.
func RequireActor(ctx context.Context) (*Actor, error) {
	a, ok := ActorFromContext(ctx)
	if !ok {
		return nil, ErrNoActor
	}
	return a, nil
}
