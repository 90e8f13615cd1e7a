package delegation

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/labgrid/pkg/audit"
	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

// SecondaryAccounts is the part of the entitlement service that manages secondary users.
type SecondaryAccounts interface {
	CreateSecondary(ctx context.Context, mainID string, p entitlement.SignupParams) (*entitlement.Account, error)
	ListSecondaries(ctx context.Context, mainID string) ([]*entitlement.Account, error)
	DeleteSecondary(ctx context.Context, mainID, id string) error
}

// Users manages the secondary users of a family.
// Only the main account, acting as itself, may call it.
type Users struct {
	accounts SecondaryAccounts
	auditor  *Auditor
	log      *slog.Logger
}

func NewUsers(accounts SecondaryAccounts, auditor *Auditor, log *slog.Logger) *Users {
	if accounts == nil || auditor == nil {
		panic("delegation: accounts and auditor are required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Users{accounts: accounts, auditor: auditor, log: log.With(logger.Component("users"))}
}

func requireMain(actor *Actor) error {
	if actor == nil {
		return ErrNoActor
	}
	if !actor.IsMain() {
		return ErrNotMainUser
	}
	return nil
}

// Create adds a secondary user to the actor's family.
// The fifth secondary user is rejected with entitlement.ErrSecondaryLimit and nothing is written.
func (u *Users) Create(ctx context.Context, actor *Actor, p entitlement.SignupParams) (*entitlement.Account, error) {
	if err := requireMain(actor); err != nil {
		return nil, err
	}
	acc, err := u.accounts.CreateSecondary(ctx, actor.MainID(), p)
	if err != nil {
		return nil, err
	}
	u.log.InfoContext(ctx, "secondary user created", logger.UserID(actor.MainID()), slog.String("secondary_id", acc.ID))
	_ = u.auditor.Record(ctx, actor, audit.ActionCreateUser, audit.EntityUser, acc.ID, map[string]any{
		"name":  acc.Name,
		"email": acc.Email,
	})
	return acc, nil
}

// List returns the secondary users of the actor's family.
func (u *Users) List(ctx context.Context, actor *Actor) ([]*entitlement.Account, error) {
	if err := requireMain(actor); err != nil {
		return nil, err
	}
	return u.accounts.ListSecondaries(ctx, actor.MainID())
}

// Delete removes a secondary user. Its grids and tubes stay in place.
func (u *Users) Delete(ctx context.Context, actor *Actor, id string) error {
	if err := requireMain(actor); err != nil {
		return err
	}
	if err := u.accounts.DeleteSecondary(ctx, actor.MainID(), id); err != nil {
		return err
	}
	u.log.InfoContext(ctx, "secondary user deleted", logger.UserID(actor.MainID()), slog.String("secondary_id", id))
	_ = u.auditor.Record(ctx, actor, audit.ActionDeleteUser, audit.EntityUser, id, nil)
	return nil
}
