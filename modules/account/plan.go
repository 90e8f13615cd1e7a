package account

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/labgrid/handler"
	"github.com/dmitrymomot/labgrid/svc/delegation"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

// StatusReader returns the entitlement status of an account.
type StatusReader interface {
	Status(ctx context.Context, id string) (*entitlement.Status, error)
}

// Verifier re-checks an account against its billing provider.
type Verifier interface {
	VerifyAccount(ctx context.Context, userID string) (*entitlement.Account, error)
}

// PlanHandler serves the plan of the acting user's family. Secondary users see
// the plan of their main account.
type PlanHandler struct {
	accounts StatusReader
	verifier Verifier
}

func NewPlanHandler(accounts StatusReader, verifier Verifier) *PlanHandler {
	if accounts == nil {
		panic("account: status reader is required")
	}
	return &PlanHandler{accounts: accounts, verifier: verifier}
}

func (h *PlanHandler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Get("/", handler.Wrap(h.status))
	if h.verifier != nil {
		r.Post("/verify", handler.Wrap(h.verify))
	}
	return r
}

func (h *PlanHandler) status(ctx handler.Context, _ struct{}) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	st, err := h.accounts.Status(ctx, actor.MainID())
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(st)
}

func (h *PlanHandler) verify(ctx handler.Context, _ struct{}) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	if _, err := h.verifier.VerifyAccount(ctx, actor.MainID()); err != nil {
		return handler.JSONError(err)
	}
	st, err := h.accounts.Status(ctx, actor.MainID())
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(st)
}
