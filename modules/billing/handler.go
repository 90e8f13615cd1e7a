// Package billing mounts the checkout and billing-log routes of the API.
// Purchases apply to the main account of the acting user's family.
package billing

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/labgrid/binder"
	"github.com/dmitrymomot/labgrid/handler"
	"github.com/dmitrymomot/labgrid/pkg/plan"
	billingsvc "github.com/dmitrymomot/labgrid/svc/billing"
	"github.com/dmitrymomot/labgrid/svc/delegation"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

// Checkout starts provider purchases.
type Checkout interface {
	CreateStripeCheckout(ctx context.Context, userID string, t plan.Type, months int) (*billingsvc.CheckoutLink, error)
	CreatePayPalSubscription(ctx context.Context, userID string, t plan.Type, months int) (*billingsvc.CheckoutLink, error)
	CreatePayPalOrder(ctx context.Context, userID string, t plan.Type, months int) (*billingsvc.CheckoutLink, error)
	CapturePayPalOrder(ctx context.Context, userID, orderID string) (*entitlement.Account, error)
}

// Transactions reads the billing log.
type Transactions interface {
	ListTransactions(ctx context.Context, id string) ([]*entitlement.Transaction, error)
}

// Handler serves /api/billing.
type Handler struct {
	checkout     Checkout
	transactions Transactions
}

func NewHandler(checkout Checkout, transactions Transactions) *Handler {
	if checkout == nil || transactions == nil {
		panic("billing: checkout and transactions are required")
	}
	return &Handler{checkout: checkout, transactions: transactions}
}

func (h *Handler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Get("/transactions", handler.Wrap(h.listTransactions))
	r.Post("/stripe/checkout", handler.Wrap(h.stripeCheckout,
		handler.WithBinders[PurchaseRequest](binder.JSON()),
	))
	r.Post("/paypal/subscriptions", handler.Wrap(h.paypalSubscription,
		handler.WithBinders[PurchaseRequest](binder.JSON()),
	))
	r.Post("/paypal/orders", handler.Wrap(h.paypalOrder,
		handler.WithBinders[PurchaseRequest](binder.JSON()),
	))
	r.Post("/paypal/orders/{id}/capture", handler.Wrap(h.captureOrder,
		handler.WithBinders[CaptureRequest](binder.Path(chi.URLParam)),
	))
	return r
}

// PurchaseRequest selects a plan and a duration. Months defaults to the
// catalog's default duration.
type PurchaseRequest struct {
	PlanType string `json:"planType"`
	Months   int    `json:"months"`
}

// CaptureRequest names the approved PayPal order.
type CaptureRequest struct {
	OrderID string `path:"id"`
}

type startFunc func(ctx context.Context, userID string, t plan.Type, months int) (*billingsvc.CheckoutLink, error)

func (h *Handler) start(ctx handler.Context, req PurchaseRequest, fn startFunc) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	t, err := plan.Parse(req.PlanType)
	if err != nil {
		return handler.JSONError(err)
	}
	link, err := fn(ctx, actor.MainID(), t, req.Months)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(link, handler.WithJSONStatus(http.StatusCreated))
}

func (h *Handler) stripeCheckout(ctx handler.Context, req PurchaseRequest) handler.Response {
	return h.start(ctx, req, h.checkout.CreateStripeCheckout)
}

func (h *Handler) paypalSubscription(ctx handler.Context, req PurchaseRequest) handler.Response {
	return h.start(ctx, req, h.checkout.CreatePayPalSubscription)
}

func (h *Handler) paypalOrder(ctx handler.Context, req PurchaseRequest) handler.Response {
	return h.start(ctx, req, h.checkout.CreatePayPalOrder)
}

func (h *Handler) captureOrder(ctx handler.Context, req CaptureRequest) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	acc, err := h.checkout.CapturePayPalOrder(ctx, actor.MainID(), req.OrderID)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(acc)
}

func (h *Handler) listTransactions(ctx handler.Context, _ struct{}) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	txs, err := h.transactions.ListTransactions(ctx, actor.MainID())
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(txs, handler.WithJSONMeta(map[string]any{"count": len(txs)}))
}
