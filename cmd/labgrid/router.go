package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/labgrid/modules/account"
	auditmod "github.com/dmitrymomot/labgrid/modules/audit"
	billingmod "github.com/dmitrymomot/labgrid/modules/billing"
	inventorymod "github.com/dmitrymomot/labgrid/modules/inventory"
	usersmod "github.com/dmitrymomot/labgrid/modules/users"
	"github.com/dmitrymomot/labgrid/pkg/clientip"
	"github.com/dmitrymomot/labgrid/pkg/httpserver"
	"github.com/dmitrymomot/labgrid/pkg/jwt"
	"github.com/dmitrymomot/labgrid/pkg/metrics"
	"github.com/dmitrymomot/labgrid/pkg/ratelimit"
	"github.com/dmitrymomot/labgrid/pkg/requestid"
	"github.com/dmitrymomot/labgrid/svc/billing"
	"github.com/dmitrymomot/labgrid/svc/delegation"
	"github.com/dmitrymomot/labgrid/svc/trialsweep"
)

const readinessTimeout = 3 * time.Second

// newRouter mounts every HTTP surface of the service.
func (a *app) newRouter() (http.Handler, error) {
	tokens, err := jwt.New(a.cfg.JWT)
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.New(a.cfg.RateLimit)
	byIP := ratelimit.Middleware(limiter, ratelimit.ByIP)

	session := []func(http.Handler) http.Handler{
		jwt.Middleware(tokens, jwt.BearerTokenExtractor),
		delegation.Middleware(delegation.NewResolver(a.accounts), jwt.SessionUserID, a.log),
	}

	r := chi.NewRouter()
	r.Use(
		requestid.Middleware,
		clientip.Middleware,
		httpserver.RequestLogger(a.log),
		middleware.Recoverer,
	)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(a.log, readinessTimeout, a.checks))
	r.Handle("/metrics", metrics.Handler())

	webhooks := billing.NewWebhookHandler(a.billing, a.log, a.cfg.Billing.MaxWebhookBytes)
	r.Route("/webhooks", func(r chi.Router) {
		r.Use(byIP)
		r.Post("/stripe", webhooks.Stripe)
		r.Post("/paypal", webhooks.PayPal)
	})
	r.With(byIP).Get("/cron/check-trial-expiration",
		trialsweep.CronHandler(a.sweeper, a.cfg.Sweep.CronSecret, a.log))

	api := account.Router(account.RouterOptions{
		Auth:    account.NewAuthHandler(a.accounts, tokens, byIP),
		Plan:    account.NewPlanHandler(a.accounts, a.billing),
		Session: session,
	})
	api.Group(func(r chi.Router) {
		r.Use(session...)
		r.Mount("/billing", billingmod.NewHandler(a.billing, a.accounts).Handle())
		r.Mount("/users", usersmod.NewHandler(delegation.NewUsers(a.accounts, a.auditor, a.log)).Handle())
		r.Mount("/audit", auditmod.NewHandler(a.audit).Handle())
		r.Mount("/", inventorymod.NewHandler(a.inventory).Handle())
	})
	r.Mount("/api", api)

	return r, nil
}
