package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/labgrid/modules"
)

// RouterOptions selects the account services to mount. Nil services are skipped.
type RouterOptions struct {
	// Auth serves signup and login without a session.
	Auth modules.Mountable
	// Plan serves the entitlement status of the session's family.
	Plan modules.Mountable
	// Session authenticates the request and resolves the acting user
	// before Plan is reached.
	Session []func(http.Handler) http.Handler
}

// Router mounts the account module.
//
//	r.Mount("/api", account.Router(account.RouterOptions{
//		Auth:    account.NewAuthHandler(accounts, tokens),
//		Plan:    account.NewPlanHandler(accounts, billingSvc),
//		Session: []func(http.Handler) http.Handler{jwt.Middleware(tokens), actorMiddleware},
//	}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	if opts.Auth != nil {
		r.Mount("/auth", opts.Auth.Handle())
	}
	if opts.Plan != nil {
		r.Group(func(r chi.Router) {
			r.Use(opts.Session...)
			r.Mount("/me/plan", opts.Plan.Handle())
		})
	}
	return r
}
