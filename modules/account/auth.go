package account

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/labgrid/binder"
	"github.com/dmitrymomot/labgrid/handler"
	"github.com/dmitrymomot/labgrid/pkg/apperr"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

// Accounts is the part of the entitlement service used for authentication.
type Accounts interface {
	Signup(ctx context.Context, p entitlement.SignupParams) (*entitlement.Account, error)
	Authenticate(ctx context.Context, email, password string) (*entitlement.Account, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// AuthHandler serves POST /signup and POST /login.
type AuthHandler struct {
	accounts   Accounts
	tokens     TokenIssuer
	middleware []func(http.Handler) http.Handler
}

// NewAuthHandler creates the handler. Middleware (typically rate limiting)
// wraps both routes.
func NewAuthHandler(accounts Accounts, tokens TokenIssuer, middleware ...func(http.Handler) http.Handler) *AuthHandler {
	if accounts == nil || tokens == nil {
		panic("account: accounts and token issuer are required")
	}
	return &AuthHandler{accounts: accounts, tokens: tokens, middleware: middleware}
}

func (h *AuthHandler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(h.middleware...)

	r.Post("/signup", handler.Wrap(h.signup,
		handler.WithBinders[entitlement.SignupParams](binder.JSON()),
	))
	r.Post("/login", handler.Wrap(h.login,
		handler.WithBinders[LoginRequest](binder.JSON()),
	))
	return r
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse carries a new session token.
type SessionResponse struct {
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expiresAt"`
	Account   *entitlement.Account `json:"account"`
}

func (h *AuthHandler) signup(ctx handler.Context, req entitlement.SignupParams) handler.Response {
	acc, err := h.accounts.Signup(ctx, req)
	if err != nil {
		return handler.JSONError(err)
	}
	return h.session(acc, http.StatusCreated)
}

func (h *AuthHandler) login(ctx handler.Context, req LoginRequest) handler.Response {
	if req.Email == "" || req.Password == "" {
		return handler.JSONError(apperr.Invalidf("email and password are required"))
	}
	acc, err := h.accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return handler.JSONError(err)
	}
	return h.session(acc, http.StatusOK)
}

func (h *AuthHandler) session(acc *entitlement.Account, status int) handler.Response {
	token, expires, err := h.tokens.Issue(acc.ID)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(SessionResponse{Token: token, ExpiresAt: expires, Account: acc},
		handler.WithJSONStatus(status))
}
