package account_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/labgrid/modules/account"
	"github.com/dmitrymomot/labgrid/pkg/jwt"
	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/pkg/trial"
	"github.com/dmitrymomot/labgrid/svc/delegation"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
	"github.com/dmitrymomot/labgrid/svc/entitlement/store/memstore"
)

var now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func newRouter(t *testing.T) http.Handler {
	t.Helper()

	accounts := entitlement.NewService(memstore.New(),
		entitlement.WithClock(trial.New(30*24*time.Hour, trial.WithNow(func() time.Time { return now }))),
		entitlement.WithLogger(logger.Noop()),
	)
	tokens, err := jwt.New(jwt.Config{Secret: "0123456789abcdef0123456789abcdef", TTL: time.Hour, Issuer: "labgrid"},
		jwt.WithNow(func() time.Time { return now }))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount("/api", account.Router(account.RouterOptions{
		Auth: account.NewAuthHandler(accounts, tokens),
		Plan: account.NewPlanHandler(accounts, nil),
		Session: []func(http.Handler) http.Handler{
			jwt.Middleware(tokens),
			delegation.Middleware(delegation.NewResolver(accounts), jwt.SessionUserID, logger.Noop()),
		},
	}))
	return r
}

func do(h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if v != nil {
		require.NoError(t, json.Unmarshal(env.Data, v))
	}
	return env
}

func TestSignupLoginAndPlan(t *testing.T) {
	t.Parallel()
	h := newRouter(t)

	signup := map[string]string{"email": "Lab@Example.com", "name": "Dr. Lab", "password": "correct-horse"}
	rec := do(h, http.MethodPost, "/api/auth/signup", "", signup)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var session account.SessionResponse
	decode(t, rec, &session)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "lab@example.com", session.Account.Email)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	rec = do(h, http.MethodPost, "/api/auth/signup", "", signup)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(h, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "lab@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "lab@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &session)

	rec = do(h, http.MethodGet, "/api/me/plan", session.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var st struct {
		State              string `json:"state"`
		OnTrial            bool   `json:"onTrial"`
		TrialRemainingDays int    `json:"trialRemainingDays"`
	}
	decode(t, rec, &st)
	assert.Equal(t, "trial", st.State)
	assert.True(t, st.OnTrial)
	assert.Equal(t, 30, st.TrialRemainingDays)
}

func TestSignup_Validation(t *testing.T) {
	t.Parallel()
	h := newRouter(t)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"bad email", map[string]string{"email": "nope", "name": "x", "password": "correct-horse"}, http.StatusUnprocessableEntity, "validation_error"},
		{"short password", map[string]string{"email": "a@b.co", "name": "x", "password": "short"}, http.StatusUnprocessableEntity, "validation_error"},
		{"unknown field", map[string]any{"email": "a@b.co", "name": "x", "password": "correct-horse", "admin": true}, http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := do(h, http.MethodPost, "/api/auth/signup", "", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			env := decode(t, rec, nil)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestPlan_RequiresSession(t *testing.T) {
	t.Parallel()
	rec := do(newRouter(t), http.MethodGet, "/api/me/plan", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
