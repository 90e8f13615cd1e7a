package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/labgrid/pkg/apperr"
	"github.com/dmitrymomot/labgrid/pkg/jwt"
)

const secret = "0123456789abcdef0123456789abcdef"

var issuedAt = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, now time.Time) *jwt.Service {
	t.Helper()
	svc, err := jwt.New(jwt.Config{Secret: secret, TTL: time.Hour, Issuer: "labgrid"},
		jwt.WithNow(func() time.Time { return now }))
	require.NoError(t, err)
	return svc
}

func TestNew(t *testing.T) {
	t.Parallel()
	_, err := jwt.New(jwt.Config{Secret: "short"})
	assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)
}

func TestIssueAndParse(t *testing.T) {
	t.Parallel()

	svc := newService(t, issuedAt)
	token, expires, err := svc.Issue("user-1")
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(time.Hour), expires)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "labgrid", claims.Issuer)
	assert.NotEmpty(t, claims.ID)

	_, _, err = svc.Issue("")
	assert.ErrorIs(t, err, jwt.ErrMissingSubject)
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	token, _, err := newService(t, issuedAt).Issue("user-1")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		t.Parallel()
		_, err := newService(t, issuedAt.Add(2*time.Hour)).Parse(token)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("tampered", func(t *testing.T) {
		t.Parallel()
		_, err := newService(t, issuedAt).Parse(token[:len(token)-2] + "xx")
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("other key", func(t *testing.T) {
		t.Parallel()
		other, err := jwt.New(jwt.Config{Secret: strings.Repeat("z", 32), TTL: time.Hour, Issuer: "labgrid"},
			jwt.WithNow(func() time.Time { return issuedAt }))
		require.NoError(t, err)
		_, err = other.Parse(token)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		t.Parallel()
		unsigned, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, gojwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "labgrid",
			ExpiresAt: gojwt.NewNumericDate(issuedAt.Add(time.Hour)),
		}).SignedString(gojwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = newService(t, issuedAt).Parse(unsigned)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		t.Parallel()
		foreign, err := jwt.New(jwt.Config{Secret: secret, TTL: time.Hour, Issuer: "someone-else"},
			jwt.WithNow(func() time.Time { return issuedAt }))
		require.NoError(t, err)
		tok, _, err := foreign.Issue("user-1")
		require.NoError(t, err)
		_, err = newService(t, issuedAt).Parse(tok)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	svc := newService(t, issuedAt)
	token, _, err := svc.Issue("user-1")
	require.NoError(t, err)

	var seen string
	h := jwt.Middleware(svc, jwt.BearerTokenExtractor, jwt.CookieTokenExtractor("session"))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = jwt.SessionUserID(r)
			w.WriteHeader(http.StatusNoContent)
		}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		user   string
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusNoContent, "user-1"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "session", Value: token}) }, http.StatusNoContent, "user-1"},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized, ""},
		{"wrong scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+token) }, http.StatusUnauthorized, ""},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		seen = ""
		req := httptest.NewRequest(http.MethodGet, "/api/me/plan", nil)
		tt.setup(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, tt.status, rec.Code, tt.name)
		assert.Equal(t, tt.user, seen, tt.name)
	}
}
