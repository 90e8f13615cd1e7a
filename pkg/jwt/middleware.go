package jwt

import (
	"net/http"
	"strings"

	"github.com/dmitrymomot/labgrid/handler"
)

// TokenExtractorFunc extracts a token from a request.
type TokenExtractorFunc func(r *http.Request) (string, bool)

// Middleware rejects requests without a valid token and stores the token's
// subject in the request context. Extractors are tried in order; the default is
// the Authorization bearer header.
func Middleware(svc *Service, extractors ...TokenExtractorFunc) func(http.Handler) http.Handler {
	if svc == nil {
		panic("jwt: service is required")
	}
	if len(extractors) == 0 {
		extractors = []TokenExtractorFunc{BearerTokenExtractor}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			for _, extract := range extractors {
				if t, ok := extract(r); ok {
					token = t
					break
				}
			}
			if token == "" {
				_ = handler.JSONError(ErrMissingToken).Render(w, r)
				return
			}

			claims, err := svc.Parse(token)
			if err != nil {
				_ = handler.JSONError(ErrInvalidToken).Render(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
		})
	}
}

// SessionUserID reads the user id set by Middleware.
func SessionUserID(r *http.Request) (string, bool) {
	return UserIDFromContext(r.Context())
}

// BearerTokenExtractor reads "Authorization: Bearer <token>".
func BearerTokenExtractor(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// CookieTokenExtractor reads the token from a cookie.
func CookieTokenExtractor(name string) TokenExtractorFunc {
	return func(r *http.Request) (string, bool) {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			return "", false
		}
		return c.Value, true
	}
}
