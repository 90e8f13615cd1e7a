// Package jwt issues and verifies HS256 session tokens and carries the
// authenticated user id through the request context.
//
//	svc, err := jwt.New(cfg)
//	token, expires, err := svc.Issue(acc.ID)
//
//	r.Group(func(r chi.Router) {
//		r.Use(jwt.Middleware(svc))
//		r.Get("/api/me/plan", func(w http.ResponseWriter, r *http.Request) {
//			userID, _ := jwt.UserIDFromContext(r.Context())
//		})
//	})
//
// Tokens are signed with github.com/golang-jwt/jwt/v5. Only HS256 is accepted
// when parsing, and the issuer claim must match the configured issuer.
package jwt
