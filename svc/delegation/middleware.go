package delegation

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/labgrid/handler"
	"github.com/dmitrymomot/labgrid/pkg/logger"
)

// HeaderActiveUser names the acting secondary user of a request.
const HeaderActiveUser = "X-Active-User-Id"

// Middleware resolves the Actor of every request and stores it in the context.
// sessionUserID extracts the authenticated user id set by the auth middleware.
func Middleware(r *Resolver, sessionUserID func(*http.Request) (string, bool), log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			uid, _ := sessionUserID(req)
			active := strings.TrimSpace(req.Header.Get(HeaderActiveUser))

			actor, err := r.Resolve(req.Context(), uid, active)
			if err != nil {
				log.WarnContext(req.Context(), "acting user not resolved",
					logger.UserID(uid),
					logger.ActiveUserID(active),
					logger.Error(err),
				)
				_ = handler.JSONError(err).Render(w, req)
				return
			}
			next.ServeHTTP(w, req.WithContext(WithActor(req.Context(), actor)))
		})
	}
}
