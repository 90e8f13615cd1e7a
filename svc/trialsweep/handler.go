package trialsweep

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/labgrid/handler"
	"github.com/dmitrymomot/labgrid/pkg/logger"
)

// CronHandler runs a sweep for a scheduler presenting the shared bearer secret.
// An empty secret disables the endpoint.
func CronHandler(s *Sweeper, secret string, log *slog.Logger) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r.Header.Get("Authorization"), secret) {
			log.WarnContext(r.Context(), "unauthorized cron call", slog.String("remote", r.RemoteAddr))
			_ = handler.JSONError(handler.ErrUnauthorized).Render(w, r)
			return
		}

		rep, err := s.Sweep(r.Context(), TriggerCron)
		if err != nil {
			log.ErrorContext(r.Context(), "cron sweep failed", logger.Error(err))
			_ = handler.JSONError(err).Render(w, r)
			return
		}
		_ = handler.JSON(rep).Render(w, r)
	}
}

func authorized(header, secret string) bool {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
