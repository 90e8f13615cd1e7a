package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/labgrid/handler"
	"github.com/dmitrymomot/labgrid/pkg/logger"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// LivenessHandler always answers 200.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, r, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadinessHandler runs every check with a shared timeout. It answers 503 and
// names the failing checks when any of them fails. Error details are logged,
// not returned.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, checks map[string]Check) http.HandlerFunc {
	if log == nil {
		log = logger.Noop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		body := map[string]string{"status": "ready"}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed",
					logger.Component(name),
					logger.Error(err),
				)
				body[name] = "down"
				body["status"] = "not_ready"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "up"
		}
		writeHealth(w, r, status, body)
	}
}

func writeHealth(w http.ResponseWriter, r *http.Request, status int, body map[string]string) {
	w.Header().Set("Cache-Control", "no-store")
	_ = handler.JSON(body, handler.WithJSONStatus(status)).Render(w, r)
}
