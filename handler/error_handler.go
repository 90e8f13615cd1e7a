package handler

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/pkg/requestid"
)

// NewErrorHandler returns an error handler that logs the error with request
// context and renders the JSON error envelope.
// Client errors log at warn level, server errors at error level.
func NewErrorHandler(log *slog.Logger) ErrorHandler {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx Context, err error) {
		LogError(log, ctx.Request(), err)
		_ = JSONError(err).Render(ctx.ResponseWriter(), ctx.Request())
	}
}

// LogError logs a request error at a level matching its status.
func LogError(log *slog.Logger, r *http.Request, err error) {
	status, code := Status(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	log.LogAttrs(r.Context(), level, "request error",
		logger.RequestID(requestid.FromContext(r.Context())),
		logger.Error(err),
		slog.Int("status_code", status),
		slog.String("code", code),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		logger.Component("error_handler"),
	)
}
