// Package audit mounts the read-only audit log route of the API.
package audit

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/labgrid/binder"
	"github.com/dmitrymomot/labgrid/handler"
	"github.com/dmitrymomot/labgrid/pkg/apperr"
	auditlog "github.com/dmitrymomot/labgrid/pkg/audit"
	"github.com/dmitrymomot/labgrid/svc/delegation"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Handler serves GET /api/audit for the acting user's family.
type Handler struct {
	reader *auditlog.Reader
}

func NewHandler(reader *auditlog.Reader) *Handler {
	if reader == nil {
		panic("audit: reader is required")
	}
	return &Handler{reader: reader}
}

func (h *Handler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Get("/", handler.Wrap(h.list,
		handler.WithBinders[ListRequest](binder.Query()),
	))
	return r
}

// ListRequest filters the audit log.
type ListRequest struct {
	Action     string    `query:"action"`
	EntityType string    `query:"entity_type"`
	EntityID   string    `query:"entity_id"`
	ActiveUser string    `query:"active_user"`
	Since      time.Time `query:"since"`
	Limit      int       `query:"limit"`
	Offset     int       `query:"offset"`
}

func (h *Handler) list(ctx handler.Context, req ListRequest) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	if req.Limit < 0 || req.Offset < 0 {
		return handler.JSONError(apperr.Invalidf("limit and offset must not be negative"))
	}
	if req.Limit == 0 {
		req.Limit = defaultLimit
	}
	req.Limit = min(req.Limit, maxLimit)

	c := auditlog.Criteria{
		UserID:     actor.MainID(),
		Action:     auditlog.Action(req.Action),
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		ActiveUser: req.ActiveUser,
		Since:      req.Since,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	records, err := h.reader.Find(ctx, c)
	if err != nil {
		return handler.JSONError(err)
	}
	total, err := h.reader.Count(ctx, c)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(records, handler.WithJSONMeta(map[string]any{
		"total":  total,
		"limit":  req.Limit,
		"offset": req.Offset,
	}))
}
