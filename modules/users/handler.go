// Package users mounts the secondary-user routes of the API.
package users

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/labgrid/binder"
	"github.com/dmitrymomot/labgrid/handler"
	"github.com/dmitrymomot/labgrid/svc/delegation"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

// Handler serves /api/users.
type Handler struct {
	users *delegation.Users
}

func NewHandler(users *delegation.Users) *Handler {
	if users == nil {
		panic("users: delegation users are required")
	}
	return &Handler{users: users}
}

func (h *Handler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Get("/", handler.Wrap(h.list))
	r.Post("/", handler.Wrap(h.create,
		handler.WithBinders[entitlement.SignupParams](binder.JSON()),
	))
	r.Delete("/{id}", handler.Wrap(h.delete,
		handler.WithBinders[DeleteRequest](binder.Path(chi.URLParam)),
	))
	return r
}

// DeleteRequest names the secondary user to remove.
type DeleteRequest struct {
	ID string `path:"id"`
}

func (h *Handler) list(ctx handler.Context, _ struct{}) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	accs, err := h.users.List(ctx, actor)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(accs, handler.WithJSONMeta(map[string]any{"count": len(accs)}))
}

func (h *Handler) create(ctx handler.Context, req entitlement.SignupParams) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	acc, err := h.users.Create(ctx, actor, req)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(acc, handler.WithJSONStatus(http.StatusCreated))
}

func (h *Handler) delete(ctx handler.Context, req DeleteRequest) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	if err := h.users.Delete(ctx, actor, req.ID); err != nil {
		return handler.JSONError(err)
	}
	return handler.Empty()
}
