// Package inventory mounts the grid and tube routes of the API.
package inventory

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/labgrid/binder"
	"github.com/dmitrymomot/labgrid/handler"
	"github.com/dmitrymomot/labgrid/svc/delegation"
	inventorysvc "github.com/dmitrymomot/labgrid/svc/inventory"
)

// Handler serves /api/grids and /api/tubes. It requires the delegation middleware.
type Handler struct {
	svc inventorysvc.Service
}

func NewHandler(svc inventorysvc.Service) *Handler {
	if svc == nil {
		panic("inventory: service is required")
	}
	return &Handler{svc: svc}
}

func (h *Handler) Handle() http.Handler {
	r := chi.NewRouter()
	path := binder.Path(chi.URLParam)

	r.Route("/grids", func(r chi.Router) {
		r.Get("/", handler.Wrap(h.listGrids))
		r.Post("/", handler.Wrap(h.createGrid,
			handler.WithBinders[inventorysvc.GridParams](binder.JSON()),
		))
		r.Get("/{id}", handler.Wrap(h.getGrid,
			handler.WithBinders[IDRequest](path),
		))
		r.Delete("/{id}", handler.Wrap(h.deleteGrid,
			handler.WithBinders[IDRequest](path),
		))
		r.Post("/{id}/empty", handler.Wrap(h.emptyGrid,
			handler.WithBinders[IDRequest](path),
		))
		r.Get("/{id}/tubes", handler.Wrap(h.listTubes,
			handler.WithBinders[IDRequest](path),
		))
		r.Post("/{id}/tubes", handler.Wrap(h.createTube,
			handler.WithBinders[CreateTubeRequest](binder.JSON(), path),
		))
	})
	r.Delete("/tubes/{id}", handler.Wrap(h.deleteTube,
		handler.WithBinders[IDRequest](path),
	))
	return r
}

// IDRequest carries the {id} route parameter.
type IDRequest struct {
	ID string `path:"id"`
}

// CreateTubeRequest is the body of POST /grids/{id}/tubes.
type CreateTubeRequest struct {
	GridID   string            `json:"-" path:"id"`
	Position string            `json:"position"`
	Fields   map[string]string `json:"fields"`
}

func (h *Handler) listGrids(ctx handler.Context, _ struct{}) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	grids, err := h.svc.ListGrids(ctx, actor)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(grids, handler.WithJSONMeta(map[string]any{"count": len(grids)}))
}

func (h *Handler) createGrid(ctx handler.Context, req inventorysvc.GridParams) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	grid, err := h.svc.CreateGrid(ctx, actor, req)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(grid, handler.WithJSONStatus(http.StatusCreated))
}

func (h *Handler) getGrid(ctx handler.Context, req IDRequest) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	grid, err := h.svc.GetGrid(ctx, actor, req.ID)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(grid)
}

func (h *Handler) deleteGrid(ctx handler.Context, req IDRequest) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	if err := h.svc.DeleteGrid(ctx, actor, req.ID); err != nil {
		return handler.JSONError(err)
	}
	return handler.Empty()
}

func (h *Handler) emptyGrid(ctx handler.Context, req IDRequest) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	removed, err := h.svc.EmptyGrid(ctx, actor, req.ID)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(map[string]int{"removed": removed})
}

func (h *Handler) listTubes(ctx handler.Context, req IDRequest) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	tubes, err := h.svc.ListTubes(ctx, actor, req.ID)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(tubes, handler.WithJSONMeta(map[string]any{"count": len(tubes)}))
}

func (h *Handler) createTube(ctx handler.Context, req CreateTubeRequest) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	tube, err := h.svc.CreateTube(ctx, actor, req.GridID, inventorysvc.TubeParams{
		Position: req.Position,
		Fields:   req.Fields,
	})
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(tube, handler.WithJSONStatus(http.StatusCreated))
}

func (h *Handler) deleteTube(ctx handler.Context, req IDRequest) handler.Response {
	actor, err := delegation.RequireActor(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	if err := h.svc.DeleteTube(ctx, actor, req.ID); err != nil {
		return handler.JSONError(err)
	}
	return handler.Empty()
}
