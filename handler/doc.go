// Package handler provides type-safe HTTP request handling for the JSON API.
//
// Handlers are generic functions that receive a bound request value and return
// a Response:
//
//	type CreateGridRequest struct {
//		Name    string `json:"name"`
//		Rows    int    `json:"rows"`
//		Columns int    `json:"columns"`
//	}
//
//	func createGrid(ctx handler.Context, req CreateGridRequest) handler.Response {
//		grid, err := inventory.CreateGrid(ctx, actor, req)
//		if err != nil {
//			return handler.JSONError(err)
//		}
//		return handler.JSON(grid, handler.WithJSONStatus(http.StatusCreated))
//	}
//
//	r.Post("/grids", handler.Wrap(createGrid, handler.WithBinders[CreateGridRequest](binder.JSON())))
//
// Every JSON body uses the {data, meta, error} envelope. Errors are classified
// by their apperr kind: not found is 404, unauthorized 401, forbidden 403,
// invalid input 422, limit reached 402, conflict 409, provider unavailable 503.
// Client errors carry their message; server errors carry a generic message and
// the detail goes only to the log.
package handler
