package binder

import (
	"fmt"
	"net/http"
)

// Path creates a path parameter binder using the router's extractor.
// Fields are matched by the `path` tag.
//
//	type GridRequest struct {
//		ID string `path:"id"`
//	}
//
//	r.Get("/grids/{id}", handler.Wrap(getGrid,
//		handler.WithBinders[GridRequest](binder.Path(chi.URLParam)),
//	))
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if extractor == nil {
			return fmt.Errorf("%w: extractor function is nil", ErrInvalidPath)
		}
		return bindFields(v, "path", func(name string) []string {
			if value := extractor(r, name); value != "" {
				return []string{value}
			}
			return nil
		}, ErrInvalidPath)
	}
}
