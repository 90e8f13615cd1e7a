package binder

import "net/http"

// Query creates a query string binder. Fields are matched by the `query` tag.
// Slices accept repeated keys or comma-separated values.
//
//	type AuditQuery struct {
//		Action string `query:"action"`
//		Limit  int    `query:"limit"`
//	}
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		values := r.URL.Query()
		return bindFields(v, "query", func(name string) []string {
			return values[name]
		}, ErrInvalidQuery)
	}
}
