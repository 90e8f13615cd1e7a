// Package modules groups the HTTP modules of the API. Each module exposes a
// type with Handle() http.Handler that the server mounts under /api.
package modules

import "net/http"

// Mountable is implemented by every module handler.
type Mountable interface {
	Handle() http.Handler
}
