package ratelimit

import (
	"net/http"

	"github.com/dmitrymomot/labgrid/handler"
)

// ErrTooManyRequests is rendered when a bucket is empty.
var ErrTooManyRequests = handler.HTTPError{Code: http.StatusTooManyRequests, Key: "rate_limited"}
