package binder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// DefaultMaxBodyBytes caps JSON request bodies.
const DefaultMaxBodyBytes int64 = 1 << 20

// JSON creates a JSON body binder. Unknown fields are rejected.
// Requests without a body are skipped with ErrBinderNotApplicable.
//
//	r.Post("/grids", handler.Wrap(createGrid,
//		handler.WithBinders[CreateGridRequest](binder.JSON()),
//	))
func JSON() func(r *http.Request, v any) error {
	return JSONWithLimit(DefaultMaxBodyBytes)
}

// JSONWithLimit is JSON with a custom body size limit.
func JSONWithLimit(maxBytes int64) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		contentType := r.Header.Get("Content-Type")
		if r.Body == nil || r.Body == http.NoBody || (r.ContentLength == 0 && contentType == "") {
			return ErrBinderNotApplicable
		}
		if contentType == "" {
			return fmt.Errorf("%w: expected application/json", ErrMissingContentType)
		}
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedMediaType, err)
		}
		if mediaType != "application/json" {
			return fmt.Errorf("%w: got %s, expected application/json", ErrUnsupportedMediaType, mediaType)
		}

		decoder := json.NewDecoder(io.LimitReader(r.Body, maxBytes))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: empty body", ErrInvalidJSON)
			}
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}

		var extra json.RawMessage
		if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: unexpected data after JSON object", ErrInvalidJSON)
		}
		return nil
	}
}
