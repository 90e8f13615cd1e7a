package archive

import "errors"

var (
	ErrInvalidConfig      = errors.New("archive: bucket and region are required")
	ErrFailedToLoadConfig = errors.New("archive: failed to load AWS config")
	ErrAccessDenied       = errors.New("archive: access denied")
	ErrBucketNotFound     = errors.New("archive: bucket not found")
	ErrUnavailable        = errors.New("archive: object store unavailable")
	ErrEmptyEventID       = errors.New("archive: event id is required")
)
