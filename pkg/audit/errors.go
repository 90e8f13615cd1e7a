package audit

import "errors"

var (
	// ErrRecordValidation indicates a record is missing a required field.
	ErrRecordValidation = errors.New("audit record validation failed")
	// ErrStorageNotAvailable indicates the storage backend is unavailable.
	ErrStorageNotAvailable = errors.New("audit storage is unavailable")
)
