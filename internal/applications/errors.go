package applications

import "errors"

var (
	// ErrNotFound is returned when no stored application carries the requested id.
	ErrNotFound = errors.New("application not found")
	// ErrInvalidPayload is returned when a submission is not a JSON object or a known field has the wrong type.
	ErrInvalidPayload = errors.New("invalid application payload")
	// ErrCorruptStore is returned when the backing store cannot be parsed into applications.
	ErrCorruptStore = errors.New("application store is corrupt")
)
