package domain

import "errors"

var (
	// ErrNoRecord is returned when an operation requires a tracked key that does not exist.
	ErrNoRecord = errors.New("no record for key")

	// ErrURINotIndexed is returned when a URI has no entry in the exact index.
	ErrURINotIndexed = errors.New("uri not indexed")

	// ErrInvalidThreshold is returned for refresh thresholds outside [0,1].
	ErrInvalidThreshold = errors.New("threshold must be within [0,1]")

	// ErrLocationNotFound is returned when a redirect location is not pending for a key.
	ErrLocationNotFound = errors.New("redirect location not found")

	// ErrInvalidRedirectType is returned for status codes that are not HTTP redirects.
	ErrInvalidRedirectType = errors.New("invalid redirect type")

	// ErrSlotOutOfRange is returned for scripting variable indexes outside the pool.
	ErrSlotOutOfRange = errors.New("variable slot out of range")
)
