package domain

import "errors"

var (
	// ErrUnknownRegion is returned when a region label is not registered.
	ErrUnknownRegion = errors.New("unknown region")

	// ErrRetrieval covers network, auth and archive-service failures.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrNotFound means the archive holds no object for the key, typically a
	// period outside archive coverage.
	ErrNotFound = errors.New("archive object not found")

	// ErrEmptySelection means a region selected no grid points on an axis.
	ErrEmptySelection = errors.New("empty selection")

	// ErrWrite covers disk-full and permission failures while persisting.
	ErrWrite = errors.New("write failed")

	// ErrDuplicateCoordinate means an axis holds the same label twice.
	ErrDuplicateCoordinate = errors.New("duplicate coordinate")

	// ErrInvalidField means a field is missing axes or has inconsistent shapes.
	ErrInvalidField = errors.New("invalid field")
)
