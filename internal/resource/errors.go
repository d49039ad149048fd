package resource

import "errors"

var (
	// ErrAlreadyExists is returned when creating an id that is already registered.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrNotFound is returned when an id has no record.
	ErrNotFound = errors.New("resource does not exist")

	// ErrVersionConflict is returned when an update does not name version current+1.
	ErrVersionConflict = errors.New("specified version does not follow current version")
)
