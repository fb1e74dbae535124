package sim

import "errors"

var (
	// ErrNotFound is returned when a handle does not refer to any entity
	// of the registry it is presented to.
	ErrNotFound = errors.New("entity not found")

	// ErrTypeMismatch is returned when a handle resolves to an entity of a
	// different type than the one requested.
	ErrTypeMismatch = errors.New("entity type mismatch")

	// ErrNameNotUnique is returned when registering a name that is taken.
	ErrNameNotUnique = errors.New("entity name is not unique")

	// ErrNameNotFound is returned when no entity carries the given name.
	ErrNameNotFound = errors.New("no entity with this name")

	// ErrPastEvent is returned when an event is scheduled before the current tick.
	ErrPastEvent = errors.New("event timestamp is in the past")

	// ErrUnknownWorkloadModel is returned for unrecognized workload model names.
	ErrUnknownWorkloadModel = errors.New("unknown workload model")

	// ErrUnknownPolicy is returned for unrecognized placement or admission policy names.
	ErrUnknownPolicy = errors.New("unknown policy")
)
