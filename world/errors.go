package world

import (
	"errors"
	"fmt"
)

// Sentinel errors for the kernel's mutation primitives. Callers match with
// errors.Is; the wrapped message carries the specifics.
var (
	// ErrTypeMismatch is returned when a value's runtime type disagrees
	// with the declared schema type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrReadOnlyProperty is returned on a direct set of a computed property.
	ErrReadOnlyProperty = errors.New("read-only property")

	// ErrUnknownProperty is returned for keys outside the declared schema.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrCapacityExceeded is returned when a move would overfill a container.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInvalidTarget is returned when a relation operation names an entity
	// that cannot hold it (e.g. a move target without the container tag).
	ErrInvalidTarget = errors.New("invalid target")

	// ErrNoSuchEntity is returned for operations on unknown instance ids.
	ErrNoSuchEntity = errors.New("no such entity")

	// ErrNoSuchStatus is returned for undefined status names.
	ErrNoSuchStatus = errors.New("no such status")
)

func entityErr(id string) error {
	return fmt.Errorf("%w: %q", ErrNoSuchEntity, id)
}
