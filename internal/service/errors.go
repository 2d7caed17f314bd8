package service

import "errors"

var (
	// ErrEntityNotFound indicates the entity is absent from the mirrored
	// registries.
	ErrEntityNotFound = errors.New("service: entity not found")

	// ErrAreaNotFound indicates an unknown area id.
	ErrAreaNotFound = errors.New("service: area not found")

	// ErrFloorNotFound indicates an unknown floor id.
	ErrFloorNotFound = errors.New("service: floor not found")

	// ErrLabelNotFound indicates an unknown label id.
	ErrLabelNotFound = errors.New("service: label not found")
)
