package domain

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCoordinate is returned for points off the globe.
	ErrInvalidCoordinate = errors.New("coordinate out of range")
	// ErrInvalidInput wraps validation failures on user input.
	ErrInvalidInput = errors.New("invalid input")
)
