package scenario

import "errors"

var (
	errMissing = errors.New("value is required")

	// ErrNoGeometry is returned by simulated bridge for nodes which were
	// neither laid out nor given explicit rectangle.
	ErrNoGeometry = errors.New("node has no geometry")

	// ErrFailed is returned by Run when scenario expectations were not met.
	ErrFailed = errors.New("scenario expectations failed")
)
