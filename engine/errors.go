package engine

import "errors"

var (
	// ErrRootMissing and ErrRootUnsized signal structural violation: engine
	// reached measurement without established window.
	ErrRootMissing = errors.New("root element has not been recorded")
	ErrRootUnsized = errors.New("root element size is unknown")

	ErrNotTracked    = errors.New("node is not tracked")
	ErrRemoved       = errors.New("node record has been collected")
	ErrNoRectQuerier = errors.New("bounding rectangle bridge is not available")
)

// structural reports errors which should never happen once engine is ready.
func structural(err error) bool {
	return errors.Is(err, ErrRootMissing) || errors.Is(err, ErrRootUnsized)
}
