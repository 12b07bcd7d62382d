package feedsim

import "errors"

var (
	// ErrInvalidConfig marks simulation parameters that cannot run.
	ErrInvalidConfig = errors.New("invalid simulation config")
	// ErrNoPublisher is returned when Run is called without a destination.
	ErrNoPublisher = errors.New("nil publisher")
)
