package session

import "errors"

// Sentinel kinds for session errors.
var (
	ErrInvalidMode = errors.New("invalid session mode")
	ErrNoSession   = errors.New("no session")
)
