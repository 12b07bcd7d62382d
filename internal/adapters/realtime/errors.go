package realtime

import "errors"

// Sentinel kinds for realtime store errors.
var (
	ErrUnexpectedShape    = errors.New("unexpected value shape")
	ErrMissingDatabaseURL = errors.New("firebase database url is required")
	ErrInvalidCredentials = errors.New("invalid firebase credentials")
)
