package position

import "errors"

// ErrInvalidPosition marks a coordinate outside WGS84 bounds.
var ErrInvalidPosition = errors.New("invalid position")
