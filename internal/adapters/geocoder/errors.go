package geocoder

import "errors"

// Sentinel kinds for geocoder errors.
var (
	ErrMissingAPIKey = errors.New("maps api key is required")
	ErrUnavailable   = errors.New("geocoding unavailable")
)
