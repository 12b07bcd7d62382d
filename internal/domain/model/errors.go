package model

import "errors"

// Sentinel error kinds shared by the domain packages.
var (
	// ErrDataUnavailable marks a failed or missing read from the realtime store.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrResolutionFailed marks a device position that could not be obtained.
	ErrResolutionFailed = errors.New("position resolution failed")
	// ErrStaleResult marks an async result superseded by a newer request.
	ErrStaleResult = errors.New("stale result")
	// ErrMalformedRecord marks a feed record with missing or unparsable fields.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrNotFound marks a lookup with no match.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied marks a location request without user consent.
	ErrPermissionDenied = errors.New("location permission denied")
)
