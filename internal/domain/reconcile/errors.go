package reconcile

import "errors"

// Sentinel kinds for reconcile errors.
var (
	ErrRender    = errors.New("render operation failed")
	ErrTransient = errors.New("invalid transient annotation")
)
