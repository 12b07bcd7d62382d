package mapsurface

import "errors"

// ErrUnknownHandle marks an operation on an element that does not exist.
var ErrUnknownHandle = errors.New("unknown handle")
