// Package site serves the embedded live map viewer.
package site

import (
	"context"
	"net/http"
)

// LeafletVersion pins the map library loaded by the viewer.
const LeafletVersion = "1.9.4"

// Register attaches the viewer to mux at /. Unknown paths fall through to
// the file server and answer 404.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/", http.FileServer(FS()))
}
