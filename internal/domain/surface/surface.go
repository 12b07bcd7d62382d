// Package surface declares the map rendering operations the core issues.
//
// Implementations own the visual elements; the core only holds opaque
// handles. There is deliberately no bulk clear.
package surface

import (
	"context"

	"github.com/okian/crowdwatch/internal/domain/model"
)

// Handle identifies one element created on a surface.
type Handle string

// MarkerOptions describe a new marker.
type MarkerOptions struct {
	Position model.Position `json:"position"`
	Title    string         `json:"title"`
	Icon     string         `json:"icon"`
}

// CircleOptions describe a new circle.
type CircleOptions struct {
	Center      model.Position `json:"center"`
	Radius      float64        `json:"radius"`
	StrokeColor model.Color    `json:"stroke_color"`
	StrokeWidth float64        `json:"stroke_width"`
	FillColor   model.Color    `json:"fill_color"`
}

// MarkerUpdate carries the new state for an existing marker.
type MarkerUpdate struct {
	Position model.Position `json:"position"`
	Title    string         `json:"title"`
}

// CircleUpdate carries the new state for an existing circle.
type CircleUpdate struct {
	Center      model.Position `json:"center"`
	Radius      float64        `json:"radius"`
	StrokeColor model.Color    `json:"stroke_color"`
	FillColor   model.Color    `json:"fill_color"`
}

// Surface is the map widget as seen from the core.
type Surface interface {
	AddMarker(ctx context.Context, opts MarkerOptions) (Handle, error)
	AddCircle(ctx context.Context, opts CircleOptions) (Handle, error)
	UpdateMarker(ctx context.Context, h Handle, u MarkerUpdate) error
	UpdateCircle(ctx context.Context, h Handle, u CircleUpdate) error
	Remove(ctx context.Context, h Handle) error
	MoveCamera(ctx context.Context, pos model.Position, zoom float64) error
}
