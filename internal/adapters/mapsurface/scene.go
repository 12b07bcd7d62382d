// Package mapsurface is an in-memory map surface. It keeps the live markers
// and circles, logs every operation and forwards each one to a broadcaster.
package mapsurface

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/internal/domain/surface"
)

const defaultLogSize = 1024

// Operation kinds.
const (
	OpAddMarker    = "add_marker"
	OpAddCircle    = "add_circle"
	OpUpdateMarker = "update_marker"
	OpUpdateCircle = "update_circle"
	OpRemove       = "remove"
	OpMoveCamera   = "move_camera"
)

// Marker is a live marker.
type Marker struct {
	Handle   surface.Handle `json:"handle"`
	Position model.Position `json:"position"`
	Title    string         `json:"title"`
	Icon     string         `json:"icon"`
}

// Circle is a live circle.
type Circle struct {
	Handle      surface.Handle `json:"handle"`
	Center      model.Position `json:"center"`
	Radius      float64        `json:"radius"`
	StrokeColor model.Color    `json:"stroke_color"`
	StrokeWidth float64        `json:"stroke_width"`
	FillColor   model.Color    `json:"fill_color"`
}

// Camera is the viewport.
type Camera struct {
	Center model.Position `json:"center"`
	Zoom   float64        `json:"zoom"`
}

// Op is one operation applied to the scene.
type Op struct {
	Seq    uint64         `json:"seq"`
	Kind   string         `json:"kind"`
	Handle surface.Handle `json:"handle,omitempty"`
	Marker *Marker        `json:"marker,omitempty"`
	Circle *Circle        `json:"circle,omitempty"`
	Camera *Camera        `json:"camera,omitempty"`
	At     time.Time      `json:"at"`
}

// Snapshot is the full scene as of operation Seq.
type Snapshot struct {
	Seq     uint64   `json:"seq"`
	Camera  Camera   `json:"camera"`
	Markers []Marker `json:"markers"`
	Circles []Circle `json:"circles"`
}

// Broadcaster receives every applied operation.
type Broadcaster interface {
	Broadcast(kind string, data any)
}

// Scene implements surface.Surface in memory.
type Scene struct {
	mu      sync.RWMutex
	markers map[surface.Handle]Marker
	circles map[surface.Handle]Circle
	camera  Camera
	seq     uint64
	log     []Op
	logSize int

	broadcaster Broadcaster
	now         func() time.Time
}

var _ surface.Surface = (*Scene)(nil)

// NewScene creates an empty scene.
func NewScene(opts ...Option) *Scene {
	s := &Scene{
		markers: make(map[surface.Handle]Marker),
		circles: make(map[surface.Handle]Circle),
		logSize: defaultLogSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddMarker creates a marker.
func (s *Scene) AddMarker(_ context.Context, o surface.MarkerOptions) (surface.Handle, error) {
	h := newHandle("m")
	m := Marker{Handle: h, Position: o.Position, Title: o.Title, Icon: o.Icon}
	s.mu.Lock()
	s.markers[h] = m
	op := s.record(Op{Kind: OpAddMarker, Handle: h, Marker: &m})
	s.mu.Unlock()
	s.emit(op)
	return h, nil
}

// AddCircle creates a circle.
func (s *Scene) AddCircle(_ context.Context, o surface.CircleOptions) (surface.Handle, error) {
	h := newHandle("c")
	c := Circle{
		Handle:      h,
		Center:      o.Center,
		Radius:      o.Radius,
		StrokeColor: o.StrokeColor,
		StrokeWidth: o.StrokeWidth,
		FillColor:   o.FillColor,
	}
	s.mu.Lock()
	s.circles[h] = c
	op := s.record(Op{Kind: OpAddCircle, Handle: h, Circle: &c})
	s.mu.Unlock()
	s.emit(op)
	return h, nil
}

// UpdateMarker moves or retitles a marker.
func (s *Scene) UpdateMarker(_ context.Context, h surface.Handle, u surface.MarkerUpdate) error {
	s.mu.Lock()
	m, ok := s.markers[h]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("update marker %s: %w", h, ErrUnknownHandle)
	}
	m.Position, m.Title = u.Position, u.Title
	s.markers[h] = m
	op := s.record(Op{Kind: OpUpdateMarker, Handle: h, Marker: &m})
	s.mu.Unlock()
	s.emit(op)
	return nil
}

// UpdateCircle restyles a circle. Stroke width is kept.
func (s *Scene) UpdateCircle(_ context.Context, h surface.Handle, u surface.CircleUpdate) error {
	s.mu.Lock()
	c, ok := s.circles[h]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("update circle %s: %w", h, ErrUnknownHandle)
	}
	c.Center, c.Radius, c.StrokeColor, c.FillColor = u.Center, u.Radius, u.StrokeColor, u.FillColor
	s.circles[h] = c
	op := s.record(Op{Kind: OpUpdateCircle, Handle: h, Circle: &c})
	s.mu.Unlock()
	s.emit(op)
	return nil
}

// Remove destroys a marker or circle.
func (s *Scene) Remove(_ context.Context, h surface.Handle) error {
	s.mu.Lock()
	_, isMarker := s.markers[h]
	_, isCircle := s.circles[h]
	if !isMarker && !isCircle {
		s.mu.Unlock()
		return fmt.Errorf("remove %s: %w", h, ErrUnknownHandle)
	}
	delete(s.markers, h)
	delete(s.circles, h)
	op := s.record(Op{Kind: OpRemove, Handle: h})
	s.mu.Unlock()
	s.emit(op)
	return nil
}

// MoveCamera sets the viewport.
func (s *Scene) MoveCamera(_ context.Context, pos model.Position, zoom float64) error {
	cam := Camera{Center: pos, Zoom: zoom}
	s.mu.Lock()
	s.camera = cam
	op := s.record(Op{Kind: OpMoveCamera, Camera: &cam})
	s.mu.Unlock()
	s.emit(op)
	return nil
}

// Markers returns the live markers sorted by handle.
func (s *Scene) Markers() []Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.markersLocked()
}

// Snapshot copies the scene. Operations with a Seq above the returned one
// were applied after the copy.
func (s *Scene) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Seq:     s.seq,
		Camera:  s.camera,
		Markers: s.markersLocked(),
		Circles: s.circlesLocked(),
	}
}

func (s *Scene) markersLocked() []Marker {
	out := make([]Marker, 0, len(s.markers))
	for _, m := range s.markers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// Circles returns the live circles sorted by handle.
func (s *Scene) Circles() []Circle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.circlesLocked()
}

func (s *Scene) circlesLocked() []Circle {
	out := make([]Circle, 0, len(s.circles))
	for _, c := range s.circles {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// Camera returns the current viewport.
func (s *Scene) Camera() Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.camera
}

// Ops returns logged operations with Seq greater than after, oldest first.
func (s *Scene) Ops(after uint64) []Op {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := sort.Search(len(s.log), func(i int) bool { return s.log[i].Seq > after })
	return append([]Op(nil), s.log[i:]...)
}

// Counts returns the number of live markers and circles.
func (s *Scene) Counts() (markers, circles int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markers), len(s.circles)
}

// record stamps op and appends it to the log. Caller holds mu.
func (s *Scene) record(op Op) Op {
	s.seq++
	op.Seq = s.seq
	op.At = s.now()
	s.log = append(s.log, op)
	if over := len(s.log) - s.logSize; over > 0 {
		s.log = append(s.log[:0:0], s.log[over:]...)
	}
	return op
}

func (s *Scene) emit(op Op) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast("op", op)
	}
}

func newHandle(prefix string) surface.Handle {
	return surface.Handle(prefix + "-" + uuid.NewString())
}
