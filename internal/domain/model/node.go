// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/golang/geo/s2"
)

// earthRadiusMeters is the mean Earth radius used for great-circle distances.
const earthRadiusMeters = 6371008.8

// Default attribute values for feed records that omit a field.
const (
	DefaultPlaceName = "Unknown Place"
	DefaultCapacity  = "N/A"
)

// Position is a WGS84 coordinate in degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceMeters returns the great-circle distance between p and o.
func (p Position) DistanceMeters(o Position) float64 {
	a := s2.LatLngFromDegrees(p.Lat, p.Lng)
	b := s2.LatLngFromDegrees(o.Lat, o.Lng)
	return a.Distance(b).Radians() * earthRadiusMeters
}

// Attributes are the descriptive fields carried by a hazard record.
type Attributes struct {
	Name        string  `json:"name"`
	Capacity    string  `json:"capacity"`
	Food        float64 `json:"food"`
	MedicalKits int     `json:"medical_kits"`
}

// DefaultAttributes returns the attribute set used when a record has no fields.
func DefaultAttributes() Attributes {
	return Attributes{Name: DefaultPlaceName, Capacity: DefaultCapacity}
}

// HazardNode is one keyed density reading from the realtime feed.
// Identity is ID; nodes are never mutated after ingestion.
type HazardNode struct {
	ID         string     `json:"id"`
	Position   Position   `json:"position"`
	Density    float64    `json:"density"`
	Attributes Attributes `json:"attributes"`
}

// NodeSet is one full snapshot of the feed, ordered by key.
type NodeSet struct {
	Seq        uint64
	Nodes      []HazardNode
	Malformed  int
	ReceivedAt time.Time
}

// AnnotationKind tags the origin of a rendered annotation.
type AnnotationKind string

const (
	KindHazard    AnnotationKind = "hazard"
	KindSOS       AnnotationKind = "sos"
	KindVolunteer AnnotationKind = "volunteer"
	KindSearch    AnnotationKind = "search"
)

// Annotation is the rendered state kept for one node id.
type Annotation struct {
	NodeID       string
	MarkerHandle string
	CircleHandle string
	LastTier     RiskTier
	Position     Position
	Title        string
	Density      float64
	Attributes   Attributes
	Kind         AnnotationKind
	// AuxMetric is set for SOS annotations only.
	AuxMetric *int
}

// TransientNode is a session or search scoped marker outside the feed namespace.
type TransientNode struct {
	ID        string
	Position  Position
	Title     string
	Icon      string
	Kind      AnnotationKind
	AuxMetric *int
}
