package mapsurface

import (
	geojson "github.com/paulmach/go.geojson"

	"github.com/okian/crowdwatch/internal/domain/classify"
	"github.com/okian/crowdwatch/internal/domain/model"
)

// FeatureCollection exports the snapshot. Markers and circles are both
// point features; circles carry their radius in meters.
func (s Snapshot) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range s.Markers {
		f := geojson.NewPointFeature([]float64{m.Position.Lng, m.Position.Lat})
		f.ID = string(m.Handle)
		f.SetProperty("element", "marker")
		f.SetProperty("title", m.Title)
		f.SetProperty("icon", m.Icon)
		fc.AddFeature(f)
	}
	for _, c := range s.Circles {
		f := geojson.NewPointFeature([]float64{c.Center.Lng, c.Center.Lat})
		f.ID = string(c.Handle)
		f.SetProperty("element", "circle")
		f.SetProperty("radius", c.Radius)
		f.SetProperty("stroke", c.StrokeColor.String())
		f.SetProperty("stroke_width", c.StrokeWidth)
		f.SetProperty("fill", c.FillColor.String())
		fc.AddFeature(f)
	}
	return fc
}

// Annotations exports annotation rows as point features keyed by node id.
func Annotations(rows []model.Annotation) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range rows {
		f := geojson.NewPointFeature([]float64{r.Position.Lng, r.Position.Lat})
		f.ID = r.NodeID
		f.SetProperty("kind", string(r.Kind))
		f.SetProperty("title", r.Title)
		if r.Kind == model.KindHazard {
			f.SetProperty("density", r.Density)
			f.SetProperty("tier", r.LastTier.String())
			f.SetProperty("color", classify.ColorOf(r.LastTier).String())
			f.SetProperty("capacity", r.Attributes.Capacity)
			f.SetProperty("food", r.Attributes.Food)
			f.SetProperty("medical_kits", r.Attributes.MedicalKits)
		}
		if r.AuxMetric != nil {
			f.SetProperty("humans_in_distress", *r.AuxMetric)
		}
		fc.AddFeature(f)
	}
	return fc
}
