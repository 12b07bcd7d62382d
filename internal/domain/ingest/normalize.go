package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/crowdwatch/internal/domain/model"
)

// Accepted feed field names, first match wins.
var (
	densityKeys  = []string{"density", "Density"}
	latKeys      = []string{"Latitude", "latitude", "lat"}
	lngKeys      = []string{"Longitude", "longitude", "lng"}
	nameKeys     = []string{"name"}
	capacityKeys = []string{"capacity"}
	foodKeys     = []string{"food"}
	medicalKeys  = []string{"medical kits", "medicalKits", "medical_kits"}
)

// Normalize converts a raw key/value snapshot into a NodeSet ordered by key.
//
// Missing fields take their defaults silently. Fields that are present but
// unusable also take defaults and mark the record malformed; a malformed
// record is still emitted.
func Normalize(records map[string]any) model.NodeSet {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	set := model.NodeSet{Nodes: make([]model.HazardNode, 0, len(keys))}
	for _, k := range keys {
		n, err := normalizeRecord(k, records[k])
		if err != nil {
			set.Malformed++
		}
		set.Nodes = append(set.Nodes, n)
	}
	return set
}

type fieldReader struct {
	fields map[string]any
	bad    []string
}

func normalizeRecord(id string, raw any) (model.HazardNode, error) {
	n := model.HazardNode{ID: id, Attributes: model.DefaultAttributes()}
	fields, ok := raw.(map[string]any)
	if !ok {
		return n, fmt.Errorf("record %s: %w: not an object", id, model.ErrMalformedRecord)
	}
	r := &fieldReader{fields: fields}

	n.Density = r.number(densityKeys, 0)
	if n.Density < 0 {
		n.Density = 0
	}
	n.Position = model.Position{Lat: r.number(latKeys, 0), Lng: r.number(lngKeys, 0)}
	n.Attributes = model.Attributes{
		Name:        r.text(nameKeys, model.DefaultPlaceName, false),
		Capacity:    r.text(capacityKeys, model.DefaultCapacity, true),
		Food:        r.number(foodKeys, 0),
		MedicalKits: r.integer(medicalKeys, 0),
	}
	if len(r.bad) > 0 {
		return n, fmt.Errorf("record %s: %w: %s", id, model.ErrMalformedRecord, strings.Join(r.bad, ", "))
	}
	return n, nil
}

func (r *fieldReader) lookup(keys []string) (string, any, bool) {
	for _, k := range keys {
		if v, ok := r.fields[k]; ok && v != nil {
			return k, v, true
		}
	}
	return "", nil, false
}

func (r *fieldReader) number(keys []string, def float64) float64 {
	k, v, ok := r.lookup(keys)
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok {
		r.bad = append(r.bad, k)
		return def
	}
	return f
}

func (r *fieldReader) integer(keys []string, def int) int {
	k, v, ok := r.lookup(keys)
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || !fitsInt32(f) {
		r.bad = append(r.bad, k)
		return def
	}
	return int(f)
}

// text reads a string field; numbers are formatted when coerce is set.
func (r *fieldReader) text(keys []string, def string, coerce bool) string {
	k, v, ok := r.lookup(keys)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return def
		}
		return t
	default:
		if f, isNum := toFloat(v); isNum && coerce {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		r.bad = append(r.bad, k)
		return def
	}
}

// toFloat decodes the numeric shapes the realtime store and JSON produce.
func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		p, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// fitsInt32 reports whether f is a count the map can display.
func fitsInt32(f float64) bool {
	return f >= math.MinInt32 && f <= math.MaxInt32
}
