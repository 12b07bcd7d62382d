// Package geocoder adapts geocoding providers to the locate.Geocoder contract.
package geocoder

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"github.com/okian/crowdwatch/internal/domain/locate"
	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/pkg/logger"
)

// Maps geocodes with the Google Maps Geocoding API.
type Maps struct {
	client   *maps.Client
	region   string
	language string
	qps      int
	logger   logger.Logger
}

// NewMaps creates a Maps geocoder for apiKey.
func NewMaps(apiKey string, opts ...Option) (*Maps, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	m := &Maps{logger: logger.Get().Named("geocoder.maps")}
	for _, opt := range opts {
		opt(m)
	}
	clientOpts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if m.qps > 0 {
		clientOpts = append(clientOpts, maps.WithRateLimit(m.qps))
	}
	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	m.client = client
	return m, nil
}

// Forward looks up places matching query.
func (m *Maps) Forward(ctx context.Context, query string) ([]locate.Place, error) {
	results, err := m.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:  query,
		Region:   m.region,
		Language: m.language,
	})
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}
	m.logger.Debug(ctx, "forward geocode", logger.String("query", query), logger.Int("results", len(results)))
	return places(results), nil
}

// Reverse looks up places at pos.
func (m *Maps) Reverse(ctx context.Context, pos model.Position) ([]locate.Place, error) {
	results, err := m.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: pos.Lat, Lng: pos.Lng},
		Language: m.language,
	})
	if err != nil {
		return nil, fmt.Errorf("reverse geocode %.6f,%.6f: %w", pos.Lat, pos.Lng, err)
	}
	return places(results), nil
}

func places(results []maps.GeocodingResult) []locate.Place {
	out := make([]locate.Place, 0, len(results))
	for _, r := range results {
		out = append(out, locate.Place{
			DisplayName: r.FormattedAddress,
			Position: model.Position{
				Lat: r.Geometry.Location.Lat,
				Lng: r.Geometry.Location.Lng,
			},
		})
	}
	return out
}

// Unavailable is used when no provider is configured. Every lookup fails.
type Unavailable struct{}

// Forward always fails with ErrUnavailable.
func (Unavailable) Forward(context.Context, string) ([]locate.Place, error) {
	return nil, ErrUnavailable
}

// Reverse always fails with ErrUnavailable.
func (Unavailable) Reverse(context.Context, model.Position) ([]locate.Place, error) {
	return nil, ErrUnavailable
}
