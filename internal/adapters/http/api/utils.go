package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/crowdwatch/internal/domain/model"
)

const maxBodyBytes = 1 << 16

// coordinates is the optional fix carried by trigger and position bodies.
type coordinates struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// position returns the fix, nil when absent, or an error when half given.
func (c coordinates) position() (*model.Position, error) {
	switch {
	case c.Lat == nil && c.Lng == nil:
		return nil, nil
	case c.Lat == nil || c.Lng == nil:
		return nil, errors.New("lat and lng must be given together")
	}
	return &model.Position{Lat: *c.Lat, Lng: *c.Lng}, nil
}

// decodeBody decodes an optional JSON body into v. An empty body is allowed.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

// queryPosition reads lat and lng query parameters.
func queryPosition(r *http.Request) (model.Position, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(strings.TrimSpace(q.Get("lat")), 64)
	if err != nil {
		return model.Position{}, errors.New("invalid lat")
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(q.Get("lng")), 64)
	if err != nil {
		return model.Position{}, errors.New("invalid lng")
	}
	return model.Position{Lat: lat, Lng: lng}, nil
}
