// Package position keeps the device's last reported fix.
package position

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/pkg/logger"
)

const defaultMaxAge = 5 * time.Minute

// Fix is a reported position with its receive time.
type Fix struct {
	Position model.Position `json:"position"`
	At       time.Time      `json:"at"`
}

// Latest is a last-known-position provider fed by clients.
type Latest struct {
	mu      sync.RWMutex
	fix     Fix
	has     bool
	granted bool
	maxAge  time.Duration
	now     func() time.Time
	logger  logger.Logger
}

// NewLatest creates an empty provider with permission granted.
func NewLatest(opts ...Option) *Latest {
	l := &Latest{
		granted: true,
		maxAge:  defaultMaxAge,
		now:     time.Now,
		logger:  logger.Get().Named("position"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Report records a new fix.
func (l *Latest) Report(pos model.Position) error {
	if err := Validate(pos); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fix = Fix{Position: pos, At: l.now()}
	l.has = true
	return nil
}

// SetPermission flips the location permission gate.
func (l *Latest) SetPermission(granted bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.granted = granted
}

// LastKnownPosition returns the stored fix if permission is granted and the
// fix is fresh enough. ok is false when there is none.
func (l *Latest) LastKnownPosition(ctx context.Context) (model.Position, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Position{}, false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.granted {
		return model.Position{}, false, model.ErrPermissionDenied
	}
	if !l.has {
		return model.Position{}, false, nil
	}
	if l.maxAge > 0 && l.now().Sub(l.fix.At) > l.maxAge {
		l.logger.Debug(ctx, "fix too old", logger.Duration("age", l.now().Sub(l.fix.At)))
		return model.Position{}, false, nil
	}
	return l.fix.Position, true, nil
}

// Validate checks that pos is a finite WGS84 coordinate.
func Validate(pos model.Position) error {
	switch {
	case math.IsNaN(pos.Lat) || math.IsNaN(pos.Lng) || math.IsInf(pos.Lat, 0) || math.IsInf(pos.Lng, 0):
		return fmt.Errorf("%w: not finite", ErrInvalidPosition)
	case pos.Lat < -90 || pos.Lat > 90:
		return fmt.Errorf("%w: latitude %g", ErrInvalidPosition, pos.Lat)
	case pos.Lng < -180 || pos.Lng > 180:
		return fmt.Errorf("%w: longitude %g", ErrInvalidPosition, pos.Lng)
	}
	return nil
}
