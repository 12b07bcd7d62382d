// Package locate resolves free text and coordinates to places.
//
// Forward searches are stamped with a monotonically increasing sequence
// number; only the response carrying the latest stamp is applied.
package locate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/pkg/logger"
	"github.com/okian/crowdwatch/pkg/metrics"
)

// UnknownLocation is the display name used when reverse lookup yields nothing.
const UnknownLocation = "Unknown Location"

const defaultTimeout = 10 * time.Second

// Place is one geocoder match.
type Place struct {
	DisplayName string         `json:"display_name"`
	Position    model.Position `json:"position"`
}

// Geocoder is the external geocoding service.
type Geocoder interface {
	Forward(ctx context.Context, query string) ([]Place, error)
	Reverse(ctx context.Context, pos model.Position) ([]Place, error)
}

// Poster hands a task to the main loop.
type Poster interface {
	Post(ctx context.Context, fn func(context.Context)) error
}

// Result is delivered to a search's apply callback on the main loop.
type Result struct {
	Seq   uint64
	Query string
	Place Place
	Err   error
}

// Resolver wraps a Geocoder with failure classification and stale-result suppression.
type Resolver struct {
	geocoder Geocoder
	poster   Poster
	timeout  time.Duration
	logger   logger.Logger

	seq      atomic.Uint64
	mu       sync.Mutex
	inflight context.CancelFunc
}

// NewResolver creates a resolver. p may be nil if Search is never used.
func NewResolver(g Geocoder, p Poster, opts ...Option) *Resolver {
	r := &Resolver{
		geocoder: g,
		poster:   p,
		timeout:  defaultTimeout,
		logger:   logger.Get().Named("locate"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveForward returns the first match for query, or model.ErrNotFound.
func (r *Resolver) ResolveForward(ctx context.Context, query string) (Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Place{}, fmt.Errorf("resolve %q: %w", query, model.ErrNotFound)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	places, err := r.geocoder.Forward(ctx, query)
	metrics.RecordGeocodeLatency("forward", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordGeocodeFailure("forward", classify(err))
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return Place{}, fmt.Errorf("resolve %q: %w", query, err)
		}
		r.logger.Warn(ctx, "forward geocode failed", logger.String("query", query), logger.Error(err))
		return Place{}, fmt.Errorf("resolve %q: %w: %w", query, model.ErrNotFound, err)
	}
	if len(places) == 0 {
		metrics.RecordGeocodeFailure("forward", "not_found")
		return Place{}, fmt.Errorf("resolve %q: %w", query, model.ErrNotFound)
	}
	return places[0], nil
}

// ResolveReverse returns a display name for pos. Failures and empty results
// yield UnknownLocation.
func (r *Resolver) ResolveReverse(ctx context.Context, pos model.Position) string {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	places, err := r.geocoder.Reverse(ctx, pos)
	metrics.RecordGeocodeLatency("reverse", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordGeocodeFailure("reverse", classify(err))
		r.logger.Warn(ctx, "reverse geocode failed",
			logger.Float64("lat", pos.Lat), logger.Float64("lng", pos.Lng), logger.Error(err))
		return UnknownLocation
	}
	for _, p := range places {
		if name := strings.TrimSpace(p.DisplayName); name != "" {
			return name
		}
	}
	metrics.RecordGeocodeFailure("reverse", "not_found")
	return UnknownLocation
}

// Search issues a forward lookup and returns its sequence number.
//
// The previous in-flight search is canceled. When the response arrives,
// apply runs on the main loop only if no newer search was issued meanwhile.
func (r *Resolver) Search(ctx context.Context, query string, apply func(context.Context, Result)) uint64 {
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	// The stamp and the in-flight swap happen together so a search can only
	// cancel its own predecessor.
	r.mu.Lock()
	seq := r.seq.Add(1)
	prev := r.inflight
	r.inflight = cancel
	r.mu.Unlock()
	if prev != nil {
		prev()
	}
	metrics.RecordSearchIssued()

	go func() {
		defer cancel()
		place, err := r.ResolveForward(sctx, query)
		res := Result{Seq: seq, Query: query, Place: place, Err: err}
		postErr := r.poster.Post(context.WithoutCancel(sctx), func(loopCtx context.Context) {
			if res.Seq != r.seq.Load() {
				metrics.RecordStaleResult()
				r.logger.Debug(loopCtx, "stale search result dropped",
					logger.Uint64("seq", res.Seq), logger.String("query", res.Query))
				return
			}
			apply(loopCtx, res)
		})
		if postErr != nil {
			r.logger.Warn(sctx, "search result not delivered", logger.Uint64("seq", seq), logger.Error(postErr))
		}
	}()
	return seq
}

// Current returns the latest issued search sequence number.
func (r *Resolver) Current() uint64 {
	return r.seq.Load()
}

func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	default:
		return "provider"
	}
}
