// Package ingest turns the realtime store's keyed records into node snapshots.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/pkg/logger"
	"github.com/okian/crowdwatch/pkg/metrics"
)

// RawEvent is one push from the realtime store: the full mapping under the
// subscribed path, or an error.
type RawEvent struct {
	Records map[string]any
	Err     error
}

// Source is the realtime data store.
type Source interface {
	// Subscribe streams events for path until ctx is done, then closes the channel.
	Subscribe(ctx context.Context, path string) <-chan RawEvent
	// FetchOnce reads the value at path a single time.
	FetchOnce(ctx context.Context, path string) (any, error)
}

// Ingestor normalizes a Source into NodeSet snapshots.
type Ingestor struct {
	source Source
	seq    atomic.Uint64
	now    func() time.Time
	logger logger.Logger
}

// NewIngestor creates an ingestor reading from src.
func NewIngestor(src Source, opts ...Option) *Ingestor {
	i := &Ingestor{
		source: src,
		now:    time.Now,
		logger: logger.Get().Named("ingest"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Subscribe emits one NodeSet per source push until ctx is done.
// Source errors are logged and skipped; the channel stays open.
func (i *Ingestor) Subscribe(ctx context.Context, path string) <-chan model.NodeSet {
	out := make(chan model.NodeSet)
	events := i.source.Subscribe(ctx, path)
	go func() {
		defer close(out)
		for {
			var ev RawEvent
			var ok bool
			select {
			case <-ctx.Done():
				return
			case ev, ok = <-events:
				if !ok {
					return
				}
			}
			if ev.Err != nil {
				metrics.RecordIngestError()
				metrics.RecordErrorByComponent("ingest", "data_unavailable")
				i.logger.Warn(ctx, "realtime source error",
					logger.String("path", path),
					logger.Error(fmt.Errorf("%w: %w", model.ErrDataUnavailable, ev.Err)),
				)
				continue
			}
			set := Normalize(ev.Records)
			set.Seq = i.seq.Add(1)
			set.ReceivedAt = i.now()
			metrics.RecordSnapshot(len(set.Nodes), set.Malformed)
			if set.Malformed > 0 {
				i.logger.Warn(ctx, "malformed records defaulted",
					logger.Uint64("seq", set.Seq),
					logger.Int("malformed", set.Malformed),
				)
			}
			select {
			case out <- set:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// FetchOnce reads a single integer metric at path.
func (i *Ingestor) FetchOnce(ctx context.Context, path string) (int, error) {
	v, err := i.source.FetchOnce(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w: %w", path, model.ErrDataUnavailable, err)
	}
	if v == nil {
		return 0, fmt.Errorf("fetch %s: %w: no value", path, model.ErrDataUnavailable)
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("fetch %s: %w: %T is not numeric", path, model.ErrMalformedRecord, v)
	}
	if !fitsInt32(f) {
		return 0, fmt.Errorf("fetch %s: %w: %g out of range", path, model.ErrMalformedRecord, f)
	}
	return int(f), nil
}
