// Package realtime provides the keyed data stores the ingestor reads from.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/crowdwatch/internal/domain/ingest"
)

// Publisher writes a value at a path. The feed simulator uses it.
type Publisher interface {
	Publish(ctx context.Context, path string, value any) error
}

// eventFrom converts a decoded value at a subscribed path into an event.
// A missing value is an empty mapping.
func eventFrom(v any) ingest.RawEvent {
	switch t := v.(type) {
	case nil:
		return ingest.RawEvent{Records: map[string]any{}}
	case map[string]any:
		return ingest.RawEvent{Records: t}
	default:
		return ingest.RawEvent{Err: fmt.Errorf("%w: %T", ErrUnexpectedShape, v)}
	}
}

// decode round-trips v through JSON so in-memory values look exactly like
// values read from the wire.
func decode(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return out, nil
}
