// Package session drives the SOS and Volunteer alert sessions.
//
// At most one session is active. A new trigger cancels the current one, and
// async work belonging to a canceled session is dropped on the main loop
// before it can change anything.
package session

import (
	"context"
	"time"

	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/internal/domain/ripple"
)

// Mode is what the user asked for.
type Mode string

const (
	ModeSOS       Mode = "sos"
	ModeVolunteer Mode = "volunteer"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeSOS || m == ModeVolunteer
}

// State is a session lifecycle state.
type State string

const (
	StateIdle              State = "idle"
	StateResolvingPosition State = "resolving_position"
	StateBroadcasting      State = "broadcasting"
	StateDisplayed         State = "displayed"
	StateCancelled         State = "cancelled"
)

// Transition records one state change.
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// Session is a snapshot of an alert session.
type Session struct {
	ID        string          `json:"id"`
	Mode      Mode            `json:"mode"`
	State     State           `json:"state"`
	Origin    *model.Position `json:"origin,omitempty"`
	PlaceName string          `json:"place_name,omitempty"`
	AuxMetric *int            `json:"aux_metric,omitempty"`
	Failure   string          `json:"failure,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	History   []Transition    `json:"history"`
}

// Active reports whether s still holds the single active slot.
func (s Session) Active() bool {
	return s.State != StateIdle && s.State != StateCancelled
}

// Poster hands a task to the main loop.
type Poster interface {
	Post(ctx context.Context, fn func(context.Context)) error
}

// PositionProvider returns the device's last known fix.
// ok is false when no fix is available.
type PositionProvider interface {
	LastKnownPosition(ctx context.Context) (pos model.Position, ok bool, err error)
}

// PlaceNamer turns a position into a display name.
type PlaceNamer interface {
	ResolveReverse(ctx context.Context, pos model.Position) string
}

// MetricFetcher reads a single integer from the realtime store.
type MetricFetcher interface {
	FetchOnce(ctx context.Context, path string) (int, error)
}

// Annotator registers the session marker.
type Annotator interface {
	PutTransient(ctx context.Context, n model.TransientNode) error
	RemoveTransient(ctx context.Context, id string) error
}

// Rippler runs the distress animation.
type Rippler interface {
	Start(ctx context.Context, origin model.Position) *ripple.Handle
	Cancel(ctx context.Context, h *ripple.Handle)
}

// Camera moves the map viewport.
type Camera interface {
	MoveCamera(ctx context.Context, pos model.Position, zoom float64) error
}

// Notifier shows a short message to the user.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

// Deps are the collaborators of a Manager. OnTransition may be nil.
type Deps struct {
	Poster       Poster
	Position     PositionProvider
	Namer        PlaceNamer
	Metrics      MetricFetcher
	Annotations  Annotator
	Ripple       Rippler
	Camera       Camera
	Notifier     Notifier
	OnTransition func(ctx context.Context, s Session, t Transition)
}
