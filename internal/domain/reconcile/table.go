package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/okian/crowdwatch/internal/domain/classify"
	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/internal/domain/surface"
	"github.com/okian/crowdwatch/pkg/logger"
	"github.com/okian/crowdwatch/pkg/metrics"
)

// Rendering constants for hazard annotations.
const (
	defaultHazardRadius = 300
	hazardStrokeWidth   = 4
	hazardIcon          = "shelter"
)

// Info is what a client shows when an annotation is tapped.
type Info struct {
	ID        string               `json:"id"`
	Kind      model.AnnotationKind `json:"kind"`
	Title     string               `json:"title"`
	Position  model.Position       `json:"position"`
	Tier      string               `json:"tier,omitempty"`
	Density   float64              `json:"density,omitempty"`
	AuxMetric *int                 `json:"aux_metric,omitempty"`
	Heading   string               `json:"heading"`
	Lines     []string             `json:"lines"`
}

// Table owns the annotation rows and is the only writer to the surface for them.
// It is not safe for concurrent use; callers run it on the main loop.
type Table struct {
	surface      surface.Surface
	rows         map[string]model.Annotation
	transients   map[string]model.Annotation
	hazardRadius float64
	logger       logger.Logger
}

// NewTable creates an empty table rendering through s.
func NewTable(s surface.Surface, opts ...Option) *Table {
	t := &Table{
		surface:      s,
		rows:         make(map[string]model.Annotation),
		transients:   make(map[string]model.Annotation),
		hazardRadius: defaultHazardRadius,
		logger:       logger.Get().Named("reconcile"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Apply reconciles the table against set and renders the difference.
//
// A failed render call leaves the affected row in its previous state so the
// next snapshot retries it; the returned error joins every failure.
func (t *Table) Apply(ctx context.Context, set model.NodeSet) (Diff, error) {
	start := time.Now()
	diff := Compute(t.rows, set.Nodes)

	var errs []error
	for _, id := range diff.ToRemove {
		if err := t.remove(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	for _, n := range diff.ToAdd {
		if err := t.add(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	for _, n := range diff.ToUpdate {
		if err := t.update(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	t.refreshUnrendered(set.Nodes)

	metrics.RecordReconcile(len(diff.ToAdd), len(diff.ToUpdate), len(diff.ToRemove),
		float64(time.Since(start).Microseconds())/1000)
	metrics.UpdateAnnotationsActive(len(t.rows) + len(t.transients))

	if !diff.Empty() {
		t.logger.Debug(ctx, "snapshot reconciled",
			logger.Uint64("seq", set.Seq),
			logger.Int("added", len(diff.ToAdd)),
			logger.Int("updated", len(diff.ToUpdate)),
			logger.Int("removed", len(diff.ToRemove)),
		)
	}
	return diff, errors.Join(errs...)
}

func (t *Table) add(ctx context.Context, n model.HazardNode) error {
	tier, color := classify.Classify(n.Density)
	marker, err := t.surface.AddMarker(ctx, surface.MarkerOptions{
		Position: n.Position,
		Title:    n.Attributes.Name,
		Icon:     hazardIcon,
	})
	if err != nil {
		return t.renderFailed(ctx, "add_marker", n.ID, err)
	}
	circle, err := t.surface.AddCircle(ctx, surface.CircleOptions{
		Center:      n.Position,
		Radius:      t.hazardRadius,
		StrokeColor: color,
		StrokeWidth: hazardStrokeWidth,
		FillColor:   classify.FillColor(tier),
	})
	if err != nil {
		if rerr := t.surface.Remove(ctx, marker); rerr != nil {
			t.logger.Warn(ctx, "marker rollback failed",
				logger.String("node_id", n.ID),
				logger.String("marker", string(marker)),
				logger.Error(rerr))
		}
		return t.renderFailed(ctx, "add_circle", n.ID, err)
	}
	t.rows[n.ID] = model.Annotation{
		NodeID:       n.ID,
		MarkerHandle: string(marker),
		CircleHandle: string(circle),
		LastTier:     tier,
		Position:     n.Position,
		Title:        n.Attributes.Name,
		Density:      n.Density,
		Attributes:   n.Attributes,
		Kind:         model.KindHazard,
	}
	return nil
}

func (t *Table) update(ctx context.Context, n model.HazardNode) error {
	row := t.rows[n.ID]
	tier, color := classify.Classify(n.Density)
	if err := t.surface.UpdateCircle(ctx, surface.Handle(row.CircleHandle), surface.CircleUpdate{
		Center:      n.Position,
		Radius:      t.hazardRadius,
		StrokeColor: color,
		FillColor:   classify.FillColor(tier),
	}); err != nil {
		return t.renderFailed(ctx, "update_circle", n.ID, err)
	}
	if moved(row.Position, n.Position) || row.Title != n.Attributes.Name {
		if err := t.surface.UpdateMarker(ctx, surface.Handle(row.MarkerHandle), surface.MarkerUpdate{
			Position: n.Position,
			Title:    n.Attributes.Name,
		}); err != nil {
			return t.renderFailed(ctx, "update_marker", n.ID, err)
		}
		row.Position = n.Position
		row.Title = n.Attributes.Name
	}
	row.LastTier = tier
	row.Density = n.Density
	row.Attributes = n.Attributes
	t.rows[n.ID] = row
	return nil
}

func (t *Table) remove(ctx context.Context, id string) error {
	row := t.rows[id]
	// The row is dropped even if a handle is already gone on the surface.
	delete(t.rows, id)
	var errs []error
	if err := t.surface.Remove(ctx, surface.Handle(row.MarkerHandle)); err != nil {
		errs = append(errs, err)
	}
	if err := t.surface.Remove(ctx, surface.Handle(row.CircleHandle)); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return t.renderFailed(ctx, "remove", id, err)
	}
	return nil
}

// refreshUnrendered copies non-visual fields of unchanged nodes into their rows.
func (t *Table) refreshUnrendered(nodes []model.HazardNode) {
	for _, n := range nodes {
		row, ok := t.rows[n.ID]
		if !ok || needsRender(row, n) {
			continue
		}
		row.Density = n.Density
		row.Attributes = n.Attributes
		t.rows[n.ID] = row
	}
}

func (t *Table) renderFailed(ctx context.Context, op, id string, err error) error {
	metrics.RecordErrorByComponent("reconcile", op)
	t.logger.Warn(ctx, "render operation failed",
		logger.String("op", op),
		logger.String("node_id", id),
		logger.Error(err),
	)
	return fmt.Errorf("%s %s: %w: %w", op, id, ErrRender, err)
}

// PutTransient renders or replaces a session or search scoped marker.
// Transient ids never collide with feed ids and are untouched by Apply.
func (t *Table) PutTransient(ctx context.Context, n model.TransientNode) error {
	if n.ID == "" {
		return fmt.Errorf("put transient: %w: empty id", ErrTransient)
	}
	if err := t.RemoveTransient(ctx, n.ID); err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	marker, err := t.surface.AddMarker(ctx, surface.MarkerOptions{
		Position: n.Position,
		Title:    n.Title,
		Icon:     n.Icon,
	})
	if err != nil {
		return t.renderFailed(ctx, "add_marker", n.ID, err)
	}
	t.transients[n.ID] = model.Annotation{
		NodeID:       n.ID,
		MarkerHandle: string(marker),
		Position:     n.Position,
		Title:        n.Title,
		Kind:         n.Kind,
		AuxMetric:    n.AuxMetric,
	}
	metrics.UpdateAnnotationsActive(len(t.rows) + len(t.transients))
	return nil
}

// RemoveTransient removes a transient marker. It returns model.ErrNotFound
// when id is not present.
func (t *Table) RemoveTransient(ctx context.Context, id string) error {
	row, ok := t.transients[id]
	if !ok {
		return fmt.Errorf("remove transient %s: %w", id, model.ErrNotFound)
	}
	delete(t.transients, id)
	metrics.UpdateAnnotationsActive(len(t.rows) + len(t.transients))
	if err := t.surface.Remove(ctx, surface.Handle(row.MarkerHandle)); err != nil {
		return t.renderFailed(ctx, "remove", id, err)
	}
	return nil
}

// Lookup returns tap info for id, searching transients first.
func (t *Table) Lookup(id string) (Info, error) {
	if row, ok := t.transients[id]; ok {
		return transientInfo(row), nil
	}
	if row, ok := t.rows[id]; ok {
		return hazardInfo(row), nil
	}
	return Info{}, fmt.Errorf("lookup %s: %w", id, model.ErrNotFound)
}

func hazardInfo(row model.Annotation) Info {
	a := row.Attributes
	return Info{
		ID:       row.NodeID,
		Kind:     row.Kind,
		Title:    row.Title,
		Position: row.Position,
		Tier:     row.LastTier.String(),
		Density:  row.Density,
		Heading:  a.Name,
		Lines: []string{
			"Capacity: " + a.Capacity,
			"Food: " + strconv.FormatFloat(a.Food, 'f', -1, 64),
			"Medical Kits: " + strconv.Itoa(a.MedicalKits),
		},
	}
}

func transientInfo(row model.Annotation) Info {
	info := Info{
		ID:        row.NodeID,
		Kind:      row.Kind,
		Title:     row.Title,
		Position:  row.Position,
		AuxMetric: row.AuxMetric,
		Heading:   row.Title,
		Lines:     []string{},
	}
	if row.Kind == model.KindSOS {
		info.Heading = "SOS signal"
		distress := "N/A"
		if row.AuxMetric != nil {
			distress = strconv.Itoa(*row.AuxMetric)
		}
		info.Lines = []string{"Humans in distress: " + distress}
	}
	return info
}

// Annotations returns a copy of every row, feed and transient, sorted by id.
func (t *Table) Annotations() []model.Annotation {
	out := make([]model.Annotation, 0, len(t.rows)+len(t.transients))
	for _, r := range t.rows {
		out = append(out, r)
	}
	for _, r := range t.transients {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// Len returns the number of feed rows.
func (t *Table) Len() int {
	return len(t.rows)
}
