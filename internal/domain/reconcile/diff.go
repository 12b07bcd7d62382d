// Package reconcile keeps rendered map annotations in step with feed snapshots.
//
// Snapshots are diffed by node id against the annotation table and only the
// difference is rendered; the surface is never cleared and redrawn.
package reconcile

import (
	"sort"

	"github.com/okian/crowdwatch/internal/domain/classify"
	"github.com/okian/crowdwatch/internal/domain/model"
)

// PositionToleranceMeters is the distance below which two positions are equal.
const PositionToleranceMeters = 0.1

// Diff is the set of operations that moves a table to a new snapshot.
type Diff struct {
	ToAdd    []model.HazardNode
	ToUpdate []model.HazardNode
	// ToRemove holds node ids in ascending order.
	ToRemove []string
}

// Empty reports whether the diff carries no operations.
func (d Diff) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToUpdate) == 0 && len(d.ToRemove) == 0
}

// Compute diffs previous against incoming.
//
// A duplicated id in incoming keeps its last value and its first position.
// Ids whose tier, position, and title are unchanged produce no operation.
func Compute(previous map[string]model.Annotation, incoming []model.HazardNode) Diff {
	nodes := dedupe(incoming)

	var d Diff
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		seen[n.ID] = struct{}{}
		prev, ok := previous[n.ID]
		if !ok {
			d.ToAdd = append(d.ToAdd, n)
			continue
		}
		if needsRender(prev, n) {
			d.ToUpdate = append(d.ToUpdate, n)
		}
	}
	for id := range previous {
		if _, ok := seen[id]; !ok {
			d.ToRemove = append(d.ToRemove, id)
		}
	}
	sort.Strings(d.ToRemove)
	return d
}

// needsRender reports whether n differs from prev in anything drawn on the map.
func needsRender(prev model.Annotation, n model.HazardNode) bool {
	return classify.TierOf(n.Density) != prev.LastTier ||
		moved(prev.Position, n.Position) ||
		n.Attributes.Name != prev.Title
}

func moved(a, b model.Position) bool {
	return a.DistanceMeters(b) > PositionToleranceMeters
}

// dedupe collapses repeated ids; the last occurrence wins.
func dedupe(in []model.HazardNode) []model.HazardNode {
	idx := make(map[string]int, len(in))
	out := make([]model.HazardNode, 0, len(in))
	for _, n := range in {
		if i, ok := idx[n.ID]; ok {
			out[i] = n
			continue
		}
		idx[n.ID] = len(out)
		out = append(out, n)
	}
	return out
}
