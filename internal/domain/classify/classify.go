// Package classify maps crowd density readings onto risk tiers and colors.
package classify

import (
	"math"

	"github.com/okian/crowdwatch/internal/domain/model"
)

// Tier boundaries. Each value belongs to the upper tier.
const (
	moderateFrom  = 0.4
	riskyFrom     = 0.5
	dangerousFrom = 0.6
	stampedeFrom  = 1.5
)

// fillAlpha is the alpha applied to a tier color for the density circle fill.
const fillAlpha = 70

// Tier colors, fully opaque.
var (
	ColorSafe      = model.ARGB(255, 144, 238, 144)
	ColorModerate  = model.ARGB(255, 255, 191, 0)
	ColorRisky     = model.ARGB(255, 255, 165, 0)
	ColorDangerous = model.ARGB(255, 255, 0, 0)
	ColorStampede  = model.ARGB(255, 0, 0, 0)
)

// Classify returns the tier and stroke color for a density reading.
// Negative and NaN readings are treated as 0; +Inf is StampedeLikely.
func Classify(density float64) (model.RiskTier, model.Color) {
	t := TierOf(density)
	return t, ColorOf(t)
}

// TierOf returns the risk tier of density.
func TierOf(density float64) model.RiskTier {
	if math.IsNaN(density) || density < 0 {
		density = 0
	}
	switch {
	case density >= stampedeFrom:
		return model.TierStampedeLikely
	case density >= dangerousFrom:
		return model.TierDangerous
	case density >= riskyFrom:
		return model.TierRisky
	case density >= moderateFrom:
		return model.TierModerate
	default:
		return model.TierSafe
	}
}

// ColorOf returns the opaque color of tier t.
func ColorOf(t model.RiskTier) model.Color {
	switch t {
	case model.TierModerate:
		return ColorModerate
	case model.TierRisky:
		return ColorRisky
	case model.TierDangerous:
		return ColorDangerous
	case model.TierStampedeLikely:
		return ColorStampede
	default:
		return ColorSafe
	}
}

// FillColor returns the translucent circle fill for tier t.
func FillColor(t model.RiskTier) model.Color {
	return ColorOf(t).WithAlpha(fillAlpha)
}
