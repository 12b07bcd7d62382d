package model

import "fmt"

// RiskTier is the ordered crowd risk classification of a density reading.
type RiskTier int

const (
	TierSafe RiskTier = iota
	TierModerate
	TierRisky
	TierDangerous
	TierStampedeLikely
)

var tierNames = [...]string{"safe", "moderate", "risky", "dangerous", "stampede_likely"}

func (t RiskTier) String() string {
	if t < TierSafe || t > TierStampedeLikely {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// MarshalText renders the tier name for JSON payloads.
func (t RiskTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Color is a 32-bit ARGB value.
type Color uint32

// ARGB packs the four channels into a Color.
func ARGB(a, r, g, b uint8) Color {
	return Color(uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// Alpha returns the alpha channel.
func (c Color) Alpha() uint8 { return uint8(c >> 24) }

// WithAlpha returns c with its alpha channel replaced.
func (c Color) WithAlpha(a uint8) Color {
	return Color(uint32(c)&0x00FFFFFF | uint32(a)<<24)
}

func (c Color) String() string {
	return fmt.Sprintf("#%08X", uint32(c))
}

// MarshalText renders the color as #AARRGGBB.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
