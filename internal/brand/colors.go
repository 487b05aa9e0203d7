package brand

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/crafted/backend/internal/models"
)

// Color families used for style-reference bucketing.
const (
	FamilyRed     = "red"
	FamilyOrange  = "orange"
	FamilyYellow  = "yellow"
	FamilyGreen   = "green"
	FamilyCyan    = "cyan"
	FamilyBlue    = "blue"
	FamilyPurple  = "purple"
	FamilyPink    = "pink"
	FamilyNeutral = "neutral"
)

// ParseHex accepts RRGGBB with or without a leading #.
func ParseHex(s string) (r, g, b uint8, err error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 0, 0, 0, fmt.Errorf("color must be RRGGBB, got %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("color must be RRGGBB, got %q", s)
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}

// Distance is squared Euclidean distance in RGB space. Squared is enough
// for ordering and avoids the sqrt.
func Distance(r1, g1, b1, r2, g2, b2 uint8) float64 {
	dr := float64(r1) - float64(r2)
	dg := float64(g1) - float64(g2)
	db := float64(b1) - float64(b2)
	return dr*dr + dg*dg + db*db
}

// ColorFamily buckets a color by hue. Desaturated or extreme-lightness
// colors are neutral regardless of hue.
func ColorFamily(r, g, b uint8) string {
	h, s, l := rgbToHSL(r, g, b)
	if s < 0.15 || l < 0.08 || l > 0.95 {
		return FamilyNeutral
	}
	switch {
	case h < 15 || h >= 345:
		return FamilyRed
	case h < 45:
		return FamilyOrange
	case h < 70:
		return FamilyYellow
	case h < 160:
		return FamilyGreen
	case h < 200:
		return FamilyCyan
	case h < 255:
		return FamilyBlue
	case h < 290:
		return FamilyPurple
	default:
		return FamilyPink
	}
}

// Nearest returns up to n references ordered by RGB distance from the query
// color.
func Nearest(refs []*models.StyleReference, r, g, b uint8, n int) []*models.StyleReference {
	out := make([]*models.StyleReference, len(refs))
	copy(out, refs)
	sort.SliceStable(out, func(i, j int) bool {
		return Distance(out[i].R, out[i].G, out[i].B, r, g, b) < Distance(out[j].R, out[j].G, out[j].B, r, g, b)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// rgbToHSL returns hue in degrees [0,360) and saturation/lightness in [0,1].
func rgbToHSL(r, g, b uint8) (h, s, l float64) {
	rf := float64(r) / 255
	gf := float64(g) / 255
	bf := float64(b) / 255

	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	l = (max + min) / 2

	d := max - min
	if d == 0 {
		return 0, 0, l
	}
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}

	switch max {
	case rf:
		h = math.Mod((gf-bf)/d, 6)
	case gf:
		h = (bf-rf)/d + 2
	default:
		h = (rf-gf)/d + 4
	}
	h *= 60
	if h < 0 {
		h += 360
	}
	return h, s, l
}
