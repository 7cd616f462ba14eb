// Package coords maps resolution-independent coordinates onto the current
// display.
package coords

import (
	"fmt"
	"image"
	"math"

	"screen-control/src/config"
	"screen-control/src/screenshot"
	"screen-control/src/target"
)

// Normalize converts (x, y) to absolute pixels on a display of size current.
//
// Ratio values scale directly by the current size. Pixel values were
// authored against ref and scale by current/ref on each axis, so
// Normalize(ref.Width, ref.Height) lands exactly on (current.Width, current.Height).
func Normalize(x, y float64, units target.Units, ref, current config.Resolution) (int, int) {
	if units == target.UnitsRatio {
		return round(x * float64(current.Width)), round(y * float64(current.Height))
	}
	return round(x * float64(current.Width) / float64(ref.Width)),
		round(y * float64(current.Height) / float64(ref.Height))
}

func round(f float64) int {
	return int(math.Round(f))
}

// Clamp pins (x, y) into bounds so the point addresses a real pixel.
func Clamp(x, y int, bounds image.Rectangle) (int, int) {
	if bounds.Empty() {
		return x, y
	}
	return clampInt(x, bounds.Min.X, bounds.Max.X-1), clampInt(y, bounds.Min.Y, bounds.Max.Y-1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Normalizer resolves coordinate targets against the live display size.
type Normalizer struct {
	Capturer  screenshot.Capturer
	Reference config.Resolution
}

func NewNormalizer(c screenshot.Capturer, ref config.Resolution) *Normalizer {
	return &Normalizer{Capturer: c, Reference: ref}
}

// Resolve returns the absolute point for a coordinate target, clamped to the
// display bounds.
func (n *Normalizer) Resolve(t target.Target) (image.Point, error) {
	if t.Kind() != target.KindCoordinate {
		return image.Point{}, fmt.Errorf("%w: %s target is not a coordinate", target.ErrInvalidCoordinate, t.Kind())
	}
	bounds, err := n.Capturer.Bounds()
	if err != nil {
		return image.Point{}, err
	}
	current := config.Resolution{Width: bounds.Dx(), Height: bounds.Dy()}
	x, y := t.XY()
	px, py := Normalize(x, y, t.Units(), n.Reference, current)
	px, py = Clamp(px+bounds.Min.X, py+bounds.Min.Y, bounds)
	return image.Pt(px, py), nil
}
