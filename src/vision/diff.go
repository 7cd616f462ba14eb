package vision

import (
	"fmt"
	"image"
)

// Difference returns the mean absolute per-channel RGB difference between
// two equally sized images, scaled to [0,1].
func Difference(a, b image.Image) (float64, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 0, fmt.Errorf("image sizes differ: %dx%d vs %dx%d", ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}
	if ab.Empty() {
		return 0, nil
	}

	var total uint64
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			r1, g1, b1, _ := a.At(ab.Min.X+x, ab.Min.Y+y).RGBA()
			r2, g2, b2, _ := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			total += absDiff(r1>>8, r2>>8) + absDiff(g1>>8, g2>>8) + absDiff(b1>>8, b2>>8)
		}
	}
	samples := float64(ab.Dx()*ab.Dy()) * 3
	return float64(total) / samples / 255, nil
}

// Changed reports whether the difference between a and b exceeds threshold.
func Changed(a, b image.Image, threshold float64) (bool, float64, error) {
	d, err := Difference(a, b)
	if err != nil {
		return false, 0, err
	}
	return d > threshold, d, nil
}

// LoadAndCompare compares two image files.
func LoadAndCompare(before, after string, threshold float64) (bool, float64, error) {
	a, err := LoadTemplate(before)
	if err != nil {
		return false, 0, err
	}
	b, err := LoadTemplate(after)
	if err != nil {
		return false, 0, err
	}
	return Changed(a, b, threshold)
}

func absDiff(a, b uint32) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}
