package screenshot

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kbinani/screenshot"
)

// ErrNoDisplay means there is nothing to capture. It is an environment
// failure and is never retried.
var ErrNoDisplay = errors.New("no active displays found")

// Region represents a screen region in absolute pixels.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

// ParseRegion reads "left,top,width,height".
func ParseRegion(s string) (*Region, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid region %q: want left,top,width,height", s)
	}
	var vals [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid region %q: %w", s, err)
		}
		vals[i] = n
	}
	r := &Region{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
	if r.X < 0 || r.Y < 0 {
		return nil, fmt.Errorf("invalid region origin: left=%d, top=%d", r.X, r.Y)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", r.Width, r.Height)
	}
	return r, nil
}

// Capturer grabs rasters on demand. A nil region means the whole screen.
type Capturer interface {
	Capture(region *Region) (*image.RGBA, error)
	Bounds() (image.Rectangle, error)
}

// Display captures the primary display.
type Display struct{}

// Bounds returns the bounds of the primary display
func (Display) Bounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, ErrNoDisplay
	}
	return screenshot.GetDisplayBounds(0), nil
}

func (d Display) Capture(region *Region) (*image.RGBA, error) {
	bounds, err := d.Bounds()
	if err != nil {
		return nil, err
	}
	if region != nil {
		if region.Width <= 0 || region.Height <= 0 {
			return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
		}
		bounds = region.Rect()
	}

	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return img, nil
}

var createFile = func(path string) (io.WriteCloser, error) { return os.Create(path) }

// Save encodes img as jpeg for .jpg/.jpeg paths and png otherwise.
func Save(img image.Image, path string) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := createFile(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to write %s: %w", path, cerr)
		}
	}()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("failed to encode image as %s: %w", filepath.Ext(path), err)
	}
	return nil
}

// CaptureToFile captures region and writes it to path.
func CaptureToFile(c Capturer, region *Region, path string) error {
	img, err := c.Capture(region)
	if err != nil {
		return err
	}
	return Save(img, path)
}

// Static serves captures from a fixed image, treating its bounds as the
// screen. It backs replays of saved screenshots and tests. A region must
// start on screen; it is cropped at the right and bottom edges.
type Static struct {
	Image image.Image
}

func (s Static) Bounds() (image.Rectangle, error) {
	if s.Image == nil {
		return image.Rectangle{}, ErrNoDisplay
	}
	return s.Image.Bounds(), nil
}

func (s Static) Capture(region *Region) (*image.RGBA, error) {
	bounds, err := s.Bounds()
	if err != nil {
		return nil, err
	}
	rect := bounds
	if region != nil {
		if region.Width <= 0 || region.Height <= 0 {
			return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
		}
		if !region.Rect().Min.In(bounds) {
			return nil, fmt.Errorf("region %s starts outside the screen %v", region, bounds)
		}
		rect = region.Rect().Intersect(bounds)
		if rect.Empty() {
			return nil, fmt.Errorf("region %s lies outside the screen %v", region, bounds)
		}
	}
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), s.Image, rect.Min, draw.Src)
	return out, nil
}
