// Package target describes what to interact with on screen, independent of
// where it currently is.
//
// Callers should build a Target explicitly with Text, Image, Ratio or Pixel.
// Classify exists for the command line and sequence files, where targets
// arrive as bare strings. Its rules, applied in order, are:
//
//  1. the string names an existing regular file with an image extension
//     (.png .jpg .jpeg .bmp .gif .webp)          → Image
//  2. the string is one number, or two numbers separated by a comma
//     ("0.5,0.3", "960, 540", "120")             → Coordinate (y is 0 when omitted)
//  3. anything else                               → Text
//
// Coordinates produced by Classify infer their units with InferUnits.
package target

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

type Kind int

const (
	KindText Kind = iota
	KindImage
	KindCoordinate
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindCoordinate:
		return "coord"
	default:
		return "unknown"
	}
}

type Units int

const (
	UnitsRatio Units = iota
	UnitsPixel
)

func (u Units) String() string {
	if u == UnitsRatio {
		return "ratio"
	}
	return "pixel"
}

// ParseUnits accepts "ratio" or "pixel"/"px". An empty string or "auto"
// reports ok=false so callers fall back to InferUnits.
func ParseUnits(s string) (Units, bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return 0, false, nil
	case "ratio":
		return UnitsRatio, true, nil
	case "pixel", "px":
		return UnitsPixel, true, nil
	default:
		return 0, false, fmt.Errorf("unknown units %q (want auto, ratio or pixel)", s)
	}
}

var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrUnknownMethod     = errors.New("unknown locate method")
)

// Target is immutable once constructed.
type Target struct {
	kind  Kind
	text  string
	path  string
	x, y  float64
	units Units
}

func Text(s string) Target { return Target{kind: KindText, text: s} }

func Image(path string) Target { return Target{kind: KindImage, path: path} }

// Ratio builds a screen-relative coordinate; both values must lie in [0,1].
func Ratio(x, y float64) (Target, error) {
	if x < 0 || x > 1 || y < 0 || y > 1 {
		return Target{}, fmt.Errorf("%w: ratio (%g,%g) outside [0,1]", ErrInvalidCoordinate, x, y)
	}
	return Target{kind: KindCoordinate, x: x, y: y, units: UnitsRatio}, nil
}

// Pixel builds a coordinate expressed against the reference resolution.
func Pixel(x, y float64) Target {
	return Target{kind: KindCoordinate, x: x, y: y, units: UnitsPixel}
}

func Coordinate(x, y float64, units Units) (Target, error) {
	if units == UnitsRatio {
		return Ratio(x, y)
	}
	return Pixel(x, y), nil
}

func (t Target) Kind() Kind         { return t.kind }
func (t Target) Text() string       { return t.text }
func (t Target) Path() string       { return t.path }
func (t Target) XY() (x, y float64) { return t.x, t.y }
func (t Target) Units() Units       { return t.units }

func (t Target) String() string {
	switch t.kind {
	case KindText:
		return t.text
	case KindImage:
		return t.path
	default:
		return fmt.Sprintf("%s,%s(%s)", formatFloat(t.x), formatFloat(t.y), t.units)
	}
}

// InferUnits is the legacy rule: both values in [0,1] means ratio,
// anything else is pixels against the reference resolution.
func InferUnits(x, y float64) Units {
	if x >= 0 && x <= 1 && y >= 0 && y <= 1 {
		return UnitsRatio
	}
	return UnitsPixel
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".gif": true, ".webp": true,
}

// IsImageFile reports whether path is an existing regular file with an
// image extension.
func IsImageFile(path string) bool {
	if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// Classify applies the three documented rules to a bare string.
func Classify(raw string) Target {
	if IsImageFile(raw) {
		return Image(raw)
	}
	if x, y, err := ParseCoordinate(raw); err == nil {
		t, _ := Coordinate(x, y, InferUnits(x, y))
		return t
	}
	return Text(raw)
}

// ParseCoordinate reads "x,y" or a single "x" (y = 0).
func ParseCoordinate(raw string) (x, y float64, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) == 0 || len(parts) > 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, raw)
	}
	x, ok := parseNumber(parts[0])
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, raw)
	}
	if len(parts) == 2 {
		if y, ok = parseNumber(parts[1]); !ok {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, raw)
		}
	}
	return x, y, nil
}

// numberPattern admits plain decimals only, so words such as "Inf" or
// "NaN" stay text.
var numberPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numberPattern.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// Method is the caller's hint for how to resolve a bare string.
type Method string

const (
	MethodAuto  Method = "auto"
	MethodText  Method = "text"
	MethodImage Method = "image"
	MethodCoord Method = "coord"
)

func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return MethodAuto, nil
	case "text":
		return MethodText, nil
	case "image":
		return MethodImage, nil
	case "coord", "coordinate":
		return MethodCoord, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Resolve turns a bare string into a Target using method as a hint.
// units overrides InferUnits for coordinates when set.
func Resolve(raw string, method Method, units *Units) (Target, error) {
	switch method {
	case MethodText:
		return Text(raw), nil
	case MethodImage:
		return Image(raw), nil
	case MethodCoord:
		x, y, err := ParseCoordinate(raw)
		if err != nil {
			return Target{}, err
		}
		return coordinate(x, y, units)
	case MethodAuto, "":
		t := Classify(raw)
		if t.kind == KindCoordinate && units != nil {
			return coordinate(t.x, t.y, units)
		}
		return t, nil
	default:
		return Target{}, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

func coordinate(x, y float64, units *Units) (Target, error) {
	if units != nil {
		return Coordinate(x, y, *units)
	}
	return Coordinate(x, y, InferUnits(x, y))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
