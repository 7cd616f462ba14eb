// Package locator resolves a target into an absolute screen point using
// the text, image or coordinate strategy.
package locator

import (
	"fmt"
	"image"

	"go.uber.org/zap"

	"screen-control/src/coords"
	"screen-control/src/logutil"
	"screen-control/src/screenshot"
	"screen-control/src/target"
)

// Match is a located point. Score is the correlation for image matches and
// 1.0 for text and coordinate matches.
type Match struct {
	X      int         `json:"x"`
	Y      int         `json:"y"`
	Score  float64     `json:"score"`
	Method target.Kind `json:"-"`
}

func (m Match) Point() image.Point { return image.Pt(m.X, m.Y) }

func (m Match) String() string {
	return fmt.Sprintf("(%d,%d) via %s score=%.2f", m.X, m.Y, m.Method, m.Score)
}

type TextFinder interface {
	Find(query string, region *screenshot.Region) (image.Point, bool)
}

type ImageFinder interface {
	Find(path string, region *screenshot.Region, threshold float64) (image.Point, float64, bool)
}

// Dispatcher picks a strategy per target and keeps every result inside the
// display bounds.
type Dispatcher struct {
	capturer   screenshot.Capturer
	text       TextFinder
	image      ImageFinder
	normalizer *coords.Normalizer
	threshold  float64
	logger     *zap.Logger
}

type Config struct {
	Capturer   screenshot.Capturer
	Text       TextFinder
	Image      ImageFinder
	Normalizer *coords.Normalizer
	Threshold  float64
	Logger     *zap.Logger
}

func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		capturer:   cfg.Capturer,
		text:       cfg.Text,
		image:      cfg.Image,
		normalizer: cfg.Normalizer,
		threshold:  cfg.Threshold,
		logger:     logutil.OrNop(cfg.Logger),
	}
}

// Locate classifies raw according to method and locates it. An unparseable
// coordinate or unknown method is reported as not found.
func (d *Dispatcher) Locate(raw string, method target.Method, region *screenshot.Region) (Match, bool) {
	return d.LocateWithUnits(raw, method, nil, region)
}

// LocateWithUnits is Locate with explicit units for coordinate strings.
func (d *Dispatcher) LocateWithUnits(raw string, method target.Method, units *target.Units, region *screenshot.Region) (Match, bool) {
	t, err := target.Resolve(raw, method, units)
	if err != nil {
		d.logger.Debug("target not resolved", zap.String("target", logutil.SanitizeForLogging(raw)), zap.Error(err))
		return Match{}, false
	}
	return d.LocateTarget(t, region)
}

func (d *Dispatcher) LocateTarget(t target.Target, region *screenshot.Region) (Match, bool) {
	var (
		p     image.Point
		score = 1.0
		ok    bool
	)

	switch t.Kind() {
	case target.KindText:
		if d.text == nil {
			return Match{}, false
		}
		p, ok = d.text.Find(t.Text(), region)
	case target.KindImage:
		if d.image == nil {
			return Match{}, false
		}
		p, score, ok = d.image.Find(t.Path(), region, d.threshold)
	case target.KindCoordinate:
		var err error
		p, err = d.normalizer.Resolve(t)
		if err != nil {
			d.logger.Debug("coordinate not resolved", zap.Stringer("target", t), zap.Error(err))
			return Match{}, false
		}
		ok = true
	}
	if !ok {
		return Match{}, false
	}

	m := Match{X: p.X, Y: p.Y, Score: score, Method: t.Kind()}
	if t.Kind() == target.KindCoordinate {
		region = nil
	}
	if bounds, err := d.bounds(region); err == nil {
		m.X, m.Y = coords.Clamp(m.X, m.Y, bounds)
	}
	d.logger.Debug("located", zap.Stringer("target", t), zap.Stringer("match", m))
	return m, true
}

// bounds is the absolute area a match may occupy: the region when given,
// else the display.
func (d *Dispatcher) bounds(region *screenshot.Region) (image.Rectangle, error) {
	if region != nil {
		return region.Rect(), nil
	}
	return d.capturer.Bounds()
}
