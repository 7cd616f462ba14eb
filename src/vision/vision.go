// Package vision locates reference images on screen by normalized
// cross-correlation and compares captures.
package vision

import (
	"image"
	"math"

	"go.uber.org/zap"

	"screen-control/src/logutil"
	"screen-control/src/screenshot"
)

// MatchFunc finds tmpl in src, returning its top-left corner and score.
type MatchFunc func(src, tmpl image.Image) (image.Point, float64)

type Locator struct {
	capturer screenshot.Capturer
	match    MatchFunc
	debug    bool
	debugDir string
	logger   *zap.Logger
}

type Option func(*Locator)

func WithMatcher(m MatchFunc) Option {
	return func(l *Locator) { l.match = m }
}

// WithDebug saves every capture into dir and logs every score.
func WithDebug(dir string) Option {
	return func(l *Locator) {
		l.debug = true
		l.debugDir = dir
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Locator) { l.logger = logutil.OrNop(logger) }
}

func NewLocator(c screenshot.Capturer, opts ...Option) *Locator {
	l := &Locator{capturer: c, match: MatchTemplate, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Find returns the center of the best match of the template at path when
// its score, clamped to [0,1], is at least threshold. The score is returned
// even when the match is rejected. Unreadable templates and failed captures
// are not found.
func (l *Locator) Find(path string, region *screenshot.Region, threshold float64) (image.Point, float64, bool) {
	tmpl, err := LoadTemplate(path)
	if err != nil {
		l.logger.Debug("template not loaded", zap.String("path", path), zap.Error(err))
		return image.Point{}, 0, false
	}

	img, err := l.capturer.Capture(region)
	if err != nil || img == nil {
		l.logger.Debug("capture failed", zap.Error(err))
		return image.Point{}, 0, false
	}
	if l.debug {
		screenshot.SaveDebug(img, l.debugDir, "image", l.logger)
	}

	topLeft, score := l.match(img, tmpl)
	score = clampScore(score)
	if score < threshold {
		l.logger.Debug("image below threshold",
			zap.String("path", path), zap.Float64("score", score), zap.Float64("threshold", threshold))
		return image.Point{}, score, false
	}

	tb := tmpl.Bounds()
	p := topLeft.Add(image.Pt(tb.Dx()/2, tb.Dy()/2))
	if region != nil {
		p = p.Add(image.Pt(region.X, region.Y))
	}
	l.logger.Debug("image found",
		zap.String("path", path), zap.Float64("score", score), zap.Int("x", p.X), zap.Int("y", p.Y))
	return p, score, true
}

func clampScore(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	return math.Min(s, 1)
}
