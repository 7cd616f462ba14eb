package ocr

import (
	"fmt"
	"image"
	"sort"
	"strings"

	"go.uber.org/zap"

	"screen-control/src/logutil"
	"screen-control/src/screenshot"
)

// Token is one recognized word and its box in capture coordinates.
type Token struct {
	Text string
	Box  image.Rectangle
}

// Center returns the integer center of the token's box.
func (t Token) Center() image.Point {
	return image.Pt(t.Box.Min.X+t.Box.Dx()/2, t.Box.Min.Y+t.Box.Dy()/2)
}

// Engine turns a raster into word tokens.
type Engine interface {
	Recognize(img image.Image, langs []string) ([]Token, error)
	Text(img image.Image, langs []string) (string, error)
}

// Locator finds text on screen.
type Locator struct {
	capturer screenshot.Capturer
	engine   Engine
	langs    []string
	debug    bool
	debugDir string
	logger   *zap.Logger
}

type Option func(*Locator)

// WithDebug saves every capture into dir before recognition.
func WithDebug(dir string) Option {
	return func(l *Locator) {
		l.debug = true
		l.debugDir = dir
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Locator) { l.logger = logutil.OrNop(logger) }
}

func NewLocator(c screenshot.Capturer, e Engine, langs []string, opts ...Option) *Locator {
	l := &Locator{capturer: c, engine: e, langs: langs, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Find returns the center of the first token, in reading order, whose
// lowercase text contains the lowercase query. The point is absolute when a
// region is given. Any capture or recognition error is reported as not found.
func (l *Locator) Find(query string, region *screenshot.Region) (image.Point, bool) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return image.Point{}, false
	}

	tokens, err := l.tokens(region)
	if err != nil {
		l.logger.Debug("text locate failed", zap.String("query", logutil.SanitizeForLogging(query)), zap.Error(err))
		return image.Point{}, false
	}

	tok, ok := FirstMatch(tokens, needle)
	if !ok {
		l.logger.Debug("text not found",
			zap.String("query", logutil.SanitizeForLogging(query)),
			zap.Int("tokens", len(tokens)))
		return image.Point{}, false
	}

	p := tok.Center()
	if region != nil {
		p = p.Add(image.Pt(region.X, region.Y))
	}
	l.logger.Debug("text found",
		zap.String("query", logutil.SanitizeForLogging(query)),
		zap.String("token", logutil.SanitizeForLogging(tok.Text)),
		zap.Int("x", p.X), zap.Int("y", p.Y))
	return p, true
}

// ReadText returns all text recognized in region, trimmed.
func (l *Locator) ReadText(region *screenshot.Region) (string, error) {
	img, err := l.capture(region)
	if err != nil {
		return "", err
	}
	text, err := l.engine.Text(img, l.langs)
	if err != nil {
		return "", fmt.Errorf("ocr failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (l *Locator) tokens(region *screenshot.Region) ([]Token, error) {
	img, err := l.capture(region)
	if err != nil {
		return nil, err
	}
	tokens, err := l.engine.Recognize(img, l.langs)
	if err != nil {
		return nil, fmt.Errorf("ocr failed: %w", err)
	}
	return ReadingOrder(tokens), nil
}

func (l *Locator) capture(region *screenshot.Region) (*image.RGBA, error) {
	img, err := l.capturer.Capture(region)
	if err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty capture")
	}
	if l.debug {
		screenshot.SaveDebug(img, l.debugDir, "ocr", l.logger)
	}
	return img, nil
}

// FirstMatch scans tokens in order for a case-insensitive substring match.
func FirstMatch(tokens []Token, query string) (Token, bool) {
	needle := strings.ToLower(query)
	for _, t := range tokens {
		if strings.Contains(strings.ToLower(t.Text), needle) {
			return t, true
		}
	}
	return Token{}, false
}

// ReadingOrder sorts tokens top-to-bottom by line, then left-to-right.
// Tokens whose vertical centers fall within half a line height of a line's
// first token share that line. The input slice is not modified.
func ReadingOrder(tokens []Token) []Token {
	out := make([]Token, len(tokens))
	copy(out, tokens)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Center().Y < out[j].Center().Y
	})

	var lines [][]Token
	for _, t := range out {
		n := len(lines)
		if n > 0 {
			head := lines[n-1][0]
			half := max(head.Box.Dy(), t.Box.Dy()) / 2
			if t.Center().Y-head.Center().Y <= half {
				lines[n-1] = append(lines[n-1], t)
				continue
			}
		}
		lines = append(lines, []Token{t})
	}

	out = out[:0]
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool {
			return line[i].Box.Min.X < line[j].Box.Min.X
		})
		out = append(out, line...)
	}
	return out
}
