package sequencer

import (
	"image"
	"time"

	"go.uber.org/zap"

	"screen-control/src/screenshot"
	"screen-control/src/target"
	"screen-control/src/vision"
)

// Verifier checks a step's post-condition. Before runs ahead of every
// attempt so it can record the state the attempt should change.
type Verifier interface {
	Before()
	Verify() bool
}

// VerifyFunc adapts a plain predicate.
type VerifyFunc func() bool

func (VerifyFunc) Before()        {}
func (f VerifyFunc) Verify() bool { return f() }

type elementPresent struct {
	r       *Runner
	target  string
	method  target.Method
	region  *screenshot.Region
	timeout time.Duration
}

// ElementPresent verifies by polling the locator until the element appears
// or timeout passes.
func (r *Runner) ElementPresent(raw string, method target.Method, region *screenshot.Region, timeout time.Duration) Verifier {
	return &elementPresent{r: r, target: raw, method: method, region: region, timeout: timeout}
}

func (v *elementPresent) Before() {}

func (v *elementPresent) Verify() bool {
	return v.r.poll(v.target, v.method, v.region, v.timeout)
}

type screenChanged struct {
	r         *Runner
	region    *screenshot.Region
	threshold float64
	before    image.Image
}

// ScreenChanged verifies that the region's pixels differ from the capture
// taken before the attempt by more than threshold.
func (r *Runner) ScreenChanged(region *screenshot.Region, threshold float64) Verifier {
	return &screenChanged{r: r, region: region, threshold: threshold}
}

func (v *screenChanged) Before() {
	img, err := v.r.capturer.Capture(v.region)
	if err != nil {
		v.r.logger.Debug("before capture failed", zap.Error(err))
		v.before = nil
		return
	}
	v.before = img
}

func (v *screenChanged) Verify() bool {
	if v.before == nil {
		return false
	}
	after, err := v.r.capturer.Capture(v.region)
	if err != nil {
		v.r.logger.Debug("after capture failed", zap.Error(err))
		return false
	}
	changed, diff, err := vision.Changed(v.before, after, v.threshold)
	if err != nil {
		v.r.logger.Debug("compare failed", zap.Error(err))
		return false
	}
	v.r.logger.Debug("screen change", zap.Float64("difference", diff), zap.Float64("threshold", v.threshold))
	return changed
}
