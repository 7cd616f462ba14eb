// Package sequencer runs ordered steps with bounded retries, optional
// post-condition checks and a per-step abort policy.
package sequencer

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"screen-control/src/actuator"
	"screen-control/src/config"
	"screen-control/src/locator"
	"screen-control/src/logutil"
	"screen-control/src/result"
	"screen-control/src/screenshot"
	"screen-control/src/target"
)

type Locator interface {
	LocateWithUnits(raw string, method target.Method, units *target.Units, region *screenshot.Region) (locator.Match, bool)
}

type Actuator interface {
	Click(x, y int, button actuator.Button, clicks int, interval time.Duration) error
	Drag(sx, sy, ex, ey int, duration time.Duration) error
}

type Deps struct {
	Locator  Locator
	Actuator Actuator
	Capturer screenshot.Capturer
	Logger   *zap.Logger
}

// Runner owns the history of everything it ran. It is not safe for
// concurrent use.
type Runner struct {
	cfg      config.EngineConfig
	locator  Locator
	actuator Actuator
	capturer screenshot.Capturer
	logger   *zap.Logger
	sleep    func(time.Duration)
	now      func() time.Time
	history  []result.Result
}

type Option func(*Runner)

// WithClock replaces time.Sleep and time.Now.
func WithClock(sleep func(time.Duration), now func() time.Time) Option {
	return func(r *Runner) {
		r.sleep = sleep
		r.now = now
	}
}

func New(cfg config.EngineConfig, deps Deps, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		locator:  deps.Locator,
		actuator: deps.Actuator,
		capturer: deps.Capturer,
		logger:   logutil.OrNop(deps.Logger),
		sleep:    time.Sleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// History returns a copy of every result produced so far, step results and
// sequence aggregates alike, in order.
func (r *Runner) History() []result.Result {
	out := make([]result.Result, len(r.history))
	copy(out, r.history)
	return out
}

// RunStep executes one step and records its result.
func (r *Runner) RunStep(step Step) result.Result {
	res := r.execute(step)
	r.history = append(r.history, res)
	return res
}

// RunSequence runs steps in order. A failed step with StopOnFailure, or
// any fail-safe trip, aborts the run.
func (r *Runner) RunSequence(steps []Step) result.Result {
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID))
	logger.Info("sequence started", zap.Int("steps", len(steps)))

	results := make([]result.Result, 0, len(steps))
	var failed []int
	for i, step := range steps {
		logger.Debug("step started", zap.Int("step", i+1), zap.Stringer("action", step))
		res := r.RunStep(step)
		results = append(results, res)
		if res.Success {
			continue
		}

		if step.StopOnFailure || tripped(res) {
			logger.Warn("sequence aborted", zap.Int("step", i+1), zap.String("reason", res.Message))
			agg := result.Failed("sequence",
				fmt.Sprintf("sequence failed at step %d: %s", i+1, res.Message),
				map[string]any{
					"run_id":          runID,
					"failed_step":     i + 1,
					"completed_steps": i,
					"total_steps":     len(steps),
					"results":         results,
				})
			r.history = append(r.history, agg)
			return agg
		}
		logger.Info("step failed, continuing", zap.Int("step", i+1), zap.String("reason", res.Message))
		failed = append(failed, i+1)
	}

	msg := fmt.Sprintf("sequence completed (%d steps)", len(steps))
	if len(failed) > 0 {
		msg = fmt.Sprintf("sequence completed (%d steps, %d failed)", len(steps), len(failed))
	}
	logger.Info("sequence completed", zap.Ints("failed_steps", failed))
	agg := result.Succeeded("sequence", msg, map[string]any{
		"run_id":          runID,
		"completed_steps": len(steps),
		"total_steps":     len(steps),
		"failed_steps":    failed,
		"results":         results,
	})
	r.history = append(r.history, agg)
	return agg
}

func (r *Runner) execute(step Step) result.Result {
	switch a := step.Action.(type) {
	case Click:
		return r.retry(step, func() (map[string]any, error) { return r.click(a) })
	case Drag:
		return r.retry(step, func() (map[string]any, error) { return r.drag(a) })
	case Wait:
		d := max(0, a.Duration)
		r.sleep(d)
		return result.Succeeded("wait", fmt.Sprintf("waited %s", d), map[string]any{"seconds": d.Seconds()})
	case Verify:
		ok := r.poll(a.Target, a.Method, a.Region, orDefault(a.Timeout, DefaultVerifyTimeout))
		if !ok {
			return result.Failed("verify", fmt.Sprintf("verify %s: not found", a.Target), map[string]any{"target": a.Target})
		}
		return result.Succeeded("verify", fmt.Sprintf("verify %s: found", a.Target), map[string]any{"target": a.Target})
	case Screenshot:
		return r.screenshot(a)
	default:
		return result.Failedf("unknown", "unknown action: %v", step.Action)
	}
}

var errNotLocated = errors.New("target not located")

// retry runs attempt up to MaxRetries times. An attempt that actuates
// without error succeeds immediately unless the step has a verifier, in
// which case the verifier must also pass. A fail-safe trip ends the step at
// once.
func (r *Runner) retry(step Step, attempt func() (map[string]any, error)) result.Result {
	name := step.name()
	var lastErr error
	for n := 1; n <= r.cfg.MaxRetries; n++ {
		if step.Verifier != nil {
			step.Verifier.Before()
		}

		data, err := attempt()
		if errors.Is(err, actuator.ErrFailSafe) {
			return result.Failed(name, fmt.Sprintf("%s aborted: %v", step, err),
				map[string]any{"attempts": n, "fail_safe": true})
		}
		if err != nil {
			lastErr = err
			r.logger.Debug("attempt failed", zap.String("step", step.String()), zap.Int("attempt", n), zap.Error(err))
			continue
		}
		r.sleep(r.cfg.ActionDelay)

		data["attempts"] = n
		if step.Verifier == nil {
			return result.Succeeded(name, fmt.Sprintf("%s succeeded", step), data)
		}
		r.sleep(r.cfg.VerifyDelay)
		if step.Verifier.Verify() {
			data["verified"] = true
			return result.Succeeded(name, fmt.Sprintf("%s succeeded (verified)", step), data)
		}
		lastErr = errors.New("verification failed")
		r.logger.Debug("verification failed", zap.String("step", step.String()), zap.Int("attempt", n))
	}

	msg := fmt.Sprintf("%s failed after %d attempts", step, r.cfg.MaxRetries)
	if lastErr != nil {
		msg = fmt.Sprintf("%s: %v", msg, lastErr)
	}
	return result.Failed(name, msg, map[string]any{"attempts": r.cfg.MaxRetries})
}

func (r *Runner) click(a Click) (map[string]any, error) {
	m, ok := r.locator.LocateWithUnits(a.Target, a.Method, a.Units, a.Region)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNotLocated, a.Target)
	}
	button := a.Button
	if button == "" {
		button = actuator.Left
	}
	if err := r.actuator.Click(m.X, m.Y, button, max(1, a.Clicks), a.Interval); err != nil {
		return nil, err
	}
	return map[string]any{
		"target": a.Target,
		"x":      m.X,
		"y":      m.Y,
		"method": m.Method.String(),
		"score":  m.Score,
	}, nil
}

func (r *Runner) drag(a Drag) (map[string]any, error) {
	start, ok := r.locator.LocateWithUnits(a.Start, a.Method, a.Units, a.Region)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNotLocated, a.Start)
	}
	end, ok := r.locator.LocateWithUnits(a.End, a.Method, a.Units, a.Region)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNotLocated, a.End)
	}
	if err := r.actuator.Drag(start.X, start.Y, end.X, end.Y, orDefault(a.Duration, DefaultDragDuration)); err != nil {
		return nil, err
	}
	return map[string]any{
		"start": a.Start,
		"end":   a.End,
		"from":  []int{start.X, start.Y},
		"to":    []int{end.X, end.Y},
	}, nil
}

func (r *Runner) screenshot(a Screenshot) result.Result {
	out := a.Output
	if out == "" {
		out = DefaultScreenshotOutput
	}
	if err := screenshot.CaptureToFile(r.capturer, a.Region, out); err != nil {
		return result.Failedf("screenshot", "screenshot failed: %v", err)
	}
	abs, err := filepath.Abs(out)
	if err != nil {
		abs = out
	}
	return result.Succeeded("screenshot", fmt.Sprintf("saved to %s", abs), map[string]any{"path": abs})
}

// poll locates raw every PollInterval until found or timeout has passed.
// It always tries at least once.
func (r *Runner) poll(raw string, method target.Method, region *screenshot.Region, timeout time.Duration) bool {
	deadline := r.now().Add(timeout)
	for {
		if _, ok := r.locator.LocateWithUnits(raw, method, nil, region); ok {
			return true
		}
		if !r.now().Before(deadline) {
			return false
		}
		r.sleep(r.cfg.PollInterval)
	}
}

func tripped(res result.Result) bool {
	v, _ := res.Data["fail_safe"].(bool)
	return v
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
