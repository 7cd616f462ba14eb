// Package actuator moves the pointer and presses buttons, aborting whenever
// the fail-safe guard has tripped.
package actuator

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"screen-control/src/logutil"
)

var (
	ErrFailSafe      = errors.New("fail-safe triggered: pointer moved to a screen corner")
	ErrInvalidButton = errors.New("invalid mouse button")
	ErrActuation     = errors.New("actuation failed")
)

type Button string

const (
	Left   Button = "left"
	Right  Button = "right"
	Middle Button = "middle"
)

func ParseButton(s string) (Button, error) {
	switch b := Button(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return Left, nil
	case Left, Right, Middle:
		return b, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidButton, s)
	}
}

// Driver is the platform input device.
type Driver interface {
	Move(x, y int) error
	Toggle(button Button, down bool) error
	Click(button Button) error
	Location() (int, int)
	ScreenSize() (int, int)
}

const dragStepInterval = 10 * time.Millisecond

type Actuator struct {
	driver Driver
	guard  *Guard
	logger *zap.Logger
	sleep  func(time.Duration)
}

type Option func(*Actuator)

func WithLogger(logger *zap.Logger) Option {
	return func(a *Actuator) { a.logger = logutil.OrNop(logger) }
}

// WithSleep replaces time.Sleep between clicks and drag steps.
func WithSleep(sleep func(time.Duration)) Option {
	return func(a *Actuator) { a.sleep = sleep }
}

func New(driver Driver, guard *Guard, opts ...Option) *Actuator {
	a := &Actuator{driver: driver, guard: guard, logger: zap.NewNop(), sleep: time.Sleep}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Actuator) Guard() *Guard { return a.guard }

// Click moves to (x, y) and clicks button clicks times, interval apart.
func (a *Actuator) Click(x, y int, button Button, clicks int, interval time.Duration) (err error) {
	defer recoverDriver(&err)

	if button, err = ParseButton(string(button)); err != nil {
		return err
	}
	if clicks < 1 {
		clicks = 1
	}
	if err := a.check(); err != nil {
		return err
	}
	if err := a.move(x, y); err != nil {
		return err
	}
	for i := 0; i < clicks; i++ {
		if i > 0 {
			a.sleep(interval)
			if err := a.check(); err != nil {
				return err
			}
		}
		if err := a.driver.Click(button); err != nil {
			return fmt.Errorf("%w: click %s: %v", ErrActuation, button, err)
		}
	}
	a.logger.Debug("clicked", zap.Int("x", x), zap.Int("y", y), zap.String("button", string(button)), zap.Int("clicks", clicks))
	return nil
}

// Drag presses the left button at the start point, follows an eased path to
// the end point over duration and releases. The release is attempted even
// when the path is interrupted.
func (a *Actuator) Drag(sx, sy, ex, ey int, duration time.Duration) (err error) {
	defer recoverDriver(&err)

	if err := a.check(); err != nil {
		return err
	}
	if err := a.move(sx, sy); err != nil {
		return err
	}
	if err := a.driver.Toggle(Left, true); err != nil {
		return fmt.Errorf("%w: press: %v", ErrActuation, err)
	}
	defer func() {
		if rerr := a.driver.Toggle(Left, false); rerr != nil && err == nil {
			err = fmt.Errorf("%w: release: %v", ErrActuation, rerr)
		}
	}()

	steps := max(1, int(duration/dragStepInterval))
	pause := duration / time.Duration(steps)
	for _, p := range DragPath(sx, sy, ex, ey, steps) {
		if err := a.check(); err != nil {
			return err
		}
		if err := a.move(p[0], p[1]); err != nil {
			return err
		}
		if pause > 0 {
			a.sleep(pause)
		}
	}
	a.logger.Debug("dragged",
		zap.Int("start_x", sx), zap.Int("start_y", sy),
		zap.Int("end_x", ex), zap.Int("end_y", ey),
		zap.Duration("duration", duration))
	return nil
}

// DragPath samples an ease-in-out cubic path from start to end in steps
// points. The last point is always the end point.
func DragPath(sx, sy, ex, ey, steps int) [][2]int {
	if steps < 1 {
		steps = 1
	}
	path := make([][2]int, 0, steps)
	for i := 1; i <= steps; i++ {
		e := easeInOutCubic(float64(i) / float64(steps))
		path = append(path, [2]int{
			sx + int(math.Round(float64(ex-sx)*e)),
			sy + int(math.Round(float64(ey-sy)*e)),
		})
	}
	return path
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func (a *Actuator) move(x, y int) error {
	if a.guard != nil {
		a.guard.Expect(x, y)
	}
	if err := a.driver.Move(x, y); err != nil {
		return fmt.Errorf("%w: move to (%d,%d): %v", ErrActuation, x, y, err)
	}
	return nil
}

// check fails once the guard has tripped, or trips it when the pointer sits
// in a corner.
func (a *Actuator) check() error {
	if a.guard == nil {
		return nil
	}
	x, y := a.driver.Location()
	return a.guard.Check(x, y)
}

func recoverDriver(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: driver panic: %v", ErrActuation, r)
	}
}
