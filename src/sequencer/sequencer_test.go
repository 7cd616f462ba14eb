package sequencer

import (
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-control/src/actuator"
	"screen-control/src/config"
	"screen-control/src/locator"
	"screen-control/src/result"
	"screen-control/src/screenshot"
	"screen-control/src/target"
)

type fakeLocator struct {
	// found maps a target to the call number (1-based) from which it is
	// found; 0 means found immediately, -1 never.
	found map[string]int
	calls map[string]int
}

func newFakeLocator(found map[string]int) *fakeLocator {
	return &fakeLocator{found: found, calls: map[string]int{}}
}

func (l *fakeLocator) LocateWithUnits(raw string, _ target.Method, _ *target.Units, _ *screenshot.Region) (locator.Match, bool) {
	l.calls[raw]++
	from, ok := l.found[raw]
	if !ok || from < 0 || l.calls[raw] < from {
		return locator.Match{}, false
	}
	return locator.Match{X: 10 * len(raw), Y: 20, Score: 1, Method: target.KindText}, true
}

type fakeActuator struct {
	clicks []image.Point
	drags  [][2]image.Point
	errs   []error
}

func (a *fakeActuator) next() error {
	if len(a.errs) == 0 {
		return nil
	}
	err := a.errs[0]
	a.errs = a.errs[1:]
	return err
}

func (a *fakeActuator) Click(x, y int, _ actuator.Button, _ int, _ time.Duration) error {
	if err := a.next(); err != nil {
		return err
	}
	a.clicks = append(a.clicks, image.Pt(x, y))
	return nil
}

func (a *fakeActuator) Drag(sx, sy, ex, ey int, _ time.Duration) error {
	if err := a.next(); err != nil {
		return err
	}
	a.drags = append(a.drags, [2]image.Point{image.Pt(sx, sy), image.Pt(ex, ey)})
	return nil
}

type fakeClock struct {
	t     time.Time
	slept []time.Duration
}

func (c *fakeClock) sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
}

func (c *fakeClock) now() time.Time { return c.t }

type fixture struct {
	runner *Runner
	loc    *fakeLocator
	act    *fakeActuator
	clock  *fakeClock
}

func newFixture(found map[string]int, capturer screenshot.Capturer) *fixture {
	f := &fixture{
		loc:   newFakeLocator(found),
		act:   &fakeActuator{},
		clock: &fakeClock{t: time.Unix(0, 0)},
	}
	f.runner = New(config.DefaultEngineConfig(), Deps{
		Locator:  f.loc,
		Actuator: f.act,
		Capturer: capturer,
	}, WithClock(f.clock.sleep, f.clock.now))
	return f
}

func attempts(t *testing.T, r result.Result) int {
	t.Helper()
	n, ok := r.Int("attempts")
	require.True(t, ok, "attempts missing from %v", r.Data)
	return n
}

func TestClickSucceedsWithoutVerifier(t *testing.T) {
	f := newFixture(map[string]int{"确定": 0}, nil)

	res := f.runner.RunStep(NewStep(Click{Target: "确定"}))
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 1, attempts(t, res))
	assert.Equal(t, []image.Point{image.Pt(60, 20)}, f.act.clicks)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, f.clock.slept)
}

func TestClickRetryBound(t *testing.T) {
	for _, retries := range []int{1, 2, 3, 5} {
		f := newFixture(map[string]int{"OK": -1}, nil)
		f.runner.cfg.MaxRetries = retries

		res := f.runner.RunStep(NewStep(Click{Target: "OK"}))
		assert.False(t, res.Success)
		assert.Equal(t, retries, attempts(t, res))
		assert.Equal(t, retries, f.loc.calls["OK"])
		assert.Empty(t, f.act.clicks)
	}
}

func TestClickRetriesActuationErrors(t *testing.T) {
	f := newFixture(map[string]int{"OK": 0}, nil)
	f.act.errs = []error{actuator.ErrActuation, actuator.ErrActuation}

	res := f.runner.RunStep(NewStep(Click{Target: "OK"}))
	require.True(t, res.Success)
	assert.Equal(t, 3, attempts(t, res))
}

func TestVerifierControlsSuccess(t *testing.T) {
	f := newFixture(map[string]int{"OK": 0}, nil)
	calls := 0
	verify := VerifyFunc(func() bool {
		calls++
		return calls == 2
	})

	res := f.runner.RunStep(NewStep(Click{Target: "OK"}).WithVerifier(verify))
	require.True(t, res.Success)
	assert.Equal(t, 2, attempts(t, res))
	assert.Len(t, f.act.clicks, 2)
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond, 300 * time.Millisecond,
		500 * time.Millisecond, 300 * time.Millisecond,
	}, f.clock.slept)

	f = newFixture(map[string]int{"OK": 0}, nil)
	res = f.runner.RunStep(NewStep(Click{Target: "OK"}).WithVerifier(VerifyFunc(func() bool { return false })))
	assert.False(t, res.Success)
	assert.Equal(t, 3, attempts(t, res))
	assert.Len(t, f.act.clicks, 3)
}

func TestDragLocatesBothEnds(t *testing.T) {
	f := newFixture(map[string]int{"a": 0, "bb": 0}, nil)

	res := f.runner.RunStep(NewStep(Drag{Start: "a", End: "bb"}))
	require.True(t, res.Success)
	assert.Equal(t, [][2]image.Point{{image.Pt(10, 20), image.Pt(20, 20)}}, f.act.drags)

	f = newFixture(map[string]int{"a": 0}, nil)
	res = f.runner.RunStep(NewStep(Drag{Start: "a", End: "missing"}))
	assert.False(t, res.Success)
	assert.Empty(t, f.act.drags)
}

func TestFailSafeAbortsRegardlessOfPolicy(t *testing.T) {
	f := newFixture(map[string]int{"OK": 0}, nil)
	f.act.errs = []error{actuator.ErrFailSafe}

	res := f.runner.RunSequence([]Step{
		NewStep(Click{Target: "OK"}).ContinueOnFailure(),
		NewStep(Click{Target: "OK"}),
	})
	assert.False(t, res.Success)
	failed, _ := res.Int("failed_step")
	assert.Equal(t, 1, failed)
	require.Len(t, res.Results(), 1)
	assert.Equal(t, 1, attempts(t, res.Results()[0]))
	assert.Empty(t, f.act.clicks)
}

func TestSequenceStopsAtFailingStep(t *testing.T) {
	f := newFixture(map[string]int{"one": 0, "two": 0, "four": 0, "five": 0, "three": -1}, nil)
	steps := []Step{
		NewStep(Click{Target: "one"}),
		NewStep(Click{Target: "two"}),
		NewStep(Click{Target: "three"}),
		NewStep(Click{Target: "four"}),
		NewStep(Click{Target: "five"}),
	}

	res := f.runner.RunSequence(steps)
	assert.False(t, res.Success)
	assert.Equal(t, "sequence", res.Action)

	completed, _ := res.Int("completed_steps")
	total, _ := res.Int("total_steps")
	failed, _ := res.Int("failed_step")
	assert.Equal(t, 2, completed)
	assert.Equal(t, 5, total)
	assert.Equal(t, 3, failed)
	assert.Len(t, res.Results(), 3)
	assert.Zero(t, f.loc.calls["four"])
	assert.NotEmpty(t, res.Data["run_id"])

	history := f.runner.History()
	got := make([]string, len(history))
	for i, h := range history {
		got[i] = h.Action + ":" + h.Status()
	}
	want := []string{"click:success", "click:success", "click:failed", "sequence:failed"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestSequenceContinuesPastTolerantFailure(t *testing.T) {
	f := newFixture(map[string]int{"one": 0, "three": 0}, nil)
	steps := []Step{
		NewStep(Click{Target: "one"}),
		NewStep(Click{Target: "two"}).ContinueOnFailure(),
		NewStep(Click{Target: "three"}),
	}

	res := f.runner.RunSequence(steps)
	require.True(t, res.Success, res.Message)
	results := res.Results()
	require.Len(t, results, 3)
	assert.False(t, results[1].Success)
	assert.Equal(t, []int{2}, res.Data["failed_steps"])
	total, _ := res.Int("total_steps")
	assert.Equal(t, 3, total)
}

func TestSequenceResultCountMatchesSteps(t *testing.T) {
	for n := 0; n <= 4; n++ {
		f := newFixture(nil, nil)
		steps := make([]Step, n)
		for i := range steps {
			steps[i] = NewStep(Wait{Duration: time.Millisecond})
		}
		res := f.runner.RunSequence(steps)
		require.True(t, res.Success)
		assert.Len(t, res.Results(), n)
		assert.Len(t, f.runner.History(), n+1)
	}
}

func TestVerifyActionPolls(t *testing.T) {
	f := newFixture(map[string]int{"ready": 3}, nil)
	res := f.runner.RunStep(NewStep(Verify{Target: "ready", Timeout: 2 * time.Second}))
	require.True(t, res.Success)
	assert.Equal(t, 3, f.loc.calls["ready"])
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 200 * time.Millisecond}, f.clock.slept)

	f = newFixture(map[string]int{"ready": -1}, nil)
	res = f.runner.RunStep(NewStep(Verify{Target: "ready", Timeout: 2 * time.Second}))
	assert.False(t, res.Success)
	assert.Equal(t, 11, f.loc.calls["ready"])
}

func TestElementPresentVerifier(t *testing.T) {
	f := newFixture(map[string]int{"OK": 0, "done": 2}, nil)
	step := NewStep(Click{Target: "OK"}).WithVerifier(f.runner.ElementPresent("done", target.MethodText, nil, time.Second))

	res := f.runner.RunStep(step)
	require.True(t, res.Success)
	assert.Equal(t, 1, attempts(t, res))
	assert.Equal(t, true, res.Data["verified"])
}

// sequenceCapturer returns its frames in order, repeating the last.
type sequenceCapturer struct {
	frames []*image.RGBA
	n      int
}

func (s *sequenceCapturer) Bounds() (image.Rectangle, error) { return s.frames[0].Bounds(), nil }

func (s *sequenceCapturer) Capture(*screenshot.Region) (*image.RGBA, error) {
	i := min(s.n, len(s.frames)-1)
	s.n++
	return s.frames[i], nil
}

func solid(c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func TestScreenChangedVerifier(t *testing.T) {
	black, white := solid(color.Black), solid(color.White)

	frames := &sequenceCapturer{frames: []*image.RGBA{black, white}}
	f := newFixture(map[string]int{"OK": 0}, frames)
	res := f.runner.RunStep(NewStep(Click{Target: "OK"}).WithVerifier(f.runner.ScreenChanged(nil, 0.05)))
	require.True(t, res.Success)
	assert.Equal(t, 1, attempts(t, res))

	frames = &sequenceCapturer{frames: []*image.RGBA{black}}
	f = newFixture(map[string]int{"OK": 0}, frames)
	res = f.runner.RunStep(NewStep(Click{Target: "OK"}).WithVerifier(f.runner.ScreenChanged(nil, 0.05)))
	assert.False(t, res.Success)
	assert.Equal(t, 3, attempts(t, res))
}

func TestScreenshotAndWaitSteps(t *testing.T) {
	f := newFixture(nil, screenshot.Static{Image: solid(color.White)})
	out := filepath.Join(t.TempDir(), "shot.png")

	res := f.runner.RunStep(NewStep(Screenshot{Output: out}))
	require.True(t, res.Success, res.Message)
	_, err := os.Stat(out)
	assert.NoError(t, err)

	res = f.runner.RunStep(NewStep(Wait{Duration: 1500 * time.Millisecond}))
	assert.True(t, res.Success)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, f.clock.slept)

	res = f.runner.RunStep(Step{})
	assert.False(t, res.Success)
	assert.Equal(t, "unknown", res.Action)
}

func TestFailedResultsNeverPanic(t *testing.T) {
	f := newFixture(nil, screenshot.Static{})
	res := f.runner.RunStep(NewStep(Screenshot{Output: filepath.Join(t.TempDir(), "x.png")}))
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, screenshot.ErrNoDisplay.Error())
}
