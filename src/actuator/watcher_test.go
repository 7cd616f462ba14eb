package actuator

import (
	"testing"
	"time"

	gohook "github.com/robotn/gohook"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

type fakeSource struct {
	events chan gohook.Event
	ended  bool
}

func (s *fakeSource) Start() chan gohook.Event { return s.events }
func (s *fakeSource) End()                     { s.ended = true }

func TestWatcherTripsOnCorner(t *testing.T) {
	defer goleak.VerifyNone(t)

	guard := NewGuard(true, func() (int, int) { return 1920, 1080 })
	src := &fakeSource{events: make(chan gohook.Event)}
	w := NewWatcher(guard, src, nil)
	w.Start()

	src.events <- gohook.Event{Kind: gohook.KeyDown, X: 0, Y: 0}
	src.events <- gohook.Event{Kind: gohook.MouseMove, X: 800, Y: 400}
	assert.False(t, guard.Tripped())

	src.events <- gohook.Event{Kind: gohook.MouseMove, X: 1919, Y: 1079}
	assert.Eventually(t, guard.Tripped, time.Second, 5*time.Millisecond)

	w.Stop()
	assert.True(t, src.ended)
}

func TestWatcherIgnoresExpectedCorner(t *testing.T) {
	defer goleak.VerifyNone(t)

	guard := NewGuard(true, func() (int, int) { return 1920, 1080 })
	guard.Expect(0, 0)
	src := &fakeSource{events: make(chan gohook.Event)}
	w := NewWatcher(guard, src, nil)
	w.Start()

	src.events <- gohook.Event{Kind: gohook.MouseMove, X: 0, Y: 0}
	src.events <- gohook.Event{Kind: gohook.MouseMove, X: 5, Y: 5}
	w.Stop()
	assert.False(t, guard.Tripped())
}

func TestWatcherLateEventForDragStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	guard := NewGuard(true, func() (int, int) { return 1920, 1080 })
	src := &fakeSource{events: make(chan gohook.Event)}
	w := NewWatcher(guard, src, nil)
	w.Start()

	// The drag has moved on before the hook reports its corner start.
	guard.Expect(0, 0)
	for _, p := range DragPath(0, 0, 400, 300, 5) {
		guard.Expect(p[0], p[1])
	}
	src.events <- gohook.Event{Kind: gohook.MouseMove, X: 0, Y: 0}
	src.events <- gohook.Event{Kind: gohook.MouseMove, X: 50, Y: 50}
	w.Stop()
	assert.False(t, guard.Tripped())
}

func TestGuardForgetsOldMoves(t *testing.T) {
	guard := NewGuard(true, func() (int, int) { return 1920, 1080 })
	guard.Expect(0, 0)
	for i := 0; i < recentMoves; i++ {
		guard.Expect(100+i, 100)
	}
	assert.ErrorIs(t, guard.Check(0, 0), ErrFailSafe)
}

func TestWatcherStopsWhenChannelCloses(t *testing.T) {
	defer goleak.VerifyNone(t)

	guard := NewGuard(true, func() (int, int) { return 1920, 1080 })
	src := &fakeSource{events: make(chan gohook.Event)}
	w := NewWatcher(guard, src, nil)
	w.Start()

	close(src.events)
	w.Stop()
	w.Stop()
	assert.False(t, guard.Tripped())
}

func TestWatcherDisabledGuard(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeSource{events: make(chan gohook.Event)}
	w := NewWatcher(NewGuard(false, func() (int, int) { return 1920, 1080 }), src, nil)
	w.Start()
	w.Stop()
	assert.False(t, src.ended)
}
