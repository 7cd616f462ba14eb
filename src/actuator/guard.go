package actuator

import (
	"sync"
	"sync/atomic"
)

// cornerTolerance is how close to a corner, in pixels, trips the guard.
const cornerTolerance = 1

// recentMoves is how many actuator moves the guard remembers. Hook events
// can arrive several drag steps after the move that caused them.
const recentMoves = 16

// Guard is the global abort trip-wire. Once tripped it stays tripped until
// Reset, and every actuation fails with ErrFailSafe.
type Guard struct {
	enabled bool
	size    func() (int, int)
	tripped atomic.Bool

	mu       sync.Mutex
	expected [recentMoves][2]int
	next     int
	count    int
}

// NewGuard returns a guard reading the screen size from size. A disabled
// guard never trips.
func NewGuard(enabled bool, size func() (int, int)) *Guard {
	return &Guard{enabled: enabled, size: size}
}

func (g *Guard) Enabled() bool { return g.enabled }

// Expect records a point the actuator is about to move the pointer to.
// Seeing the pointer at one of the recent points is not treated as a user
// move.
func (g *Guard) Expect(x, y int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expected[g.next] = [2]int{x, y}
	g.next = (g.next + 1) % recentMoves
	g.count = min(g.count+1, recentMoves)
}

func (g *Guard) expects(x, y int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := 0; i < g.count; i++ {
		if g.expected[i] == [2]int{x, y} {
			return true
		}
	}
	return false
}

// Check trips the guard if (x, y) is at a screen corner it was not sent to
// by the actuator.
func (g *Guard) Check(x, y int) error {
	if !g.enabled {
		return nil
	}
	if g.expects(x, y) {
		return g.Err()
	}
	if w, h := g.size(); AtCorner(x, y, w, h) {
		g.Trip()
	}
	return g.Err()
}

func (g *Guard) Err() error {
	if g.Tripped() {
		return ErrFailSafe
	}
	return nil
}

func (g *Guard) Trip() {
	if g.enabled {
		g.tripped.Store(true)
	}
}

func (g *Guard) Tripped() bool { return g.tripped.Load() }

func (g *Guard) Reset() { g.tripped.Store(false) }

// AtCorner reports whether (x, y) lies within the corner tolerance of any
// corner of a w×h screen.
func AtCorner(x, y, w, h int) bool {
	if w <= 0 || h <= 0 {
		return false
	}
	nearX := x <= cornerTolerance || x >= w-1-cornerTolerance
	nearY := y <= cornerTolerance || y >= h-1-cornerTolerance
	return nearX && nearY
}
