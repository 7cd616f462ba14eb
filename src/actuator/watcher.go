package actuator

import (
	"sync"

	gohook "github.com/robotn/gohook"
	"go.uber.org/zap"

	"screen-control/src/logutil"
)

// EventSource delivers global input events.
type EventSource interface {
	Start() chan gohook.Event
	End()
}

type hookSource struct{}

func (hookSource) Start() chan gohook.Event { return gohook.Start() }
func (hookSource) End()                     { gohook.End() }

// Watcher trips a guard as soon as the pointer reaches a corner, even while
// the actuator is idle or sleeping between steps.
type Watcher struct {
	guard  *Guard
	source EventSource
	logger *zap.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher uses the global gohook stream when source is nil.
func NewWatcher(guard *Guard, source EventSource, logger *zap.Logger) *Watcher {
	if source == nil {
		source = hookSource{}
	}
	return &Watcher{guard: guard, source: source, logger: logutil.OrNop(logger)}
}

// Start begins watching. It is a no-op for a disabled guard.
func (w *Watcher) Start() {
	if w.stop != nil || !w.guard.Enabled() {
		return
	}
	w.stop = make(chan struct{})
	w.done = make(chan struct{})

	evChan := w.source.Start()
	if evChan == nil {
		w.logger.Warn("fail-safe watcher unavailable: hook returned nil channel")
		close(w.done)
		return
	}

	go func() {
		defer close(w.done)
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("panic in fail-safe watcher", zap.Any("panic", r))
			}
		}()

		for {
			select {
			case <-w.stop:
				return
			case ev, ok := <-evChan:
				if !ok {
					return
				}
				if ev.Kind != gohook.MouseMove && ev.Kind != gohook.MouseDrag {
					continue
				}
				if w.guard.Check(int(ev.X), int(ev.Y)) != nil {
					w.logger.Warn("fail-safe tripped", zap.Int16("x", ev.X), zap.Int16("y", ev.Y))
				}
			}
		}
	}()
}

// Stop ends the hook and waits for the watcher goroutine to exit.
func (w *Watcher) Stop() {
	if w.stop == nil {
		return
	}
	w.stopOnce.Do(func() {
		close(w.stop)
		w.source.End()
		<-w.done
	})
}
