// Package clipboard copies located text and coordinates for the shell.
package clipboard

import (
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

var (
	initOnce sync.Once
	initErr  error
	writeMu  sync.Mutex
)

// Init prepares the system clipboard. It is safe to call repeatedly.
func Init() error {
	initOnce.Do(func() {
		if err := clipboard.Init(); err != nil {
			initErr = fmt.Errorf("clipboard unavailable: %w", err)
		}
	})
	return initErr
}

// Write copies text, initializing the clipboard on first use.
func Write(text string) error {
	if err := Init(); err != nil {
		return err
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// Point formats a location the way it is copied: "x,y".
func Point(x, y int) string {
	return fmt.Sprintf("%d,%d", x, y)
}
