package actuator

import (
	"github.com/go-vgo/robotgo"
)

// Robotgo drives the real pointer.
type Robotgo struct{}

func (Robotgo) Move(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (Robotgo) Toggle(button Button, down bool) error {
	if down {
		return robotgo.Toggle(robotgoButton(button))
	}
	return robotgo.Toggle(robotgoButton(button), "up")
}

func (Robotgo) Click(button Button) error {
	robotgo.Click(robotgoButton(button), false)
	return nil
}

// robotgoButton maps a Button onto robotgo's names. robotgo calls the
// middle button "center" and treats unknown names as left.
func robotgoButton(b Button) string {
	if b == Middle {
		return "center"
	}
	return string(b)
}

func (Robotgo) Location() (int, int) { return robotgo.Location() }

func (Robotgo) ScreenSize() (int, int) { return robotgo.GetScreenSize() }
