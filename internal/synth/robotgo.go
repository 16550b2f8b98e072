package synth

import (
	"context"
	"fmt"

	"github.com/go-vgo/robotgo"

	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/playback"
)

// Robotgo synthesizes input through robotgo. It needs an X11 or XWayland
// session; coordinates are absolute screen pixels.
type Robotgo struct{}

func (Robotgo) MoveTo(_ context.Context, p macro.Point) error {
	robotgo.Move(p.X, p.Y)
	return nil
}

func (Robotgo) Press(_ context.Context, k macro.Key) error {
	name, err := robotgoKey(k)
	if err != nil {
		return err
	}
	return robotgo.KeyToggle(name, "down")
}

func (Robotgo) Release(_ context.Context, k macro.Key) error {
	name, err := robotgoKey(k)
	if err != nil {
		return err
	}
	return robotgo.KeyToggle(name, "up")
}

func (Robotgo) Click(_ context.Context, k macro.Key) error {
	name, err := robotgoKey(k)
	if err != nil {
		return err
	}
	return robotgo.KeyTap(name)
}

func (Robotgo) ClickButton(_ context.Context, b macro.Button) error {
	name, err := robotgoButton(b)
	if err != nil {
		return err
	}
	robotgo.Click(name, false)
	return nil
}

func robotgoKey(k macro.Key) (string, error) {
	name := k.RobotgoName()
	if name == "" {
		return "", fmt.Errorf("key %s has no robotgo name", k)
	}
	return name, nil
}

func robotgoButton(b macro.Button) (string, error) {
	switch b {
	case macro.ButtonLeft:
		return "left", nil
	case macro.ButtonRight:
		return "right", nil
	case macro.ButtonMiddle:
		return "center", nil
	}
	return "", fmt.Errorf("button %s is not supported by robotgo", b)
}

var _ playback.Synthesizer = Robotgo{}
