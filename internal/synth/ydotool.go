// Package synth provides input synthesizers for playback.
package synth

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/playback"
)

// DefaultResetDelay separates ydotool's absolute reset from the relative move
// that follows it.
const DefaultResetDelay = 100 * time.Millisecond

type runFunc func(ctx context.Context, name string, args []string, env []string) error

// Ydotool drives the ydotool client. ydotoold must be running.
//
// ydotool has no reliable absolute positioning on Wayland, so MoveTo first
// pins the cursor to the top-left corner and then moves relative to it.
type Ydotool struct {
	Binary     string
	Socket     string
	ResetDelay time.Duration

	run  runFunc
	wait func(ctx context.Context, d time.Duration) error
}

// NewYdotool returns a ydotool client talking to the daemon at socket. An
// empty socket leaves ydotool's own default in place.
func NewYdotool(binary, socket string) *Ydotool {
	if binary == "" {
		binary = "ydotool"
	}
	return &Ydotool{Binary: binary, Socket: socket, ResetDelay: DefaultResetDelay}
}

func (y *Ydotool) exec(ctx context.Context, args ...string) error {
	run := y.run
	if run == nil {
		run = runYdotool
	}
	env := os.Environ()
	if y.Socket != "" {
		env = append(env, "YDOTOOL_SOCKET="+y.Socket)
	}
	return run(ctx, y.Binary, args, env)
}

func runYdotool(ctx context.Context, name string, args []string, env []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %v: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// MoveTo resets the cursor to 0,0 and moves it by p.
func (y *Ydotool) MoveTo(ctx context.Context, p macro.Point) error {
	if err := y.exec(ctx, "mousemove", "--absolute", "-x", "0", "-y", "0"); err != nil {
		return err
	}
	wait := y.wait
	if wait == nil {
		wait = sleep
	}
	if err := wait(ctx, y.ResetDelay); err != nil {
		return err
	}
	return y.exec(ctx, "mousemove", "-x", strconv.Itoa(p.X), "-y", strconv.Itoa(p.Y))
}

func (y *Ydotool) Press(ctx context.Context, k macro.Key) error {
	return y.exec(ctx, "key", keyState(k, true))
}

func (y *Ydotool) Release(ctx context.Context, k macro.Key) error {
	return y.exec(ctx, "key", keyState(k, false))
}

func (y *Ydotool) Click(ctx context.Context, k macro.Key) error {
	return y.exec(ctx, "key", keyState(k, true), keyState(k, false))
}

// ClickButton presses and releases b. 0x40 is the down flag and 0x80 the up
// flag of ydotool's click encoding.
func (y *Ydotool) ClickButton(ctx context.Context, b macro.Button) error {
	return y.exec(ctx, "click", fmt.Sprintf("0x%02X", 0xC0|int(b)))
}

func keyState(k macro.Key, down bool) string {
	state := "0"
	if down {
		state = "1"
	}
	return strconv.Itoa(int(k.Code())) + ":" + state
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ playback.Synthesizer = (*Ydotool)(nil)
