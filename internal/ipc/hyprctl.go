package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/util"
)

// Dispatcher issues Hyprland dispatch commands.
type Dispatcher interface {
	Dispatch(args ...string) error
}

// Client wraps hyprctl shell-outs.
type Client struct {
	Binary string
}

// NewClient returns a hyprctl client using the binary on PATH.
func NewClient() *Client {
	return &Client{Binary: "hyprctl"}
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("hyprctl %s: %v: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// CursorPos returns the global cursor position in layout pixels.
func (c *Client) CursorPos(ctx context.Context) (macro.Point, error) {
	data, err := c.run(ctx, "-j", "cursorpos")
	if err != nil {
		return macro.Point{}, err
	}
	return parseCursorPos(data)
}

func parseCursorPos(data []byte) (macro.Point, error) {
	var payload struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return macro.Point{}, fmt.Errorf("decode cursorpos: %w", err)
	}
	if payload.X == nil || payload.Y == nil {
		return macro.Point{}, fmt.Errorf("decode cursorpos: missing coordinates in %q", strings.TrimSpace(string(data)))
	}
	return macro.Point{X: int(*payload.X), Y: int(*payload.Y)}, nil
}

// Dispatch invokes `hyprctl dispatch`.
func (c *Client) Dispatch(args ...string) error {
	ctx := context.Background()
	dispatchArgs := append([]string{"dispatch"}, args...)
	_, err := c.run(ctx, dispatchArgs...)
	return err
}

var _ Dispatcher = (*Client)(nil)

// DispatchStrategy describes how dispatch commands are issued to Hyprland.
type DispatchStrategy string

const (
	// DispatchStrategySocket uses the Hyprland command socket directly.
	DispatchStrategySocket DispatchStrategy = "socket"
	// DispatchStrategyHyprctl shells out to the hyprctl binary.
	DispatchStrategyHyprctl DispatchStrategy = "hyprctl"
)

// CursorClient moves and queries the Hyprland cursor using the requested
// dispatch strategy.
type CursorClient struct {
	*Client
	dispatcher Dispatcher
}

// Dispatch forwards dispatch requests to the active dispatcher.
func (c *CursorClient) Dispatch(args ...string) error {
	if c.dispatcher != nil {
		return c.dispatcher.Dispatch(args...)
	}
	return c.Client.Dispatch(args...)
}

// MoveCursor warps the cursor to absolute layout coordinates.
func (c *CursorClient) MoveCursor(p macro.Point) error {
	return c.Dispatch("movecursor", strconv.Itoa(p.X), strconv.Itoa(p.Y))
}

// NewCursorClient returns a client using the requested strategy when possible.
func NewCursorClient(logger *util.Logger, requested DispatchStrategy) (*CursorClient, DispatchStrategy, error) {
	base := NewClient()
	switch requested {
	case DispatchStrategySocket:
		disp, err := newSocketDispatcher()
		if err != nil {
			if logger != nil {
				logger.Warnf("falling back to hyprctl dispatch: %v", err)
			}
			return &CursorClient{Client: base}, DispatchStrategyHyprctl, nil
		}
		if logger != nil {
			logger.Debugf("using socket dispatch at %s", disp.DispatchSocketPath())
		}
		return &CursorClient{Client: base, dispatcher: disp}, DispatchStrategySocket, nil
	case DispatchStrategyHyprctl:
		return &CursorClient{Client: base}, DispatchStrategyHyprctl, nil
	default:
		return nil, "", fmt.Errorf("unknown dispatch strategy %q", requested)
	}
}

var _ Dispatcher = (*CursorClient)(nil)
