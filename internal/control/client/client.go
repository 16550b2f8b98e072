package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Elec3137/macaway/internal/control"
)

const (
	// defaultTimeout is used when the caller does not provide a context deadline.
	defaultTimeout = 3 * time.Second
)

// Client talks to a running macaway daemon over its control socket.
type Client struct {
	socketPath string
}

type (
	// EngineStatus is the daemon's state, hotkeys, cycle log and counters.
	EngineStatus = control.EngineStatus
	// Cycle is one entry of the daemon's cycle log.
	Cycle = control.Cycle
	// TriggerResult reports the state a trigger was applied in.
	TriggerResult = control.TriggerResult
	// MacroList enumerates stored macros.
	MacroList = control.MacroList
	// MacroInfo describes a stored macro.
	MacroInfo = control.MacroInfo
)

// New creates a client that connects to the provided socket path. When path is
// empty, the default runtime path is used.
func New(path string) (*Client, error) {
	if path == "" {
		var err error
		path, err = control.DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}
	return &Client{socketPath: path}, nil
}

// Status retrieves the daemon's current state.
func (c *Client) Status(ctx context.Context) (EngineStatus, error) {
	var status EngineStatus
	if err := c.do(ctx, control.Request{Action: control.ActionStatus}, &status); err != nil {
		return EngineStatus{}, err
	}
	return status, nil
}

// Trigger acts like the start hotkey. During a recording it stops the capture.
func (c *Client) Trigger(ctx context.Context) (TriggerResult, error) {
	var result TriggerResult
	if err := c.do(ctx, control.Request{Action: control.ActionTrigger}, &result); err != nil {
		return TriggerResult{}, err
	}
	return result, nil
}

// Exit acts like the exit hotkey.
func (c *Client) Exit(ctx context.Context) error {
	return c.do(ctx, control.Request{Action: control.ActionExit}, nil)
}

// Macros lists the macros in the daemon's recording directory.
func (c *Client) Macros(ctx context.Context) (MacroList, error) {
	var list MacroList
	if err := c.do(ctx, control.Request{Action: control.ActionMacrosList}, &list); err != nil {
		return MacroList{}, err
	}
	return list, nil
}

// Reload asks the daemon to reload its configuration.
func (c *Client) Reload(ctx context.Context) error {
	return c.do(ctx, control.Request{Action: control.ActionReload}, nil)
}

func (c *Client) do(ctx context.Context, req control.Request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial control socket: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	var resp control.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != control.StatusOK {
		if resp.Error == "" {
			resp.Error = "unknown control error"
		}
		return errors.New(resp.Error)
	}
	if out == nil || resp.Data == nil {
		return nil
	}
	data, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
