package control

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/Elec3137/macaway/internal/metrics"
)

const (
	// SocketFileName is the filename of the control socket within the runtime dir.
	SocketFileName = "control.sock"

	// SocketEnv overrides the control socket location.
	SocketEnv = "MACAWAY_CONTROL_SOCKET"

	// Action names supported by the control protocol.
	ActionStatus     = "status"
	ActionTrigger    = "trigger"
	ActionExit       = "exit"
	ActionMacrosList = "macros.list"
	ActionReload     = "reload"

	// Response statuses.
	StatusOK    = "ok"
	StatusError = "error"
)

// Request represents a control API request.
type Request struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Response represents a control API response.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// Hotkeys names the bound control keys.
type Hotkeys struct {
	Start string `json:"start"`
	Stop  string `json:"stop"`
	Exit  string `json:"exit"`
}

// Cycle is one entry of the daemon's recent recording and playback log.
type Cycle struct {
	Timestamp  time.Time `json:"timestamp"`
	Kind       string    `json:"kind"`
	Macro      string    `json:"macro"`
	Events     int       `json:"events"`
	DurationMs int64     `json:"durationMs"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// EngineStatus is the payload of the status action.
type EngineStatus struct {
	State      string           `json:"state"`
	Hotkeys    Hotkeys          `json:"hotkeys"`
	Macro      string           `json:"macro"`
	Recorded   int              `json:"recorded"`
	LastEvents int              `json:"lastEvents"`
	History    []Cycle          `json:"history,omitempty"`
	Metrics    metrics.Snapshot `json:"metrics"`
}

// TriggerResult reports the state the trigger was applied in.
type TriggerResult struct {
	State string `json:"state"`
}

// MacroInfo describes a stored macro file.
type MacroInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Modified time.Time `json:"modified"`
	Size     int64     `json:"size"`
}

// MacroList is the payload of the macros.list action.
type MacroList struct {
	Macros []MacroInfo `json:"macros"`
}

// DefaultSocketPath returns the expected location of the macaway control socket.
func DefaultSocketPath() (string, error) {
	if env := os.Getenv(SocketEnv); env != "" {
		return env, nil
	}
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
		if base == "" {
			return "", errors.New("no runtime directory available")
		}
	}
	return filepath.Join(base, "macaway", SocketFileName), nil
}
