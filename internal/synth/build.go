package synth

import (
	"fmt"

	"github.com/Elec3137/macaway/internal/ipc"
	"github.com/Elec3137/macaway/internal/playback"
	"github.com/Elec3137/macaway/internal/util"
)

// Backend names.
const (
	BackendYdotool = "ydotool"
	BackendRobotgo = "robotgo"
	BackendDryRun  = "dryrun"

	MoverYdotool  = "ydotool"
	MoverHyprland = "hyprland"
)

// Options selects and configures a synthesizer.
type Options struct {
	Backend       string
	Mover         string
	YdotoolBinary string
	DaemonBinary  string
	Socket        string
	// ManageDaemon starts ydotoold when it is not already running.
	ManageDaemon bool
	Dispatch     ipc.DispatchStrategy
}

// Build returns the synthesizer described by opts. The returned daemon is
// nil unless ydotoold has to be managed; callers Start it before playback and
// Stop it on shutdown.
func Build(opts Options, logger *util.Logger) (playback.Synthesizer, *Daemon, error) {
	switch opts.Backend {
	case BackendDryRun:
		return DryRun{Logger: logger}, nil, nil
	case BackendRobotgo:
		return Robotgo{}, nil, nil
	case BackendYdotool, "":
	default:
		return nil, nil, fmt.Errorf("unknown synth backend %q", opts.Backend)
	}

	socket := opts.Socket
	if socket == "" {
		socket = DefaultSocket()
	}
	var synth playback.Synthesizer = NewYdotool(opts.YdotoolBinary, socket)
	switch opts.Mover {
	case MoverYdotool, "":
	case MoverHyprland:
		strategy := opts.Dispatch
		if strategy == "" {
			strategy = ipc.DispatchStrategySocket
		}
		cursor, used, err := ipc.NewCursorClient(logger, strategy)
		if err != nil {
			return nil, nil, fmt.Errorf("hyprland mover: %w", err)
		}
		if logger != nil {
			logger.Debugf("moving the cursor through hyprland %s dispatch", used)
		}
		synth = &HyprlandMover{Synthesizer: synth, Cursor: cursor}
	default:
		return nil, nil, fmt.Errorf("unknown cursor mover %q", opts.Mover)
	}

	var daemon *Daemon
	if opts.ManageDaemon {
		daemon = NewDaemon(opts.DaemonBinary, socket, logger)
	}
	return synth, daemon, nil
}
