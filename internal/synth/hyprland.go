package synth

import (
	"context"

	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/playback"
)

// CursorMover warps the cursor to absolute coordinates.
type CursorMover interface {
	MoveCursor(p macro.Point) error
}

// HyprlandMover positions the cursor with Hyprland's movecursor dispatcher
// and hands keys and buttons to the embedded synthesizer.
type HyprlandMover struct {
	playback.Synthesizer
	Cursor CursorMover
}

// MoveTo warps the cursor. Hyprland applies it before replying, so no reset
// step is needed.
func (h *HyprlandMover) MoveTo(ctx context.Context, p macro.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.Cursor.MoveCursor(p)
}

var _ playback.Synthesizer = (*HyprlandMover)(nil)
