package picker

import (
	"context"
	"fmt"

	"github.com/Elec3137/macaway/internal/macro"
)

// CursorSource reports the current global cursor position.
type CursorSource interface {
	CursorPos(ctx context.Context) (macro.Point, error)
}

// Cursor resolves a click to wherever the cursor is when the click is seen.
// It needs no user interaction, so it is not modal.
type Cursor struct {
	Source CursorSource
	Scale  float64
}

func (c *Cursor) Modal() bool { return false }

func (c *Cursor) Resolve(ctx context.Context) (macro.Point, error) {
	p, err := c.Source.CursorPos(ctx)
	if err != nil {
		return macro.Point{}, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	return Translate(p.X, p.Y, c.Scale)
}
