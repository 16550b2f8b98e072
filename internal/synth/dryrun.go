package synth

import (
	"context"

	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/playback"
	"github.com/Elec3137/macaway/internal/util"
)

// DryRun logs every action instead of performing it.
type DryRun struct {
	Logger *util.Logger
}

func (d DryRun) log(format string, args ...interface{}) error {
	if d.Logger != nil {
		d.Logger.Infof("[dry-run] "+format, args...)
	}
	return nil
}

func (d DryRun) MoveTo(_ context.Context, p macro.Point) error {
	return d.log("move to %s", p)
}

func (d DryRun) Press(_ context.Context, k macro.Key) error {
	return d.log("press %s", k)
}

func (d DryRun) Release(_ context.Context, k macro.Key) error {
	return d.log("release %s", k)
}

func (d DryRun) Click(_ context.Context, k macro.Key) error {
	return d.log("click %s", k)
}

func (d DryRun) ClickButton(_ context.Context, b macro.Button) error {
	return d.log("click %s button", b)
}

var _ playback.Synthesizer = DryRun{}
