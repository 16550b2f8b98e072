// Package hook reads global input through libuiohook. It needs cgo and, on
// Linux, the X11 development headers; only XWayland and X11 clients are seen.
package hook

import (
	"context"

	gohook "github.com/robotn/gohook"

	"github.com/Elec3137/macaway/internal/hotkey"
	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/util"
)

// Source is a hotkey.Source backed by gohook. Only one may run at a time.
type Source struct {
	Logger *util.Logger
}

// Start installs the global hook until ctx is done.
func (s *Source) Start(ctx context.Context) (<-chan hotkey.Event, error) {
	raw := gohook.Start()
	out := make(chan hotkey.Event, hotkey.QueueSize)
	go func() {
		defer close(out)
		defer gohook.End()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-raw:
				if !ok {
					return
				}
				translated, ok := translate(ev)
				if !ok {
					s.tracef("ignoring hook event kind=%d keycode=0x%04X button=%d", ev.Kind, ev.Keycode, ev.Button)
					continue
				}
				select {
				case out <- translated:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// translate maps gohook events. gohook keeps libuiohook's numbering under
// different names: KeyHold is the physical press, KeyDown the typed
// character, MouseHold the button press.
func translate(ev gohook.Event) (hotkey.Event, bool) {
	switch ev.Kind {
	case gohook.KeyHold, gohook.KeyUp:
		k, ok := macro.KeyFromHook(ev.Keycode)
		if !ok {
			return hotkey.Event{}, false
		}
		kind := hotkey.KeyDown
		if ev.Kind == gohook.KeyUp {
			kind = hotkey.KeyUp
		}
		return hotkey.Event{Kind: kind, Key: k}, true
	case gohook.MouseHold:
		b, ok := macro.ButtonFromHook(ev.Button)
		if !ok {
			return hotkey.Event{}, false
		}
		return hotkey.Event{Kind: hotkey.ButtonDown, Button: b}, true
	}
	return hotkey.Event{}, false
}

func (s *Source) tracef(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Tracef(format, args...)
	}
}

var _ hotkey.Source = (*Source)(nil)
