package hook

import (
	"testing"

	gohook "github.com/robotn/gohook"

	"github.com/Elec3137/macaway/internal/hotkey"
	"github.com/Elec3137/macaway/internal/macro"
)

func TestTranslate(t *testing.T) {
	tests := map[string]struct {
		in     gohook.Event
		want   hotkey.Event
		wantOK bool
	}{
		"key hold is the press": {
			in:     gohook.Event{Kind: gohook.KeyHold, Keycode: macro.KeyA.HookCode()},
			want:   hotkey.Event{Kind: hotkey.KeyDown, Key: macro.KeyA},
			wantOK: true,
		},
		"key up is the release": {
			in:     gohook.Event{Kind: gohook.KeyUp, Keycode: macro.KeyLeftCtrl.HookCode()},
			want:   hotkey.Event{Kind: hotkey.KeyUp, Key: macro.KeyLeftCtrl},
			wantOK: true,
		},
		"typed character is ignored": {
			in: gohook.Event{Kind: gohook.KeyDown, Keycode: macro.KeyA.HookCode(), Keychar: 'a'},
		},
		"unmapped key code": {
			in: gohook.Event{Kind: gohook.KeyHold, Keycode: 0x7FFF},
		},
		"mouse hold is the button press": {
			in:     gohook.Event{Kind: gohook.MouseHold, Button: 2},
			want:   hotkey.Event{Kind: hotkey.ButtonDown, Button: macro.ButtonRight},
			wantOK: true,
		},
		"mouse down is ignored": {
			in: gohook.Event{Kind: gohook.MouseDown, Button: 1},
		},
		"unmapped button": {
			in: gohook.Event{Kind: gohook.MouseHold, Button: 9},
		},
		"mouse move": {
			in: gohook.Event{Kind: gohook.MouseMove, X: 10, Y: 20},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := translate(tc.in)
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("translate(%+v) = %+v, %v; want %+v, %v", tc.in, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}
