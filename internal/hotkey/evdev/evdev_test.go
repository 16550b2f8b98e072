package evdev

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goevdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Elec3137/macaway/internal/hotkey"
	"github.com/Elec3137/macaway/internal/macro"
)

type fakeDevice struct {
	name   string
	codes  []goevdev.EvCode
	events chan *goevdev.InputEvent
	once   sync.Once
	closed chan struct{}
}

func newFakeDevice(name string, codes ...goevdev.EvCode) *fakeDevice {
	return &fakeDevice{
		name:   name,
		codes:  codes,
		events: make(chan *goevdev.InputEvent, 8),
		closed: make(chan struct{}),
	}
}

func (d *fakeDevice) ReadOne() (*goevdev.InputEvent, error) {
	select {
	case ev := <-d.events:
		return ev, nil
	case <-d.closed:
		return nil, os.ErrClosed
	}
}

func (d *fakeDevice) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}

func (d *fakeDevice) Name() (string, error) { return d.name, nil }

func (d *fakeDevice) CapableEvents(t goevdev.EvType) []goevdev.EvCode {
	if t != goevdev.EV_KEY {
		return nil
	}
	return d.codes
}

func (d *fakeDevice) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

func keyEvent(code goevdev.EvCode, value int32) *goevdev.InputEvent {
	return &goevdev.InputEvent{Type: goevdev.EV_KEY, Code: code, Value: value}
}

// fakeNodes creates empty device nodes in a temp dir and serves fakes for them.
type fakeNodes struct {
	dir  string
	mu   sync.Mutex
	devs map[string]*fakeDevice
}

func newFakeNodes(t *testing.T) *fakeNodes {
	return &fakeNodes{dir: t.TempDir(), devs: make(map[string]*fakeDevice)}
}

func (n *fakeNodes) add(t *testing.T, node string, dev *fakeDevice) string {
	t.Helper()
	path := filepath.Join(n.dir, node)
	n.mu.Lock()
	n.devs[path] = dev
	n.mu.Unlock()
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	return path
}

func (n *fakeNodes) open(path string) (device, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	dev, ok := n.devs[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return dev, nil
}

func (n *fakeNodes) source() *Source {
	return &Source{pattern: filepath.Join(n.dir, "event*"), open: n.open}
}

func next(t *testing.T, events <-chan hotkey.Event) hotkey.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event stream closed early")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for an input event")
		return hotkey.Event{}
	}
}

func TestTranslate(t *testing.T) {
	tests := map[string]struct {
		in     *goevdev.InputEvent
		want   hotkey.Event
		wantOK bool
	}{
		"key press":    {in: keyEvent(goevdev.KEY_A, 1), want: hotkey.Event{Kind: hotkey.KeyDown, Key: macro.KeyA}, wantOK: true},
		"key release":  {in: keyEvent(goevdev.KEY_LEFTCTRL, 0), want: hotkey.Event{Kind: hotkey.KeyUp, Key: macro.KeyLeftCtrl}, wantOK: true},
		"autorepeat":   {in: keyEvent(goevdev.KEY_A, 2)},
		"left button":  {in: keyEvent(goevdev.BTN_LEFT, 1), want: hotkey.Event{Kind: hotkey.ButtonDown, Button: macro.ButtonLeft}, wantOK: true},
		"right button": {in: keyEvent(goevdev.BTN_RIGHT, 1), want: hotkey.Event{Kind: hotkey.ButtonDown, Button: macro.ButtonRight}, wantOK: true},
		"button up":    {in: keyEvent(goevdev.BTN_LEFT, 0)},
		"unknown code": {in: keyEvent(goevdev.KEY_PROG1, 1)},
		"touch":        {in: keyEvent(goevdev.BTN_TOUCH, 1)},
		"relative":     {in: &goevdev.InputEvent{Type: goevdev.EV_REL, Code: goevdev.REL_X, Value: 4}},
		"sync":         {in: &goevdev.InputEvent{Type: goevdev.EV_SYN}},
		"nil":          {},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := translate(tc.in)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStartReadsKeyboardsAndMice(t *testing.T) {
	nodes := newFakeNodes(t)
	keyboard := newFakeDevice("AT Translated Set 2 keyboard", goevdev.KEY_ESC, goevdev.KEY_A)
	virtual := newFakeDevice("ydotoold virtual device", goevdev.KEY_ESC, goevdev.BTN_LEFT)
	sensor := newFakeDevice("Lid Switch")
	nodes.add(t, "event0", keyboard)
	nodes.add(t, "event1", virtual)
	nodes.add(t, "event2", sensor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := nodes.source().Start(ctx)
	require.NoError(t, err)
	assert.True(t, virtual.isClosed(), "ydotoold's device must not be read")
	assert.True(t, sensor.isClosed(), "devices without keys must not be read")

	keyboard.events <- keyEvent(goevdev.KEY_A, 1)
	keyboard.events <- keyEvent(goevdev.KEY_A, 2)
	keyboard.events <- keyEvent(goevdev.KEY_A, 0)
	assert.Equal(t, hotkey.Event{Kind: hotkey.KeyDown, Key: macro.KeyA}, next(t, events))
	assert.Equal(t, hotkey.Event{Kind: hotkey.KeyUp, Key: macro.KeyA}, next(t, events))

	mouse := newFakeDevice("Logitech USB Receiver", goevdev.BTN_LEFT, goevdev.BTN_RIGHT)
	nodes.add(t, "event7", mouse)
	require.Eventually(t, func() bool {
		select {
		case mouse.events <- keyEvent(goevdev.BTN_RIGHT, 1):
		default:
		}
		select {
		case ev := <-events:
			return ev == hotkey.Event{Kind: hotkey.ButtonDown, Button: macro.ButtonRight}
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "hotplugged mouse was never read")

	cancel()
	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-events:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 10*time.Millisecond, "event stream not closed after cancel")
	assert.True(t, keyboard.isClosed())
	assert.True(t, mouse.isClosed())
}

func TestStartExplicitDevices(t *testing.T) {
	nodes := newFakeNodes(t)
	pad := newFakeDevice("macro pad")
	path := nodes.add(t, "pad", pad)

	src := nodes.source()
	src.Devices = []string{path}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := src.Start(ctx)
	require.NoError(t, err)

	pad.events <- keyEvent(goevdev.KEY_F1, 1)
	assert.Equal(t, hotkey.Event{Kind: hotkey.KeyDown, Key: macro.KeyF1}, next(t, events))
}

func TestStartWithoutDevices(t *testing.T) {
	nodes := newFakeNodes(t)
	nodes.add(t, "event0", newFakeDevice("Power Button"))

	_, err := nodes.source().Start(context.Background())
	assert.True(t, errors.Is(err, ErrNoDevices), "got %v", err)
}
