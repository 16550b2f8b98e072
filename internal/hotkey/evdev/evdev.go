// Package evdev reads global input straight from the kernel's evdev devices
// under /dev/input. It sees every key and button regardless of which window,
// native Wayland or not, has focus. The user needs read access to the device
// nodes, usually through the input group.
package evdev

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	goevdev "github.com/holoplot/go-evdev"

	"github.com/Elec3137/macaway/internal/hotkey"
	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/util"
)

// DefaultGlob matches the event device nodes.
const DefaultGlob = "/dev/input/event*"

// Key event values. 2 is autorepeat.
const (
	valueRelease = 0
	valuePress   = 1
)

// ErrNoDevices is returned when no keyboard or mouse could be opened.
var ErrNoDevices = errors.New("no readable keyboard or mouse under /dev/input")

type device interface {
	ReadOne() (*goevdev.InputEvent, error)
	Close() error
	Name() (string, error)
	CapableEvents(goevdev.EvType) []goevdev.EvCode
}

// Source is a hotkey.Source over evdev devices.
type Source struct {
	Logger *util.Logger
	// Devices lists device nodes to read. Empty means every keyboard and mouse
	// matching DefaultGlob, including ones plugged in later.
	Devices []string

	pattern string
	open    func(path string) (device, error)

	mu      sync.Mutex
	readers map[string]device
	wg      sync.WaitGroup
}

// Start opens the devices and merges their events until ctx is done.
func (s *Source) Start(ctx context.Context) (<-chan hotkey.Event, error) {
	if s.open == nil {
		s.open = openDevice
	}
	if s.pattern == "" {
		s.pattern = DefaultGlob
	}
	s.readers = make(map[string]device)

	paths := s.Devices
	if len(paths) == 0 {
		found, err := filepath.Glob(s.pattern)
		if err != nil {
			return nil, fmt.Errorf("list input devices: %w", err)
		}
		paths = found
	}

	var watcher *fsnotify.Watcher
	if len(s.Devices) == 0 {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			s.logf("input hotplug disabled: %v", err)
		} else if err := w.Add(filepath.Dir(s.pattern)); err != nil {
			s.logf("input hotplug disabled: %v", err)
			w.Close()
		} else {
			watcher = w
		}
	}

	out := make(chan hotkey.Event, hotkey.QueueSize)
	for _, path := range paths {
		s.attach(ctx, path, out, len(s.Devices) > 0)
	}
	if s.count() == 0 {
		if watcher != nil {
			watcher.Close()
		}
		return nil, ErrNoDevices
	}

	go func() {
		if watcher != nil {
			s.watch(ctx, watcher, out)
			watcher.Close()
		} else {
			<-ctx.Done()
		}
		s.closeAll()
		s.wg.Wait()
		close(out)
	}()
	return out, nil
}

// attach opens path and starts reading it when it is a keyboard or mouse.
// explicit devices are read even when they do not look like one.
func (s *Source) attach(ctx context.Context, path string, out chan<- hotkey.Event, explicit bool) {
	s.mu.Lock()
	_, seen := s.readers[path]
	s.mu.Unlock()
	if seen {
		return
	}
	dev, err := s.open(path)
	if err != nil {
		s.logf("skipping %s: %v", path, err)
		return
	}
	name, _ := dev.Name()
	if !explicit && !wanted(name, dev) {
		s.tracef("skipping %s (%s): not a keyboard or mouse", path, name)
		dev.Close()
		return
	}
	s.mu.Lock()
	s.readers[path] = dev
	s.mu.Unlock()
	s.logf("reading input from %s (%s)", path, name)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.detach(path)
		s.read(ctx, path, dev, out)
	}()
}

func (s *Source) read(ctx context.Context, path string, dev device, out chan<- hotkey.Event) {
	for {
		ev, err := dev.ReadOne()
		if err != nil {
			if ctx.Err() == nil {
				s.logf("stopped reading %s: %v", path, err)
			}
			return
		}
		translated, ok := translate(ev)
		if !ok {
			continue
		}
		select {
		case out <- translated:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Source) watch(ctx context.Context, watcher *fsnotify.Watcher, out chan<- hotkey.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			if match, _ := filepath.Match(s.pattern, ev.Name); match {
				s.attach(ctx, ev.Name, out, false)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logf("input hotplug watch error: %v", err)
		}
	}
}

func (s *Source) detach(path string) {
	s.mu.Lock()
	dev, ok := s.readers[path]
	delete(s.readers, path)
	s.mu.Unlock()
	if ok {
		dev.Close()
	}
}

func (s *Source) closeAll() {
	s.mu.Lock()
	devs := make([]device, 0, len(s.readers))
	for _, dev := range s.readers {
		devs = append(devs, dev)
	}
	s.mu.Unlock()
	// Closing unblocks the pending ReadOne calls; detach drops the entries.
	for _, dev := range devs {
		dev.Close()
	}
}

func (s *Source) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readers)
}

// wanted accepts devices that report Escape or the left button, and skips
// ydotoold's virtual device so played-back input is not read back.
func wanted(name string, dev device) bool {
	if strings.Contains(strings.ToLower(name), "ydotoold") {
		return false
	}
	for _, code := range dev.CapableEvents(goevdev.EV_KEY) {
		if code == goevdev.KEY_ESC || code == goevdev.BTN_LEFT {
			return true
		}
	}
	return false
}

// translate maps an evdev event. Autorepeat is dropped, and buttons only
// report presses.
func translate(ev *goevdev.InputEvent) (hotkey.Event, bool) {
	if ev == nil || ev.Type != goevdev.EV_KEY {
		return hotkey.Event{}, false
	}
	code := uint16(ev.Code)
	if b, ok := macro.ButtonFromCode(code); ok {
		if ev.Value != valuePress {
			return hotkey.Event{}, false
		}
		return hotkey.Event{Kind: hotkey.ButtonDown, Button: b}, true
	}
	k, ok := macro.KeyFromCode(code)
	if !ok {
		return hotkey.Event{}, false
	}
	switch ev.Value {
	case valuePress:
		return hotkey.Event{Kind: hotkey.KeyDown, Key: k}, true
	case valueRelease:
		return hotkey.Event{Kind: hotkey.KeyUp, Key: k}, true
	}
	return hotkey.Event{}, false
}

func openDevice(path string) (device, error) {
	return goevdev.Open(path)
}

func (s *Source) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Debugf(format, args...)
	}
}

func (s *Source) tracef(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Tracef(format, args...)
	}
}

var _ hotkey.Source = (*Source)(nil)
