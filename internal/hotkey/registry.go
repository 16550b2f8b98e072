// Package hotkey owns the global keyboard and mouse listeners. Listeners are
// installed and removed through an explicit Registry instead of ambient
// global state. Input sources live in the evdev and hook subpackages.
package hotkey

import (
	"context"
	"sync"

	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/util"
)

// EventKind distinguishes raw input events delivered by a Source.
type EventKind uint8

const (
	KeyDown EventKind = iota + 1
	KeyUp
	ButtonDown
)

// Event is a raw global input event.
type Event struct {
	Kind   EventKind
	Key    macro.Key
	Button macro.Button
}

// Source produces global input events until ctx is cancelled. The returned
// channel is closed when the source stops.
type Source interface {
	Start(ctx context.Context) (<-chan Event, error)
}

// KeyHandler receives key presses.
type KeyHandler func(macro.Key)

// ButtonHandler receives mouse button presses.
type ButtonHandler func(macro.Button)

// QueueSize is the buffer used between sources and the dispatch goroutines.
const QueueSize = 64

// Registry routes events to bound handlers. Keyboard and mouse events are
// dispatched on separate goroutines: delivery is serial within a device class
// and concurrent across classes, so a handler blocked on a mouse click never
// stalls key delivery.
//
// Handlers are looked up when an event is dispatched, so a handler that
// unbinds listeners takes effect for the very next event.
type Registry struct {
	logger *util.Logger

	mu        sync.Mutex
	keyBinds  map[macro.Key]KeyHandler
	anyKey    KeyHandler
	anyButton ButtonHandler

	// held tracks keys currently down so autorepeat presses are dropped.
	// Only touched by the keyboard dispatch goroutine.
	held map[macro.Key]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *util.Logger) *Registry {
	return &Registry{
		logger:   logger,
		keyBinds: make(map[macro.Key]KeyHandler),
		held:     make(map[macro.Key]struct{}),
	}
}

// BindKey installs a handler for one key, replacing any previous binding.
func (r *Registry) BindKey(k macro.Key, h KeyHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keyBinds[k] = h
}

// UnbindKey removes the handler for k.
func (r *Registry) UnbindKey(k macro.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keyBinds, k)
}

// BindAnyKey installs the catch-all key listener.
func (r *Registry) BindAnyKey(h KeyHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anyKey = h
}

// UnbindAnyKey removes the catch-all key listener.
func (r *Registry) UnbindAnyKey() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anyKey = nil
}

// BindAnyButton installs the catch-all mouse button listener.
func (r *Registry) BindAnyButton(h ButtonHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anyButton = h
}

// UnbindAnyButton removes the catch-all mouse button listener.
func (r *Registry) UnbindAnyButton() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anyButton = nil
}

// UnbindAll removes every listener.
func (r *Registry) UnbindAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keyBinds = make(map[macro.Key]KeyHandler)
	r.anyKey = nil
	r.anyButton = nil
}

// Bound reports whether a handler is installed for k.
func (r *Registry) Bound(k macro.Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.keyBinds[k]
	return ok
}

// DispatchKey delivers a key press to the key binding, then to the catch-all
// listener.
func (r *Registry) DispatchKey(k macro.Key) {
	r.mu.Lock()
	bound := r.keyBinds[k]
	anyKey := r.anyKey
	r.mu.Unlock()

	if bound != nil {
		bound(k)
	}
	if anyKey != nil {
		anyKey(k)
	}
}

// DispatchButton delivers a button press to the catch-all listener.
func (r *Registry) DispatchButton(b macro.Button) {
	r.mu.Lock()
	anyButton := r.anyButton
	r.mu.Unlock()

	if anyButton != nil {
		anyButton(b)
	}
}

// Run consumes src until ctx is cancelled or the source closes.
func (r *Registry) Run(ctx context.Context, src Source) error {
	events, err := src.Start(ctx)
	if err != nil {
		return err
	}
	keys := make(chan Event, QueueSize)
	buttons := make(chan macro.Button, QueueSize)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for ev := range keys {
			r.handleKeyEvent(ev)
		}
	}()
	go func() {
		defer wg.Done()
		for b := range buttons {
			r.DispatchButton(b)
		}
	}()
	defer func() {
		close(keys)
		close(buttons)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case KeyDown, KeyUp:
				select {
				case keys <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			case ButtonDown:
				select {
				case buttons <- ev.Button:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (r *Registry) handleKeyEvent(ev Event) {
	switch ev.Kind {
	case KeyUp:
		delete(r.held, ev.Key)
	case KeyDown:
		if _, repeat := r.held[ev.Key]; repeat {
			if r.logger != nil {
				r.logger.Tracef("dropping autorepeat for %s", ev.Key)
			}
			return
		}
		r.held[ev.Key] = struct{}{}
		r.DispatchKey(ev.Key)
	}
}
