package hotkey

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Elec3137/macaway/internal/macro"
)

type chanSource struct {
	ch chan Event
}

func newChanSource() *chanSource {
	return &chanSource{ch: make(chan Event, 16)}
}

func (s *chanSource) Start(context.Context) (<-chan Event, error) {
	return s.ch, nil
}

type keyLog struct {
	mu   sync.Mutex
	keys []macro.Key
}

func (l *keyLog) add(k macro.Key) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, k)
}

func (l *keyLog) snapshot() []macro.Key {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]macro.Key(nil), l.keys...)
}

func TestDispatchKeyRunsBindingThenCatchAll(t *testing.T) {
	reg := NewRegistry(nil)
	var order []string
	reg.BindKey(macro.KeyF1, func(macro.Key) { order = append(order, "bound") })
	reg.BindAnyKey(func(macro.Key) { order = append(order, "any") })

	reg.DispatchKey(macro.KeyF1)
	reg.DispatchKey(macro.KeyA)

	want := []string{"bound", "any", "any"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestUnbindFromHandlerAppliesToNextEvent(t *testing.T) {
	reg := NewRegistry(nil)
	calls := 0
	reg.BindAnyKey(func(macro.Key) {
		calls++
		reg.UnbindAnyKey()
	})
	reg.DispatchKey(macro.KeyA)
	reg.DispatchKey(macro.KeyB)
	if calls != 1 {
		t.Fatalf("expected 1 call after unbind, got %d", calls)
	}
}

func TestUnbindAll(t *testing.T) {
	reg := NewRegistry(nil)
	reg.BindKey(macro.KeyF1, func(macro.Key) { t.Fatalf("key binding still installed") })
	reg.BindAnyKey(func(macro.Key) { t.Fatalf("catch-all key still installed") })
	reg.BindAnyButton(func(macro.Button) { t.Fatalf("catch-all button still installed") })
	reg.UnbindAll()
	if reg.Bound(macro.KeyF1) {
		t.Fatalf("F1 still reported as bound")
	}
	reg.DispatchKey(macro.KeyF1)
	reg.DispatchButton(macro.ButtonLeft)
}

func TestRunDropsAutorepeat(t *testing.T) {
	reg := NewRegistry(nil)
	log := &keyLog{}
	reg.BindAnyKey(log.add)

	src := newChanSource()
	src.ch <- Event{Kind: KeyDown, Key: macro.KeyLeftCtrl}
	src.ch <- Event{Kind: KeyDown, Key: macro.KeyLeftCtrl}
	src.ch <- Event{Kind: KeyDown, Key: macro.KeyC}
	src.ch <- Event{Kind: KeyUp, Key: macro.KeyC}
	src.ch <- Event{Kind: KeyDown, Key: macro.KeyC}
	close(src.ch)

	if err := reg.Run(context.Background(), src); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := log.snapshot()
	want := []macro.Key{macro.KeyLeftCtrl, macro.KeyC, macro.KeyC}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestBlockedButtonHandlerDoesNotStallKeys(t *testing.T) {
	reg := NewRegistry(nil)
	release := make(chan struct{})
	reg.BindAnyButton(func(macro.Button) { <-release })
	keySeen := make(chan macro.Key, 1)
	reg.BindAnyKey(func(k macro.Key) { keySeen <- k })

	src := newChanSource()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx, src) }()

	src.ch <- Event{Kind: ButtonDown, Button: macro.ButtonLeft}
	src.ch <- Event{Kind: KeyDown, Key: macro.KeyEsc}

	select {
	case k := <-keySeen:
		if k != macro.KeyEsc {
			t.Fatalf("unexpected key %v", k)
		}
	case <-time.After(time.Second):
		t.Fatalf("key dispatch stalled behind blocked button handler")
	}

	close(release)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
