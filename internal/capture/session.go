// Package capture turns the live stream of global input into an ordered
// macro.Sequence.
package capture

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Elec3137/macaway/internal/hotkey"
	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/picker"
	"github.com/Elec3137/macaway/internal/util"
)

// Options configures a recording session.
type Options struct {
	// StopKey ends the session. It is never recorded.
	StopKey macro.Key
	Logger  *util.Logger
	// OnDrop is called for every click whose coordinate could not be resolved.
	OnDrop func(err error)
}

// Session is one recording in progress.
type Session struct {
	ctx      context.Context
	reg      *hotkey.Registry
	resolver picker.Resolver
	opts     Options

	mu     sync.Mutex
	events macro.Sequence
	closed bool

	ignoreEscape atomic.Bool

	done chan struct{}
	once sync.Once
}

// Begin installs the any-key and any-button listeners on reg and starts
// recording. ctx bounds resolver invocations.
func Begin(ctx context.Context, reg *hotkey.Registry, resolver picker.Resolver, opts Options) *Session {
	s := &Session{
		ctx:      ctx,
		reg:      reg,
		resolver: resolver,
		opts:     opts,
		done:     make(chan struct{}),
	}
	reg.BindAnyButton(s.onButton)
	reg.BindAnyKey(s.onKey)
	s.debugf("recording started, stop with %s", opts.StopKey)
	return s
}

func (s *Session) onButton(b macro.Button) {
	if s.isClosed() {
		return
	}
	// A modal picker reports a cancel as an Escape press, which may arrive
	// before Resolve returns.
	if picker.IsModal(s.resolver) {
		s.ignoreEscape.Store(true)
	}
	p, err := s.resolver.Resolve(s.ctx)
	if err != nil {
		if s.opts.Logger != nil {
			s.opts.Logger.Warnf("dropping %s click: %v", b, err)
		}
		if s.opts.OnDrop != nil {
			s.opts.OnDrop(err)
		}
		return
	}
	s.append(macro.ClickEvent(b, p.X, p.Y))
}

func (s *Session) onKey(k macro.Key) {
	if k == macro.KeyEsc && s.ignoreEscape.CompareAndSwap(true, false) {
		s.debugf("suppressed escape after click resolution")
		return
	}
	if k == s.opts.StopKey {
		s.finish()
		return
	}
	s.append(macro.KeyEvent(k))
}

func (s *Session) append(ev macro.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events = append(s.events, ev)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// finish uninstalls the listeners before anything else, then closes the
// buffer and fires the completion signal.
func (s *Session) finish() {
	s.once.Do(func() {
		s.reg.UnbindAnyKey()
		s.reg.UnbindAnyButton()
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		s.debugf("recording stopped")
	})
}

// Stop ends the session as if the stop key had been pressed.
func (s *Session) Stop() {
	s.finish()
}

// Done is closed once the session has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Len reports how many events have been recorded so far.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Wait blocks until the session stops and returns the recorded events in
// arrival order. If ctx ends first the listeners are removed and ctx.Err() is
// returned.
func (s *Session) Wait(ctx context.Context) (macro.Sequence, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		s.finish()
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.Clone(), nil
}

func (s *Session) debugf(format string, args ...interface{}) {
	if s.opts.Logger != nil {
		s.opts.Logger.Debugf(format, args...)
	}
}

