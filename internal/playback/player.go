// Package playback replays a recorded macro.Sequence through an input
// synthesizer.
package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/util"
)

// ErrSynthesis marks a failed synthesizer call. Playback stops at the first
// one; actions already issued are not undone.
var ErrSynthesis = errors.New("input synthesis failed")

// Synthesizer issues input actions. Calls are made one at a time.
type Synthesizer interface {
	MoveTo(ctx context.Context, p macro.Point) error
	Press(ctx context.Context, k macro.Key) error
	Release(ctx context.Context, k macro.Key) error
	Click(ctx context.Context, k macro.Key) error
	ClickButton(ctx context.Context, b macro.Button) error
}

// DefaultSettleDelay is how long a move is given to land before clicking.
const DefaultSettleDelay = 100 * time.Millisecond

// Options tunes playback.
type Options struct {
	// Modifiers are pressed and held until the next non-modifier key.
	Modifiers []macro.Key
	// SettleDelay is waited after every cursor move.
	SettleDelay time.Duration
	// ReleaseHeldAtEnd releases modifiers still held when a sequence ends.
	ReleaseHeldAtEnd bool
	// Repeat plays the sequence this many times. Zero means once.
	Repeat int
}

// DefaultOptions holds left control only.
func DefaultOptions() Options {
	return Options{
		Modifiers:        []macro.Key{macro.KeyLeftCtrl},
		SettleDelay:      DefaultSettleDelay,
		ReleaseHeldAtEnd: true,
	}
}

// Player replays sequences. A Player is not safe for concurrent Play calls.
type Player struct {
	synth     Synthesizer
	logger    *util.Logger
	opts      Options
	modifiers map[macro.Key]struct{}

	wait func(ctx context.Context, d time.Duration) error
}

// NewPlayer returns a player driving synth.
func NewPlayer(synth Synthesizer, logger *util.Logger, opts Options) *Player {
	p := &Player{synth: synth, logger: logger, wait: sleep}
	p.SetOptions(opts)
	return p
}

// SetOptions replaces the playback options.
func (p *Player) SetOptions(opts Options) {
	p.opts = opts
	p.modifiers = make(map[macro.Key]struct{}, len(opts.Modifiers))
	for _, k := range opts.Modifiers {
		p.modifiers[k] = struct{}{}
	}
}

// Options returns the active options.
func (p *Player) Options() Options {
	return p.opts
}

// IsModifier reports whether k is held rather than clicked.
func (p *Player) IsModifier(k macro.Key) bool {
	_, ok := p.modifiers[k]
	return ok
}

// state is reset for every run of a sequence.
type state struct {
	held   *orderedmap.OrderedMap[macro.Key, struct{}]
	last   macro.Point
	placed bool
}

func newState() *state {
	return &state{held: orderedmap.NewOrderedMap[macro.Key, struct{}]()}
}

// Play replays seq in order. ctx is checked between events and during settle
// waits.
func (p *Player) Play(ctx context.Context, seq macro.Sequence) error {
	runs := p.opts.Repeat
	if runs < 1 {
		runs = 1
	}
	for run := 0; run < runs; run++ {
		if runs > 1 {
			p.debugf("playback run %d/%d", run+1, runs)
		}
		if err := p.playOnce(ctx, seq); err != nil {
			return err
		}
	}
	return nil
}

func (p *Player) playOnce(ctx context.Context, seq macro.Sequence) error {
	st := newState()
	for i, ev := range seq {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.step(ctx, st, ev); err != nil {
			if errors.Is(err, ErrSynthesis) {
				return fmt.Errorf("event %d (%s): %w", i, ev, err)
			}
			return err
		}
	}
	if st.held.Len() == 0 {
		return nil
	}
	if !p.opts.ReleaseHeldAtEnd {
		p.debugf("leaving %d modifier(s) held at end of sequence", st.held.Len())
		return nil
	}
	return p.releaseHeld(ctx, st)
}

func (p *Player) step(ctx context.Context, st *state, ev macro.Event) error {
	switch ev.Kind() {
	case macro.KindKey:
		k := ev.Key()
		if p.IsModifier(k) {
			if err := p.synth.Press(ctx, k); err != nil {
				return synthErr("press", k, err)
			}
			st.held.Set(k, struct{}{})
			return nil
		}
		if err := p.synth.Click(ctx, k); err != nil {
			return synthErr("click", k, err)
		}
		return p.releaseHeld(ctx, st)
	case macro.KindClick:
		at := ev.Point()
		if !st.placed || at != st.last {
			if err := p.synth.MoveTo(ctx, at); err != nil {
				return synthErr("move", at, err)
			}
			if err := p.wait(ctx, p.opts.SettleDelay); err != nil {
				return err
			}
			st.last = at
			st.placed = true
		}
		if err := p.synth.ClickButton(ctx, ev.Button()); err != nil {
			return synthErr("click", ev.Button(), err)
		}
		return nil
	}
	return fmt.Errorf("unknown event kind %d", ev.Kind())
}

func (p *Player) releaseHeld(ctx context.Context, st *state) error {
	for _, k := range st.held.Keys() {
		if err := p.synth.Release(ctx, k); err != nil {
			return synthErr("release", k, err)
		}
		st.held.Delete(k)
	}
	return nil
}

func synthErr(action string, target fmt.Stringer, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrSynthesis, action, target, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Player) debugf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debugf(format, args...)
	}
}
