// Package engine is the control state machine: it arms the start and exit
// hotkeys, runs record-then-play cycles, and drives the one-shot record and
// play modes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Elec3137/macaway/internal/capture"
	"github.com/Elec3137/macaway/internal/hotkey"
	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/metrics"
	"github.com/Elec3137/macaway/internal/picker"
	"github.com/Elec3137/macaway/internal/playback"
	"github.com/Elec3137/macaway/internal/util"
)

var (
	// ErrExitRequested is returned once the exit hotkey has been pressed.
	ErrExitRequested = errors.New("exit requested")
	// ErrBusy rejects a trigger while a macro is playing.
	ErrBusy = errors.New("playback in progress")
	// ErrExited rejects requests after the engine has stopped.
	ErrExited = errors.New("engine has exited")
)

// State is the control state.
type State string

const (
	StateIdle            State = "idle"
	StateRecording       State = "recording"
	StatePlaying         State = "playing"
	StateAwaitingTrigger State = "awaiting-trigger"
	StateRunning         State = "running"
	StateExited          State = "exited"
)

// Hotkeys are the globally bound control keys.
type Hotkeys struct {
	Start macro.Key `json:"start"`
	Stop  macro.Key `json:"stop"`
	Exit  macro.Key `json:"exit"`
}

// Options configures an Engine.
type Options struct {
	Hotkeys  Hotkeys
	Playback playback.Options
	// MacroName labels interactive recordings and names autosaved files.
	MacroName string
	Autosave  bool
}

// Status is a snapshot of the engine for the control socket.
type Status struct {
	State      State            `json:"state"`
	Hotkeys    Hotkeys          `json:"hotkeys"`
	Macro      string           `json:"macro"`
	Recorded   int              `json:"recorded"`
	LastEvents int              `json:"lastEvents"`
	History    []CycleRecord    `json:"history,omitempty"`
	Metrics    metrics.Snapshot `json:"metrics"`
}

// Engine owns the listener registry for the lifetime of the process. Only one
// recording or playback runs at a time: the start and exit hotkeys are unbound
// for the duration of a cycle and bound again afterwards.
type Engine struct {
	reg      *hotkey.Registry
	resolver picker.Resolver
	player   *playback.Player
	store    *macro.Store
	logger   *util.Logger
	metrics  *metrics.Collector

	mu         sync.Mutex
	state      State
	hotkeys    Hotkeys
	armed      bool
	playOpts   playback.Options
	macroName  string
	autosave   bool
	session    *capture.Session
	lastEvents int
	history    *cycleLog

	triggers chan struct{}
	exits    chan struct{}
}

// New creates an engine. store may be nil when nothing is persisted.
func New(reg *hotkey.Registry, resolver picker.Resolver, synth playback.Synthesizer, store *macro.Store, logger *util.Logger, collector *metrics.Collector, opts Options) *Engine {
	name := opts.MacroName
	if name == "" {
		name = macro.DefaultName
	}
	return &Engine{
		reg:       reg,
		resolver:  resolver,
		player:    playback.NewPlayer(synth, logger, opts.Playback),
		store:     store,
		logger:    logger,
		metrics:   collector,
		state:     StateIdle,
		hotkeys:   opts.Hotkeys,
		playOpts:  opts.Playback,
		macroName: name,
		autosave:  opts.Autosave,
		history:   newCycleLog(historyLimit),
		triggers:  make(chan struct{}, 1),
		exits:     make(chan struct{}, 1),
	}
}

// Run is the interactive loop: every start hotkey records until the stop
// hotkey, then plays the recording back. It returns ErrExitRequested when the
// exit hotkey is pressed.
func (e *Engine) Run(ctx context.Context) error {
	e.setState(StateIdle)
	e.arm()
	defer e.disarm()
	e.announce()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.exits:
			e.logger.Infof("exit requested")
			e.setState(StateExited)
			return ErrExitRequested
		case <-e.triggers:
			if err := e.cycle(ctx); err != nil {
				return err
			}
			e.announce()
		}
	}
}

// cycle runs one record-then-play pass. Only context errors are returned;
// anything else is logged and the engine goes back to idle.
func (e *Engine) cycle(ctx context.Context) error {
	e.claim()
	name := e.currentMacroName()
	seq, err := e.record(ctx, name)
	if err != nil {
		return err
	}
	if e.autosaveEnabled() {
		if path, err := e.store.Save(name, seq, true); err != nil {
			e.logger.Errorf("autosave failed: %v", err)
		} else {
			e.logger.Infof("saved %d events to %s", len(seq), path)
		}
	}
	if err := e.play(ctx, name, seq); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Errorf("playback failed: %v", err)
	}
	e.setState(StateIdle)
	e.arm()
	return nil
}

// RecordOnce waits for the start hotkey, records one macro and saves it under
// name. Existing files are kept unless overwrite is set.
func (e *Engine) RecordOnce(ctx context.Context, name string, overwrite bool) (string, error) {
	if e.store == nil {
		return "", errors.New("no macro store configured")
	}
	if !overwrite && e.store.Exists(name) {
		return "", fmt.Errorf("%w: %s: %w", macro.ErrPersistence, e.store.Path(name), macro.ErrExists)
	}
	defer e.setState(StateExited)
	if err := e.awaitTrigger(ctx); err != nil {
		return "", err
	}
	seq, err := e.record(ctx, name)
	if err != nil {
		return "", err
	}
	e.setState(StateRunning)
	path, err := e.store.Save(name, seq, overwrite)
	if err != nil {
		return path, err
	}
	e.logger.Infof("saved %d events to %s", len(seq), path)
	return path, nil
}

// PlayOnce loads the macro stored under name and plays it once the start
// hotkey is pressed, or straight away when now is set.
func (e *Engine) PlayOnce(ctx context.Context, name string, now bool) error {
	if e.store == nil {
		return errors.New("no macro store configured")
	}
	defer e.setState(StateExited)
	e.setState(StateRunning)
	seq, err := e.store.Load(name)
	if err != nil {
		return err
	}
	e.logger.Infof("loaded %d events from %s", len(seq), e.store.Path(name))
	if !now {
		if err := e.awaitTrigger(ctx); err != nil {
			return err
		}
	}
	return e.play(ctx, name, seq)
}

func (e *Engine) awaitTrigger(ctx context.Context) error {
	e.setState(StateAwaitingTrigger)
	e.arm()
	defer e.disarm()
	h := e.currentHotkeys()
	e.logger.Infof("press %s to start, %s to quit", h.Start, h.Exit)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.exits:
		return ErrExitRequested
	case <-e.triggers:
		e.claim()
		return nil
	}
}

// claim moves the engine out of the waiting states once a trigger has been
// taken. Triggers that arrived in between are dropped, so one press starts
// exactly one cycle.
func (e *Engine) claim() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateRunning
	if e.armed {
		e.unbindLocked()
	}
	select {
	case <-e.triggers:
	default:
	}
}

func (e *Engine) record(ctx context.Context, name string) (macro.Sequence, error) {
	started := time.Now()
	e.mu.Lock()
	stop := e.hotkeys.Stop
	e.state = StateRecording
	e.session = capture.Begin(ctx, e.reg, e.resolver, capture.Options{
		StopKey: stop,
		Logger:  e.logger.With("macro", name),
		OnDrop:  func(error) { e.metrics.RecordClickDropped(name) },
	})
	session := e.session
	e.mu.Unlock()
	e.logger.Infof("recording %q, press %s to stop", name, stop)

	seq, err := session.Wait(ctx)

	e.mu.Lock()
	e.session = nil
	if err == nil {
		e.lastEvents = len(seq)
	}
	e.mu.Unlock()

	entry := CycleRecord{Timestamp: started, Kind: CycleKindRecord, Macro: name, Events: len(seq), Duration: time.Since(started), Status: CycleStatusOK}
	if err != nil {
		entry.Status = CycleStatusAborted
		entry.Error = err.Error()
		e.history.record(entry)
		return nil, err
	}
	e.history.record(entry)
	e.metrics.RecordRecording(name, len(seq))
	keys, clicks := seq.Counts()
	e.logger.Infof("recorded %d keys and %d clicks", keys, clicks)
	return seq, nil
}

func (e *Engine) play(ctx context.Context, name string, seq macro.Sequence) error {
	e.mu.Lock()
	e.state = StatePlaying
	opts := e.playOpts
	e.mu.Unlock()

	if len(seq) == 0 {
		e.logger.Infof("nothing to play")
	}
	e.player.SetOptions(opts)
	started := time.Now()
	err := e.player.Play(ctx, seq)

	entry := CycleRecord{Timestamp: started, Kind: CycleKindPlay, Macro: name, Events: len(seq), Duration: time.Since(started), Status: CycleStatusOK}
	switch {
	case err == nil:
		e.metrics.RecordPlayback(name)
	case errors.Is(err, playback.ErrSynthesis):
		e.metrics.RecordSynthError(name)
		entry.Status = CycleStatusError
		entry.Error = err.Error()
	default:
		entry.Status = CycleStatusAborted
		entry.Error = err.Error()
	}
	e.history.record(entry)
	return err
}

// Trigger acts like the start hotkey. While recording it stops the session
// like the stop hotkey.
func (e *Engine) Trigger() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateRecording:
		if e.session != nil {
			e.session.Stop()
		}
		return e.state, nil
	case StatePlaying, StateRunning:
		return e.state, ErrBusy
	case StateExited:
		return e.state, ErrExited
	}
	select {
	case e.triggers <- struct{}{}:
	default:
	}
	return e.state, nil
}

// RequestExit acts like the exit hotkey. A request made during a cycle is
// honoured once the cycle finishes.
func (e *Engine) RequestExit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateExited {
		return ErrExited
	}
	select {
	case e.exits <- struct{}{}:
	default:
	}
	return nil
}

// Status snapshots the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	st := Status{
		State:      e.state,
		Hotkeys:    e.hotkeys,
		Macro:      e.macroName,
		LastEvents: e.lastEvents,
	}
	if e.session != nil {
		st.Recorded = e.session.Len()
	}
	e.mu.Unlock()
	st.History = e.history.snapshot()
	st.Metrics = e.metrics.Snapshot()
	return st
}

// State returns the current control state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Macros lists the stored macros.
func (e *Engine) Macros() ([]macro.Info, error) {
	if e.store == nil {
		return nil, nil
	}
	return e.store.List()
}

// SetHotkeys replaces the control keys. Bound keys are swapped immediately; a
// new stop key applies from the next recording.
func (e *Engine) SetHotkeys(h Hotkeys) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hotkeys == h {
		return
	}
	if e.armed {
		e.unbindLocked()
		e.hotkeys = h
		e.bindLocked()
		return
	}
	e.hotkeys = h
}

// SetPlaybackOptions applies from the next playback.
func (e *Engine) SetPlaybackOptions(opts playback.Options) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playOpts = opts
}

// SetRecording changes the interactive macro name and autosave flag.
func (e *Engine) SetRecording(name string, autosave bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name != "" {
		e.macroName = name
	}
	e.autosave = autosave
}

func (e *Engine) arm() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.armed {
		return
	}
	e.bindLocked()
}

func (e *Engine) disarm() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.armed {
		return
	}
	e.unbindLocked()
}

func (e *Engine) bindLocked() {
	e.reg.BindKey(e.hotkeys.Start, func(macro.Key) {
		if _, err := e.Trigger(); err != nil {
			e.logger.Debugf("start hotkey ignored: %v", err)
		}
	})
	e.reg.BindKey(e.hotkeys.Exit, func(macro.Key) {
		if err := e.RequestExit(); err != nil {
			e.logger.Debugf("exit hotkey ignored: %v", err)
		}
	})
	e.armed = true
}

func (e *Engine) unbindLocked() {
	e.reg.UnbindKey(e.hotkeys.Start)
	e.reg.UnbindKey(e.hotkeys.Exit)
	e.armed = false
}

func (e *Engine) announce() {
	h := e.currentHotkeys()
	e.logger.Infof("idle: press %s to record, %s to stop recording, %s to quit", h.Start, h.Stop, h.Exit)
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}

func (e *Engine) currentHotkeys() Hotkeys {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hotkeys
}

func (e *Engine) currentMacroName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.macroName
}

func (e *Engine) autosaveEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autosave && e.store != nil
}
