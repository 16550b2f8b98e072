package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Elec3137/macaway/internal/config"
	"github.com/Elec3137/macaway/internal/engine"
	"github.com/Elec3137/macaway/internal/hotkey"
	"github.com/Elec3137/macaway/internal/hotkey/evdev"
	"github.com/Elec3137/macaway/internal/hotkey/hook"
	"github.com/Elec3137/macaway/internal/ipc"
	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/metrics"
	"github.com/Elec3137/macaway/internal/picker"
	"github.com/Elec3137/macaway/internal/synth"
	"github.com/Elec3137/macaway/internal/util"
)

// app bundles everything a macaway command needs.
type app struct {
	opts    *globalOptions
	cfg     *config.Config
	raw     []byte
	logger  *util.Logger
	reg     *hotkey.Registry
	store   *macro.Store
	metrics *metrics.Collector
	engine  *engine.Engine
	daemon  *synth.Daemon
}

// loadConfig reads the config file, keeping the raw bytes for reload diffs. A
// missing file yields the defaults.
func loadConfig(path string) (*config.Config, []byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	return cfg, raw, nil
}

// applyOverrides folds command-line flags into cfg.
func applyOverrides(cfg *config.Config, opts *globalOptions) {
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.dryRun {
		cfg.Synth.Backend = synth.BackendDryRun
		cfg.Synth.Mover = synth.MoverYdotool
	}
	if opts.repeat > 0 {
		cfg.Playback.Repeat = opts.repeat
	}
}

func newApp(opts *globalOptions) (*app, error) {
	cfg, raw, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyOverrides(cfg, opts)
	logger := util.NewLogger(util.ParseLogLevel(cfg.LogLevel))
	if raw == nil {
		logger.Debugf("no config at %s, using defaults", opts.configPath)
	}

	hotkeys, err := hotkeysFrom(cfg)
	if err != nil {
		return nil, err
	}
	synthesizer, daemon, err := synth.Build(synthOptions(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("configure input synthesis: %w", err)
	}
	if daemon != nil {
		daemon.ReadyTimeout = cfg.Synth.ReadyTimeout()
	}

	a := &app{
		opts:    opts,
		cfg:     cfg,
		raw:     raw,
		logger:  logger,
		reg:     hotkey.NewRegistry(logger.With("component", "hotkeys")),
		store:   macro.NewStore(cfg.Recording.Dir),
		metrics: metrics.NewCollector(*cfg.Metrics.Enabled),
		daemon:  daemon,
	}
	a.engine = engine.New(a.reg, newResolver(cfg), synthesizer, a.store, logger, a.metrics, engine.Options{
		Hotkeys:   hotkeys,
		Playback:  cfg.Playback.Options(),
		MacroName: cfg.Recording.Name,
		Autosave:  cfg.Recording.Autosave,
	})
	logger.Debugf("synth backend %s, cursor mover %s, picker %s (scale %g)",
		cfg.Synth.Backend, cfg.Synth.Mover, cfg.Picker.Strategy, cfg.Picker.Scale)
	return a, nil
}

func hotkeysFrom(cfg *config.Config) (engine.Hotkeys, error) {
	start, stop, exit, err := cfg.Hotkeys.Keys()
	if err != nil {
		return engine.Hotkeys{}, err
	}
	return engine.Hotkeys{Start: start, Stop: stop, Exit: exit}, nil
}

func synthOptions(cfg *config.Config) synth.Options {
	return synth.Options{
		Backend:       cfg.Synth.Backend,
		Mover:         cfg.Synth.Mover,
		YdotoolBinary: cfg.Synth.Ydotool,
		DaemonBinary:  cfg.Synth.Ydotoold,
		Socket:        cfg.Synth.Socket,
		ManageDaemon:  *cfg.Synth.ManageDaemon,
		Dispatch:      ipc.DispatchStrategy(cfg.Synth.Dispatch),
	}
}

func newResolver(cfg *config.Config) picker.Resolver {
	if cfg.Picker.Strategy == config.PickerHyprctl {
		return &picker.Cursor{Source: ipc.NewClient(), Scale: cfg.Picker.Scale}
	}
	s := picker.NewSlurp(cfg.Picker.Scale, cfg.Picker.Env)
	s.Binary = cfg.Picker.Binary
	s.Args = append([]string(nil), cfg.Picker.Args...)
	return s
}

// startDaemon brings up ydotoold when it is managed.
func (a *app) startDaemon(ctx context.Context) error {
	if a.daemon == nil {
		return nil
	}
	if err := a.daemon.Start(ctx); err != nil {
		return fmt.Errorf("start ydotoold: %w", err)
	}
	return nil
}

// listen feeds global input into the registry until ctx is done. Failures are
// reported on errs.
func (a *app) listen(ctx context.Context, errs chan<- error) {
	src := newSource(a.cfg.Listener, a.logger.With("component", "listener"))
	go func() {
		err := a.reg.Run(ctx, src)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("event stream closed")
		}
		errs <- fmt.Errorf("global input listener: %w", err)
	}()
}

// newSource builds the global input source. evdev sees input whatever window
// has focus; gohook only sees X11 and XWayland clients.
func newSource(cfg config.ListenerConfig, logger *util.Logger) hotkey.Source {
	if cfg.Backend == config.ListenerGohook {
		return &hook.Source{Logger: logger}
	}
	return &evdev.Source{Logger: logger, Devices: cfg.Devices}
}

func (a *app) Close() {
	a.reg.UnbindAll()
	if a.daemon != nil {
		a.daemon.Stop()
	}
}
