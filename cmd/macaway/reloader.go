package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/Elec3137/macaway/internal/config"
	"github.com/Elec3137/macaway/internal/engine"
	"github.com/Elec3137/macaway/internal/metrics"
	"github.com/Elec3137/macaway/internal/playback"
	"github.com/Elec3137/macaway/internal/util"
)

// reloadTarget is the part of the engine a config reload may change.
type reloadTarget interface {
	SetHotkeys(engine.Hotkeys)
	SetPlaybackOptions(playback.Options)
	SetRecording(name string, autosave bool)
}

type configReloader struct {
	opts    *globalOptions
	logger  *util.Logger
	engine  reloadTarget
	metrics *metrics.Collector

	// running is the config the process was started with; sections that
	// need a restart are compared against it, not against the last reload.
	running *config.Config

	mu             sync.Mutex
	lastConfig     *config.Config
	lastSerialized []byte
}

func newConfigReloader(opts *globalOptions, logger *util.Logger, eng reloadTarget, collector *metrics.Collector, cfg *config.Config, serialized []byte) *configReloader {
	return &configReloader{
		opts:           opts,
		logger:         logger,
		engine:         eng,
		metrics:        collector,
		running:        cfg,
		lastConfig:     cfg,
		lastSerialized: append([]byte(nil), serialized...),
	}
}

// Reload re-reads the config file and applies hotkeys, playback and recording
// settings. A rejected file leaves the running settings untouched.
func (r *configReloader) Reload(reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Infof("%s, reloading config", reason)
	raw, err := os.ReadFile(r.opts.configPath)
	var cfg *config.Config
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = config.Default()
		raw = nil
	case err != nil:
		return fmt.Errorf("read config: %w", err)
	default:
		cfg, err = config.Parse(raw)
		if err != nil {
			r.logDiff(raw)
			return err
		}
	}
	applyOverrides(cfg, r.opts)
	hotkeys, err := hotkeysFrom(cfg)
	if err != nil {
		r.logDiff(raw)
		return err
	}

	r.engine.SetHotkeys(hotkeys)
	r.engine.SetPlaybackOptions(cfg.Playback.Options())
	r.engine.SetRecording(cfg.Recording.Name, cfg.Recording.Autosave)
	r.logger.SetLevel(util.ParseLogLevel(cfg.LogLevel))
	if r.metrics != nil {
		r.metrics.SetEnabled(*cfg.Metrics.Enabled)
	}
	if pending := config.RestartRequired(r.running, cfg); len(pending) > 0 {
		r.logger.Warnf("changes to %s take effect after a restart", strings.Join(pending, ", "))
	}

	r.lastConfig = cfg
	r.lastSerialized = append([]byte(nil), raw...)
	r.logger.Infof("config reloaded: start=%s stop=%s exit=%s", hotkeys.Start, hotkeys.Stop, hotkeys.Exit)
	return nil
}

func (r *configReloader) logDiff(current []byte) {
	diff := config.DiffSerialized(r.lastSerialized, current)
	if diff == "" {
		r.logger.Warnf("config change rejected; unable to compute diff vs last valid config")
		return
	}
	r.logger.Warnf("config change rejected; diff vs last valid config:\n%s", diff)
}
