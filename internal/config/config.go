package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/playback"
)

// Config is the top-level configuration document.
type Config struct {
	LogLevel  string          `yaml:"logLevel"`
	Hotkeys   HotkeyConfig    `yaml:"hotkeys"`
	Listener  ListenerConfig  `yaml:"listener"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Picker    PickerConfig    `yaml:"picker"`
	Synth     SynthConfig     `yaml:"synth"`
	Recording RecordingConfig `yaml:"recording"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// HotkeyConfig names the global hotkeys. Stop defaults to Start.
type HotkeyConfig struct {
	Start string `yaml:"start"`
	Stop  string `yaml:"stop"`
	Exit  string `yaml:"exit"`
}

// ListenerConfig selects where global input is read from.
type ListenerConfig struct {
	Backend string   `yaml:"backend"`
	Devices []string `yaml:"devices"`
}

// PlaybackConfig tunes the player.
type PlaybackConfig struct {
	Modifiers        []string `yaml:"modifiers"`
	SettleDelayMs    *int     `yaml:"settleDelayMs"`
	ReleaseHeldAtEnd *bool    `yaml:"releaseHeldAtEnd"`
	Repeat           int      `yaml:"repeat"`
}

// PickerConfig selects how click coordinates are resolved.
type PickerConfig struct {
	Strategy string            `yaml:"strategy"`
	Binary   string            `yaml:"binary"`
	Args     []string          `yaml:"args"`
	Env      map[string]string `yaml:"env"`
	Scale    float64           `yaml:"scale"`
}

// SynthConfig selects the input synthesizer.
type SynthConfig struct {
	Backend        string `yaml:"backend"`
	Mover          string `yaml:"mover"`
	Dispatch       string `yaml:"dispatch"`
	Ydotool        string `yaml:"ydotool"`
	Ydotoold       string `yaml:"ydotoold"`
	Socket         string `yaml:"socket"`
	ManageDaemon   *bool  `yaml:"manageDaemon"`
	ReadyTimeoutMs int    `yaml:"readyTimeoutMs"`
}

// RecordingConfig controls where macros are stored.
type RecordingConfig struct {
	Dir      string `yaml:"dir"`
	Autosave bool   `yaml:"autosave"`
	Name     string `yaml:"name"`
}

// MetricsConfig toggles the cycle counters.
type MetricsConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// Picker strategies.
const (
	PickerSlurp   = "slurp"
	PickerHyprctl = "hyprctl"
)

// Listener backends.
const (
	ListenerEvdev  = "evdev"
	ListenerGohook = "gohook"
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a configuration file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Hotkeys.Start == "" {
		c.Hotkeys.Start = "f1"
	}
	if c.Hotkeys.Stop == "" {
		c.Hotkeys.Stop = c.Hotkeys.Start
	}
	if c.Hotkeys.Exit == "" {
		c.Hotkeys.Exit = "f2"
	}
	if c.Listener.Backend == "" {
		c.Listener.Backend = ListenerEvdev
	}
	if c.Playback.Modifiers == nil {
		c.Playback.Modifiers = []string{"leftctrl"}
	}
	if c.Playback.SettleDelayMs == nil {
		ms := int(playback.DefaultSettleDelay / time.Millisecond)
		c.Playback.SettleDelayMs = &ms
	}
	if c.Playback.ReleaseHeldAtEnd == nil {
		c.Playback.ReleaseHeldAtEnd = boolPtr(true)
	}
	if c.Synth.Backend == "" {
		c.Synth.Backend = "ydotool"
	}
	if c.Synth.Mover == "" {
		c.Synth.Mover = "ydotool"
	}
	if c.Synth.Dispatch == "" {
		c.Synth.Dispatch = "socket"
	}
	if c.Synth.ManageDaemon == nil {
		c.Synth.ManageDaemon = boolPtr(true)
	}
	if c.Synth.ReadyTimeoutMs == 0 {
		c.Synth.ReadyTimeoutMs = 5000
	}
	if c.Picker.Strategy == "" {
		c.Picker.Strategy = PickerSlurp
	}
	if c.Picker.Binary == "" && c.Picker.Strategy == PickerSlurp {
		c.Picker.Binary = "slurp"
	}
	if c.Picker.Args == nil && c.Picker.Strategy == PickerSlurp {
		c.Picker.Args = []string{"-p"}
	}
	if c.Picker.Scale == 0 {
		// ydotool's relative move after the corner reset covers twice the
		// distance in logical pixels.
		c.Picker.Scale = 1
		if c.Synth.Backend == "ydotool" && c.Synth.Mover == "ydotool" {
			c.Picker.Scale = 0.5
		}
	}
	if c.Recording.Dir == "" {
		c.Recording.Dir = "."
	}
	if c.Recording.Name == "" {
		c.Recording.Name = macro.DefaultName
	}
	if c.Metrics.Enabled == nil {
		c.Metrics.Enabled = boolPtr(true)
	}
}

// Validate performs basic sanity checks.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown logLevel %q", c.LogLevel)
	}
	start, stop, exit, err := c.Hotkeys.Keys()
	if err != nil {
		return err
	}
	if start == exit {
		return fmt.Errorf("hotkeys.start and hotkeys.exit cannot both be %s", start)
	}
	if stop == exit {
		return fmt.Errorf("hotkeys.stop and hotkeys.exit cannot both be %s", stop)
	}
	switch c.Listener.Backend {
	case ListenerEvdev:
	case ListenerGohook:
		if len(c.Listener.Devices) > 0 {
			return fmt.Errorf("listener.devices only applies to the evdev backend")
		}
	default:
		return fmt.Errorf("unknown listener.backend %q", c.Listener.Backend)
	}
	if _, err := c.Playback.ModifierKeys(); err != nil {
		return err
	}
	if c.Playback.SettleDelayMs != nil && *c.Playback.SettleDelayMs < 0 {
		return fmt.Errorf("playback.settleDelayMs cannot be negative")
	}
	if c.Playback.Repeat < 0 {
		return fmt.Errorf("playback.repeat cannot be negative")
	}
	switch c.Picker.Strategy {
	case PickerSlurp:
		if c.Picker.Binary == "" {
			return fmt.Errorf("picker.binary cannot be empty")
		}
	case PickerHyprctl:
	default:
		return fmt.Errorf("unknown picker.strategy %q", c.Picker.Strategy)
	}
	if c.Picker.Scale < 0 {
		return fmt.Errorf("picker.scale cannot be negative")
	}
	switch c.Synth.Backend {
	case "ydotool", "robotgo", "dryrun":
	default:
		return fmt.Errorf("unknown synth.backend %q", c.Synth.Backend)
	}
	switch c.Synth.Mover {
	case "ydotool", "hyprland":
	default:
		return fmt.Errorf("unknown synth.mover %q", c.Synth.Mover)
	}
	if c.Synth.Mover == "hyprland" && c.Synth.Backend != "ydotool" {
		return fmt.Errorf("synth.mover hyprland requires the ydotool backend")
	}
	switch c.Synth.Dispatch {
	case "socket", "hyprctl":
	default:
		return fmt.Errorf("unknown synth.dispatch %q", c.Synth.Dispatch)
	}
	if c.Synth.ReadyTimeoutMs < 0 {
		return fmt.Errorf("synth.readyTimeoutMs cannot be negative")
	}
	if strings.ContainsRune(c.Recording.Name, os.PathSeparator) {
		return fmt.Errorf("recording.name must not contain a path separator")
	}
	return nil
}

// Keys resolves the configured hotkey names.
func (h HotkeyConfig) Keys() (start, stop, exit macro.Key, err error) {
	if start, err = macro.ParseKey(h.Start); err != nil {
		return 0, 0, 0, fmt.Errorf("hotkeys.start: %w", err)
	}
	stopName := h.Stop
	if stopName == "" {
		stopName = h.Start
	}
	if stop, err = macro.ParseKey(stopName); err != nil {
		return 0, 0, 0, fmt.Errorf("hotkeys.stop: %w", err)
	}
	if exit, err = macro.ParseKey(h.Exit); err != nil {
		return 0, 0, 0, fmt.Errorf("hotkeys.exit: %w", err)
	}
	return start, stop, exit, nil
}

// ModifierKeys resolves the configured modifier names.
func (p PlaybackConfig) ModifierKeys() ([]macro.Key, error) {
	keys := make([]macro.Key, 0, len(p.Modifiers))
	for _, name := range p.Modifiers {
		k, err := macro.ParseKey(name)
		if err != nil {
			return nil, fmt.Errorf("playback.modifiers: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Options converts the section into player options. The config must have
// passed Validate.
func (p PlaybackConfig) Options() playback.Options {
	mods, _ := p.ModifierKeys()
	opts := playback.Options{
		Modifiers:        mods,
		SettleDelay:      playback.DefaultSettleDelay,
		ReleaseHeldAtEnd: true,
		Repeat:           p.Repeat,
	}
	if p.SettleDelayMs != nil {
		opts.SettleDelay = time.Duration(*p.SettleDelayMs) * time.Millisecond
	}
	if p.ReleaseHeldAtEnd != nil {
		opts.ReleaseHeldAtEnd = *p.ReleaseHeldAtEnd
	}
	return opts
}

// ReadyTimeout returns the daemon readiness bound.
func (s SynthConfig) ReadyTimeout() time.Duration {
	return time.Duration(s.ReadyTimeoutMs) * time.Millisecond
}

func boolPtr(v bool) *bool { return &v }
