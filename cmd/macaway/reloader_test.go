package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Elec3137/macaway/internal/config"
	"github.com/Elec3137/macaway/internal/engine"
	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/metrics"
	"github.com/Elec3137/macaway/internal/playback"
	"github.com/Elec3137/macaway/internal/util"
)

type recordingTarget struct {
	hotkeys  []engine.Hotkeys
	playback []playback.Options
	names    []string
	autosave bool
}

func (r *recordingTarget) SetHotkeys(h engine.Hotkeys)           { r.hotkeys = append(r.hotkeys, h) }
func (r *recordingTarget) SetPlaybackOptions(o playback.Options) { r.playback = append(r.playback, o) }
func (r *recordingTarget) SetRecording(name string, autosave bool) {
	r.names = append(r.names, name)
	r.autosave = autosave
}

func writeConfig(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func newTestReloader(t *testing.T, initial string, opts *globalOptions) (*configReloader, *recordingTarget, *bytes.Buffer, *metrics.Collector) {
	t.Helper()
	opts.configPath = filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, opts.configPath, initial)
	cfg, err := config.Parse([]byte(initial))
	if err != nil {
		t.Fatalf("parse initial config: %v", err)
	}
	applyOverrides(cfg, opts)
	var logs bytes.Buffer
	logger := util.NewLoggerWithWriter(util.LevelInfo, &logs)
	target := &recordingTarget{}
	collector := metrics.NewCollector(true)
	return newConfigReloader(opts, logger, target, collector, cfg, []byte(initial)), target, &logs, collector
}

func TestReloadAppliesLiveSettings(t *testing.T) {
	reloader, target, logs, collector := newTestReloader(t, "hotkeys:\n  start: f1\n", &globalOptions{})
	writeConfig(t, reloader.opts.configPath, `
hotkeys:
  start: f9
  stop: f10
playback:
  settleDelayMs: 20
recording:
  name: login
  autosave: true
metrics:
  enabled: false
`)
	if err := reloader.Reload("test reason"); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	want := []engine.Hotkeys{{Start: macro.KeyF9, Stop: macro.KeyF10, Exit: macro.KeyF2}}
	if diff := cmp.Diff(want, target.hotkeys); diff != "" {
		t.Fatalf("unexpected hotkeys (-want +got):\n%s", diff)
	}
	if len(target.playback) != 1 || target.playback[0].SettleDelay.Milliseconds() != 20 {
		t.Fatalf("unexpected playback options: %#v", target.playback)
	}
	if len(target.names) != 1 || target.names[0] != "login" || !target.autosave {
		t.Fatalf("unexpected recording settings: %v autosave=%v", target.names, target.autosave)
	}
	if collector.Enabled() {
		t.Fatalf("expected metrics to be disabled by reload")
	}
	out := logs.String()
	if !strings.Contains(out, "test reason, reloading config") || !strings.Contains(out, "start=f9 stop=f10 exit=f2") {
		t.Fatalf("unexpected logs: %s", out)
	}
}

func TestReloadLogsDiffOnFailureAndKeepsPreviousConfig(t *testing.T) {
	initial := "hotkeys:\n  start: f1\n  exit: f2\n"
	reloader, target, logs, _ := newTestReloader(t, initial, &globalOptions{})
	writeConfig(t, reloader.opts.configPath, "hotkeys:\n  start: f2\n  exit: f2\n")

	err := reloader.Reload("test reason")
	if err == nil || !strings.Contains(err.Error(), "hotkeys.start and hotkeys.exit") {
		t.Fatalf("expected hotkey conflict error, got %v", err)
	}
	out := logs.String()
	if !strings.Contains(out, "config change rejected; diff vs last valid config") || !strings.Contains(out, "start: f1") {
		t.Fatalf("expected diff log, got %s", out)
	}
	if len(target.hotkeys) != 0 || len(target.playback) != 0 {
		t.Fatalf("engine should not be touched on failure: %#v", target)
	}
	if !bytes.Equal(reloader.lastSerialized, []byte(initial)) {
		t.Fatalf("last valid config was replaced: %q", reloader.lastSerialized)
	}
}

func TestReloadKeepsFlagOverridesAndWarnsAboutRestart(t *testing.T) {
	opts := &globalOptions{dryRun: true, repeat: 3}
	reloader, target, logs, _ := newTestReloader(t, "synth:\n  backend: ydotool\n", opts)
	writeConfig(t, opts.configPath, "synth:\n  backend: robotgo\npicker:\n  strategy: hyprctl\n")

	if err := reloader.Reload("test"); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(target.playback) != 1 || target.playback[0].Repeat != 3 {
		t.Fatalf("expected --repeat to survive reload: %#v", target.playback)
	}
	if reloader.lastConfig.Synth.Backend != "dryrun" {
		t.Fatalf("expected --dry-run to survive reload, got %q", reloader.lastConfig.Synth.Backend)
	}
	if !strings.Contains(logs.String(), "changes to picker take effect after a restart") {
		t.Fatalf("expected restart warning, got %s", logs.String())
	}
}

func TestReloadWarnsUntilRestartSectionsMatchStartup(t *testing.T) {
	reloader, _, logs, _ := newTestReloader(t, "picker:\n  strategy: slurp\n", &globalOptions{})
	const warning = "changes to picker take effect after a restart"

	writeConfig(t, reloader.opts.configPath, "picker:\n  strategy: hyprctl\n")
	if err := reloader.Reload("first"); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	writeConfig(t, reloader.opts.configPath, "picker:\n  strategy: hyprctl\nlogLevel: debug\n")
	if err := reloader.Reload("second"); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := strings.Count(logs.String(), warning); got != 2 {
		t.Fatalf("expected the restart warning on both reloads, got %d:\n%s", got, logs.String())
	}

	logs.Reset()
	writeConfig(t, reloader.opts.configPath, "picker:\n  strategy: slurp\n")
	if err := reloader.Reload("revert"); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if strings.Contains(logs.String(), "after a restart") {
		t.Fatalf("reverting to the running config should not warn:\n%s", logs.String())
	}
}

func TestReloadMissingFileFallsBackToDefaults(t *testing.T) {
	reloader, target, _, _ := newTestReloader(t, "hotkeys:\n  start: f5\n", &globalOptions{})
	if err := os.Remove(reloader.opts.configPath); err != nil {
		t.Fatalf("remove config: %v", err)
	}
	if err := reloader.Reload("test"); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(target.hotkeys) != 1 || target.hotkeys[0].Start != macro.KeyF1 {
		t.Fatalf("expected default hotkeys, got %#v", target.hotkeys)
	}
}
