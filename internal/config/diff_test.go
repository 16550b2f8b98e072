package config

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDiffSerialized(t *testing.T) {
	oldData := []byte("hotkeys:\n  start: f1\n  exit: f2\n")
	newData := []byte("# tweak\nhotkeys:\n  start: f9\n\n  exit: f2\n")

	diff := DiffSerialized(oldData, newData)
	if !strings.Contains(diff, "start: f1") || !strings.Contains(diff, "start: f9") {
		t.Fatalf("expected diff to contain both start lines, got %s", diff)
	}
	if strings.Contains(diff, "tweak") {
		t.Fatalf("comments should not appear in the diff: %s", diff)
	}
}

func TestDiffSerializedIgnoresFormatting(t *testing.T) {
	oldData := []byte("logLevel: info\r\n")
	newData := []byte("\n# comment\nlogLevel: info   \n")
	if diff := DiffSerialized(oldData, newData); diff != "" {
		t.Fatalf("expected no diff, got %s", diff)
	}
}

func TestRestartRequired(t *testing.T) {
	prev := Default()
	next := Default()
	next.Hotkeys.Start = "f9"
	if got := RestartRequired(prev, next); len(got) != 0 {
		t.Fatalf("hotkeys are live settings, got %v", got)
	}
	next.Listener.Backend = ListenerGohook
	next.Picker.Strategy = PickerHyprctl
	next.Synth.Backend = "dryrun"
	next.Recording.Dir = "/tmp/macros"
	want := []string{"listener", "picker", "synth", "recording.dir"}
	if diff := cmp.Diff(want, RestartRequired(prev, next)); diff != "" {
		t.Fatalf("unexpected restart list (-want +got):\n%s", diff)
	}
	if RestartRequired(nil, next) != nil {
		t.Fatalf("expected nil without a previous config")
	}
}
