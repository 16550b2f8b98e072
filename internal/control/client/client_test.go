package client

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Elec3137/macaway/internal/control"
	"github.com/Elec3137/macaway/internal/metrics"
)

// startTestServer answers a single request with resp after checking its action.
func startTestServer(t *testing.T, wantAction string, resp control.Response) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "mcwc")
	if err != nil {
		t.Fatalf("temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "socket")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen on unix socket: %v", err)
	}
	go func() {
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var req control.Request
		if err := json.NewDecoder(conn).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Action != wantAction {
			t.Errorf("unexpected action %q", req.Action)
			return
		}
		if err := json.NewEncoder(conn).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}()
	return path
}

func newClient(t *testing.T, path string) *Client {
	t.Helper()
	cli, err := New(path)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return cli
}

func TestStatusSuccess(t *testing.T) {
	now := time.Now().UTC().Round(time.Second)
	path := startTestServer(t, control.ActionStatus, control.Response{Status: control.StatusOK, Data: control.EngineStatus{
		State:      "idle",
		Hotkeys:    control.Hotkeys{Start: "f1", Stop: "f1", Exit: "f2"},
		Macro:      "default",
		LastEvents: 5,
		History:    []control.Cycle{{Timestamp: now, Kind: "record", Macro: "default", Events: 5, Status: "ok"}},
		Metrics:    metrics.Snapshot{Enabled: true, Totals: metrics.Totals{Recordings: 1, EventsRecorded: 5}},
	}})
	status, err := newClient(t, path).Status(context.Background())
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.State != "idle" || status.Hotkeys.Exit != "f2" || status.LastEvents != 5 {
		t.Fatalf("unexpected status: %#v", status)
	}
	if len(status.History) != 1 || !status.History[0].Timestamp.Equal(now) {
		t.Fatalf("unexpected history: %#v", status.History)
	}
	if !status.Metrics.Enabled || status.Metrics.Totals.EventsRecorded != 5 {
		t.Fatalf("unexpected metrics: %#v", status.Metrics)
	}
}

func TestStatusError(t *testing.T) {
	path := startTestServer(t, control.ActionStatus, control.Response{Status: control.StatusError, Error: "boom"})
	_, err := newClient(t, path).Status(context.Background())
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestTrigger(t *testing.T) {
	path := startTestServer(t, control.ActionTrigger, control.Response{Status: control.StatusOK, Data: control.TriggerResult{State: "recording"}})
	result, err := newClient(t, path).Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger returned error: %v", err)
	}
	if result.State != "recording" {
		t.Fatalf("unexpected trigger result: %#v", result)
	}
}

func TestTriggerBusy(t *testing.T) {
	path := startTestServer(t, control.ActionTrigger, control.Response{Status: control.StatusError, Error: "trigger while playing: playback in progress"})
	if _, err := newClient(t, path).Trigger(context.Background()); err == nil || !strings.Contains(err.Error(), "playback in progress") {
		t.Fatalf("expected busy error, got %v", err)
	}
}

func TestExit(t *testing.T) {
	path := startTestServer(t, control.ActionExit, control.Response{Status: control.StatusOK})
	if err := newClient(t, path).Exit(context.Background()); err != nil {
		t.Fatalf("Exit returned error: %v", err)
	}
}

func TestMacros(t *testing.T) {
	path := startTestServer(t, control.ActionMacrosList, control.Response{Status: control.StatusOK, Data: control.MacroList{Macros: []control.MacroInfo{
		{Name: "build", Path: "build.json", Size: 120},
		{Name: "login", Path: "login.yaml", Size: 80},
	}}})
	list, err := newClient(t, path).Macros(context.Background())
	if err != nil {
		t.Fatalf("Macros returned error: %v", err)
	}
	if len(list.Macros) != 2 || list.Macros[1].Name != "login" {
		t.Fatalf("unexpected macro list: %#v", list)
	}
}

func TestReloadError(t *testing.T) {
	path := startTestServer(t, control.ActionReload, control.Response{Status: control.StatusError})
	err := newClient(t, path).Reload(context.Background())
	if err == nil || err.Error() != "unknown control error" {
		t.Fatalf("expected generic control error, got %v", err)
	}
}

func TestDialFailure(t *testing.T) {
	cli := newClient(t, filepath.Join(t.TempDir(), "missing.sock"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := cli.Status(ctx); err == nil || !strings.Contains(err.Error(), "dial control socket") {
		t.Fatalf("expected dial error, got %v", err)
	}
}
