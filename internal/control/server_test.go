package control

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Elec3137/macaway/internal/engine"
	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/util"
)

type fakeEngine struct {
	mu         sync.Mutex
	state      engine.State
	triggerErr error
	exits      int
	macros     []macro.Info
}

func (f *fakeEngine) Status() engine.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return engine.Status{
		State:    f.state,
		Hotkeys:  engine.Hotkeys{Start: macro.KeyF1, Stop: macro.KeyF1, Exit: macro.KeyF2},
		Macro:    "default",
		Recorded: 2,
		History: []engine.CycleRecord{{
			Kind:     engine.CycleKindPlay,
			Macro:    "default",
			Events:   4,
			Duration: 1500 * time.Millisecond,
			Status:   engine.CycleStatusError,
			Error:    "input synthesis failed",
		}},
	}
}

func (f *fakeEngine) Trigger() (engine.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.triggerErr
}

func (f *fakeEngine) RequestExit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exits++
	return nil
}

func (f *fakeEngine) Macros() ([]macro.Info, error) {
	return f.macros, nil
}

func newTestServer(t *testing.T, eng Engine, reload func(string) error) *Server {
	t.Helper()
	logger := util.NewLoggerWithWriter(util.LevelError, io.Discard)
	srv, err := NewServer(eng, logger, reload, filepath.Join(t.TempDir(), "control.sock"))
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	return srv
}

func roundTrip(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	var resp Response
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := json.NewEncoder(clientConn).Encode(req); err != nil {
			t.Errorf("encode request: %v", err)
			return
		}
		if err := json.NewDecoder(clientConn).Decode(&resp); err != nil {
			t.Errorf("decode response: %v", err)
		}
	}()
	srv.handle(serverConn)
	wg.Wait()
	return resp
}

func decodeData(t *testing.T, resp Response, out any) {
	t.Helper()
	data, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{state: engine.StateRecording}, nil)
	resp := roundTrip(t, srv, Request{Action: ActionStatus})
	if resp.Status != StatusOK {
		t.Fatalf("expected ok, got %s (%s)", resp.Status, resp.Error)
	}
	var status EngineStatus
	decodeData(t, resp, &status)
	if status.State != "recording" || status.Recorded != 2 {
		t.Fatalf("unexpected status: %#v", status)
	}
	if diff := cmp.Diff(Hotkeys{Start: "f1", Stop: "f1", Exit: "f2"}, status.Hotkeys); diff != "" {
		t.Fatalf("unexpected hotkeys (-want +got):\n%s", diff)
	}
	if len(status.History) != 1 || status.History[0].DurationMs != 1500 || status.History[0].Status != "error" {
		t.Fatalf("unexpected history: %#v", status.History)
	}
}

func TestHandleTrigger(t *testing.T) {
	eng := &fakeEngine{state: engine.StateIdle}
	srv := newTestServer(t, eng, nil)
	resp := roundTrip(t, srv, Request{Action: ActionTrigger})
	var result TriggerResult
	decodeData(t, resp, &result)
	if resp.Status != StatusOK || result.State != "idle" {
		t.Fatalf("unexpected trigger response: %#v", resp)
	}

	eng.state = engine.StatePlaying
	eng.triggerErr = engine.ErrBusy
	resp = roundTrip(t, srv, Request{Action: ActionTrigger})
	if resp.Status != StatusError || resp.Error != "trigger while playing: playback in progress" {
		t.Fatalf("unexpected busy response: %#v", resp)
	}
}

func TestHandleExit(t *testing.T) {
	eng := &fakeEngine{}
	srv := newTestServer(t, eng, nil)
	if resp := roundTrip(t, srv, Request{Action: ActionExit}); resp.Status != StatusOK {
		t.Fatalf("unexpected exit response: %#v", resp)
	}
	if eng.exits != 1 {
		t.Fatalf("expected one exit request, got %d", eng.exits)
	}
}

func TestHandleMacrosList(t *testing.T) {
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	eng := &fakeEngine{macros: []macro.Info{{Name: "login", Path: "/m/login.json", Modified: modified, Size: 42}}}
	srv := newTestServer(t, eng, nil)
	resp := roundTrip(t, srv, Request{Action: ActionMacrosList})
	var list MacroList
	decodeData(t, resp, &list)
	want := MacroList{Macros: []MacroInfo{{Name: "login", Path: "/m/login.json", Modified: modified, Size: 42}}}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Fatalf("unexpected macro list (-want +got):\n%s", diff)
	}
}

func TestHandleReload(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, nil)
	if resp := roundTrip(t, srv, Request{Action: ActionReload}); resp.Status != StatusError {
		t.Fatalf("expected reload to be unsupported without a callback")
	}

	var reasons []string
	srv = newTestServer(t, &fakeEngine{}, func(reason string) error {
		reasons = append(reasons, reason)
		if len(reasons) > 1 {
			return errors.New("hotkeys.start: unknown key")
		}
		return nil
	})
	if resp := roundTrip(t, srv, Request{Action: ActionReload}); resp.Status != StatusOK {
		t.Fatalf("unexpected reload response: %#v", resp)
	}
	if resp := roundTrip(t, srv, Request{Action: ActionReload}); resp.Error != "hotkeys.start: unknown key" {
		t.Fatalf("expected reload error to be forwarded, got %#v", resp)
	}
	if diff := cmp.Diff([]string{"control request", "control request"}, reasons); diff != "" {
		t.Fatalf("unexpected reasons (-want +got):\n%s", diff)
	}
}

func TestHandleUnknownAction(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, nil)
	resp := roundTrip(t, srv, Request{Action: "mode.set"})
	if resp.Status != StatusError || resp.Error != `unknown action "mode.set"` {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestServeOverSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "mcw")
	if err != nil {
		t.Fatalf("temp dir: %v", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "run", "control.sock")

	logger := util.NewLoggerWithWriter(util.LevelError, io.Discard)
	srv, err := NewServer(&fakeEngine{state: engine.StateIdle}, logger, nil, path)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	var conn net.Conn
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err = net.Dial("unix", path)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial control socket: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := json.NewEncoder(conn).Encode(Request{Action: ActionStatus}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	conn.Close()
	if resp.Status != StatusOK {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if fi, err := os.Stat(path); err != nil || fi.Mode().Perm() != 0o600 {
		t.Fatalf("expected socket with 0600 permissions, got %v (%v)", fi, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not stop")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected socket to be removed, got %v", err)
	}
}

func TestDefaultSocketPath(t *testing.T) {
	t.Setenv(SocketEnv, "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	path, err := DefaultSocketPath()
	if err != nil {
		t.Fatalf("DefaultSocketPath: %v", err)
	}
	if path != "/run/user/1000/macaway/control.sock" {
		t.Fatalf("unexpected path %q", path)
	}
	t.Setenv(SocketEnv, "/tmp/custom.sock")
	if path, _ := DefaultSocketPath(); path != "/tmp/custom.sock" {
		t.Fatalf("expected env override, got %q", path)
	}
}
