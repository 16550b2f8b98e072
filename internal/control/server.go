package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/Elec3137/macaway/internal/engine"
	"github.com/Elec3137/macaway/internal/macro"
	"github.com/Elec3137/macaway/internal/util"
)

// Engine is the part of the engine the control socket drives.
type Engine interface {
	Status() engine.Status
	Trigger() (engine.State, error)
	RequestExit() error
	Macros() ([]macro.Info, error)
}

// Server hosts the macaway control socket and serves requests.
type Server struct {
	engine     Engine
	logger     *util.Logger
	reload     func(reason string) error
	socketPath string

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a control server. An empty path selects DefaultSocketPath.
func NewServer(eng Engine, logger *util.Logger, reload func(reason string) error, path string) (*Server, error) {
	if path == "" {
		var err error
		if path, err = DefaultSocketPath(); err != nil {
			return nil, err
		}
	}
	return &Server{
		engine:     eng,
		logger:     logger,
		reload:     reload,
		socketPath: path,
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Serve listens on the control socket until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.prepareSocket(); err != nil {
		return err
	}
	s.logger.Infof("control server listening on %s", s.socketPath)
	defer s.cleanup()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()
	}()

	for {
		conn, err := s.accept(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			s.logger.Errorf("control accept error: %v", err)
			continue
		}
		go s.handle(conn)
	}
}

func (s *Server) accept(ctx context.Context) (net.Conn, error) {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return nil, context.Canceled
	}
	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return conn, nil
}

func (s *Server) prepareSocket() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("create control dir: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("chmod control socket: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

func (s *Server) cleanup() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()
	if listener != nil {
		listener.Close()
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warnf("remove control socket: %v", err)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.writeError(conn, fmt.Errorf("decode request: %w", err))
		return
	}
	s.logger.Debugf("control request %q", req.Action)
	switch req.Action {
	case ActionStatus:
		s.writeOK(conn, statusPayload(s.engine.Status()))
	case ActionTrigger:
		s.handleTrigger(conn)
	case ActionExit:
		if err := s.engine.RequestExit(); err != nil {
			s.writeError(conn, err)
			return
		}
		s.writeOK(conn, nil)
	case ActionMacrosList:
		s.handleMacrosList(conn)
	case ActionReload:
		s.handleReload(conn)
	default:
		s.writeError(conn, fmt.Errorf("unknown action %q", req.Action))
	}
}

func (s *Server) handleTrigger(conn net.Conn) {
	state, err := s.engine.Trigger()
	if err != nil {
		s.writeError(conn, fmt.Errorf("trigger while %s: %w", state, err))
		return
	}
	s.writeOK(conn, TriggerResult{State: string(state)})
}

func (s *Server) handleMacrosList(conn net.Conn) {
	infos, err := s.engine.Macros()
	if err != nil {
		s.writeError(conn, err)
		return
	}
	list := MacroList{Macros: make([]MacroInfo, 0, len(infos))}
	for _, info := range infos {
		list.Macros = append(list.Macros, MacroInfo{
			Name:     info.Name,
			Path:     info.Path,
			Modified: info.Modified,
			Size:     info.Size,
		})
	}
	s.writeOK(conn, list)
}

func (s *Server) handleReload(conn net.Conn) {
	if s.reload == nil {
		s.writeError(conn, errors.New("reload not supported"))
		return
	}
	if err := s.reload("control request"); err != nil {
		s.writeError(conn, err)
		return
	}
	s.writeOK(conn, nil)
}

func statusPayload(st engine.Status) EngineStatus {
	out := EngineStatus{
		State: string(st.State),
		Hotkeys: Hotkeys{
			Start: st.Hotkeys.Start.String(),
			Stop:  st.Hotkeys.Stop.String(),
			Exit:  st.Hotkeys.Exit.String(),
		},
		Macro:      st.Macro,
		Recorded:   st.Recorded,
		LastEvents: st.LastEvents,
		Metrics:    st.Metrics,
	}
	if len(st.History) > 0 {
		out.History = make([]Cycle, 0, len(st.History))
		for _, entry := range st.History {
			out.History = append(out.History, Cycle{
				Timestamp:  entry.Timestamp,
				Kind:       string(entry.Kind),
				Macro:      entry.Macro,
				Events:     entry.Events,
				DurationMs: entry.Duration.Milliseconds(),
				Status:     string(entry.Status),
				Error:      entry.Error,
			})
		}
	}
	return out
}

func (s *Server) writeOK(conn net.Conn, data any) {
	resp := Response{Status: StatusOK}
	if data != nil {
		resp.Data = data
	}
	_ = json.NewEncoder(conn).Encode(resp)
}

func (s *Server) writeError(conn net.Conn, err error) {
	resp := Response{Status: StatusError}
	if err != nil {
		resp.Error = err.Error()
	}
	_ = json.NewEncoder(conn).Encode(resp)
}
