package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Elec3137/macaway/internal/util"
)

// DefaultReadyTimeout bounds how long Start waits for ydotoold's socket.
const DefaultReadyTimeout = 5 * time.Second

// DefaultSocket returns the socket path ydotoold uses when none is configured.
func DefaultSocket() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, ".ydotool_socket")
	}
	return "/tmp/.ydotool_socket"
}

// Daemon manages a ydotoold process.
type Daemon struct {
	Binary       string
	Socket       string
	ReadyTimeout time.Duration
	Logger       *util.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
	// out forwards the process output into the logger until Stop.
	out *io.PipeWriter

	start func(binary string, args ...string) (*exec.Cmd, error)
}

// NewDaemon returns a daemon manager for socket.
func NewDaemon(binary, socket string, logger *util.Logger) *Daemon {
	if binary == "" {
		binary = "ydotoold"
	}
	if socket == "" {
		socket = DefaultSocket()
	}
	return &Daemon{Binary: binary, Socket: socket, ReadyTimeout: DefaultReadyTimeout, Logger: logger}
}

// Start launches ydotoold unless one is already answering on the socket, and
// returns once the socket accepts connections.
func (d *Daemon) Start(ctx context.Context) error {
	if dialSocket(d.Socket) == nil {
		d.logf("ydotoold already listening on %s", d.Socket)
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch ydotoold socket: %w", err)
	}
	defer watcher.Close()
	dir := filepath.Dir(d.Socket)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch ydotoold socket dir: %w", err)
	}

	start := d.start
	if start == nil {
		start = d.startProcess
	}
	cmd, err := start(d.Binary, "--socket-path", d.Socket)
	if err != nil {
		return fmt.Errorf("start %s: %w", d.Binary, err)
	}
	done := make(chan struct{})
	var waitErr error
	go func() {
		waitErr = cmd.Wait()
		close(done)
	}()

	d.mu.Lock()
	d.cmd = cmd
	d.done = done
	d.mu.Unlock()

	if err := d.awaitSocket(ctx, watcher, done, &waitErr); err != nil {
		d.Stop()
		return err
	}
	d.logf("ydotoold ready on %s", d.Socket)
	return nil
}

func (d *Daemon) awaitSocket(ctx context.Context, watcher *fsnotify.Watcher, done <-chan struct{}, waitErr *error) error {
	timeout := d.ReadyTimeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	// The socket may have appeared before the watch was in place.
	if dialSocket(d.Socket) == nil {
		return nil
	}
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return errors.New("ydotoold socket watcher closed")
			}
			if filepath.Clean(ev.Name) != filepath.Clean(d.Socket) || ev.Op&fsnotify.Create == 0 {
				continue
			}
			if err := dialSocket(d.Socket); err != nil {
				d.logf("ydotoold socket created but not accepting yet: %v", err)
				continue
			}
			return nil
		case err, ok := <-watcher.Errors:
			if ok {
				d.logf("ydotoold socket watcher error: %v", err)
			}
		case <-done:
			return fmt.Errorf("%s exited before becoming ready: %v", d.Binary, *waitErr)
		case <-deadline.C:
			return fmt.Errorf("%s not ready after %s", d.Binary, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop terminates a daemon started by Start. A daemon that was already
// running before Start is left alone.
func (d *Daemon) Stop() {
	d.mu.Lock()
	cmd, done, out := d.cmd, d.done, d.out
	d.cmd, d.done, d.out = nil, nil, nil
	d.mu.Unlock()
	if out != nil {
		defer out.Close()
	}
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
	select {
	case <-done:
	case <-time.After(time.Second):
		d.logf("ydotoold did not exit after kill")
	}
}

func (d *Daemon) logf(format string, args ...interface{}) {
	if d.Logger != nil {
		d.Logger.Debugf(format, args...)
	}
}

func dialSocket(path string) error {
	conn, err := net.DialTimeout("unixgram", path, 200*time.Millisecond)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (d *Daemon) startProcess(binary string, args ...string) (*exec.Cmd, error) {
	cmd := exec.Command(binary, args...)
	if d.Logger == nil {
		return cmd, cmd.Start()
	}
	out := d.Logger.With("proc", binary).Writer()
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Start(); err != nil {
		out.Close()
		return nil, err
	}
	d.mu.Lock()
	d.out = out
	d.mu.Unlock()
	return cmd, nil
}
