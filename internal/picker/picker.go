// Package picker resolves the screen coordinate of a mouse click by asking an
// external program where the user clicked.
package picker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Elec3137/macaway/internal/macro"
)

// ErrResolution marks a click whose coordinate could not be obtained. Callers
// drop the click and keep recording.
var ErrResolution = errors.New("coordinate resolution failed")

// Resolver returns the engine-space coordinate of the click being handled.
type Resolver interface {
	Resolve(ctx context.Context) (macro.Point, error)
}

// Modal is implemented by resolvers that put a full-screen UI in front of the
// user. A cancel gesture in such a UI reaches the key listener as an Escape.
type Modal interface {
	Modal() bool
}

// IsModal reports whether r blocks on a modal UI. Resolvers that don't say
// otherwise are assumed modal.
func IsModal(r Resolver) bool {
	if m, ok := r.(Modal); ok {
		return m.Modal()
	}
	return true
}

// Slurp runs `slurp -p` and parses its "<x>,<y> <w>x<h>" output.
type Slurp struct {
	Binary string
	Args   []string
	// Env overrides entries of the inherited environment, e.g. WAYLAND_DISPLAY.
	Env   map[string]string
	Scale float64

	run func(ctx context.Context, name string, args []string, env []string) ([]byte, error)
}

// NewSlurp returns a slurp resolver using the binary on PATH.
func NewSlurp(scale float64, env map[string]string) *Slurp {
	return &Slurp{Binary: "slurp", Args: []string{"-p"}, Env: env, Scale: scale}
}

func (s *Slurp) Modal() bool { return true }

// Resolve blocks until the user picks a pixel or cancels.
func (s *Slurp) Resolve(ctx context.Context) (macro.Point, error) {
	run := s.run
	if run == nil {
		run = runCommand
	}
	out, err := run(ctx, s.Binary, s.Args, mergeEnv(os.Environ(), s.Env))
	if err != nil {
		return macro.Point{}, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	x, y, err := ParseOutput(out)
	if err != nil {
		return macro.Point{}, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	return Translate(x, y, s.Scale)
}

func runCommand(ctx context.Context, name string, args []string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s: %v", name, err)
		}
		return nil, fmt.Errorf("%s: %v: %s", name, err, msg)
	}
	return stdout.Bytes(), nil
}

// ParseOutput extracts the integer pixel from picker output of the form
// "<x>,<y> <extra>".
func ParseOutput(out []byte) (int, int, error) {
	if !utf8.Valid(out) {
		return 0, 0, errors.New("picker output is not valid UTF-8")
	}
	text := strings.TrimSpace(string(out))
	space := strings.IndexByte(text, ' ')
	if space < 0 {
		return 0, 0, fmt.Errorf("no whitespace in picker output %q", text)
	}
	xs, ys, ok := strings.Cut(text[:space], ",")
	if !ok {
		return 0, 0, fmt.Errorf("no comma in picker output %q", text)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return 0, 0, fmt.Errorf("parse x: %w", err)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return 0, 0, fmt.Errorf("parse y: %w", err)
	}
	return x, y, nil
}

// Translate maps raw pixels into engine space. A zero scale means 1.
func Translate(x, y int, scale float64) (macro.Point, error) {
	if scale == 0 {
		scale = 1
	}
	p := macro.Point{
		X: int(math.Floor(float64(x) * scale)),
		Y: int(math.Floor(float64(y) * scale)),
	}
	if p.X < 0 || p.Y < 0 {
		return macro.Point{}, fmt.Errorf("%w: negative coordinate %s", ErrResolution, p)
	}
	return p, nil
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, replaced := overrides[name]; replaced {
			continue
		}
		out = append(out, kv)
	}
	for name, value := range overrides {
		out = append(out, name+"="+value)
	}
	return out
}
