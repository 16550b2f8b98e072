package tui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Elec3137/macaway/internal/control/client"
)

const (
	defaultRefresh = 500 * time.Millisecond
	titleWidth     = 32
	historyRows    = 10
)

// StatusSource is polled for every frame. *client.Client satisfies it.
type StatusSource interface {
	Status(ctx context.Context) (client.EngineStatus, error)
}

// Renderer periodically polls the daemon and renders a textual dashboard.
type Renderer struct {
	Source  StatusSource
	Writer  io.Writer
	Refresh time.Duration

	now func() time.Time
}

// New returns a renderer configured with sensible defaults.
func New(src StatusSource, w io.Writer) *Renderer {
	return &Renderer{Source: src, Writer: w, Refresh: defaultRefresh}
}

// Run starts the render loop until the context is cancelled.
func (r *Renderer) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.Writer == nil {
		r.Writer = os.Stdout
	}
	if r.Source == nil {
		return fmt.Errorf("tui renderer requires a status source")
	}

	refresh := r.Refresh
	if refresh <= 0 {
		refresh = defaultRefresh
	}

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	fmt.Fprint(r.Writer, "\033[?25l")
	defer fmt.Fprint(r.Writer, "\033[?25h")

	r.render(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.render(ctx)
		}
	}
}

func (r *Renderer) render(ctx context.Context) {
	status, err := r.Source.Status(ctx)
	now := time.Now
	if r.now != nil {
		now = r.now
	}

	var buf bytes.Buffer
	buf.WriteString("\033[H\033[2J")
	buf.WriteString("macaway status (Ctrl+C to exit)\n")
	buf.WriteString(now().Format(time.RFC1123))
	buf.WriteString("\n\n")

	if err != nil {
		buf.WriteString(fmt.Sprintf("error: %v\n", err))
		fmt.Fprint(r.Writer, buf.String())
		return
	}
	buf.WriteString(Format(status))
	fmt.Fprint(r.Writer, buf.String())
}

// Format renders a status snapshot without terminal control sequences.
func Format(status client.EngineStatus) string {
	var b strings.Builder
	b.WriteString(formatState(status))
	b.WriteByte('\n')
	b.WriteString(renderHistory(status.History))
	b.WriteString(renderMetrics(status))
	return b.String()
}

func formatState(status client.EngineStatus) string {
	var b strings.Builder
	state := status.State
	if state == "" {
		state = "(unknown)"
	}
	fmt.Fprintf(&b, "State:   %s\n", state)
	fmt.Fprintf(&b, "Hotkeys: start=%s stop=%s exit=%s\n", status.Hotkeys.Start, status.Hotkeys.Stop, status.Hotkeys.Exit)
	fmt.Fprintf(&b, "Macro:   %s\n", status.Macro)
	if state == "recording" {
		fmt.Fprintf(&b, "Captured so far: %d\n", status.Recorded)
	} else {
		fmt.Fprintf(&b, "Last recording: %d events\n", status.LastEvents)
	}
	return b.String()
}

func renderHistory(history []client.Cycle) string {
	var b strings.Builder
	b.WriteString("Recent cycles:\n")
	if len(history) == 0 {
		b.WriteString("  (none)\n\n")
		return b.String()
	}
	if len(history) > historyRows {
		history = history[len(history)-historyRows:]
	}
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Time\tKind\tMacro\tEvents\tDuration\tStatus")
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		status := entry.Status
		if entry.Error != "" {
			status += ": " + truncate(entry.Error, titleWidth)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			entry.Timestamp.Local().Format("15:04:05"),
			entry.Kind,
			entry.Macro,
			entry.Events,
			(time.Duration(entry.DurationMs) * time.Millisecond).String(),
			status,
		)
	}
	tw.Flush()
	b.WriteByte('\n')
	return b.String()
}

func renderMetrics(status client.EngineStatus) string {
	var b strings.Builder
	b.WriteString("Metrics:\n")
	if !status.Metrics.Enabled {
		b.WriteString("  (disabled)\n")
		return b.String()
	}
	t := status.Metrics.Totals
	fmt.Fprintf(&b, "  recordings=%d events=%d dropped=%d playbacks=%d errors=%d\n",
		t.Recordings, t.EventsRecorded, t.ClicksDropped, t.Playbacks, t.SynthErrors)
	if len(status.Metrics.Macros) == 0 {
		return b.String()
	}
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  Macro\tRecordings\tEvents\tDropped\tPlaybacks\tErrors")
	for _, m := range status.Metrics.Macros {
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%d\t%d\n", m.Macro, m.Recordings, m.EventsRecorded, m.ClicksDropped, m.Playbacks, m.SynthErrors)
	}
	tw.Flush()
	return b.String()
}

func truncate(s string, max int) string {
	if len([]rune(s)) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
