package metrics

import (
	"sort"
	"sync"
	"time"
)

// Collector aggregates per-macro counters for record and playback cycles.
type Collector struct {
	mu      sync.RWMutex
	enabled bool
	started time.Time
	macros  map[string]*MacroMetrics
}

// MacroMetrics captures the counters tracked for one macro name.
type MacroMetrics struct {
	Macro          string    `json:"macro"`
	Recordings     uint64    `json:"recordings"`
	EventsRecorded uint64    `json:"eventsRecorded"`
	ClicksDropped  uint64    `json:"clicksDropped"`
	Playbacks      uint64    `json:"playbacks"`
	SynthErrors    uint64    `json:"synthErrors"`
	LastRecorded   time.Time `json:"lastRecorded,omitempty"`
	LastPlayed     time.Time `json:"lastPlayed,omitempty"`
	LastErrored    time.Time `json:"lastErrored,omitempty"`
}

// Totals aggregates counters across all macros in a snapshot.
type Totals struct {
	Recordings     uint64 `json:"recordings"`
	EventsRecorded uint64 `json:"eventsRecorded"`
	ClicksDropped  uint64 `json:"clicksDropped"`
	Playbacks      uint64 `json:"playbacks"`
	SynthErrors    uint64 `json:"synthErrors"`
}

// Snapshot is the serializable view of the current metrics state.
type Snapshot struct {
	Enabled bool           `json:"enabled"`
	Started time.Time      `json:"started,omitempty"`
	Totals  Totals         `json:"totals"`
	Macros  []MacroMetrics `json:"macros,omitempty"`
}

// NewCollector returns a collector with the provided opt-in state.
func NewCollector(enabled bool) *Collector {
	c := &Collector{}
	c.SetEnabled(enabled)
	return c
}

// Enabled reports whether collection is currently active.
func (c *Collector) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled toggles collection, resetting counters when enabling.
func (c *Collector) SetEnabled(enabled bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled == enabled {
		return
	}
	c.enabled = enabled
	if !enabled {
		c.macros = nil
		c.started = time.Time{}
		return
	}
	c.started = time.Now()
	c.macros = make(map[string]*MacroMetrics)
}

// RecordRecording counts a finished recording of n events.
func (c *Collector) RecordRecording(macro string, n int) {
	c.update(macro, func(m *MacroMetrics, now time.Time) {
		m.Recordings++
		m.EventsRecorded += uint64(n)
		m.LastRecorded = now
	})
}

// RecordClickDropped counts a click whose coordinate could not be resolved.
func (c *Collector) RecordClickDropped(macro string) {
	c.update(macro, func(m *MacroMetrics, now time.Time) {
		m.ClicksDropped++
		m.LastErrored = now
	})
}

// RecordPlayback counts a playback that ran to completion.
func (c *Collector) RecordPlayback(macro string) {
	c.update(macro, func(m *MacroMetrics, now time.Time) {
		m.Playbacks++
		m.LastPlayed = now
	})
}

// RecordSynthError counts a playback aborted by the synthesizer.
func (c *Collector) RecordSynthError(macro string) {
	c.update(macro, func(m *MacroMetrics, now time.Time) {
		m.SynthErrors++
		m.LastErrored = now
	})
}

func (c *Collector) update(macro string, mutate func(*MacroMetrics, time.Time)) {
	if c == nil || mutate == nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	if c.macros == nil {
		c.macros = make(map[string]*MacroMetrics)
	}
	m, exists := c.macros[macro]
	if !exists {
		m = &MacroMetrics{Macro: macro}
		c.macros[macro] = m
	}
	mutate(m, now)
}

// Snapshot returns the current counters for serialization or display.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{Enabled: c.enabled}
	if !c.enabled {
		return snap
	}
	snap.Started = c.started
	if len(c.macros) == 0 {
		return snap
	}
	snap.Macros = make([]MacroMetrics, 0, len(c.macros))
	for _, m := range c.macros {
		clone := *m
		snap.Macros = append(snap.Macros, clone)
		snap.Totals.Recordings += clone.Recordings
		snap.Totals.EventsRecorded += clone.EventsRecorded
		snap.Totals.ClicksDropped += clone.ClicksDropped
		snap.Totals.Playbacks += clone.Playbacks
		snap.Totals.SynthErrors += clone.SynthErrors
	}
	sort.Slice(snap.Macros, func(i, j int) bool {
		return snap.Macros[i].Macro < snap.Macros[j].Macro
	})
	return snap
}
