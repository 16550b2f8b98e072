package engine

import (
	"sync"
	"time"
)

// CycleKind says whether a cycle recorded or played a macro.
type CycleKind string

// CycleStatus is the outcome of a cycle.
type CycleStatus string

const (
	CycleKindRecord CycleKind = "record"
	CycleKindPlay   CycleKind = "play"

	CycleStatusOK      CycleStatus = "ok"
	CycleStatusError   CycleStatus = "error"
	CycleStatusAborted CycleStatus = "aborted"

	historyLimit = 64
)

// CycleRecord describes one finished recording or playback.
type CycleRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	Kind      CycleKind     `json:"kind"`
	Macro     string        `json:"macro"`
	Events    int           `json:"events"`
	Duration  time.Duration `json:"duration"`
	Status    CycleStatus   `json:"status"`
	Error     string        `json:"error,omitempty"`
}

type cycleLog struct {
	mu      sync.Mutex
	entries []CycleRecord
	limit   int
}

func newCycleLog(limit int) *cycleLog {
	if limit <= 0 {
		limit = historyLimit
	}
	return &cycleLog{limit: limit}
}

func (l *cycleLog) record(entry CycleRecord) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == l.limit {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.limit-1]
	}
	l.entries = append(l.entries, entry)
}

func (l *cycleLog) snapshot() []CycleRecord {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil
	}
	return append([]CycleRecord(nil), l.entries...)
}
