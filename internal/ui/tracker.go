package ui

import (
	"sync"
	"time"
)

// etaSmoothingFactor weights new ETA samples: 0.3 new, 0.7 previous.
const etaSmoothingFactor = 0.3

// Tracker accumulates build progress. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	percent  int
	file     string
	vectors  int
	message  string
	warnings []Warning
	start    time.Time
	lastETA  time.Duration
	now      func() time.Time
}

// Snapshot is a point-in-time view of a Tracker.
type Snapshot struct {
	Percent  int
	File     string
	Vectors  int
	Message  string
	Warnings int
	Elapsed  time.Duration
	ETA      time.Duration
	// Rate is vectors per second since the start.
	Rate float64
}

// NewTracker starts tracking now.
func NewTracker() *Tracker {
	return &Tracker{start: time.Now(), now: time.Now}
}

// Apply merges an event.
func (t *Tracker) Apply(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ev.Percent > 0 {
		t.percent = min(ev.Percent, 100)
	}
	if ev.File != "" {
		t.file = ev.File
	}
	if ev.Vectors > 0 {
		t.vectors = ev.Vectors
	}
	if ev.Message != "" {
		t.message = ev.Message
	}
}

// AddWarning records a warning.
func (t *Tracker) AddWarning(w Warning) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warnings = append(t.warnings, w)
}

// Warnings returns a copy of the recorded warnings.
func (t *Tracker) Warnings() []Warning {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Warning(nil), t.warnings...)
}

// Snapshot returns the current state with a smoothed ETA.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	elapsed := t.now().Sub(t.start)
	s := Snapshot{
		Percent:  t.percent,
		File:     t.file,
		Vectors:  t.vectors,
		Message:  t.message,
		Warnings: len(t.warnings),
		Elapsed:  elapsed,
		ETA:      t.eta(elapsed),
	}
	if secs := elapsed.Seconds(); secs > 0 {
		s.Rate = float64(t.vectors) / secs
	}
	return s
}

// eta must be called with the lock held.
func (t *Tracker) eta(elapsed time.Duration) time.Duration {
	if t.percent <= 0 || t.percent >= 100 {
		return 0
	}
	raw := time.Duration(float64(elapsed)*100/float64(t.percent)) - elapsed
	if raw < 0 {
		return 0
	}
	if t.lastETA == 0 {
		t.lastETA = raw
		return raw
	}
	t.lastETA = time.Duration(etaSmoothingFactor*float64(raw) + (1-etaSmoothingFactor)*float64(t.lastETA))
	return t.lastETA
}
