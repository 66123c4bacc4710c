package audit

import (
	"sort"
	"sync"
	"time"
)

// DefaultCapacity is the number of events a Log keeps by default.
const DefaultCapacity = 1000

// Stats is the dashboard summary over a Log.
type Stats struct {
	// Events is the number of events currently held.
	Events int `json:"events"`
	// Today is the number of events on the requested day.
	Today    int `json:"today"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Redacted int `json:"redacted"`
}

// Metrics are per-day counters. They are kept apart from the ring so that
// evicted events still count toward their day.
type Metrics struct {
	Date           string `json:"date"`
	TotalFindings  int    `json:"total_findings"`
	CriticalBlocks int    `json:"critical_blocks"`
	HighRiskBlocks int    `json:"high_risk_blocks"`
	RedactionCount int    `json:"redaction_count"`
	CancelledCount int    `json:"cancelled_count"`
	ForcedCount    int    `json:"forced_count"`
}

// Log is a bounded, in-memory event log. Appending beyond capacity evicts
// the oldest event. It is safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	events  []Event
	head    int // index of the oldest event
	size    int
	metrics map[string]*Metrics
}

// NewLog creates a log holding at most capacity events. A non-positive
// capacity selects DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		events:  make([]Event, capacity),
		metrics: make(map[string]*Metrics),
	}
}

// Capacity returns the maximum number of events held.
func (l *Log) Capacity() int {
	return len(l.events)
}

// Len returns the number of events currently held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Append adds an event, evicting the oldest when full, and updates the
// event's daily metrics.
func (l *Log) Append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size < len(l.events) {
		l.events[(l.head+l.size)%len(l.events)] = e
		l.size++
	} else {
		l.events[l.head] = e
		l.head = (l.head + 1) % len(l.events)
	}

	l.updateMetrics(e)
}

func (l *Log) updateMetrics(e Event) {
	key := dateKey(e.Timestamp)
	m, ok := l.metrics[key]
	if !ok {
		m = &Metrics{Date: key}
		l.metrics[key] = m
	}

	m.TotalFindings += e.FindingsCount
	m.CriticalBlocks += e.Critical
	m.HighRiskBlocks += e.High

	switch e.Action {
	case OutcomeRedacted:
		m.RedactionCount++
	case OutcomeCancelled:
		m.CancelledCount++
	case OutcomeForced:
		m.ForcedCount++
	}
}

// at returns the i-th oldest event. Callers hold the lock.
func (l *Log) at(i int) Event {
	return l.events[(l.head+i)%len(l.events)]
}

// All returns every held event, oldest first.
func (l *Log) All() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.at(i)
	}
	return out
}

// Recent returns up to n events, newest first. A non-positive n returns all.
func (l *Log) Recent(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > l.size {
		n = l.size
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = l.at(l.size - 1 - i)
	}
	return out
}

// Prune drops events and daily metrics older than before and returns the
// number of events removed.
func (l *Log) Prune(before time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := make([]Event, 0, l.size)
	for i := 0; i < l.size; i++ {
		if e := l.at(i); e.Timestamp.After(before) {
			kept = append(kept, e)
		}
	}
	removed := l.size - len(kept)

	clear(l.events)
	copy(l.events, kept)
	l.head = 0
	l.size = len(kept)

	cutoff := dateKey(before)
	for key := range l.metrics {
		if key < cutoff {
			delete(l.metrics, key)
		}
	}

	return removed
}

// Clear removes every event and metric.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	clear(l.events)
	l.head = 0
	l.size = 0
	l.metrics = make(map[string]*Metrics)
}

// Stats summarizes the log for the calendar day containing day, in day's
// location.
func (l *Log) Stats(day time.Time) Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	y, m, d := day.Date()
	stats := Stats{Events: l.size}

	for i := 0; i < l.size; i++ {
		e := l.at(i)
		ey, em, ed := e.Timestamp.In(day.Location()).Date()
		if ey != y || em != m || ed != d {
			continue
		}
		stats.Today++
		stats.Critical += e.Critical
		stats.High += e.High
		if e.Action == OutcomeRedacted {
			stats.Redacted++
		}
	}

	return stats
}

// DailyMetrics returns the counters for the given date ("2006-01-02").
func (l *Log) DailyMetrics(date string) (Metrics, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.metrics[date]
	if !ok {
		return Metrics{Date: date}, false
	}
	return *m, true
}

// AllMetrics returns the daily counters sorted by date.
func (l *Log) AllMetrics() []Metrics {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Metrics, 0, len(l.metrics))
	for _, m := range l.metrics {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}
