// Package audit records what happened to detected content: which outcome a
// user or policy chose, when, and how many findings of each tier were
// involved. Events never carry raw or masked values.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/Tributary-ai-services/ContextGuard/pkg/scan"
)

// Outcome is the action recorded for a set of findings.
type Outcome string

const (
	OutcomeRedacted      Outcome = "redacted"
	OutcomeCancelled     Outcome = "cancelled"
	OutcomeForced        Outcome = "forced"
	OutcomeClipboardCopy Outcome = "clipboard_copy_detected"
	OutcomeBlocked       Outcome = "blocked"
	OutcomeWarned        Outcome = "warned"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeRedacted, OutcomeCancelled, OutcomeForced,
		OutcomeClipboardCopy, OutcomeBlocked, OutcomeWarned:
		return true
	default:
		return false
	}
}

// Event is one audit log entry.
type Event struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Action        Outcome   `json:"action"`
	Source        string    `json:"source,omitempty"`
	FindingsCount int       `json:"findings_count"`
	Critical      int       `json:"critical"`
	High          int       `json:"high"`
	Medium        int       `json:"medium"`
	Low           int       `json:"low"`

	// Types lists the distinct signature names involved, sorted.
	Types []string `json:"types"`
}

// NewEvent builds an event from a findings report.
func NewEvent(action Outcome, source string, report scan.Report, at time.Time) Event {
	return Event{
		ID:            uuid.NewString(),
		Timestamp:     at,
		Action:        action,
		Source:        source,
		FindingsCount: report.Total,
		Critical:      report.Critical,
		High:          report.High,
		Medium:        report.Medium,
		Low:           report.Low,
		Types:         report.Signatures(),
	}
}

// dateKey returns the calendar date of t in its own location.
func dateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
