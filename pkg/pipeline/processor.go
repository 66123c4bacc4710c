// Package pipeline orchestrates the scan, policy and audit workflow for a
// piece of outgoing text.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tributary-ai-services/ContextGuard/pkg/action"
	"github.com/Tributary-ai-services/ContextGuard/pkg/audit"
	"github.com/Tributary-ai-services/ContextGuard/pkg/config"
	"github.com/Tributary-ai-services/ContextGuard/pkg/scan"
)

var (
	// ErrContentTooLarge is returned when text exceeds MaxContentSize.
	ErrContentTooLarge = errors.New("content exceeds maximum size")

	// ErrInvalidChoice is returned by Resolve for an unknown choice.
	ErrInvalidChoice = errors.New("invalid choice")

	// ErrForceNotAllowed is returned when forcing blocked content is disabled.
	ErrForceNotAllowed = errors.New("sending blocked content is not allowed")
)

// Processor is the main entry point for content processing
type Processor interface {
	// Process scans the text and decides how to respond to it:
	// scan -> summarize -> evaluate policy
	Process(ctx context.Context, req Request) (*Result, error)

	// Resolve applies the user's choice to a processed result and records
	// the outcome
	Resolve(ctx context.Context, res *Result, choice Choice) (*Resolution, error)

	// Detect scans the text under the same size limit as Process, without
	// evaluating policy or recording anything
	Detect(ctx context.Context, text string) ([]scan.Finding, error)

	// RecordCopy scans copied text and records a copy event when it holds findings
	RecordCopy(ctx context.Context, req Request) (*Result, error)

	// Record stores an audit event for a processed result
	Record(ctx context.Context, outcome audit.Outcome, res *Result) (audit.Event, error)

	// Scanner returns the scanner in use
	Scanner() scan.Scanner

	// Redactor returns the redactor used for masking and scrubbing
	Redactor() scan.Redactor

	// Recorder returns the audit recorder
	Recorder() *audit.Recorder

	// Close releases resources
	Close() error
}

// Trigger identifies what caused a scan
type Trigger string

const (
	TriggerInput   Trigger = "input"
	TriggerPaste   Trigger = "paste"
	TriggerCopy    Trigger = "copy"
	TriggerRequest Trigger = "request"
)

// Request contains all inputs for content processing
type Request struct {
	Text    string  `json:"text"`
	Source  string  `json:"source"` // where the text is headed, e.g. a host name
	Trigger Trigger `json:"trigger"`
}

// Result contains the output of content processing
type Result struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Trigger Trigger `json:"trigger"`

	// Scan results
	Findings []scan.Finding   `json:"findings"`
	Report   scan.Report      `json:"report"`
	Decision *action.Decision `json:"decision"`

	// Performance metrics
	Metrics ProcessMetrics `json:"metrics"`

	text string
}

// Clean reports whether the text produced no findings.
func (r *Result) Clean() bool {
	return r == nil || len(r.Findings) == 0
}

// NeedsPrompt reports whether the user has to choose how to proceed.
func (r *Result) NeedsPrompt() bool {
	return r != nil && len(r.Findings) > 0 && r.Decision.NeedsPrompt()
}

// Choice is the user's response to a warning
type Choice string

const (
	ChoiceRedact Choice = "redact"
	ChoiceCancel Choice = "cancel"
	ChoiceForce  Choice = "force"
)

// ParseChoice converts a case-insensitive choice name.
func ParseChoice(s string) (Choice, error) {
	c := Choice(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ChoiceRedact, ChoiceCancel, ChoiceForce:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChoice, s)
}

// Outcome returns the audit outcome recorded for the choice.
func (c Choice) Outcome() audit.Outcome {
	switch c {
	case ChoiceRedact:
		return audit.OutcomeRedacted
	case ChoiceCancel:
		return audit.OutcomeCancelled
	case ChoiceForce:
		return audit.OutcomeForced
	}
	return ""
}

// Resolution is the result of applying a choice
type Resolution struct {
	Choice Choice      `json:"choice"`
	Text   string      `json:"text"`   // text to place back into the input
	Commit bool        `json:"commit"` // whether the text may be sent
	Event  audit.Event `json:"event"`
}

// ProcessMetrics contains performance information
type ProcessMetrics struct {
	TotalDuration  time.Duration `json:"total_duration"`
	ScanDuration   time.Duration `json:"scan_duration"`
	ActionDuration time.Duration `json:"action_duration,omitempty"`

	ContentSize   int `json:"content_size"`
	FindingsCount int `json:"findings_count"`
}

// ProcessorConfig configures the processor
type ProcessorConfig struct {
	// Service identification
	ServiceID string `json:"service_id"`

	// Feature toggles
	EnableActions bool `json:"enable_actions"`
	EnableLogging bool `json:"enable_logging"`
	AllowForce    bool `json:"allow_force"`

	// Limits
	MaxContentSize int           `json:"max_content_size"`
	BlockSeverity  scan.Severity `json:"block_severity"`

	// Timeouts
	ActionTimeout time.Duration `json:"action_timeout"`
}

// DefaultProcessorConfig returns default processor configuration
func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{
		ServiceID:      "contextguard",
		EnableActions:  true,
		EnableLogging:  true,
		AllowForce:     true,
		MaxContentSize: 10 * 1024 * 1024, // 10MB
		BlockSeverity:  scan.SeverityCritical,
		ActionTimeout:  5 * time.Second,
	}
}

// ConfigFromSettings derives processor settings from the application config.
func ConfigFromSettings(cfg *config.Config) *ProcessorConfig {
	pc := DefaultProcessorConfig()
	if cfg == nil {
		return pc
	}
	if cfg.Service.ID != "" {
		pc.ServiceID = cfg.Service.ID
	}
	pc.EnableActions = cfg.Actions.Enabled
	pc.EnableLogging = cfg.Guard.EnableLogging
	if cfg.Scanning.MaxContentSize > 0 {
		pc.MaxContentSize = cfg.Scanning.MaxContentSize
	}
	if sev := scan.ParseSeverity(cfg.Guard.BlockSeverity); sev.Valid() {
		pc.BlockSeverity = sev
	}
	return pc
}
