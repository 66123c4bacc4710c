package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Tributary-ai-services/ContextGuard/pkg/action"
	"github.com/Tributary-ai-services/ContextGuard/pkg/audit"
	"github.com/Tributary-ai-services/ContextGuard/pkg/scan"
	"github.com/Tributary-ai-services/ContextGuard/pkg/stream"
)

// defaultProcessor implements the Processor interface, orchestrating
// the scan -> policy -> audit pipeline.
type defaultProcessor struct {
	scanner  scan.Scanner
	redactor scan.Redactor
	engine   action.Engine
	recorder *audit.Recorder
	streamer stream.Streamer
	closers  []io.Closer
	config   *ProcessorConfig
	logger   *slog.Logger
}

var _ Processor = (*defaultProcessor)(nil)

// ProcessorOption is a functional option for configuring a defaultProcessor.
type ProcessorOption func(*defaultProcessor)

// WithActionEngine sets the policy engine on the processor.
func WithActionEngine(e action.Engine) ProcessorOption {
	return func(p *defaultProcessor) {
		p.engine = e
	}
}

// WithRecorder sets the audit recorder on the processor.
func WithRecorder(r *audit.Recorder) ProcessorOption {
	return func(p *defaultProcessor) {
		p.recorder = r
	}
}

// WithRedactor sets the redactor used by Resolve.
func WithRedactor(r scan.Redactor) ProcessorOption {
	return func(p *defaultProcessor) {
		p.redactor = r
	}
}

// WithStreamer publishes every recorded audit event through s.
func WithStreamer(s stream.Streamer) ProcessorOption {
	return func(p *defaultProcessor) {
		p.streamer = s
	}
}

// WithConfig sets the processor configuration.
func WithConfig(cfg *ProcessorConfig) ProcessorOption {
	return func(p *defaultProcessor) {
		if cfg != nil {
			p.config = cfg
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ProcessorOption {
	return func(p *defaultProcessor) {
		if l != nil {
			p.logger = l
		}
	}
}

// withCloser registers a resource released by Close.
func withCloser(c io.Closer) ProcessorOption {
	return func(p *defaultProcessor) {
		p.closers = append(p.closers, c)
	}
}

// NewProcessor creates a new defaultProcessor with the given scanner and options.
// The scanner is required; all other components are optional. Without an
// engine, the processor uses the default policy, or a severity threshold
// when actions are disabled.
func NewProcessor(scanner scan.Scanner, opts ...ProcessorOption) *defaultProcessor {
	p := &defaultProcessor{
		scanner: scanner,
		config:  DefaultProcessorConfig(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.redactor == nil {
		p.redactor = scan.NewRedactor()
	}
	if p.engine == nil {
		eng := action.NewEngine(nil)
		if !p.config.EnableActions {
			// Threshold rules are built from a valid severity and always load.
			_ = eng.LoadRules(action.ThresholdRules(p.config.BlockSeverity))
		}
		p.engine = eng
	}
	if p.recorder == nil {
		p.recorder = audit.NewRecorder(nil, audit.WithLogger(p.logger))
	}
	p.recorder.SetEnabled(p.config.EnableLogging)
	if p.streamer != nil {
		p.recorder.AddSink(stream.Sink(p.streamer))
	}
	return p
}

// Process scans the request text, summarizes the findings and evaluates the
// policy against them.
func (p *defaultProcessor) Process(ctx context.Context, req Request) (*Result, error) {
	startTime := time.Now()

	if err := p.admit(ctx, req.Text); err != nil {
		return nil, err
	}

	result := &Result{
		ID:      uuid.NewString(),
		Source:  req.Source,
		Trigger: req.Trigger,
		Metrics: ProcessMetrics{
			ContentSize: len(req.Text),
		},
		text: req.Text,
	}

	// Step 1: Scan content
	scanStart := time.Now()
	result.Findings = p.scanner.Scan(req.Text)
	result.Report = scan.Summarize(result.Findings)
	result.Metrics.ScanDuration = time.Since(scanStart)
	result.Metrics.FindingsCount = len(result.Findings)

	// Step 2: Evaluate policy
	actionStart := time.Now()

	actionCtx, actionCancel := ctx, context.CancelFunc(func() {})
	if p.config.ActionTimeout > 0 {
		actionCtx, actionCancel = context.WithTimeout(ctx, p.config.ActionTimeout)
	}
	decision, err := p.engine.Evaluate(actionCtx, action.EvaluateRequest{
		Findings: result.Findings,
		Source:   req.Source,
	})
	actionCancel()
	if err != nil {
		return nil, fmt.Errorf("evaluating policy: %w", err)
	}
	result.Decision = decision
	result.Metrics.ActionDuration = time.Since(actionStart)

	if !result.Clean() {
		level := slog.LevelInfo
		if decision.Throttled() {
			level = slog.LevelDebug
		}
		p.logger.Log(ctx, level, "sensitive content detected",
			"id", result.ID,
			"source", req.Source,
			"trigger", req.Trigger,
			"findings", result.Report.Total,
			"max_severity", result.Report.MaxSeverity,
			"signatures", result.Report.Signatures(),
			"action", decision.Action,
		)
	}

	// Step 3: Set total duration
	result.Metrics.TotalDuration = time.Since(startTime)

	return result, nil
}

func (p *defaultProcessor) Detect(ctx context.Context, text string) ([]scan.Finding, error) {
	if err := p.admit(ctx, text); err != nil {
		return nil, err
	}
	return p.scanner.Scan(text), nil
}

// admit rejects cancelled contexts and text over MaxContentSize.
func (p *defaultProcessor) admit(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.config.MaxContentSize > 0 && len(text) > p.config.MaxContentSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrContentTooLarge, len(text), p.config.MaxContentSize)
	}
	return nil
}

// Resolve applies a choice to a processed result. Redact replaces every
// detected value, cancel clears the input and force sends the text as is.
func (p *defaultProcessor) Resolve(ctx context.Context, res *Result, choice Choice) (*Resolution, error) {
	if res == nil {
		return nil, errors.New("nil result")
	}

	resolution := &Resolution{Choice: choice}
	switch choice {
	case ChoiceRedact:
		resolution.Text = p.redactor.Scrub(res.text, res.Findings)
		resolution.Commit = true
	case ChoiceCancel:
		resolution.Text = ""
	case ChoiceForce:
		if res.Decision.Blocked() && !p.config.AllowForce {
			return nil, ErrForceNotAllowed
		}
		resolution.Text = res.text
		resolution.Commit = true
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidChoice, choice)
	}

	event, err := p.Record(ctx, choice.Outcome(), res)
	if err != nil {
		// The choice stands even when an audit sink is unavailable.
		p.logger.Warn("recording resolution", "id", res.ID, "choice", choice, "error", err)
	}
	resolution.Event = event
	return resolution, nil
}

// RecordCopy scans copied text and records a clipboard event when the text
// holds findings.
func (p *defaultProcessor) RecordCopy(ctx context.Context, req Request) (*Result, error) {
	req.Trigger = TriggerCopy
	res, err := p.Process(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Clean() {
		return res, nil
	}
	if _, err := p.Record(ctx, audit.OutcomeClipboardCopy, res); err != nil {
		p.logger.Warn("recording copy", "id", res.ID, "error", err)
	}
	return res, nil
}

// Record stores an audit event for a processed result.
func (p *defaultProcessor) Record(ctx context.Context, outcome audit.Outcome, res *Result) (audit.Event, error) {
	if res == nil {
		return audit.Event{}, errors.New("nil result")
	}
	return p.recorder.Record(ctx, outcome, res.Source, res.Findings)
}

// Scanner returns the scanner in use.
func (p *defaultProcessor) Scanner() scan.Scanner {
	return p.scanner
}

// Redactor returns the redactor in use.
func (p *defaultProcessor) Redactor() scan.Redactor {
	return p.redactor
}

// Recorder returns the audit recorder.
func (p *defaultProcessor) Recorder() *audit.Recorder {
	return p.recorder
}

// Close releases resources held by the processor's sub-components.
func (p *defaultProcessor) Close() error {
	var errs []error
	if p.engine != nil {
		if err := p.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("engine close: %w", err))
		}
	}
	if p.streamer != nil {
		if err := p.streamer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("streamer close: %w", err))
		}
	}
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Text returns the text the result was computed from.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	return r.text
}
