// Package guard watches a single text input: it scans typed text after a
// quiet period, intercepts pastes before they land and records copies, and
// keeps at most one warning prompt open at a time.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Tributary-ai-services/ContextGuard/pkg/config"
	"github.com/Tributary-ai-services/ContextGuard/pkg/pipeline"
)

var (
	// ErrNoPrompt is returned by Resolve when no prompt is open.
	ErrNoPrompt = errors.New("no prompt is open")

	// ErrPromptResolved is returned when resolving a prompt that is no longer open.
	ErrPromptResolved = errors.New("prompt already resolved")

	// ErrSessionClosed is returned after Close.
	ErrSessionClosed = errors.New("session is closed")
)

// previewLimit is how many signature names a prompt lists before "+N".
const previewLimit = 3

// Settings control how a session reacts to findings
type Settings struct {
	EnableWarnings   bool
	EnableAutoRedact bool
	EnableLogging    bool
	ScanDelay        time.Duration
}

// DefaultSettings returns the default session settings.
func DefaultSettings() Settings {
	return SettingsFromConfig(config.Default().Guard)
}

// SettingsFromConfig converts the guard section of the application config.
func SettingsFromConfig(cfg config.GuardConfig) Settings {
	return Settings{
		EnableWarnings:   cfg.EnableWarnings,
		EnableAutoRedact: cfg.EnableAutoRedact,
		EnableLogging:    cfg.EnableLogging,
		ScanDelay:        cfg.ScanDelay,
	}
}

// Prompt is an open warning awaiting the user's choice
type Prompt struct {
	ID       string
	Trigger  pipeline.Trigger
	Critical int
	High     int
	Total    int
	Preview  []string // first signature names, in finding order
	More     int      // findings beyond the preview
	Result   *pipeline.Result
}

// Session guards one input
type Session struct {
	proc   pipeline.Processor
	logger *slog.Logger

	onPrompt  func(*Prompt)
	onResolve func(*pipeline.Resolution)

	resolveMu sync.Mutex

	mu       sync.Mutex
	settings Settings
	timer    *time.Timer
	gen      uint64
	prompt   *Prompt
	closed   bool
}

// Option configures a session.
type Option func(*Session)

// WithPromptHandler is called whenever a prompt opens.
func WithPromptHandler(fn func(*Prompt)) Option {
	return func(s *Session) {
		s.onPrompt = fn
	}
}

// WithResolutionHandler is called with automatic redactions.
func WithResolutionHandler(fn func(*pipeline.Resolution)) Option {
	return func(s *Session) {
		s.onResolve = fn
	}
}

// WithLogger sets the logger used for background scan failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession creates a session over proc.
func NewSession(proc pipeline.Processor, settings Settings, opts ...Option) *Session {
	s := &Session{
		proc:     proc,
		logger:   slog.Default(),
		settings: settings,
	}
	for _, opt := range opts {
		opt(s)
	}
	proc.Recorder().SetEnabled(settings.EnableLogging)
	return s
}

// Settings returns the current settings.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings replaces the settings. A pending scan keeps its delay.
func (s *Session) UpdateSettings(settings Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	s.proc.Recorder().SetEnabled(settings.EnableLogging)
}

// Input reports the current text of the input. The text is scanned once no
// further Input arrives for ScanDelay; only the latest text is scanned.
func (s *Session) Input(ctx context.Context, source, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.settings.ScanDelay, func() {
		s.scanInput(ctx, gen, source, text)
	})
}

// Flush scans pending input immediately.
func (s *Session) Flush(ctx context.Context, source, text string) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	s.scanInput(ctx, gen, source, text)
}

func (s *Session) scanInput(ctx context.Context, gen uint64, source, text string) {
	s.mu.Lock()
	stale := gen != s.gen || s.closed
	s.mu.Unlock()
	if stale {
		return
	}

	res, err := s.proc.Process(ctx, pipeline.Request{Text: text, Source: source, Trigger: pipeline.TriggerInput})
	if err != nil {
		s.logger.Warn("scanning input", "source", source, "error", err)
		return
	}

	s.mu.Lock()
	// A newer Input superseded this scan while it ran.
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	settings := s.settings
	s.mu.Unlock()

	s.handle(ctx, res, settings)
}

// handle reacts to a processed result: automatic redaction when enabled,
// otherwise a prompt when warnings are on.
func (s *Session) handle(ctx context.Context, res *pipeline.Result, settings Settings) *Prompt {
	if !res.NeedsPrompt() {
		return nil
	}

	if settings.EnableAutoRedact {
		resolution, err := s.proc.Resolve(ctx, res, pipeline.ChoiceRedact)
		if err != nil {
			s.logger.Warn("auto-redacting", "id", res.ID, "error", err)
			return nil
		}
		if s.onResolve != nil {
			s.onResolve(resolution)
		}
		return nil
	}

	if !settings.EnableWarnings {
		return nil
	}
	return s.open(res)
}

// open shows a prompt for res unless one is already open.
func (s *Session) open(res *pipeline.Result) *Prompt {
	s.mu.Lock()
	if s.prompt != nil || s.closed {
		s.mu.Unlock()
		return nil
	}
	p := newPrompt(res)
	s.prompt = p
	s.mu.Unlock()

	if s.onPrompt != nil {
		s.onPrompt(p)
	}
	return p
}

func newPrompt(res *pipeline.Result) *Prompt {
	p := &Prompt{
		ID:       res.ID,
		Trigger:  res.Trigger,
		Critical: res.Report.Critical,
		High:     res.Report.High,
		Total:    res.Report.Total,
		Result:   res,
	}
	// Findings are latest-first, so the newest item always heads the preview.
	for _, f := range res.Findings {
		if len(p.Preview) == previewLimit {
			break
		}
		p.Preview = append(p.Preview, f.Signature)
	}
	if n := len(res.Findings) - len(p.Preview); n > 0 {
		p.More = n
	}
	return p
}

// PasteResult tells the host whether a paste may land
type PasteResult struct {
	Commit bool
	Text   string
	Prompt *Prompt
}

// Paste scans pasted text before it is inserted. Text the policy allows or
// only logs is committed; anything else is held back and, when warnings are on, a prompt opens.
// With auto-redact the scrubbed text is committed instead.
func (s *Session) Paste(ctx context.Context, source, text string) (*PasteResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	settings := s.settings
	s.mu.Unlock()

	res, err := s.proc.Process(ctx, pipeline.Request{Text: text, Source: source, Trigger: pipeline.TriggerPaste})
	if err != nil {
		return nil, err
	}
	if !res.NeedsPrompt() {
		return &PasteResult{Commit: true, Text: text}, nil
	}

	if settings.EnableAutoRedact {
		resolution, err := s.proc.Resolve(ctx, res, pipeline.ChoiceRedact)
		if err != nil {
			return nil, err
		}
		return &PasteResult{Commit: true, Text: resolution.Text}, nil
	}

	out := &PasteResult{}
	if settings.EnableWarnings {
		out.Prompt = s.open(res)
	}
	return out, nil
}

// Copy records a copy of text that holds findings.
func (s *Session) Copy(ctx context.Context, source, text string) (*pipeline.Result, error) {
	return s.proc.RecordCopy(ctx, pipeline.Request{Text: text, Source: source})
}

// Prompt returns the open prompt, if any.
func (s *Session) Prompt() *Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

// Resolve applies choice to the open prompt identified by id and closes it.
// A rejected choice leaves the prompt open.
func (s *Session) Resolve(ctx context.Context, id string, choice pipeline.Choice) (*pipeline.Resolution, error) {
	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	s.mu.Lock()
	p := s.prompt
	s.mu.Unlock()
	switch {
	case p == nil:
		return nil, ErrNoPrompt
	case p.ID != id:
		return nil, ErrPromptResolved
	}

	resolution, err := s.proc.Resolve(ctx, p.Result, choice)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.prompt == p {
		s.prompt = nil
	}
	s.mu.Unlock()
	return resolution, nil
}

// Dismiss closes the open prompt without recording a choice.
func (s *Session) Dismiss() {
	s.mu.Lock()
	s.prompt = nil
	s.mu.Unlock()
}

// Close stops any pending scan. The processor is left open.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.closed = true
	s.prompt = nil
	return nil
}

// Message renders the warning shown to the user.
func (p *Prompt) Message() string {
	return fmt.Sprintf("You're about to leak %d CRITICAL and %d HIGH severity items.", p.Critical, p.High)
}
