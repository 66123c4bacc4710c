package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tributary-ai-services/ContextGuard/pkg/scan"
)

// Recorder turns findings into events, stores them in a Log and forwards
// them to any number of sinks.
type Recorder struct {
	log     *Log
	logger  *slog.Logger
	now     func() time.Time
	enabled atomic.Bool

	mu    sync.RWMutex
	sinks []Sink
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithSink adds a sink that receives every recorded event.
func WithSink(s Sink) RecorderOption {
	return func(r *Recorder) {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
}

// WithLogger sets the logger used for sink failures.
func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder creates an enabled recorder over log. A nil log gets a new one
// with DefaultCapacity.
func NewRecorder(log *Log, opts ...RecorderOption) *Recorder {
	if log == nil {
		log = NewLog(DefaultCapacity)
	}
	r := &Recorder{
		log:    log,
		logger: slog.Default(),
		now:    time.Now,
	}
	r.enabled.Store(true)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Log returns the underlying event log.
func (r *Recorder) Log() *Log {
	return r.log
}

// SetEnabled turns recording on or off. A disabled recorder still returns
// the event it would have recorded but stores and forwards nothing.
func (r *Recorder) SetEnabled(enabled bool) {
	r.enabled.Store(enabled)
}

// Enabled reports whether events are being recorded.
func (r *Recorder) Enabled() bool {
	return r.enabled.Load()
}

// AddSink registers a sink after construction.
func (r *Recorder) AddSink(s Sink) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// Record summarizes findings into an event tagged with action and source.
// The event is always appended to the log; sink failures are joined into
// the returned error.
func (r *Recorder) Record(ctx context.Context, action Outcome, source string, findings []scan.Finding) (Event, error) {
	if !action.Valid() {
		return Event{}, fmt.Errorf("unknown audit outcome %q", action)
	}

	e := NewEvent(action, source, scan.Summarize(findings), r.now())
	if !r.Enabled() {
		return e, nil
	}

	r.log.Append(e)

	r.mu.RLock()
	sinks := r.sinks
	r.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Write(ctx, e); err != nil {
			r.logger.Warn("audit sink write failed", "event_id", e.ID, "error", err)
			errs = append(errs, err)
		}
	}

	r.logger.Debug("audit event recorded",
		"event_id", e.ID,
		"action", string(e.Action),
		"findings", e.FindingsCount,
		"critical", e.Critical,
	)

	return e, errors.Join(errs...)
}

// StartPruner removes events older than retention every interval until ctx
// is done. It returns immediately; pruning runs in a goroutine.
func (r *Recorder) StartPruner(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := r.log.Prune(r.now().Add(-retention)); n > 0 {
					r.logger.Info("pruned audit events", "removed", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
