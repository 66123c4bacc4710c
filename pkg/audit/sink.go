package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrSinkClosed is returned when writing to a closed sink.
var ErrSinkClosed = errors.New("audit sink is closed")

// Sink receives recorded events.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Event) error

// Write calls f(ctx, e).
func (f SinkFunc) Write(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// FileSink appends events to a file as JSON lines.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	closed bool
}

// Ensure FileSink implements the Sink interface.
var _ Sink = (*FileSink)(nil)

// NewFileSink opens path for appending, creating it if needed.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening audit file %s: %w", path, err)
	}
	return &FileSink{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Write appends e as one JSON line.
func (s *FileSink) Write(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	if err := s.enc.Encode(e); err != nil {
		return fmt.Errorf("writing audit event %s: %w", e.ID, err)
	}
	return nil
}

// Close flushes and closes the file. It is safe to call more than once.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return fmt.Errorf("syncing audit file: %w", err)
	}
	return s.file.Close()
}
