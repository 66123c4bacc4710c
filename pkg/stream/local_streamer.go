package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/Tributary-ai-services/ContextGuard/pkg/audit"
)

// ErrStreamerClosed is returned when attempting to stream to a closed streamer.
var ErrStreamerClosed = errors.New("streamer is closed")

// StreamCallback is called for each event published to a topic.
type StreamCallback func(topic string, event audit.Event)

// LocalStreamer is an in-memory implementation of Streamer for library mode.
// It routes events to topics and invokes callbacks for each published message.
type LocalStreamer struct {
	router    *TopicRouter
	config    *StreamerConfig
	callbacks []StreamCallback
	mu        sync.RWMutex
	closed    bool
}

// Ensure LocalStreamer implements the Streamer interface.
var _ Streamer = (*LocalStreamer)(nil)

// NewLocalStreamer creates a new local streamer with the given configuration.
// If config is nil, DefaultStreamerConfig() is used.
func NewLocalStreamer(config *StreamerConfig) *LocalStreamer {
	if config == nil {
		config = DefaultStreamerConfig()
	}
	return &LocalStreamer{
		router:    NewTopicRouter(config.Topics),
		config:    config,
		callbacks: make([]StreamCallback, 0),
	}
}

// OnPublish registers a callback that will be invoked for each event
// published to a topic. Callbacks run in registration order.
func (s *LocalStreamer) OnPublish(cb StreamCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// Stream publishes events to the topics the TopicRouter selects, invoking
// every registered callback for each (topic, event) pair.
func (s *LocalStreamer) Stream(ctx context.Context, events []audit.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStreamerClosed
	}

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, topic := range s.router.Route(event) {
			for _, cb := range s.callbacks {
				cb(topic, event)
			}
		}
	}

	return nil
}

// StreamBatch publishes a batch of events. In the local implementation,
// this behaves identically to Stream.
func (s *LocalStreamer) StreamBatch(ctx context.Context, batch []audit.Event) error {
	return s.Stream(ctx, batch)
}

// Close marks the streamer as closed. Subsequent calls to Stream or StreamBatch
// will return ErrStreamerClosed.
func (s *LocalStreamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
