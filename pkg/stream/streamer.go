// Package stream publishes audit events to Kafka or to in-process callbacks.
package stream

import (
	"context"
	"time"

	"github.com/Tributary-ai-services/ContextGuard/pkg/audit"
	"github.com/Tributary-ai-services/ContextGuard/pkg/config"
)

// Streamer publishes audit events
type Streamer interface {
	// Stream publishes events to their routed topics
	Stream(ctx context.Context, events []audit.Event) error

	// StreamBatch publishes a batch of events
	StreamBatch(ctx context.Context, batch []audit.Event) error

	// Close flushes pending messages and closes the connection
	Close() error
}

// StreamerConfig configures the streamer
type StreamerConfig struct {
	// Kafka settings
	Brokers  []string `json:"brokers"`
	ClientID string   `json:"client_id"`
	Topics   Topics   `json:"topics"`

	// Producer settings
	BatchSize     int           `json:"batch_size"`
	FlushInterval time.Duration `json:"flush_interval"`
	Compression   string        `json:"compression"`   // "none", "gzip", "snappy", "lz4", "zstd"
	RequiredAcks  string        `json:"required_acks"` // "none", "local", "all"
	PartitionKey  string        `json:"partition_key"` // "source", "outcome", "event"

	// Retry settings
	MaxRetries   int           `json:"max_retries"`
	RetryBackoff time.Duration `json:"retry_backoff"`
}

// Topics defines Kafka topics for different event routes
type Topics struct {
	Events     string `json:"events"`     // All events
	Critical   string `json:"critical"`   // Events with critical findings
	Redactions string `json:"redactions"` // Redacted outcomes
}

// DefaultStreamerConfig returns default streamer configuration
func DefaultStreamerConfig() *StreamerConfig {
	return &StreamerConfig{
		Brokers:  []string{"localhost:9092"},
		ClientID: "contextguard",
		Topics: Topics{
			Events:     "contextguard.events",
			Critical:   "contextguard.critical",
			Redactions: "contextguard.redactions",
		},
		BatchSize:     100,
		FlushInterval: time.Second,
		Compression:   "snappy",
		RequiredAcks:  "all",
		PartitionKey:  KeyBySource,
		MaxRetries:    3,
		RetryBackoff:  100 * time.Millisecond,
	}
}

// ConfigFromSettings converts the streaming section of the application
// config, keeping defaults for anything it leaves unset.
func ConfigFromSettings(cfg config.StreamingConfig) *StreamerConfig {
	sc := DefaultStreamerConfig()
	k := cfg.Kafka

	if len(k.Brokers) > 0 {
		sc.Brokers = k.Brokers
	}
	if k.ClientID != "" {
		sc.ClientID = k.ClientID
	}
	if k.Topics.Events != "" {
		sc.Topics.Events = k.Topics.Events
	}
	if k.Topics.Critical != "" {
		sc.Topics.Critical = k.Topics.Critical
	}
	if k.Topics.Redactions != "" {
		sc.Topics.Redactions = k.Topics.Redactions
	}
	if k.Producer.BatchSize > 0 {
		sc.BatchSize = k.Producer.BatchSize
	}
	if k.Producer.FlushInterval > 0 {
		sc.FlushInterval = k.Producer.FlushInterval
	}
	if k.Producer.Compression != "" {
		sc.Compression = k.Producer.Compression
	}
	if k.Producer.RequiredAcks != "" {
		sc.RequiredAcks = k.Producer.RequiredAcks
	}
	if k.Producer.PartitionKey != "" {
		sc.PartitionKey = k.Producer.PartitionKey
	}
	return sc
}

// Sink adapts a Streamer to an audit.Sink so a Recorder can forward each
// event as it is recorded.
func Sink(s Streamer) audit.Sink {
	return audit.SinkFunc(func(ctx context.Context, e audit.Event) error {
		return s.Stream(ctx, []audit.Event{e})
	})
}
