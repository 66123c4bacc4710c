package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/IBM/sarama"

	"github.com/Tributary-ai-services/ContextGuard/pkg/audit"
)

// Partition key strategies.
const (
	// KeyBySource keeps every event from one destination in a single
	// partition, so consumers see that destination's history in order.
	KeyBySource = "source"
	// KeyByOutcome groups events by what the user chose.
	KeyByOutcome = "outcome"
	// KeyByEvent spreads events evenly.
	KeyByEvent = "event"
)

// Record headers set on every message.
const (
	HeaderEventID  = "event-id"
	HeaderOutcome  = "outcome"
	HeaderSource   = "source"
	HeaderCritical = "critical"
)

// KafkaStreamer publishes audit events through a sarama AsyncProducer.
type KafkaStreamer struct {
	producer sarama.AsyncProducer
	router   *TopicRouter
	keyFn    func(audit.Event) string

	mu     sync.RWMutex
	closed bool
	errCh  chan error
	done   chan struct{}
}

var _ Streamer = (*KafkaStreamer)(nil)

// NewKafkaStreamer connects to the configured brokers.
func NewKafkaStreamer(config *StreamerConfig) (*KafkaStreamer, error) {
	if config == nil {
		config = DefaultStreamerConfig()
	}
	if len(config.Brokers) == 0 {
		return nil, errors.New("at least one Kafka broker is required")
	}

	producer, err := sarama.NewAsyncProducer(config.Brokers, buildSaramaConfig(config))
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewKafkaStreamerWithProducer(producer, config), nil
}

// NewKafkaStreamerWithProducer wraps an existing producer, such as one from
// sarama/mocks.
func NewKafkaStreamerWithProducer(producer sarama.AsyncProducer, config *StreamerConfig) *KafkaStreamer {
	if config == nil {
		config = DefaultStreamerConfig()
	}

	ks := &KafkaStreamer{
		producer: producer,
		router:   NewTopicRouter(config.Topics),
		keyFn:    partitionKeyFunc(config.PartitionKey),
		errCh:    make(chan error, 100),
		done:     make(chan struct{}),
	}
	go ks.drain()
	return ks
}

// Stream enqueues one message per routed topic for each event.
func (ks *KafkaStreamer) Stream(ctx context.Context, events []audit.Event) error {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.closed {
		return ErrStreamerClosed
	}

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		msgs, err := ks.messages(event)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			select {
			case ks.producer.Input() <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// StreamBatch is Stream; the async producer batches on its own.
func (ks *KafkaStreamer) StreamBatch(ctx context.Context, batch []audit.Event) error {
	return ks.Stream(ctx, batch)
}

// messages encodes an event once and addresses a copy to every routed topic.
func (ks *KafkaStreamer) messages(event audit.Event) ([]*sarama.ProducerMessage, error) {
	topics := ks.router.Route(event)
	if len(topics) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}
	key := sarama.StringEncoder(ks.keyFn(event))
	headers := eventHeaders(event)

	msgs := make([]*sarama.ProducerMessage, len(topics))
	for i, topic := range topics {
		msgs[i] = &sarama.ProducerMessage{
			Topic:    topic,
			Key:      key,
			Value:    sarama.ByteEncoder(data),
			Headers:  headers,
			Metadata: event.ID,
		}
	}
	return msgs, nil
}

func eventHeaders(event audit.Event) []sarama.RecordHeader {
	headers := []sarama.RecordHeader{
		{Key: []byte(HeaderEventID), Value: []byte(event.ID)},
		{Key: []byte(HeaderOutcome), Value: []byte(event.Action)},
		{Key: []byte(HeaderCritical), Value: []byte(strconv.Itoa(event.Critical))},
	}
	if event.Source != "" {
		headers = append(headers, sarama.RecordHeader{Key: []byte(HeaderSource), Value: []byte(event.Source)})
	}
	return headers
}

// partitionKeyFunc resolves a strategy name. Unknown names key by source.
func partitionKeyFunc(strategy string) func(audit.Event) string {
	switch strategy {
	case KeyByOutcome:
		return func(e audit.Event) string { return string(e.Action) }
	case KeyByEvent:
		return func(e audit.Event) string { return e.ID }
	default:
		return func(e audit.Event) string {
			if e.Source == "" {
				return e.ID
			}
			return e.Source
		}
	}
}

// Close flushes pending messages and waits for the producer to shut down.
func (ks *KafkaStreamer) Close() error {
	ks.mu.Lock()
	if ks.closed {
		ks.mu.Unlock()
		return nil
	}
	ks.closed = true
	ks.mu.Unlock()

	ks.producer.AsyncClose()
	<-ks.done
	return nil
}

// Errors returns produce failures. It is never closed; failures past its
// buffer are dropped.
func (ks *KafkaStreamer) Errors() <-chan error {
	return ks.errCh
}

// drain consumes acknowledgements and failures until the producer closes
// both channels.
func (ks *KafkaStreamer) drain() {
	defer close(ks.done)

	successes, failures := ks.producer.Successes(), ks.producer.Errors()
	for successes != nil || failures != nil {
		select {
		case _, ok := <-successes:
			if !ok {
				successes = nil
			}
		case perr, ok := <-failures:
			if !ok {
				failures = nil
				continue
			}
			ks.report(perr)
		}
	}
}

func (ks *KafkaStreamer) report(perr *sarama.ProducerError) {
	if perr == nil {
		return
	}
	err := fmt.Errorf("kafka produce error: %w", perr.Err)
	if perr.Msg != nil {
		id, _ := perr.Msg.Metadata.(string)
		err = fmt.Errorf("kafka produce error on topic %s for event %s: %w", perr.Msg.Topic, id, perr.Err)
	}
	select {
	case ks.errCh <- err:
	default:
	}
}

var (
	compressionCodecs = map[string]sarama.CompressionCodec{
		"gzip":   sarama.CompressionGZIP,
		"snappy": sarama.CompressionSnappy,
		"lz4":    sarama.CompressionLZ4,
		"zstd":   sarama.CompressionZSTD,
	}
	ackLevels = map[string]sarama.RequiredAcks{
		"none":   sarama.NoResponse,
		"leader": sarama.WaitForLocal,
		"local":  sarama.WaitForLocal,
		"all":    sarama.WaitForAll,
	}
)

// buildSaramaConfig maps StreamerConfig onto a producer config. Messages are
// hash partitioned on their key.
func buildSaramaConfig(config *StreamerConfig) *sarama.Config {
	sc := sarama.NewConfig()
	if config.ClientID != "" {
		sc.ClientID = config.ClientID
	}

	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Partitioner = sarama.NewHashPartitioner

	if config.FlushInterval > 0 {
		sc.Producer.Flush.Frequency = config.FlushInterval
	}
	if config.BatchSize > 0 {
		sc.Producer.Flush.Messages = config.BatchSize
	}

	sc.Producer.Compression = sarama.CompressionNone
	if codec, ok := compressionCodecs[config.Compression]; ok {
		sc.Producer.Compression = codec
	}
	sc.Producer.RequiredAcks = sarama.WaitForAll
	if acks, ok := ackLevels[config.RequiredAcks]; ok {
		sc.Producer.RequiredAcks = acks
	}

	if config.MaxRetries > 0 {
		sc.Producer.Retry.Max = config.MaxRetries
	}
	if config.RetryBackoff > 0 {
		sc.Producer.Retry.Backoff = config.RetryBackoff
	}
	return sc
}
