// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"speech-diarization-service/internal/models"
	"speech-diarization-service/internal/observability/metrics"
)

// Listener receives every published event in-process, whether or not Kafka
// is enabled. Listeners must not block.
type Listener func(models.TranscriptEvent)

// Publisher publishes transcript events to separate Kafka topics for
// completed and failed jobs, and fans them out to local listeners.
type Publisher struct {
	writerCompleted *kafka.Writer
	writerFailed    *kafka.Writer
	principal       string
	topicCompleted  string
	topicFailed     string
	enabled         bool
	metrics         *metrics.Metrics

	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers        []string
	TopicCompleted string
	TopicFailed    string
	Principal      string
	Enabled        bool
}

// New creates a new Kafka event publisher.
func New(cfg *Config) *Publisher {
	p := &Publisher{
		metrics:   metrics.DefaultMetrics,
		listeners: make(map[int]Listener),
	}

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return p
	}

	p.principal = cfg.Principal
	p.topicCompleted = cfg.TopicCompleted
	p.topicFailed = cfg.TopicFailed

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	p.writerCompleted = newWriter(cfg.Brokers, cfg.TopicCompleted, transport)
	p.writerFailed = newWriter(cfg.Brokers, cfg.TopicFailed, transport)
	p.enabled = true

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicCompleted", cfg.TopicCompleted).
		Str("topicFailed", cfg.TopicFailed).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// Subscribe registers a local listener and returns a function removing it.
func (p *Publisher) Subscribe(l Listener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = l
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Publish routes the event to the topic for its type, keyed by audio
// filename so events for one file stay ordered.
func (p *Publisher) Publish(ctx context.Context, event models.TranscriptEvent) error {
	p.notify(event)

	switch event.EventType {
	case models.EventTranscriptCompleted:
		return p.publish(ctx, p.writerCompleted, p.topicCompleted, event)
	case models.EventTranscriptFailed:
		return p.publish(ctx, p.writerFailed, p.topicFailed, event)
	default:
		return fmt.Errorf("unknown event type %q", event.EventType)
	}
}

func (p *Publisher) notify(event models.TranscriptEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, l := range p.listeners {
		l(event)
	}
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic string, event models.TranscriptEvent) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", event.Filename).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, event.EventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(event.Filename),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(event.EventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", event.Filename).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, event.EventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, event.EventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerCompleted != nil {
		if e := p.writerCompleted.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing completed writer")
			err = e
		}
	}
	if p.writerFailed != nil {
		if e := p.writerFailed.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing failed writer")
			err = e
		}
	}
	return err
}
