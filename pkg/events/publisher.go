package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"campusbook/pkg/logger"
)

// Publisher emits slot lifecycle events. A nil *KafkaPublisher is a
// valid no-op publisher, so callers never branch on whether events are
// enabled.
type Publisher interface {
	Publish(ctx context.Context, event SlotEvent) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
	source string
	log    *logger.Logger
	closed bool
	mu     sync.Mutex
}

func NewKafkaPublisher(cfg *Config, source string, log *logger.Logger) (*KafkaPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.With("component", "events", "topic", cfg.Topic)

	var requiredAcks kafka.RequiredAcks
	switch cfg.RequireAcks {
	case 0:
		requiredAcks = kafka.RequireNone
	case 1:
		requiredAcks = kafka.RequireOne
	default:
		requiredAcks = kafka.RequireAll
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // key by slot ID so events for one slot stay ordered
		RequiredAcks: requiredAcks,
		Compression:  kafka.Snappy,
		MaxAttempts:  cfg.MaxAttempts,
		BatchTimeout: cfg.BatchTimeout,
		Logger:       kafka.LoggerFunc(func(msg string, args ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error(fmt.Sprintf(msg, args...))
		}),
	}

	return &KafkaPublisher{
		writer: writer,
		source: source,
		log:    log,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event SlotEvent) error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("event publisher is closed")
	}
	p.mu.Unlock()

	if event.SlotID == "" {
		return fmt.Errorf("event slot ID cannot be empty")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.SlotID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(uuid.New().String())},
			{Key: HeaderEventType, Value: []byte(event.Type)},
			{Key: HeaderSource, Value: []byte(p.source)},
			{Key: HeaderTimestamp, Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}

	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}
