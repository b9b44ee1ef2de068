package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"campusbook/pkg/logger"
)

// EventHandler processes one decoded slot event. Returning an error
// leaves the message uncommitted so it is redelivered.
type EventHandler func(ctx context.Context, event SlotEvent) error

type Consumer struct {
	reader  *kafka.Reader
	handler EventHandler
	log     *logger.Logger
	closed  bool
	mu      sync.Mutex
}

func NewConsumer(cfg *Config, handler EventHandler, log *logger.Logger) (*Consumer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("event handler cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.With("component", "events", "topic", cfg.Topic, "group", cfg.ConsumerGroup)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: cfg.ConsumerMinByte,
		MaxBytes: cfg.ConsumerMaxByte,
		MaxWait:  cfg.ConsumerMaxWait,
		Logger:   kafka.LoggerFunc(func(msg string, args ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error(fmt.Sprintf(msg, args...))
		}),
	})

	return &Consumer{
		reader:  reader,
		handler: handler,
		log:     log,
	}, nil
}

// Start consumes until the context is cancelled or the consumer is
// closed. Undecodable messages are committed and skipped; handler
// failures leave the message uncommitted for redelivery.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return nil
			}
			c.log.Error("Failed to fetch event", "error", err)
			continue
		}

		var event SlotEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Error("Skipping undecodable event",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.log.Error("Failed to commit skipped event", "error", err)
			}
			continue
		}

		if err := c.handler(ctx, event); err != nil {
			c.log.Error("Event handler failed, leaving message uncommitted",
				"error", err,
				"event_type", event.Type,
				"slot_id", event.SlotID,
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("Failed to commit event", "error", err)
		}
	}
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.reader.Close()
}
