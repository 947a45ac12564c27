// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. Producers publish JSON events; consumers hand raw
// message values to a MessageHandler and commit only what was handled.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

// MessageHandler processes one message. Returning an error leaves the
// message uncommitted.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var fetchBackoff = resilience.Backoff{InitialDelay: 250 * time.Millisecond, MaxDelay: 15 * time.Second}

type Consumer struct {
	reader  messageReader
	topic   string
	handler MessageHandler
	logger  *slog.Logger

	mu          sync.Mutex
	running     bool
	handled     int64
	lastMessage time.Time
	fetchErr    error
}

// NewConsumer creates a Consumer for topic. group overrides
// cfg.ConsumerGroup when non-empty; searchers pass a per-instance group so
// every replica sees every reload event.
func NewConsumer(cfg config.KafkaConfig, topic, group string, handler MessageHandler) *Consumer {
	if group == "" {
		group = cfg.ConsumerGroup
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     group,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	c := newConsumer(r, topic, handler)
	c.logger = c.logger.With("group", group)
	return c
}

func newConsumer(r messageReader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  r,
		topic:   topic,
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled. Fetch errors are retried with
// growing backoff; handler errors are logged and the message is skipped
// without a commit.
func (c *Consumer) Start(ctx context.Context) error {
	c.setRunning(true)
	defer c.setRunning(false)
	c.logger.Info("consumer started")

	failures := 0
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			failures++
			c.setFetchErr(err)
			delay := fetchBackoff.Delay(failures)
			c.logger.Error("failed to fetch message", "error", err, "attempt", failures, "next_delay", delay)
			if resilience.Sleep(ctx, delay) != nil {
				return nil
			}
			continue
		}
		if failures > 0 {
			c.logger.Info("fetching recovered", "after_failures", failures)
			failures = 0
			c.setFetchErr(nil)
		}

		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
		log.Debug("message received", "key", string(msg.Key), "value_size", len(msg.Value))
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			log.Error("failed to process message", "error", err)
			continue
		}
		c.markHandled()
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error("failed to commit message", "error", err)
		}
	}
}

// Check reports the consumer for a health.Checker: down before Start or
// after it returns, degraded while fetches are failing.
func (c *Consumer) Check(context.Context) health.ComponentHealth {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case !c.running:
		return health.Down(fmt.Errorf("consumer for %s not running", c.topic))
	case c.fetchErr != nil:
		return health.Degraded(fmt.Sprintf("fetching %s: %v", c.topic, c.fetchErr))
	case c.lastMessage.IsZero():
		return health.Up(fmt.Sprintf("consuming %s, no messages yet", c.topic))
	}
	return health.Up(fmt.Sprintf("consuming %s, %d handled, last at %s",
		c.topic, c.handled, c.lastMessage.UTC().Format(time.RFC3339)))
}

func (c *Consumer) setRunning(v bool) {
	c.mu.Lock()
	c.running = v
	c.mu.Unlock()
}

func (c *Consumer) setFetchErr(err error) {
	c.mu.Lock()
	c.fetchErr = err
	c.mu.Unlock()
}

func (c *Consumer) markHandled() {
	c.mu.Lock()
	c.handled++
	c.lastMessage = time.Now()
	c.mu.Unlock()
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
