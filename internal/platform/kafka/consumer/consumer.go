// Package consumer reads records from Kafka with confluent-kafka-go.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// ErrClosed is returned by Subscribe after Stop.
var ErrClosed = errors.New("consumer is closed")

// Message represents a received Kafka message.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes consumed messages. Offsets are committed automatically,
// so a returned error is logged and the message is not redelivered.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Config holds consumer configuration.
type Config struct {
	Brokers         string
	GroupID         string
	AutoOffsetReset string
}

// Consumer wraps the confluent-kafka-go consumer with a poll loop.
type Consumer struct {
	consumer *kafka.Consumer
	handler  Handler
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	topics []string
	closed bool
}

// New creates a consumer. AutoOffsetReset defaults to "latest".
func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if cfg.Brokers == "" {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer group ID not configured")
	}
	reset := cfg.AutoOffsetReset
	if reset == "" {
		reset = "latest"
	}

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":        cfg.Brokers,
		"group.id":                 cfg.GroupID,
		"auto.offset.reset":        reset,
		"enable.auto.commit":       true,
		"allow.auto.create.topics": true,
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		consumer: c,
		handler:  handler,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Subscribe adds topic to the consumer's subscription set.
func (c *Consumer) Subscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if slices.Contains(c.topics, topic) {
		return nil
	}
	topics := append(slices.Clone(c.topics), topic)
	if err := c.consumer.SubscribeTopics(topics, nil); err != nil {
		return fmt.Errorf("subscribe to topics: %w", err)
	}
	c.topics = topics
	return nil
}

// Start begins the consumption loop in a background goroutine.
func (c *Consumer) Start() {
	c.wg.Go(c.run)
}

func (c *Consumer) run() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			c.poll()
		}
	}
}

func (c *Consumer) poll() {
	ev := c.consumer.Poll(100)
	if ev == nil {
		return
	}

	switch e := ev.(type) {
	case *kafka.Message:
		c.handleMessage(e)
	case kafka.Error:
		if e.Code() != kafka.ErrTimedOut {
			c.logger.Error("kafka consumer error", "code", e.Code(), "error", e.Error())
		}
	}
}

func (c *Consumer) handleMessage(km *kafka.Message) {
	headers := make(map[string]string, len(km.Headers))
	for _, h := range km.Headers {
		headers[h.Key] = string(h.Value)
	}

	var topic string
	if km.TopicPartition.Topic != nil {
		topic = *km.TopicPartition.Topic
	}
	msg := &Message{
		Topic:     topic,
		Partition: km.TopicPartition.Partition,
		Offset:    int64(km.TopicPartition.Offset),
		Key:       km.Key,
		Value:     km.Value,
		Headers:   headers,
		Timestamp: km.Timestamp,
	}

	if err := c.handler.Handle(c.ctx, msg); err != nil {
		c.logger.Error("failed to handle message",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
}

// Stop ends the poll loop and closes the consumer. Safe to call twice.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return c.consumer.Close()
	case <-ctx.Done():
		return ctx.Err()
	}
}
