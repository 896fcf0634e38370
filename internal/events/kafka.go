package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tenantplane/internal/platform/config"
	"tenantplane/internal/platform/kafka/consumer"
	"tenantplane/internal/platform/kafka/producer"
)

const consumerStopTimeout = 10 * time.Second

type recordProducer interface {
	Produce(ctx context.Context, msg *producer.Message) error
	Close() error
}

type recordConsumer interface {
	Subscribe(topic string) error
	Start()
	Stop(ctx context.Context) error
}

// KafkaTransport maps each channel to a topic. Every process joins its own
// consumer group so each instance sees every event, matching pub/sub fan-out.
type KafkaTransport struct {
	prefix   string
	producer recordProducer
	consumer recordConsumer
	logger   *slog.Logger

	mu       sync.RWMutex
	delivers map[string][]func([]byte)
	started  bool
	closed   bool
}

// NewKafkaTransport connects a franz-go producer and a confluent consumer.
func NewKafkaTransport(cfg config.KafkaConfig, logger *slog.Logger) (*KafkaTransport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	prod, err := producer.New(producer.DefaultConfig(cfg.Brokers), logger)
	if err != nil {
		return nil, err
	}

	t := newKafkaTransport(cfg.TopicPrefix, prod, logger)
	cons, err := consumer.New(consumer.Config{
		Brokers:         cfg.Brokers,
		GroupID:         cfg.GroupPrefix + "-" + uuid.NewString(),
		AutoOffsetReset: "latest",
	}, consumer.HandlerFunc(t.handle), logger)
	if err != nil {
		_ = prod.Close()
		return nil, err
	}
	t.consumer = cons
	return t, nil
}

func newKafkaTransport(prefix string, prod recordProducer, logger *slog.Logger) *KafkaTransport {
	return &KafkaTransport{
		prefix:   prefix,
		producer: prod,
		logger:   logger,
		delivers: make(map[string][]func([]byte)),
	}
}

// Topic returns the Kafka topic that carries channel.
func (t *KafkaTransport) Topic(channel string) string {
	name := strings.TrimPrefix(channel, ChannelPrefix)
	if t.prefix == "" {
		return name
	}
	return t.prefix + "." + name
}

// Publish produces data to the channel's topic and waits for the ack.
func (t *KafkaTransport) Publish(ctx context.Context, channel string, data []byte) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return t.producer.Produce(ctx, &producer.Message{
		Topic:   t.Topic(channel),
		Value:   data,
		Headers: map[string]string{"channel": channel},
	})
}

// Subscribe adds the channel's topic to the consumer and starts polling on
// first use.
func (t *KafkaTransport) Subscribe(_ context.Context, channel string, deliver func([]byte)) error {
	topic := t.Topic(channel)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if len(t.delivers[topic]) == 0 {
		if err := t.consumer.Subscribe(topic); err != nil {
			return fmt.Errorf("kafka subscribe %s: %w", topic, err)
		}
	}
	t.delivers[topic] = append(t.delivers[topic], deliver)
	if !t.started {
		t.consumer.Start()
		t.started = true
	}
	return nil
}

func (t *KafkaTransport) handle(_ context.Context, msg *consumer.Message) error {
	t.mu.RLock()
	delivers := t.delivers[msg.Topic]
	t.mu.RUnlock()
	for _, deliver := range delivers {
		deliver(msg.Value)
	}
	return nil
}

// Close stops the consumer and flushes the producer.
func (t *KafkaTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	started := t.started
	t.mu.Unlock()

	var stopErr error
	if t.consumer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), consumerStopTimeout)
		defer cancel()
		if err := t.consumer.Stop(ctx); err != nil && started {
			stopErr = fmt.Errorf("stop kafka consumer: %w", err)
		}
	}
	if err := t.producer.Close(); err != nil {
		return err
	}
	return stopErr
}
