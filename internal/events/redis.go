package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisTransport broadcasts envelopes over Redis pub/sub, so every process
// subscribed to a channel receives every message published to it.
type RedisTransport struct {
	rdb    *redis.Client
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	subs   []*redis.PubSub
	closed bool
}

// NewRedisTransport wraps rdb. The client's lifetime stays with the caller.
func NewRedisTransport(rdb *redis.Client, logger *slog.Logger) *RedisTransport {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisTransport{rdb: rdb, logger: logger, ctx: ctx, cancel: cancel}
}

// Publish sends data to channel.
func (t *RedisTransport) Publish(ctx context.Context, channel string, data []byte) error {
	if err := t.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a pub/sub subscription on channel and forwards every
// message to deliver until Close.
func (t *RedisTransport) Subscribe(ctx context.Context, channel string, deliver func([]byte)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	pubsub := t.rdb.Subscribe(ctx, channel)
	// Receive waits for the subscription confirmation so messages published
	// after Subscribe returns are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("redis subscribe %s: %w", channel, err)
	}
	t.subs = append(t.subs, pubsub)

	t.wg.Go(func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-t.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				deliver([]byte(msg.Payload))
			}
		}
	})
	return nil
}

// Close ends every subscription and waits for the readers to exit.
func (t *RedisTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	subs := t.subs
	t.subs = nil
	t.mu.Unlock()

	t.cancel()
	for _, s := range subs {
		if err := s.Close(); err != nil {
			t.logger.Warn("redis pubsub close failed", "error", err)
		}
	}
	t.wg.Wait()
	return nil
}
